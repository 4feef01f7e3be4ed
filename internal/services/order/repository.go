package order

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/repository"
)

// UserService owns the customers orders belong to.
const UserService = "user"

// WithUserTTL is how long GetOrderWithUser results are cached.
const WithUserTTL = 30 * time.Second

// lookupConcurrency bounds parallel user lookups in SalesByUser.
const lookupConcurrency = 8

// Repository adds order queries and reports to the base repository.
type Repository struct {
	repository.Repository[Order]
	remote   broker.Remote
	withUser func(context.Context, string) (*WithUser, error)
}

// NewRepository builds the order repository. cacher may be nil.
func NewRepository(base repository.Repository[Order], cacher *cache.Cacher, remote broker.Remote) *Repository {
	r := &Repository{Repository: base, remote: remote}
	r.withUser = cache.Wrap(cacher, cache.Options{
		TTL:     WithUserTTL,
		KeyFunc: func(args ...any) string { return fmt.Sprintf("order:with:user:%v", args[0]) },
	}, r.getOrderWithUser)
	return r
}

func (r *Repository) FindByUserID(ctx context.Context, userID string) ([]Order, error) {
	return r.Find(ctx, repository.Filter{"user_id": userID})
}

func (r *Repository) FindByStatus(ctx context.Context, status Status) ([]Order, error) {
	return r.Find(ctx, repository.Filter{"status": status})
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, now time.Time) (*Order, error) {
	return r.Update(ctx, id, repository.Update{"status": status, "updated_at": now})
}

// GetOrderWithUser loads the order and its customer. Results are cached for
// WithUserTTL under order:with:user:<id>.
func (r *Repository) GetOrderWithUser(ctx context.Context, id string) (*WithUser, error) {
	return r.withUser(ctx, id)
}

func (r *Repository) getOrderWithUser(ctx context.Context, id string) (*WithUser, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil || o == nil {
		return nil, err
	}
	out := &WithUser{Order: *o}
	user, ok, err := r.remote.RemoteGet(ctx, UserService, o.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", o.UserID, err)
	}
	if ok {
		out.User = user
	}
	return out, nil
}

func (r *Repository) completed(ctx context.Context, filter repository.Filter) ([]Order, error) {
	f := repository.Filter{"status": StatusCompleted}
	for k, v := range filter {
		f[k] = v
	}
	return r.Find(ctx, f)
}

// SalesByDateRange totals completed orders created within [start, end] per
// UTC day, oldest day first.
func (r *Repository) SalesByDateRange(ctx context.Context, start, end time.Time) ([]DailySales, error) {
	orders, err := r.completed(ctx, repository.Filter{"created_at": repository.GreaterOrEqual(start)})
	if err != nil {
		return nil, err
	}

	byDay := map[string]*DailySales{}
	for _, o := range orders {
		if o.CreatedAt.After(end) {
			continue
		}
		day := o.CreatedAt.UTC().Format(time.DateOnly)
		row := byDay[day]
		if row == nil {
			row = &DailySales{Date: day}
			byDay[day] = row
		}
		row.TotalSales += o.TotalAmount
		row.OrderCount++
	}

	out := make([]DailySales, 0, len(byDay))
	for _, row := range byDay {
		row.TotalSales = cents(row.TotalSales)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// SalesByProduct totals completed order items per product, best sellers first.
func (r *Repository) SalesByProduct(ctx context.Context) ([]ProductSales, error) {
	orders, err := r.completed(ctx, nil)
	if err != nil {
		return nil, err
	}

	byProduct := map[string]*ProductSales{}
	for _, o := range orders {
		for _, it := range o.Items {
			row := byProduct[it.ProductID]
			if row == nil {
				row = &ProductSales{ProductID: it.ProductID}
				byProduct[it.ProductID] = row
			}
			if row.ProductName == "" {
				row.ProductName = it.Name
			}
			row.TotalQuantity += it.Quantity
			row.TotalSales += it.Price * float64(it.Quantity)
		}
	}

	out := make([]ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		row.TotalSales = cents(row.TotalSales)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSales != out[j].TotalSales {
			return out[i].TotalSales > out[j].TotalSales
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

// SalesByUser totals completed orders per customer, biggest spenders first.
// Names come from the user service; unknown users keep an empty name.
func (r *Repository) SalesByUser(ctx context.Context) ([]UserSales, error) {
	orders, err := r.completed(ctx, nil)
	if err != nil {
		return nil, err
	}

	byUser := map[string]*UserSales{}
	for _, o := range orders {
		row := byUser[o.UserID]
		if row == nil {
			row = &UserSales{UserID: o.UserID}
			byUser[o.UserID] = row
		}
		row.TotalOrders++
		row.TotalSales += o.TotalAmount
	}

	out := make([]UserSales, 0, len(byUser))
	for _, row := range byUser {
		row.TotalSales = cents(row.TotalSales)
		out = append(out, *row)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i := range out {
		g.Go(func() error {
			raw, ok, err := r.remote.RemoteGet(gctx, UserService, out[i].UserID)
			if err != nil {
				return fmt.Errorf("load user %s: %w", out[i].UserID, err)
			}
			if !ok {
				return nil
			}
			var u struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &u); err != nil {
				return fmt.Errorf("decode user %s: %w", out[i].UserID, err)
			}
			out[i].UserName = u.Name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSales != out[j].TotalSales {
			return out[i].TotalSales > out[j].TotalSales
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// PaymentStatistics totals completed orders per payment method.
func (r *Repository) PaymentStatistics(ctx context.Context) ([]PaymentStats, error) {
	orders, err := r.completed(ctx, nil)
	if err != nil {
		return nil, err
	}

	byMethod := map[string]*PaymentStats{}
	for _, o := range orders {
		row := byMethod[o.PaymentMethod]
		if row == nil {
			row = &PaymentStats{PaymentMethod: o.PaymentMethod}
			byMethod[o.PaymentMethod] = row
		}
		row.TotalOrders++
		row.TotalAmount += o.TotalAmount
	}

	out := make([]PaymentStats, 0, len(byMethod))
	for _, row := range byMethod {
		row.TotalAmount = cents(row.TotalAmount)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].PaymentMethod < out[j].PaymentMethod
	})
	return out, nil
}

func cents(v float64) float64 {
	return Total([]Item{{Quantity: 1, Price: v}})
}
