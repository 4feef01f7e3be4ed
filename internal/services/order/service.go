package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/repository"
)

// ProductService owns the stock order items draw from.
const ProductService = "product"

type stockRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type Service struct {
	repo   *Repository
	remote broker.Remote
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService serves orders from repo. remote reaches the product service to
// reserve stock.
func NewService(repo *Repository, remote broker.Remote, opts ...Option) *Service {
	s := &Service{repo: repo, remote: remote, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a pending order and then takes each item out of stock. A
// failed stock update is returned after the order has been stored.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("create order", err)
	}
	created, err := s.repo.Create(ctx, Order{
		UserID:        req.UserID,
		Items:         req.Items,
		TotalAmount:   Total(req.Items),
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}

	subject := broker.Subject(ProductService, "updateStock")
	for _, it := range req.Items {
		if err := s.remote.Request(ctx, subject, stockRequest{ID: it.ProductID, Quantity: -it.Quantity}, nil); err != nil {
			s.logger.Warn("stock update failed",
				zap.String("order_id", created.ID),
				zap.String("product_id", it.ProductID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("order %s: update stock of %s: %w", created.ID, it.ProductID, err)
		}
	}

	s.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.String("user_id", created.UserID),
		zap.Float64("total_amount", created.TotalAmount),
	)
	return &created, nil
}

func (s *Service) Get(ctx context.Context, req broker.IDRequest) (*Order, error) {
	if req.ID == "" {
		return nil, invalid("get order", errors.New("id: cannot be blank"))
	}
	return s.repo.FindByID(ctx, req.ID)
}

func (s *Service) FindByUserID(ctx context.Context, req UserRequest) ([]Order, error) {
	if req.UserID == "" {
		return nil, invalid("find orders", errors.New("user_id: cannot be blank"))
	}
	return s.repo.FindByUserID(ctx, req.UserID)
}

func (s *Service) FindByStatus(ctx context.Context, req StatusRequest) ([]Order, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("find orders", err)
	}
	return s.repo.FindByStatus(ctx, req.Status)
}

func (s *Service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Order, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("update order status", err)
	}
	updated, err := s.repo.UpdateStatus(ctx, req.ID, req.Status, s.now())
	if err != nil || updated == nil {
		return nil, err
	}
	s.logger.Info("order status updated", zap.String("order_id", updated.ID), zap.String("status", string(updated.Status)))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, req broker.IDRequest) (*Order, error) {
	if req.ID == "" {
		return nil, invalid("delete order", errors.New("id: cannot be blank"))
	}
	return s.repo.Delete(ctx, req.ID)
}

func (s *Service) List(ctx context.Context, req ListRequest) (repository.Page[Order], error) {
	var filter repository.Filter
	if req.Status != "" {
		filter = repository.Filter{"status": req.Status}
	}
	return s.repo.FindWithPagination(ctx, filter, req.Paging)
}

// Feed walks orders by id, optionally for a single user.
func (s *Service) Feed(ctx context.Context, req FeedRequest) (repository.CursorPage[Order], error) {
	var filter repository.Filter
	if req.UserID != "" {
		filter = repository.Filter{"user_id": req.UserID}
	}
	return s.repo.FindWithCursor(ctx, filter, req.Cursor)
}

func (s *Service) WithUser(ctx context.Context, req broker.IDRequest) (*WithUser, error) {
	if req.ID == "" {
		return nil, invalid("get order", errors.New("id: cannot be blank"))
	}
	return s.repo.GetOrderWithUser(ctx, req.ID)
}

func (s *Service) SalesByDateRange(ctx context.Context, req DateRangeRequest) ([]DailySales, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("sales by date range", err)
	}
	return s.repo.SalesByDateRange(ctx, req.Start, req.End)
}

func (s *Service) SalesByProduct(ctx context.Context, _ struct{}) ([]ProductSales, error) {
	return s.repo.SalesByProduct(ctx)
}

func (s *Service) SalesByUser(ctx context.Context, _ struct{}) ([]UserSales, error) {
	return s.repo.SalesByUser(ctx)
}

func (s *Service) PaymentStatistics(ctx context.Context, _ struct{}) ([]PaymentStats, error) {
	return s.repo.PaymentStatistics(ctx)
}

// Register serves the order actions on c.
func (s *Service) Register(c *broker.Client) (*broker.Actions, error) {
	a := broker.NewActions(c, ServiceName)
	broker.On(a, "create", s.Create)
	broker.On(a, "get", s.Get)
	broker.On(a, "findByUserId", s.FindByUserID)
	broker.On(a, "findByStatus", s.FindByStatus)
	broker.On(a, "updateStatus", s.UpdateStatus)
	broker.On(a, "delete", s.Delete)
	broker.On(a, "list", s.List)
	broker.On(a, "feed", s.Feed)
	broker.On(a, "withUser", s.WithUser)
	broker.On(a, "salesByDateRange", s.SalesByDateRange)
	broker.On(a, "salesByProduct", s.SalesByProduct)
	broker.On(a, "salesByUser", s.SalesByUser)
	broker.On(a, "paymentStatistics", s.PaymentStatistics)
	return a, a.Err()
}

func invalid(op string, err error) error {
	return &repository.ValidationError{Op: op, Err: err}
}
