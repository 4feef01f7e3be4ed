// Package product serves the product catalog stored in the document store.
package product

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-repository-kit/cache"
	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/repository"
)

// ServiceName is the broker namespace of the product actions.
const ServiceName = "product"

// AccountService owns the accounts products belong to.
const AccountService = "account"

// PriceTTL is how long FindPriceByName results are cached.
const PriceTTL = 60 * time.Second

type Product struct {
	ID          string    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description" json:"description"`
	Price       float64   `bson:"price" json:"price"`
	Stock       int       `bson:"stock" json:"stock"`
	Category    string    `bson:"category" json:"category"`
	AccountID   string    `bson:"account_id" json:"account_id,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

func (p *Product) PrepareInsert(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
}

func (p Product) GetID() string { return p.ID }

type PriceInfo struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// WithAccount is a product with its owning account as returned by the
// account service. Account is empty when the product has no account or the
// account no longer exists.
type WithAccount struct {
	Product
	Account json.RawMessage `json:"account,omitempty"`
}

// Repository adds catalog queries to the base repository.
type Repository struct {
	repository.Repository[Product]
	remote      broker.Remote
	priceByName func(context.Context, string) (*PriceInfo, error)
}

// NewRepository builds the product repository. cacher may be nil, which
// disables the price cache.
func NewRepository(base repository.Repository[Product], cacher *cache.Cacher, remote broker.Remote) *Repository {
	r := &Repository{Repository: base, remote: remote}
	r.priceByName = cache.Wrap(cacher, cache.Options{
		TTL:     PriceTTL,
		KeyFunc: func(args ...any) string { return fmt.Sprintf("product:price:%v", args[0]) },
	}, r.findPriceByName)
	return r
}

func (r *Repository) FindByCategory(ctx context.Context, category string) ([]Product, error) {
	return r.Find(ctx, repository.Filter{"category": category})
}

// FindByName matches name as a case-insensitive substring.
func (r *Repository) FindByName(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, repository.Filter{"name": repository.Contains(name)})
}

// FindPriceByName returns the price of the first product whose name
// contains name. Results are cached for PriceTTL under product:price:<name>.
func (r *Repository) FindPriceByName(ctx context.Context, name string) (*PriceInfo, error) {
	return r.priceByName(ctx, name)
}

func (r *Repository) findPriceByName(ctx context.Context, name string) (*PriceInfo, error) {
	p, err := r.FindOne(ctx, repository.Filter{"name": repository.Contains(name)})
	if err != nil || p == nil {
		return nil, err
	}
	return &PriceInfo{ID: p.ID, Name: p.Name, Price: p.Price}, nil
}

// UpdateStock adds quantity (negative to take stock out) and returns the
// updated product, or nil when id does not exist.
func (r *Repository) UpdateStock(ctx context.Context, id string, quantity int) (*Product, error) {
	return r.Update(ctx, id, repository.Update{"stock": repository.Increment{By: quantity}})
}

// GetProductWithAccount loads the product and its account from the account
// service.
func (r *Repository) GetProductWithAccount(ctx context.Context, id string) (*WithAccount, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil || p == nil {
		return nil, err
	}
	out := &WithAccount{Product: *p}
	if p.AccountID == "" || r.remote == nil {
		return out, nil
	}

	account, ok, err := r.remote.RemoteGet(ctx, AccountService, p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", p.AccountID, err)
	}
	if ok {
		out.Account = account
	}
	return out, nil
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	AccountID   string  `json:"account_id,omitempty"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.Category, validation.Required),
		validation.Field(&r.Stock, validation.Min(0)),
	)
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.NilOrNotEmpty),
		validation.Field(&r.Price, validation.Min(0.0)),
		validation.Field(&r.Category, validation.NilOrNotEmpty),
		validation.Field(&r.Stock, validation.Min(0)),
	)
}

func (r UpdateRequest) changes() repository.Update {
	data := repository.Update{}
	if r.Name != nil {
		data["name"] = *r.Name
	}
	if r.Description != nil {
		data["description"] = *r.Description
	}
	if r.Price != nil {
		data["price"] = *r.Price
	}
	if r.Category != nil {
		data["category"] = *r.Category
	}
	if r.Stock != nil {
		data["stock"] = *r.Stock
	}
	return data
}

type FindRequest struct {
	Category string `json:"category,omitempty"`
	Name     string `json:"name,omitempty"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type StockRequest struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

func (r StockRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Quantity, validation.Required),
	)
}

// SearchRequest searches Fields (name, description and category when
// empty) for Query.
type SearchRequest struct {
	Query  string                 `json:"query"`
	Fields []string               `json:"fields,omitempty"`
	Paging repository.PageRequest `json:"paging"`
}

type ListRequest struct {
	Category string                 `json:"category,omitempty"`
	Paging   repository.PageRequest `json:"paging"`
}

type FeedRequest struct {
	Category string                   `json:"category,omitempty"`
	Cursor   repository.CursorRequest `json:"cursor"`
}
