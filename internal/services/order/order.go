// Package order serves orders stored in the relational store, plus sales
// reporting over completed orders.
package order

import (
	"encoding/json"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-kit/repository"
)

// ServiceName is the broker namespace of the order actions.
const ServiceName = "order"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var statuses = []any{StatusPending, StatusProcessing, StatusCompleted, StatusCancelled}

type Item struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

func (i Item) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ProductID, validation.Required),
		validation.Field(&i.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&i.Price, validation.Min(0.0)),
	)
}

type Order struct {
	bun.BaseModel `bun:"table:orders" json:"-"`

	ID            string    `bun:"id,pk" json:"id"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	Items         []Item    `bun:"items,type:jsonb" json:"items"`
	TotalAmount   float64   `bun:"total_amount" json:"total_amount"`
	Status        Status    `bun:"status,notnull" json:"status"`
	PaymentMethod string    `bun:"payment_method" json:"payment_method,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (o *Order) PrepareInsert(now time.Time) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
}

func (o Order) GetID() string { return o.ID }

// Total sums price times quantity over items, rounded to cents.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return math.Round(sum*100) / 100
}

// WithUser is an order with its customer as returned by the user service.
type WithUser struct {
	Order
	User json.RawMessage `json:"user,omitempty"`
}

type CreateRequest struct {
	UserID        string `json:"user_id"`
	Items         []Item `json:"items"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required),
		validation.Field(&r.Items, validation.Required),
	)
}

type UserRequest struct {
	UserID string `json:"user_id"`
}

type StatusRequest struct {
	Status Status `json:"status"`
}

func (r StatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(statuses...)),
	)
}

type UpdateStatusRequest struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Status, validation.Required, validation.In(statuses...)),
	)
}

type ListRequest struct {
	Status Status                 `json:"status,omitempty"`
	Paging repository.PageRequest `json:"paging"`
}

type FeedRequest struct {
	UserID string                   `json:"user_id,omitempty"`
	Cursor repository.CursorRequest `json:"cursor"`
}

type DateRangeRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRangeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Start, validation.Required),
		validation.Field(&r.End, validation.Required, validation.Min(r.Start)),
	)
}

type DailySales struct {
	Date       string  `json:"date"`
	TotalSales float64 `json:"total_sales"`
	OrderCount int     `json:"order_count"`
}

type ProductSales struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	TotalQuantity int     `json:"total_quantity"`
	TotalSales    float64 `json:"total_sales"`
}

type UserSales struct {
	UserID      string  `json:"user_id"`
	UserName    string  `json:"user_name"`
	TotalOrders int     `json:"total_orders"`
	TotalSales  float64 `json:"total_sales"`
}

type PaymentStats struct {
	PaymentMethod string  `json:"payment_method"`
	TotalOrders   int     `json:"total_orders"`
	TotalAmount   float64 `json:"total_amount"`
}
