package product

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/repository"
)

var searchFields = []string{"name", "description", "category"}

type Service struct {
	repo   *Repository
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

func NewService(repo *Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("create product", err)
	}
	created, err := s.repo.Create(ctx, Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		AccountID:   req.AccountID,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("product_id", created.ID))
	return &created, nil
}

func (s *Service) Get(ctx context.Context, req broker.IDRequest) (*Product, error) {
	if req.ID == "" {
		return nil, invalid("get product", errors.New("id: cannot be blank"))
	}
	return s.repo.FindByID(ctx, req.ID)
}

// Find filters by category, else by name substring, else returns everything.
func (s *Service) Find(ctx context.Context, req FindRequest) ([]Product, error) {
	switch {
	case req.Category != "":
		return s.repo.FindByCategory(ctx, req.Category)
	case req.Name != "":
		return s.repo.FindByName(ctx, req.Name)
	}
	return s.repo.Find(ctx, nil)
}

func (s *Service) FindPriceByName(ctx context.Context, req NameRequest) (*PriceInfo, error) {
	if req.Name == "" {
		return nil, invalid("find price", errors.New("name: cannot be blank"))
	}
	return s.repo.FindPriceByName(ctx, req.Name)
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("update product", err)
	}
	data := req.changes()
	if len(data) > 0 {
		data["updated_at"] = s.now()
	}
	return s.repo.Update(ctx, req.ID, data)
}

func (s *Service) Delete(ctx context.Context, req broker.IDRequest) (*Product, error) {
	if req.ID == "" {
		return nil, invalid("delete product", errors.New("id: cannot be blank"))
	}
	return s.repo.Delete(ctx, req.ID)
}

func (s *Service) UpdateStock(ctx context.Context, req StockRequest) (*Product, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("update stock", err)
	}
	return s.repo.UpdateStock(ctx, req.ID, req.Quantity)
}

func (s *Service) GetWithAccount(ctx context.Context, req broker.IDRequest) (*WithAccount, error) {
	if req.ID == "" {
		return nil, invalid("get product", errors.New("id: cannot be blank"))
	}
	return s.repo.GetProductWithAccount(ctx, req.ID)
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (repository.Page[Product], error) {
	fields := req.Fields
	if len(fields) == 0 {
		fields = searchFields
	}
	return s.repo.FindWithSearch(ctx, req.Query, fields, req.Paging)
}

func (s *Service) List(ctx context.Context, req ListRequest) (repository.Page[Product], error) {
	return s.repo.FindWithPagination(ctx, categoryFilter(req.Category), req.Paging)
}

// Feed walks the catalog with a cursor over product ids.
func (s *Service) Feed(ctx context.Context, req FeedRequest) (repository.CursorPage[Product], error) {
	return s.repo.FindWithCursor(ctx, categoryFilter(req.Category), req.Cursor)
}

// Register serves the product actions on c.
func (s *Service) Register(c *broker.Client) (*broker.Actions, error) {
	a := broker.NewActions(c, ServiceName)
	broker.On(a, "create", s.Create)
	broker.On(a, "get", s.Get)
	broker.On(a, "find", s.Find)
	broker.On(a, "findPriceByName", s.FindPriceByName)
	broker.On(a, "update", s.Update)
	broker.On(a, "delete", s.Delete)
	broker.On(a, "updateStock", s.UpdateStock)
	broker.On(a, "getWithAccount", s.GetWithAccount)
	broker.On(a, "search", s.Search)
	broker.On(a, "list", s.List)
	broker.On(a, "feed", s.Feed)
	return a, a.Err()
}

func categoryFilter(category string) repository.Filter {
	if category == "" {
		return nil
	}
	return repository.Filter{"category": category}
}

func invalid(op string, err error) error {
	return &repository.ValidationError{Op: op, Err: err}
}
