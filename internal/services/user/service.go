package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-repository-kit/internal/broker"
	"github.com/goliatone/go-repository-kit/repository"
)

type Service struct {
	repo   *Repository
	logger *zap.Logger
	cost   int
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo *Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: zap.NewNop(), cost: bcrypt.DefaultCost, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("create user", err)
	}

	existing, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invalid("create user", ErrEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.repo.Create(ctx, User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", zap.String("user_id", created.ID))
	return created.Public(), nil
}

func (s *Service) Get(ctx context.Context, req broker.IDRequest) (*User, error) {
	if err := validateID(req); err != nil {
		return nil, invalid("get user", err)
	}
	u, err := s.repo.FindByID(ctx, req.ID)
	return u.Public(), err
}

func (s *Service) FindByEmail(ctx context.Context, req EmailRequest) (*User, error) {
	if req.Email == "" {
		return nil, invalid("find user", errors.New("email: cannot be blank"))
	}
	u, err := s.repo.FindByEmail(ctx, req.Email)
	return u.Public(), err
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid("update user", err)
	}
	data := req.changes()
	if len(data) > 0 {
		data["updated_at"] = s.now()
	}
	u, err := s.repo.Update(ctx, req.ID, data)
	return u.Public(), err
}

func (s *Service) Delete(ctx context.Context, req broker.IDRequest) (*User, error) {
	if err := validateID(req); err != nil {
		return nil, invalid("delete user", err)
	}
	u, err := s.repo.Delete(ctx, req.ID)
	return u.Public(), err
}

// List returns one page of users, newest first unless req sorts otherwise.
func (s *Service) List(ctx context.Context, req repository.PageRequest) (repository.Page[User], error) {
	page, err := s.repo.FindWithPagination(ctx, nil, req)
	if err != nil {
		return page, err
	}
	for i := range page.Items {
		page.Items[i].PasswordHash = ""
	}
	return page, nil
}

// Register serves the user actions on c.
func (s *Service) Register(c *broker.Client) (*broker.Actions, error) {
	a := broker.NewActions(c, ServiceName)
	broker.On(a, "create", s.Create)
	broker.On(a, "get", s.Get)
	broker.On(a, "findByEmail", s.FindByEmail)
	broker.On(a, "update", s.Update)
	broker.On(a, "delete", s.Delete)
	broker.On(a, "list", s.List)
	return a, a.Err()
}

func validateID(req broker.IDRequest) error {
	return validation.ValidateStruct(&req, validation.Field(&req.ID, validation.Required))
}

func invalid(op string, err error) error {
	return &repository.ValidationError{Op: op, Err: err}
}
