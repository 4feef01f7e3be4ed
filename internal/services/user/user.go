// Package user serves user accounts stored in the document store.
package user

import (
	"context"
	"errors"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-repository-kit/repository"
)

// ServiceName is the broker namespace of the user actions.
const ServiceName = "user"

// ErrEmailTaken is returned when creating a user whose email already exists.
var ErrEmailTaken = errors.New("email already registered")

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type User struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Email        string    `bson:"email" json:"email"`
	Name         string    `bson:"name" json:"name"`
	PasswordHash string    `bson:"password_hash" json:"password_hash,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

func (u *User) PrepareInsert(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
}

func (u User) GetID() string { return u.ID }

// Public drops the password hash.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	return &out
}

// Repository adds user lookups to the base repository.
type Repository struct {
	repository.Repository[User]
}

func NewRepository(base repository.Repository[User]) *Repository {
	return &Repository{Repository: base}
}

// FindByEmail returns the user registered with email, or nil.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.FindOne(ctx, repository.Filter{"email": email})
}

type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Match(emailPattern)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 72)),
	)
}

// UpdateRequest changes only the fields that are set.
type UpdateRequest struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Match(emailPattern)),
	)
}

func (r UpdateRequest) changes() repository.Update {
	data := repository.Update{}
	if r.Name != nil {
		data["name"] = *r.Name
	}
	if r.Email != nil {
		data["email"] = *r.Email
	}
	return data
}

type EmailRequest struct {
	Email string `json:"email"`
}
