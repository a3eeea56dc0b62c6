// Package repository declares the storage contracts used by the service layer.
// Implementations live in sub-packages (see sqldb).
package repository

import (
	"context"

	"github.com/albizan/shortify-backend/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts. Lookups return apperror.ErrNotFound when
// nothing matches; Create returns apperror.ErrConflict on a duplicate email.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Activate(ctx context.Context, id string) error
	Update(ctx context.Context, user *model.User) error
}

// LinkRepository stores short links. Mutations are scoped to the owning user.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	IncrementClicks(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, ownerID, id string) error
	Patch(ctx context.Context, ownerID, id string, patch model.LinkPatch) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) ([]model.Link, error)
	ListAllByOwner(ctx context.Context, ownerID string) ([]model.Link, error)
}
