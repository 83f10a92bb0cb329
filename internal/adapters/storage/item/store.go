package item

import (
	"context"

	domain "rancho/internal/domain/item"
)

// Store persists menu Items.
// Lookups and writes on a missing id return domain.ErrNotFound.
type Store interface {
	List(ctx context.Context) ([]domain.Item, error)
	GetByID(ctx context.Context, id string) (domain.Item, error)
	Create(ctx context.Context, it domain.Item) (domain.Item, error)
	Update(ctx context.Context, it domain.Item) error
	SetAvailable(ctx context.Context, id string, available bool) error
	Delete(ctx context.Context, id string) error
}
