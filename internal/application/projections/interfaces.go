package projections

import (
	"context"

	domainItem "rancho/internal/domain/item"
)

// ItemStore interface for menu queries.
type ItemStore interface {
	List(ctx context.Context) ([]domainItem.Item, error)
}
