package upload

import (
	"context"
	"io"
)

// Store persists uploaded files and hands back the name to reference them by.
type Store interface {
	Save(ctx context.Context, originalName string, src io.Reader) (string, error)
	Remove(name string) error
}
