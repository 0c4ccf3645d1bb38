package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/imisu/internal/domain"
)

var ErrNotFound = errors.New("service not found")

// ServiceStore is the port the HTTP layer reads services through.
type ServiceStore interface {
	// All returns every configured service in configuration order.
	All(ctx context.Context) ([]domain.Service, error)
	// Enabled is All without the disabled services.
	Enabled(ctx context.Context) ([]domain.Service, error)
	// Get returns an enabled service. Unknown and disabled names both
	// yield ErrNotFound.
	Get(ctx context.Context, name string) (domain.Service, error)
}
