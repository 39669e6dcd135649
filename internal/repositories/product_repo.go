package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	// GetActive returns active products ordered by name, skipping offset and returning at
	// most limit rows (limit <= 0 means no limit), plus the total number of active products.
	GetActive(ctx context.Context, offset, limit int) ([]models.Product, int64, error)
	GetByCategory(ctx context.Context, category string) ([]models.Product, error)
	SearchByName(ctx context.Context, keyword string) ([]models.Product, error)
	Categories(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	// GetByID returns a *models.Error of kind NotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	// CompareAndSwap stores next only if the stored version still equals expectedVersion.
	// The returned row carries version expectedVersion+1. A stale version yields
	// ConcurrencyConflict, an unknown id NotFound.
	CompareAndSwap(ctx context.Context, expectedVersion int64, next models.Product) (*models.Product, error)
}
