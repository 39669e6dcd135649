package repositories

import (
	"context"

	"storefront/internal/models"
)

// CartRepository defines the interface for cart line data access.
type CartRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.CartLine, error)
	GetByID(ctx context.Context, id string) (*models.CartLine, error)
	// GetBySessionAndProduct returns NotFound when the session has no line for the product.
	GetBySessionAndProduct(ctx context.Context, sessionID, productID string) (*models.CartLine, error)
	// Create fails with ConcurrencyConflict if the (session, product) line already exists.
	Create(ctx context.Context, line *models.CartLine) error
	Update(ctx context.Context, line *models.CartLine) error
	Delete(ctx context.Context, id string) error
	// DeleteLines removes the given lines of a session and reports how many were removed.
	DeleteLines(ctx context.Context, sessionID string, ids []string) (int64, error)
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}
