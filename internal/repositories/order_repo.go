package repositories

import (
	"context"

	"storefront/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// List returns orders newest first plus the total count.
	List(ctx context.Context, offset, limit int) ([]models.Order, int64, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByCustomerEmail(ctx context.Context, email string) ([]models.Order, error)
	// Create inserts the order and its lines as one unit.
	Create(ctx context.Context, order *models.Order) error
	// SaveStatus writes the status fields if the stored version equals order.Version and
	// bumps order.Version on success. Lines are never rewritten.
	SaveStatus(ctx context.Context, order *models.Order) error
	// Delete removes the order and its lines as one unit.
	Delete(ctx context.Context, id string) error
}
