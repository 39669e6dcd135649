package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db, timeout: defaultQueryTimeout}
}

func (r *GORMCartRepository) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// ListBySession returns the session's lines in the order they were added.
func (r *GORMCartRepository) ListBySession(ctx context.Context, sessionID string) ([]models.CartLine, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var lines []models.CartLine
	if err := db.Where("session_id = ?", sessionID).Order("created_at ASC, id ASC").Find(&lines).Error; err != nil {
		return nil, fmt.Errorf("failed to list cart for session %s: %w", sessionID, err)
	}
	return lines, nil
}

// GetByID retrieves a cart line by its ID.
func (r *GORMCartRepository) GetByID(ctx context.Context, id string) (*models.CartLine, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var line models.CartLine
	if err := db.First(&line, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFound("cart item", id)
		}
		return nil, fmt.Errorf("failed to get cart item %s: %w", id, err)
	}
	return &line, nil
}

// GetBySessionAndProduct retrieves the line for a product in a session's cart.
func (r *GORMCartRepository) GetBySessionAndProduct(ctx context.Context, sessionID, productID string) (*models.CartLine, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var line models.CartLine
	err := db.Where("session_id = ? AND product_id = ?", sessionID, productID).First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFound("cart item", productID)
		}
		return nil, fmt.Errorf("failed to get cart item for product %s: %w", productID, err)
	}
	return &line, nil
}

// Create inserts a new cart line.
func (r *GORMCartRepository) Create(ctx context.Context, line *models.CartLine) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	if err := db.Create(line).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConcurrencyConflict("cart item", line.ProductID)
		}
		return fmt.Errorf("failed to create cart item: %w", err)
	}
	return nil
}

// Update writes quantity and subtotal of an existing line.
func (r *GORMCartRepository) Update(ctx context.Context, line *models.CartLine) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.CartLine{}).Where("id = ?", line.ID).Updates(map[string]interface{}{
		"quantity":   line.Quantity,
		"subtotal":   line.Subtotal,
		"updated_at": line.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update cart item %s: %w", line.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFound("cart item", line.ID)
	}
	return nil
}

// Delete removes a single cart line.
func (r *GORMCartRepository) Delete(ctx context.Context, id string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Delete(&models.CartLine{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart item %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFound("cart item", id)
	}
	return nil
}

// DeleteLines removes the listed lines that still belong to the session.
func (r *GORMCartRepository) DeleteLines(ctx context.Context, sessionID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Where("session_id = ? AND id IN ?", sessionID, ids).Delete(&models.CartLine{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete cart items for session %s: %w", sessionID, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteBySession empties a session's cart.
func (r *GORMCartRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Where("session_id = ?", sessionID).Delete(&models.CartLine{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear cart for session %s: %w", sessionID, res.Error)
	}
	return res.RowsAffected, nil
}

var _ CartRepository = (*GORMCartRepository)(nil)
