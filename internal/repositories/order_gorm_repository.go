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

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db, timeout: defaultQueryTimeout}
}

func (r *GORMOrderRepository) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC")
	})
}

// List returns one page of orders, newest first.
func (r *GORMOrderRepository) List(ctx context.Context, offset, limit int) ([]models.Order, int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	q := withLines(db).Order("created_at DESC, id DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// GetByID returns the order with its lines.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var order models.Order
	if err := withLines(db).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFound("order", id)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// GetByNumber returns the order with the given human-readable number.
func (r *GORMOrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var order models.Order
	if err := withLines(db).First(&order, "order_number = ?", orderNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFound("order", orderNumber)
		}
		return nil, fmt.Errorf("failed to get order %s: %w", orderNumber, err)
	}
	return &order, nil
}

// ListByCustomerEmail returns a customer's orders, newest first.
func (r *GORMOrderRepository) ListByCustomerEmail(ctx context.Context, email string) ([]models.Order, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var orders []models.Order
	if err := withLines(db).Where("customer_email = ?", email).Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for %s: %w", email, err)
	}
	return orders, nil
}

// Create inserts the order row and all of its lines in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if order.Lines[i].ID == "" {
			order.Lines[i].ID = uuid.New().String()
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// Lines are inserted explicitly so the association is never upserted implicitly.
		if err := tx.Omit("Lines").Create(order).Error; err != nil {
			if isUniqueViolation(err) {
				return models.NewConcurrencyConflict("order", order.OrderNumber)
			}
			return fmt.Errorf("failed to create order: %w", err)
		}
		if len(order.Lines) > 0 {
			if err := tx.Create(&order.Lines).Error; err != nil {
				return fmt.Errorf("failed to create order items: %w", err)
			}
		}
		return nil
	})
}

// SaveStatus performs a version-checked update of the status fields.
func (r *GORMOrderRepository) SaveStatus(ctx context.Context, order *models.Order) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	res := db.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"version":        order.Version + 1,
			"updated_at":     order.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check order %s: %w", order.ID, err)
		}
		if n == 0 {
			return models.NewNotFound("order", order.ID)
		}
		return models.NewConcurrencyConflict("order", order.ID)
	}
	order.Version++
	return nil
}

// Delete removes the order and its lines in one transaction.
func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderLine{}).Error; err != nil {
			return fmt.Errorf("failed to delete items of order %s: %w", id, err)
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete order %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFound("order", id)
		}
		return nil
	})
}

var _ OrderRepository = (*GORMOrderRepository)(nil)
