package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db:      db,
		timeout: defaultQueryTimeout,
	}
}

func (r *GORMProductRepository) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// GetAll retrieves all products, active or not.
func (r *GORMProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var products []models.Product
	if err := db.Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get all products: %w", err)
	}
	return products, nil
}

// GetActive retrieves one page of active products.
func (r *GORMProductRepository) GetActive(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&models.Product{}).Where("active = ?", true).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count active products: %w", err)
	}

	q := db.Where("active = ?", true).Order("name ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get active products: %w", err)
	}
	return products, total, nil
}

// GetByCategory retrieves the active products of one category.
func (r *GORMProductRepository) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var products []models.Product
	if err := db.Where("category = ? AND active = ?", category, true).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to get products in category %s: %w", category, err)
	}
	return products, nil
}

// SearchByName matches active products whose name contains keyword, ignoring case.
func (r *GORMProductRepository) SearchByName(ctx context.Context, keyword string) ([]models.Product, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	pattern := "%" + strings.ToLower(keyword) + "%"
	var products []models.Product
	if err := db.Where("active = ? AND LOWER(name) LIKE ?", true, pattern).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to search products by %q: %w", keyword, err)
	}
	return products, nil
}

// Categories returns the distinct categories of active products in alphabetical order.
func (r *GORMProductRepository) Categories(ctx context.Context) ([]string, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var categories []string
	if err := db.Model(&models.Product{}).Where("active = ?", true).Distinct("category").Order("category ASC").Pluck("category", &categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// Count returns the number of stored products.
func (r *GORMProductRepository) Count(ctx context.Context) (int64, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var n int64
	if err := db.Model(&models.Product{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFound("product", id)
		}
		return nil, fmt.Errorf("failed to get product by ID %s: %w", id, err)
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	db, cancel := r.conn(ctx)
	defer cancel()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.Version = 0
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := db.Create(product).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// CompareAndSwap performs a version-checked UPDATE.
func (r *GORMProductRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next models.Product) (*models.Product, error) {
	db, cancel := r.conn(ctx)
	defer cancel()

	next.Version = expectedVersion + 1
	// A map is used so zero values (stock 0, active false) are written too.
	res := db.Model(&models.Product{}).
		Where("id = ? AND version = ?", next.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":           next.Name,
			"description":    next.Description,
			"price":          next.Price,
			"stock_quantity": next.StockQuantity,
			"category":       next.Category,
			"image_url":      next.ImageURL,
			"active":         next.Active,
			"version":        next.Version,
			"updated_at":     next.UpdatedAt,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update product %s: %w", next.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&models.Product{}).Where("id = ?", next.ID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to check product %s: %w", next.ID, err)
		}
		if n == 0 {
			return nil, models.NewNotFound("product", next.ID)
		}
		return nil, models.NewConcurrencyConflict("product", next.ID)
	}
	return &next, nil
}

var _ ProductRepository = (*GORMProductRepository)(nil)
