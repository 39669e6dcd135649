package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryProductRepository is an in-memory implementation of ProductRepository.
type MemoryProductRepository struct {
	products map[string]models.Product
	mu       sync.RWMutex
}

// NewMemoryProductRepository creates a new instance of MemoryProductRepository.
func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		products: make(map[string]models.Product),
	}
}

func (r *MemoryProductRepository) sorted(keep func(models.Product) bool) []models.Product {
	list := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// GetAll returns all products.
func (r *MemoryProductRepository) GetAll(_ context.Context) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(models.Product) bool { return true }), nil
}

// GetActive returns one page of active products.
func (r *MemoryProductRepository) GetActive(_ context.Context, offset, limit int) ([]models.Product, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.sorted(func(p models.Product) bool { return p.Active })
	total := int64(len(list))
	if offset >= len(list) {
		return []models.Product{}, total, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, total, nil
}

// GetByCategory returns the active products of one category.
func (r *MemoryProductRepository) GetByCategory(_ context.Context, category string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sorted(func(p models.Product) bool { return p.Active && p.Category == category }), nil
}

// SearchByName matches active product names case-insensitively.
func (r *MemoryProductRepository) SearchByName(_ context.Context, keyword string) ([]models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keyword = strings.ToLower(keyword)
	return r.sorted(func(p models.Product) bool {
		return p.Active && strings.Contains(strings.ToLower(p.Name), keyword)
	}), nil
}

// Categories returns the distinct categories of active products in alphabetical order.
func (r *MemoryProductRepository) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	categories := make([]string, 0)
	for _, p := range r.products {
		if !p.Active {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// Count returns the number of stored products.
func (r *MemoryProductRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.products)), nil
}

// GetByID returns a product by its ID.
func (r *MemoryProductRepository) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, models.NewNotFound("product", id)
	}
	return &product, nil
}

// Create adds a new product.
func (r *MemoryProductRepository) Create(_ context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if _, exists := r.products[product.ID]; exists {
		return models.NewConcurrencyConflict("product", product.ID)
	}
	now := time.Now().UTC()
	product.Version = 0
	product.CreatedAt = now
	product.UpdatedAt = now
	r.products[product.ID] = *product
	return nil
}

// CompareAndSwap replaces the product if nobody bumped its version since it was read.
func (r *MemoryProductRepository) CompareAndSwap(_ context.Context, expectedVersion int64, next models.Product) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.products[next.ID]
	if !ok {
		return nil, models.NewNotFound("product", next.ID)
	}
	if current.Version != expectedVersion {
		return nil, models.NewConcurrencyConflict("product", next.ID)
	}
	next.Version = expectedVersion + 1
	next.CreatedAt = current.CreatedAt
	r.products[next.ID] = next
	return &next, nil
}

var _ ProductRepository = (*MemoryProductRepository)(nil)
