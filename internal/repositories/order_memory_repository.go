package repositories

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryOrderRepository is an in-memory implementation of OrderRepository.
type MemoryOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// clone copies the line slice so callers never share backing arrays with the map.
func clone(order models.Order) models.Order {
	lines := make([]models.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order
}

func newestFirst(list []models.Order) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
}

// List returns one page of orders, newest first.
func (r *MemoryOrderRepository) List(_ context.Context, offset, limit int) ([]models.Order, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		list = append(list, clone(order))
	}
	newestFirst(list)
	total := int64(len(list))
	if offset >= len(list) {
		return []models.Order{}, total, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, total, nil
}

// GetByID returns an order by its ID.
func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, models.NewNotFound("order", id)
	}
	order = clone(order)
	return &order, nil
}

// GetByNumber returns an order by its order number.
func (r *MemoryOrderRepository) GetByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if order.OrderNumber == orderNumber {
			o := clone(order)
			return &o, nil
		}
	}
	return nil, models.NewNotFound("order", orderNumber)
}

// ListByCustomerEmail returns a customer's orders, newest first.
func (r *MemoryOrderRepository) ListByCustomerEmail(_ context.Context, email string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.CustomerEmail == email {
			list = append(list, clone(order))
		}
	}
	newestFirst(list)
	return list, nil
}

// Create stores a new order together with its lines.
func (r *MemoryOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if _, exists := r.orders[order.ID]; exists {
		return models.NewConcurrencyConflict("order", order.ID)
	}
	for _, existing := range r.orders {
		if existing.OrderNumber == order.OrderNumber {
			return models.NewConcurrencyConflict("order", order.OrderNumber)
		}
	}
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		if order.Lines[i].ID == "" {
			order.Lines[i].ID = uuid.New().String()
		}
	}
	r.orders[order.ID] = clone(*order)
	return nil
}

// SaveStatus overwrites the status fields, checking the version (optimistic locking).
func (r *MemoryOrderRepository) SaveStatus(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	if !ok {
		return models.NewNotFound("order", order.ID)
	}
	if current.Version != order.Version {
		return models.NewConcurrencyConflict("order", order.ID)
	}
	current.Status = order.Status
	current.PaymentStatus = order.PaymentStatus
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.orders[order.ID] = current
	order.Version = current.Version
	return nil
}

// Delete removes the order and its lines.
func (r *MemoryOrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return models.NewNotFound("order", id)
	}
	delete(r.orders, id)
	return nil
}

var _ OrderRepository = (*MemoryOrderRepository)(nil)
