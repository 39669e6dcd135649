package repositories

import (
	"context"
	"sort"
	"sync"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MemoryCartRepository is an in-memory implementation of CartRepository.
type MemoryCartRepository struct {
	lines map[string]models.CartLine
	mu    sync.RWMutex
}

// NewMemoryCartRepository creates a new instance of MemoryCartRepository.
func NewMemoryCartRepository() *MemoryCartRepository {
	return &MemoryCartRepository{
		lines: make(map[string]models.CartLine),
	}
}

// ListBySession returns the session's lines in the order they were added.
func (r *MemoryCartRepository) ListBySession(_ context.Context, sessionID string) ([]models.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.CartLine, 0)
	for _, line := range r.lines {
		if line.SessionID == sessionID {
			result = append(result, line)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetByID returns a cart line by its ID.
func (r *MemoryCartRepository) GetByID(_ context.Context, id string) (*models.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	line, ok := r.lines[id]
	if !ok {
		return nil, models.NewNotFound("cart item", id)
	}
	return &line, nil
}

// GetBySessionAndProduct returns the line for a product in a session's cart.
func (r *MemoryCartRepository) GetBySessionAndProduct(_ context.Context, sessionID, productID string) (*models.CartLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, line := range r.lines {
		if line.SessionID == sessionID && line.ProductID == productID {
			l := line
			return &l, nil
		}
	}
	return nil, models.NewNotFound("cart item", productID)
}

// Create adds a cart line, enforcing one line per (session, product).
func (r *MemoryCartRepository) Create(_ context.Context, line *models.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.lines {
		if existing.SessionID == line.SessionID && existing.ProductID == line.ProductID {
			return models.NewConcurrencyConflict("cart item", line.ProductID)
		}
	}
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	r.lines[line.ID] = *line
	return nil
}

// Update modifies an existing cart line.
func (r *MemoryCartRepository) Update(_ context.Context, line *models.CartLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.lines[line.ID]
	if !ok {
		return models.NewNotFound("cart item", line.ID)
	}
	current.Quantity = line.Quantity
	current.Subtotal = line.Subtotal
	current.UpdatedAt = line.UpdatedAt
	r.lines[line.ID] = current
	return nil
}

// Delete removes a cart line by its ID.
func (r *MemoryCartRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lines[id]; !ok {
		return models.NewNotFound("cart item", id)
	}
	delete(r.lines, id)
	return nil
}

// DeleteLines removes the listed lines that still belong to the session.
func (r *MemoryCartRepository) DeleteLines(_ context.Context, sessionID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if line, ok := r.lines[id]; ok && line.SessionID == sessionID {
			delete(r.lines, id)
			n++
		}
	}
	return n, nil
}

// DeleteBySession empties a session's cart.
func (r *MemoryCartRepository) DeleteBySession(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, line := range r.lines {
		if line.SessionID == sessionID {
			delete(r.lines, id)
			n++
		}
	}
	return n, nil
}

var _ CartRepository = (*MemoryCartRepository)(nil)
