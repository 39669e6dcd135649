package repositories

import "context"

// Store groups the repositories that checkout and cancellation mutate together.
type Store interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	// Atomically runs fn against a transactional view of the store. Stores without
	// multi-row transactions pass themselves, so callers must still compensate on failure.
	Atomically(ctx context.Context, fn func(tx Store) error) error
}
