package repositories

import "context"

// MemoryStore bundles the in-memory repositories. It has no multi-row transactions, so
// Atomically just runs fn and relies on the caller's compensation.
type MemoryStore struct {
	products *MemoryProductRepository
	carts    *MemoryCartRepository
	orders   *MemoryOrderRepository
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: NewMemoryProductRepository(),
		carts:    NewMemoryCartRepository(),
		orders:   NewMemoryOrderRepository(),
	}
}

func (s *MemoryStore) Products() ProductRepository { return s.products }
func (s *MemoryStore) Carts() CartRepository       { return s.carts }
func (s *MemoryStore) Orders() OrderRepository     { return s.orders }

// Atomically runs fn against the store itself.
func (s *MemoryStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

var _ Store = (*MemoryStore)(nil)
