package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// GORMStore hands out GORM repositories bound to one connection or transaction.
type GORMStore struct {
	db       *gorm.DB
	timeout  time.Duration
	products *GORMProductRepository
	carts    *GORMCartRepository
	orders   *GORMOrderRepository
}

// NewGORMStore creates a store over db using the default per-query timeout.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return NewGORMStoreWithTimeout(db, defaultQueryTimeout)
}

// NewGORMStoreWithTimeout creates a store whose repositories bound every query by
// timeout unless the caller's context already carries a deadline.
func NewGORMStoreWithTimeout(db *gorm.DB, timeout time.Duration) *GORMStore {
	s := &GORMStore{
		db:       db,
		timeout:  timeout,
		products: NewGORMProductRepository(db),
		carts:    NewGORMCartRepository(db),
		orders:   NewGORMOrderRepository(db),
	}
	s.products.timeout = timeout
	s.carts.timeout = timeout
	s.orders.timeout = timeout
	return s
}

func (s *GORMStore) Products() ProductRepository { return s.products }
func (s *GORMStore) Carts() CartRepository       { return s.carts }
func (s *GORMStore) Orders() OrderRepository     { return s.orders }

// Atomically runs fn inside a database transaction; any error rolls everything back.
// Nested calls become savepoints.
func (s *GORMStore) Atomically(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStoreWithTimeout(tx, s.timeout))
	})
}

var _ Store = (*GORMStore)(nil)
