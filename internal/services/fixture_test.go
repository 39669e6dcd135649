package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func nullLogger() *log.Entry {
	logger, _ := test.NewNullLogger()
	return logger.WithField("component", "test")
}

// recordingPublisher keeps the routing keys of published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return p.err
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// faultyProducts fails every version-checked write to one product with a storage error.
type faultyProducts struct {
	repositories.ProductRepository
	mu     sync.Mutex
	failID string
}

func (f *faultyProducts) FailWritesTo(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failID = id
}

func (f *faultyProducts) CompareAndSwap(ctx context.Context, expectedVersion int64, next models.Product) (*models.Product, error) {
	f.mu.Lock()
	fail := f.failID != "" && f.failID == next.ID
	f.mu.Unlock()
	if fail {
		return nil, errors.New("disk full")
	}
	return f.ProductRepository.CompareAndSwap(ctx, expectedVersion, next)
}

// faultyStore is a memory store whose product writes can be made to fail.
type faultyStore struct {
	*repositories.MemoryStore
	products *faultyProducts
}

func (s *faultyStore) Products() repositories.ProductRepository { return s.products }

func (s *faultyStore) Atomically(ctx context.Context, fn func(tx repositories.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

type fixture struct {
	store     repositories.Store
	faulty    *faultyProducts
	stock     *services.StockKeeper
	products  *services.ProductService
	carts     *services.CartService
	orders    *services.OrderService
	publisher *recordingPublisher
}

func newFixture(t *testing.T, cfg services.OrderServiceConfig) *fixture {
	return newFixtureWithPolicy(t, cfg, services.StockPolicy{MaxRetries: 5})
}

// newFixtureWithPolicy builds a fixture on the memory store, whose product writes can be
// made to fail.
func newFixtureWithPolicy(t *testing.T, cfg services.OrderServiceConfig, policy services.StockPolicy) *fixture {
	t.Helper()
	mem := repositories.NewMemoryStore()
	faulty := &faultyProducts{ProductRepository: mem.Products()}
	f := buildFixture(&faultyStore{MemoryStore: mem, products: faulty}, cfg, policy)
	f.faulty = faulty
	return f
}

// newSQLiteFixture builds a fixture on a private in-memory SQLite database.
func newSQLiteFixture(t *testing.T, cfg services.OrderServiceConfig) *fixture {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	}, nullLogger())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return buildFixture(repositories.NewGORMStore(db), cfg, services.StockPolicy{MaxRetries: 5})
}

// forEachStore runs fn against a memory fixture and a SQLite fixture.
func forEachStore(t *testing.T, cfg services.OrderServiceConfig, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, cfg))
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newSQLiteFixture(t, cfg))
	})
}

func buildFixture(store repositories.Store, cfg services.OrderServiceConfig, policy services.StockPolicy) *fixture {
	logger := nullLogger()
	stock := services.NewStockKeeper(policy, nil, logger)
	publisher := &recordingPublisher{}
	return &fixture{
		store:     store,
		stock:     stock,
		products:  services.NewProductService(store.Products(), stock, logger),
		carts:     services.NewCartService(store, logger),
		orders:    services.NewOrderService(store, stock, nil, publisher, nil, cfg, logger),
		publisher: publisher,
	}
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), services.ProductInput{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "Electronics",
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

// order checks out a fresh session holding the given product quantities.
func (f *fixture) order(t *testing.T, session string, items map[*models.Product]int) *models.Order {
	t.Helper()
	ctx := context.Background()
	for p, qty := range items {
		_, err := f.carts.AddItem(ctx, session, p.ID, qty)
		require.NoError(t, err)
	}
	order, err := f.orders.CreateOrder(ctx, session, customer())
	require.NoError(t, err)
	return order
}

func customer() models.CustomerInfo {
	return models.CustomerInfo{
		Name:            "Grace Hopper",
		Email:           "grace@example.com",
		PhoneNumber:     "+15550100200",
		ShippingAddress: "1 Compiler Street, Arlington",
		DeliveryNotes:   "Leave at the front desk",
	}
}
