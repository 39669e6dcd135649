package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.CartLine{}, &models.Order{}, &models.OrderLine{}, &models.User{}))
	return db
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, store repositories.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repositories.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, repositories.NewGORMStore(newSQLiteDB(t)))
	})
}

func newProduct(name string, price string, stock int) *models.Product {
	return &models.Product{
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      "Electronics",
		Active:        true,
	}
}

func TestProductRepository_CompareAndSwap(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repositories.Store) {
		ctx := context.Background()
		repo := store.Products()

		p := newProduct("Laptop", "999.99", 5)
		require.NoError(t, repo.Create(ctx, p))
		require.NotEmpty(t, p.ID)

		read, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), read.Version)

		next := *read
		next.StockQuantity = 4
		updated, err := repo.CompareAndSwap(ctx, read.Version, next)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.Version)

		// A second writer holding the old version loses.
		stale := *read
		stale.StockQuantity = 3
		_, err = repo.CompareAndSwap(ctx, read.Version, stale)
		assert.ErrorIs(t, err, models.ErrConcurrencyConflict)

		current, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, current.StockQuantity)
		assert.Equal(t, int64(1), current.Version)

		missing := next
		missing.ID = "does-not-exist"
		_, err = repo.CompareAndSwap(ctx, 0, missing)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestProductRepository_Queries(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repositories.Store) {
		ctx := context.Background()
		repo := store.Products()

		mouse := newProduct("Wireless Mouse", "29.99", 10)
		chair := newProduct("Office Chair", "199.99", 3)
		chair.Category = "Furniture"
		lamp := newProduct("Desk Lamp", "39.99", 7)
		lamp.Category = "Lighting"
		for _, p := range []*models.Product{mouse, chair, lamp} {
			require.NoError(t, repo.Create(ctx, p))
		}

		// Deactivate the lamp through a version-checked write.
		off := *lamp
		off.Active = false
		_, err := repo.CompareAndSwap(ctx, 0, off)
		require.NoError(t, err)

		active, total, err := repo.GetActive(ctx, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, active, 1)
		assert.Equal(t, "Office Chair", active[0].Name)

		found, err := repo.SearchByName(ctx, "MOUSE")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, mouse.ID, found[0].ID)

		found, err = repo.SearchByName(ctx, "lamp")
		require.NoError(t, err)
		assert.Empty(t, found)

		furniture, err := repo.GetByCategory(ctx, "Furniture")
		require.NoError(t, err)
		require.Len(t, furniture, 1)

		categories, err := repo.Categories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Electronics", "Furniture"}, categories)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		_, err = repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestCartRepository_OneLinePerProduct(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repositories.Store) {
		ctx := context.Background()
		carts := store.Carts()
		now := time.Now().UTC()

		first := &models.CartLine{SessionID: "s1", ProductID: "p1", Quantity: 1, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, carts.Create(ctx, first))

		dup := &models.CartLine{SessionID: "s1", ProductID: "p1", Quantity: 2, CreatedAt: now, UpdatedAt: now}
		assert.ErrorIs(t, carts.Create(ctx, dup), models.ErrConcurrencyConflict)

		other := &models.CartLine{SessionID: "s2", ProductID: "p1", Quantity: 2, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, carts.Create(ctx, other))

		line, err := carts.GetBySessionAndProduct(ctx, "s1", "p1")
		require.NoError(t, err)
		assert.Equal(t, first.ID, line.ID)

		_, err = carts.GetBySessionAndProduct(ctx, "s1", "p2")
		assert.ErrorIs(t, err, models.ErrNotFound)

		// Lines of another session are never deleted through DeleteLines.
		n, err := carts.DeleteLines(ctx, "s1", []string{first.ID, other.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		lines, err := carts.ListBySession(ctx, "s2")
		require.NoError(t, err)
		assert.Len(t, lines, 1)

		n, err = carts.DeleteBySession(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		assert.ErrorIs(t, carts.Delete(ctx, other.ID), models.ErrNotFound)
	})
}

func newOrder(number string) *models.Order {
	p := newProduct("Laptop", "10.00", 1)
	p.ID = "p-1"
	now := time.Now().UTC()
	order := &models.Order{
		OrderNumber:     number,
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		ShippingAddress: "1 Analytical Engine Way",
		Lines:           []models.OrderLine{models.NewOrderLine("", 0, p, 2)},
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.RecalculateTotal()
	return order
}

func TestOrderRepository_Lifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store repositories.Store) {
		ctx := context.Background()
		orders := store.Orders()

		order := newOrder("ORD-000000000001")
		require.NoError(t, orders.Create(ctx, order))
		require.NotEmpty(t, order.ID)

		assert.ErrorIs(t, orders.Create(ctx, newOrder("ORD-000000000001")), models.ErrConcurrencyConflict)

		byNumber, err := orders.GetByNumber(ctx, "ORD-000000000001")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byNumber.ID)
		require.Len(t, byNumber.Lines, 1)
		assert.Equal(t, 2, byNumber.Lines[0].Quantity)
		assert.True(t, decimal.RequireFromString("20").Equal(byNumber.TotalAmount))

		byEmail, err := orders.ListByCustomerEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Len(t, byEmail, 1)

		stale := *byNumber
		byNumber.Status = models.OrderStatusConfirmed
		require.NoError(t, orders.SaveStatus(ctx, byNumber))
		assert.Equal(t, int64(1), byNumber.Version)

		stale.Status = models.OrderStatusCancelled
		assert.ErrorIs(t, orders.SaveStatus(ctx, &stale), models.ErrConcurrencyConflict)

		list, total, err := orders.List(ctx, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, list, 1)
		assert.Equal(t, models.OrderStatusConfirmed, list[0].Status)

		require.NoError(t, orders.Delete(ctx, order.ID))
		_, err = orders.GetByID(ctx, order.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, orders.Delete(ctx, order.ID), models.ErrNotFound)
	})
}

func TestGORMStore_AtomicallyRollsBack(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewGORMStore(newSQLiteDB(t))

	p := newProduct("Laptop", "10.00", 5)
	require.NoError(t, store.Products().Create(ctx, p))

	err := store.Atomically(ctx, func(tx repositories.Store) error {
		next := *p
		next.StockQuantity = 0
		if _, err := tx.Products().CompareAndSwap(ctx, p.Version, next); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.EqualError(t, err, "abort")

	current, err := store.Products().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, current.StockQuantity)
	assert.Equal(t, int64(0), current.Version)
}

func TestUserRepositories(t *testing.T) {
	repos := map[string]repositories.UserRepository{
		"memory": repositories.NewMemoryUserRepository(),
		"sqlite": repositories.NewGORMUserRepository(newSQLiteDB(t)),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := &models.User{Username: "clerk1", Email: "clerk1@example.com", Password: "hash", Role: models.RoleClerk}
			require.NoError(t, repo.Create(ctx, user))

			dup := &models.User{Username: "clerk1", Email: "other@example.com", Password: "hash", Role: models.RoleClerk}
			assert.ErrorIs(t, repo.Create(ctx, dup), models.ErrInvalidOperation)

			found, err := repo.GetByEmail(ctx, "clerk1@example.com")
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)

			_, err = repo.GetByUsername(ctx, "ghost")
			assert.ErrorIs(t, err, models.ErrNotFound)

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		})
	}
}
