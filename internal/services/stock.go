package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// StockPolicy bounds the optimistic-concurrency retry loop on product rows.
type StockPolicy struct {
	// MaxRetries is the number of re-reads allowed after a stale-version write.
	MaxRetries int
	// Backoff is the base pause between attempts; a random jitter of up to the same
	// amount is added.
	Backoff time.Duration
}

// DefaultStockPolicy returns the policy used when none is configured.
func DefaultStockPolicy() StockPolicy {
	return StockPolicy{MaxRetries: 3, Backoff: 5 * time.Millisecond}
}

// Limits for undoing an applied move. A revert only conflicts with writes that succeed,
// so under ordinary contention it always gets through well before revertRetries.
const (
	revertRetries    = 1000
	maxRevertBackoff = time.Millisecond
)

// StockKeeper performs every product mutation as a version-checked read-modify-write.
type StockKeeper struct {
	policy  StockPolicy
	metrics *metrics.ShopMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewStockKeeper creates a StockKeeper. metrics and logger may be nil.
func NewStockKeeper(policy StockPolicy, m *metrics.ShopMetrics, logger *log.Entry) *StockKeeper {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if logger == nil {
		logger = log.New().WithField("component", "stock")
	}
	return &StockKeeper{
		policy:  policy,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Modify re-reads the product, lets mutate change a copy of it and writes the copy back
// conditionally on the version that was read. A stale version restarts the cycle with a
// fresh read, so mutate always judges the latest persisted state. Errors returned by
// mutate abort immediately. After MaxRetries stale writes the call fails with
// ConcurrencyConflict.
func (k *StockKeeper) Modify(
	ctx context.Context,
	products repositories.ProductRepository,
	productID string,
	operation string,
	mutate func(p *models.Product) error,
) (*models.Product, error) {
	for attempt := 0; ; attempt++ {
		current, err := products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}

		next := *current
		if err := mutate(&next); err != nil {
			return nil, err
		}
		if next.StockQuantity < 0 {
			return nil, models.NewInsufficientStock(current.ID, current.Name, current.StockQuantity-next.StockQuantity, current.StockQuantity)
		}
		next.Touch(k.now())

		updated, err := products.CompareAndSwap(ctx, current.Version, next)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, models.ErrConcurrencyConflict) {
			return nil, err
		}

		k.metrics.StockConflict(operation)
		if attempt >= k.policy.MaxRetries {
			k.logger.WithFields(log.Fields{
				"product_id": productID,
				"operation":  operation,
				"attempts":   attempt + 1,
			}).Warn("stock update gave up after repeated version conflicts")
			return nil, models.NewConcurrencyConflict("product", productID)
		}
		k.logger.WithFields(log.Fields{
			"product_id": productID,
			"operation":  operation,
			"attempt":    attempt + 1,
		}).Debug("stale product version, retrying")

		if err := k.pause(ctx); err != nil {
			return nil, err
		}
	}
}

// Adjust adds delta (negative to take stock) to the product's stock. check, if not nil,
// validates the freshly read product before every attempt.
func (k *StockKeeper) Adjust(
	ctx context.Context,
	products repositories.ProductRepository,
	productID string,
	delta int,
	operation string,
	check func(p *models.Product) error,
) (*models.Product, error) {
	updated, err := k.Modify(ctx, products, productID, operation, func(p *models.Product) error {
		if check != nil {
			if err := check(p); err != nil {
				return err
			}
		}
		if p.StockQuantity+delta < 0 {
			return models.NewInsufficientStock(p.ID, p.Name, -delta, p.StockQuantity)
		}
		p.StockQuantity += delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	k.metrics.StockMoved(delta)
	return updated, nil
}

// Revert undoes a stock move that was already applied. It ignores cancellation of ctx
// and retries stale writes up to revertRetries times regardless of MaxRetries, since
// no stock check can reject an undo of a decrement.
func (k *StockKeeper) Revert(
	ctx context.Context,
	products repositories.ProductRepository,
	productID string,
	delta int,
) (*models.Product, error) {
	undo := *k
	undo.policy.MaxRetries = revertRetries
	if undo.policy.Backoff > maxRevertBackoff {
		undo.policy.Backoff = maxRevertBackoff
	}
	return undo.Adjust(context.WithoutCancel(ctx), products, productID, delta, "compensate", nil)
}

func (k *StockKeeper) pause(ctx context.Context) error {
	if k.policy.Backoff <= 0 {
		return ctx.Err()
	}
	d := k.policy.Backoff + time.Duration(rand.Int63n(int64(k.policy.Backoff)+1))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
