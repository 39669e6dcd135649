package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Routing keys of the order lifecycle events.
const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

// orderNumberAttempts bounds regeneration when an order number collides.
const orderNumberAttempts = 3

// OrderNumberGenerator produces globally unique, human-readable order numbers.
type OrderNumberGenerator interface {
	Next() string
}

// UUIDOrderNumbers derives order numbers from random UUIDs, e.g. ORD-3F2A9C01B7D4.
type UUIDOrderNumbers struct{}

// Next returns a new order number.
func (UUIDOrderNumbers) Next() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:12])
}

// OrderEventPublisher delivers lifecycle events after the state change committed.
type OrderEventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// OrderEvent is the message body published for every lifecycle change.
type OrderEvent struct {
	Event         string               `json:"event"`
	OrderID       string               `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	TotalAmount   string               `json:"total_amount"`
	CustomerEmail string               `json:"customer_email"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// OrderServiceConfig tunes cancellation behaviour.
type OrderServiceConfig struct {
	// RestockUnpaid also returns stock when an order is cancelled before it was paid.
	RestockUnpaid bool
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store     repositories.Store
	stock     *StockKeeper
	numbers   OrderNumberGenerator
	publisher OrderEventPublisher
	metrics   *metrics.ShopMetrics
	cfg       OrderServiceConfig
	logger    *log.Entry
	now       func() time.Time
}

// NewOrderService creates a new OrderService. numbers defaults to UUIDOrderNumbers;
// publisher and m may be nil.
func NewOrderService(
	store repositories.Store,
	stock *StockKeeper,
	numbers OrderNumberGenerator,
	publisher OrderEventPublisher,
	m *metrics.ShopMetrics,
	cfg OrderServiceConfig,
	logger *log.Entry,
) *OrderService {
	if numbers == nil {
		numbers = UUIDOrderNumbers{}
	}
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	if stock == nil {
		stock = NewStockKeeper(DefaultStockPolicy(), m, logger)
	}
	return &OrderService{
		store:     store,
		stock:     stock,
		numbers:   numbers,
		publisher: publisher,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ListOrders returns a page of orders, newest first, and the total count.
func (s *OrderService) ListOrders(ctx context.Context, page, size int) ([]models.Order, int64, error) {
	offset, limit := pageBounds(page, size)
	return s.store.Orders().List(ctx, offset, limit)
}

// GetOrder retrieves a single order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

// GetOrderByNumber retrieves a single order by its order number.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.store.Orders().GetByNumber(ctx, orderNumber)
}

// ListOrdersByCustomerEmail returns every order placed with the given email.
func (s *OrderService) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]models.Order, error) {
	return s.store.Orders().ListByCustomerEmail(ctx, strings.TrimSpace(email))
}

// CreateOrder turns the session's cart into a PENDING order. Stock is decremented,
// the order persisted and the checked-out lines removed as one unit: any failure
// leaves stock, orders and the cart as they were.
func (s *OrderService) CreateOrder(ctx context.Context, sessionID string, customer models.CustomerInfo) (*models.Order, error) {
	start := time.Now()
	if err := validateSession(sessionID); err != nil {
		s.metrics.CheckoutFailed(string(models.KindOf(err)))
		return nil, err
	}
	if err := validateCustomer(customer); err != nil {
		s.metrics.CheckoutFailed(string(models.KindOf(err)))
		return nil, err
	}

	var order *models.Order
	err := s.store.Atomically(ctx, func(tx repositories.Store) error {
		created, err := s.checkout(ctx, tx, sessionID, customer)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		reason := string(models.KindOf(err))
		if reason == "" {
			reason = "internal"
		}
		s.metrics.CheckoutFailed(reason)
		s.logger.WithFields(log.Fields{
			"session_id": sessionID,
			"reason":     reason,
		}).WithError(err).Info("checkout rejected")
		return nil, err
	}

	s.metrics.CheckoutSucceeded(time.Since(start))
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"lines":        len(order.Lines),
		"total":        order.TotalAmount.StringFixed(2),
	}).Info("order created")
	s.publish(ctx, EventOrderCreated, order)
	return order, nil
}

func validateCustomer(c models.CustomerInfo) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return models.NewInvalidOperation("order", "", "customer name is required")
	case strings.TrimSpace(c.Email) == "":
		return models.NewInvalidOperation("order", "", "customer email is required")
	case strings.TrimSpace(c.ShippingAddress) == "":
		return models.NewInvalidOperation("order", "", "shipping address is required")
	}
	return nil
}

// stockMove is a stock change already applied, kept so it can be undone.
type stockMove struct {
	productID string
	delta     int
}

func (s *OrderService) checkout(ctx context.Context, tx repositories.Store, sessionID string, customer models.CustomerInfo) (*models.Order, error) {
	cart, err := tx.Carts().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, models.NewInvalidOperation("cart", sessionID, "cannot create order from empty cart")
	}

	// Validate every line before touching stock so common rejections need no compensation.
	for _, line := range cart {
		product, err := tx.Products().GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if err := checkPurchasable(product, line.Quantity); err != nil {
			return nil, err
		}
	}

	applied := make([]stockMove, 0, len(cart))
	lines := make([]models.OrderLine, 0, len(cart))
	lineIDs := make([]string, 0, len(cart))
	for i, line := range cart {
		qty := line.Quantity
		product, err := s.stock.Adjust(ctx, tx.Products(), line.ProductID, -qty, "checkout", func(p *models.Product) error {
			return checkPurchasable(p, qty)
		})
		if err != nil {
			return nil, withCompensation(err, s.revertStock(ctx, tx.Products(), applied))
		}
		applied = append(applied, stockMove{productID: line.ProductID, delta: -qty})
		lines = append(lines, models.NewOrderLine(uuid.New().String(), i, product, qty))
		lineIDs = append(lineIDs, line.ID)
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.New().String(),
		Lines:         lines,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	order.ApplyCustomer(customer)
	order.RecalculateTotal()
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
	}

	if err := s.insertOrder(ctx, tx.Orders(), order); err != nil {
		return nil, withCompensation(err, s.revertStock(ctx, tx.Products(), applied))
	}

	removed, err := tx.Carts().DeleteLines(ctx, sessionID, lineIDs)
	if err == nil && removed != int64(len(lineIDs)) {
		err = models.NewConcurrencyConflict("cart", sessionID)
	}
	if err != nil {
		if delErr := tx.Orders().Delete(context.WithoutCancel(ctx), order.ID); delErr != nil {
			s.logger.WithField("order_id", order.ID).WithError(delErr).Error("failed to remove order during checkout rollback")
		}
		return nil, withCompensation(err, s.revertStock(ctx, tx.Products(), applied))
	}
	return order, nil
}

// withCompensation attaches a failed stock compensation to the error that triggered it.
// err stays first so its kind still decides the response.
func withCompensation(err, compensationErr error) error {
	if compensationErr == nil {
		return err
	}
	return errors.Join(err, compensationErr)
}

func checkPurchasable(p *models.Product, qty int) error {
	if !p.Active {
		return models.NewInvalidOperation("product", p.ID, "product is not available: %s", p.Name)
	}
	if !p.HasStock(qty) {
		return models.NewInsufficientStock(p.ID, p.Name, qty, p.StockQuantity)
	}
	return nil
}

// insertOrder persists the order, drawing a fresh number if the current one collides.
func (s *OrderService) insertOrder(ctx context.Context, orders repositories.OrderRepository, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = s.numbers.Next()
		err = orders.Create(ctx, order)
		if err == nil || !models.IsRetryable(err) {
			return err
		}
		s.logger.WithField("order_number", order.OrderNumber).Warn("order number collision, regenerating")
	}
	return err
}

// revertStock undoes applied stock moves in reverse order. It runs even when ctx is
// already cancelled and keeps going past a failed move; the failures are returned.
func (s *OrderService) revertStock(ctx context.Context, products repositories.ProductRepository, applied []stockMove) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		move := applied[i]
		if _, err := s.stock.Revert(ctx, products, move.productID, -move.delta); err != nil {
			s.logger.WithFields(log.Fields{
				"product_id": move.productID,
				"delta":      -move.delta,
			}).WithError(err).Error("failed to compensate stock")
			errs = append(errs, fmt.Errorf("failed to compensate stock of product %s: %w", move.productID, err))
		}
	}
	return errors.Join(errs...)
}

// updateOrder re-reads the order, applies mutate and writes the status fields back
// conditionally on the version that was read. Stale writes are retried with a fresh
// read so mutate always validates the latest state.
func (s *OrderService) updateOrder(
	ctx context.Context,
	orders repositories.OrderRepository,
	orderID string,
	mutate func(o *models.Order) error,
) (*models.Order, error) {
	for attempt := 0; ; attempt++ {
		order, err := orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := mutate(order); err != nil {
			return nil, err
		}
		order.UpdatedAt = s.now()

		err = orders.SaveStatus(ctx, order)
		if err == nil {
			return order, nil
		}
		if !models.IsRetryable(err) {
			return nil, err
		}
		if attempt >= s.stock.policy.MaxRetries {
			return nil, models.NewConcurrencyConflict("order", orderID)
		}
		if err := s.stock.pause(ctx); err != nil {
			return nil, err
		}
	}
}

// ProcessPayment records the outcome of a payment attempt.
func (s *OrderService) ProcessPayment(ctx context.Context, orderID string, successful bool) (*models.Order, error) {
	target := models.PaymentStatusFailed
	if successful {
		target = models.PaymentStatusCompleted
	}

	order, err := s.updateOrder(ctx, s.store.Orders(), orderID, func(o *models.Order) error {
		if o.Status == models.OrderStatusCancelled {
			return models.NewInvalidOperation("order", o.ID, "cannot process payment for cancelled order")
		}
		if o.PaymentStatus == models.PaymentStatusCompleted {
			return models.NewInvalidOperation("order", o.ID, "order is already paid")
		}
		if !o.PaymentStatus.CanTransitionTo(target) {
			return models.NewInvalidOperation("order", o.ID, "cannot change payment status from %s to %s", o.PaymentStatus, target)
		}
		o.PaymentStatus = target
		if successful && o.Status == models.OrderStatusPending {
			o.Status = models.OrderStatusConfirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentProcessed(successful)
	event := EventOrderPaymentFailed
	if successful {
		event = EventOrderPaid
	}
	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"payment_status": order.PaymentStatus,
		"status":         order.Status,
	}).Info("payment processed")
	s.publish(ctx, event, order)
	return order, nil
}

// CancelOrder cancels an order that has not shipped yet. A paid order gets its stock
// back and its payment refunded; the restock and the status change succeed or fail
// together.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var cancelled *models.Order
	var restocked bool
	err := s.store.Atomically(ctx, func(tx repositories.Store) error {
		var previous models.Order
		order, err := s.updateOrder(ctx, tx.Orders(), orderID, func(o *models.Order) error {
			switch o.Status {
			case models.OrderStatusDelivered, models.OrderStatusShipped:
				return models.NewInvalidOperation("order", o.ID, "cannot cancel order with status %s", o.Status)
			case models.OrderStatusCancelled:
				return models.NewInvalidOperation("order", o.ID, "order is already cancelled")
			}
			previous = *o
			o.Status = models.OrderStatusCancelled
			if o.PaymentStatus == models.PaymentStatusCompleted {
				o.PaymentStatus = models.PaymentStatusRefunded
			}
			return nil
		})
		if err != nil {
			return err
		}

		restocked = previous.PaymentStatus == models.PaymentStatusCompleted || s.cfg.RestockUnpaid
		if restocked {
			if err := s.restock(ctx, tx, order, previous); err != nil {
				return err
			}
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCancelled(cancelled.PaymentStatus == models.PaymentStatusRefunded)
	s.metrics.StatusChanged(string(models.OrderStatusCancelled))
	s.logger.WithFields(log.Fields{
		"order_id":  cancelled.ID,
		"restocked": restocked,
	}).Info("order cancelled")
	s.publish(ctx, EventOrderCancelled, cancelled)
	return cancelled, nil
}

// restock returns every line of a claimed order to stock. On failure it takes back the
// units already returned and restores the order row to previous.
func (s *OrderService) restock(ctx context.Context, tx repositories.Store, order *models.Order, previous models.Order) error {
	applied := make([]stockMove, 0, len(order.Lines))
	for _, line := range order.Lines {
		if _, err := s.stock.Adjust(ctx, tx.Products(), line.ProductID, line.Quantity, "restock", nil); err != nil {
			compensationErr := s.revertStock(ctx, tx.Products(), applied)

			revert := *order
			revert.Status = previous.Status
			revert.PaymentStatus = previous.PaymentStatus
			revert.UpdatedAt = s.now()
			if saveErr := tx.Orders().SaveStatus(context.WithoutCancel(ctx), &revert); saveErr != nil {
				s.logger.WithField("order_id", order.ID).WithError(saveErr).Error("failed to revert order after restock failure")
			}
			return withCompensation(fmt.Errorf("failed to restock product %s: %w", line.ProductID, err), compensationErr)
		}
		applied = append(applied, stockMove{productID: line.ProductID, delta: line.Quantity})
	}
	return nil
}

// UpdateOrderStatus moves an order through fulfilment. Cancellation goes through
// CancelOrder so its stock and payment effects always apply.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	status = models.OrderStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, models.NewInvalidOperation("order", orderID, "unknown order status: %s", status)
	}
	if status == models.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}

	order, err := s.updateOrder(ctx, s.store.Orders(), orderID, func(o *models.Order) error {
		if o.Status.Terminal() {
			return models.NewInvalidOperation("order", o.ID, "cannot change status of %s order", o.Status)
		}
		if !o.Status.CanTransitionTo(status) {
			return models.NewInvalidOperation("order", o.ID, "cannot change order status from %s to %s", o.Status, status)
		}
		o.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusChanged(string(status))
	s.logger.WithFields(log.Fields{"order_id": order.ID, "status": order.Status}).Info("order status updated")
	s.publish(ctx, EventOrderStatusChanged, order)
	return order, nil
}

// publish sends a lifecycle event. The state change already committed, so failures are
// logged and not returned.
func (s *OrderService) publish(ctx context.Context, routingKey string, order *models.Order) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(OrderEvent{
		Event:         routingKey,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount.StringFixed(2),
		CustomerEmail: order.CustomerEmail,
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal order event")
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, body); err != nil {
		s.logger.WithFields(log.Fields{
			"order_id": order.ID,
			"event":    routingKey,
		}).WithError(err).Warn("failed to publish order event")
	}
}

// pageBounds converts a zero-based page and size into offset and limit.
func pageBounds(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page * size, size
}
