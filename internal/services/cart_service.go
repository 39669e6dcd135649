package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// addItemAttempts bounds retries when two requests create the same (session, product) line.
const addItemAttempts = 2

// CartService manages session carts. Its stock checks are advisory: nothing is reserved,
// the authoritative check happens when the cart becomes an order.
type CartService struct {
	products repositories.ProductRepository
	carts    repositories.CartRepository
	logger   *log.Entry
	now      func() time.Time
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store, logger *log.Entry) *CartService {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &CartService{
		products: store.Products(),
		carts:    store.Carts(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validateSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return models.NewInvalidOperation("cart", "", "session ID is required")
	}
	return nil
}

// GetCart returns the session's cart priced with current product prices. An unknown
// session yields an empty cart.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*models.CartSnapshot, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	lines, err := s.carts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.CartSnapshot{
		SessionID:   sessionID,
		Items:       make([]models.CartItemView, 0, len(lines)),
		TotalAmount: decimal.Zero,
		ItemCount:   len(lines),
	}
	for _, line := range lines {
		view := models.CartItemView{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: decimal.Zero,
			Subtotal:  decimal.Zero,
		}
		product, err := s.products.GetByID(ctx, line.ProductID)
		switch {
		case err == nil:
			line.Recalculate(product.Price)
			view.ProductName = product.Name
			view.UnitPrice = product.Price
			view.Subtotal = line.Subtotal
			view.Available = product.Active && product.HasStock(line.Quantity)
		case errors.Is(err, models.ErrNotFound):
			// Dangling line: shown so the shopper can remove it, never priced.
		default:
			return nil, err
		}
		snapshot.TotalAmount = snapshot.TotalAmount.Add(view.Subtotal)
		snapshot.Items = append(snapshot.Items, view)
	}
	return snapshot, nil
}

// AddItem puts qty units of a product in the cart, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, qty int) (*models.CartSnapshot, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, models.NewInvalidOperation("cart item", productID, "quantity must be at least 1")
	}

	for attempt := 1; ; attempt++ {
		err := s.addOnce(ctx, sessionID, productID, qty)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrConcurrencyConflict) || attempt >= addItemAttempts {
			return nil, err
		}
		s.logger.WithFields(log.Fields{
			"session_id": sessionID,
			"product_id": productID,
		}).Debug("cart line created concurrently, merging")
	}
	return s.GetCart(ctx, sessionID)
}

func (s *CartService) addOnce(ctx context.Context, sessionID, productID string, qty int) error {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Active {
		return models.NewInvalidOperation("product", product.ID, "product is not available: %s", product.Name)
	}

	existing, err := s.carts.GetBySessionAndProduct(ctx, sessionID, productID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	wanted := qty
	if existing != nil {
		wanted += existing.Quantity
	}
	if !product.HasStock(wanted) {
		return models.NewInsufficientStock(product.ID, product.Name, wanted, product.StockQuantity)
	}

	now := s.now()
	if existing != nil {
		existing.Quantity = wanted
		existing.Recalculate(product.Price)
		existing.UpdatedAt = now
		return s.carts.Update(ctx, existing)
	}

	line := &models.CartLine{
		SessionID: sessionID,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	line.Recalculate(product.Price)
	return s.carts.Create(ctx, line)
}

// ownedLine loads a line and makes sure it belongs to the session. A foreign line is
// reported without revealing anything about it.
func (s *CartService) ownedLine(ctx context.Context, sessionID, lineID string) (*models.CartLine, error) {
	line, err := s.carts.GetByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.SessionID != sessionID {
		return nil, models.NewInvalidOperation("cart item", lineID, "cart item does not belong to this session")
	}
	return line, nil
}

// UpdateItem sets the quantity of a cart line.
func (s *CartService) UpdateItem(ctx context.Context, sessionID, lineID string, qty int) (*models.CartSnapshot, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, models.NewInvalidOperation("cart item", lineID, "quantity must be at least 1")
	}

	line, err := s.ownedLine(ctx, sessionID, lineID)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.HasStock(qty) {
		return nil, models.NewInsufficientStock(product.ID, product.Name, qty, product.StockQuantity)
	}

	line.Quantity = qty
	line.Recalculate(product.Price)
	line.UpdatedAt = s.now()
	if err := s.carts.Update(ctx, line); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

// RemoveItem deletes one line from the session's cart.
func (s *CartService) RemoveItem(ctx context.Context, sessionID, lineID string) (*models.CartSnapshot, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	if _, err := s.ownedLine(ctx, sessionID, lineID); err != nil {
		return nil, err
	}
	if err := s.carts.Delete(ctx, lineID); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, sessionID)
}

// Clear empties the session's cart. Clearing an empty cart is a no-op.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	n, err := s.carts.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{"session_id": sessionID, "removed": n}).Debug("cart cleared")
	return nil
}
