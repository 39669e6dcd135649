package handlers

import (
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// AddToCartRequest is the body of an add-to-cart call.
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

// UpdateCartRequest is the body of a cart line quantity change.
type UpdateCartRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100"`
}

// CartHandler handles HTTP requests for session carts.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	logger   *log.Entry
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logger *log.Entry) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the cart routes. Carts are anonymous, keyed by session ID.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cart := router.Group("/cart")
	cart.Get("/:sessionId", h.HandleGetCart)
	cart.Delete("/:sessionId", h.HandleClearCart)
	cart.Post("/:sessionId/items", h.HandleAddItem)
	cart.Put("/:sessionId/items/:itemId", h.HandleUpdateItem)
	cart.Delete("/:sessionId/items/:itemId", h.HandleRemoveItem)
}

// HandleGetCart returns the priced cart of a session.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve cart", err)
	}
	return c.JSON(cart)
}

// HandleAddItem puts a product in the cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}

	cart, err := h.service.AddItem(c.UserContext(), c.Params("sessionId"), req.ProductID, req.Quantity)
	if err != nil {
		return respondError(c, h.logger, "Could not add item to cart", err)
	}
	return c.JSON(cart)
}

// HandleUpdateItem changes the quantity of a cart line.
func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateCartRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}

	cart, err := h.service.UpdateItem(c.UserContext(), c.Params("sessionId"), c.Params("itemId"), req.Quantity)
	if err != nil {
		return respondError(c, h.logger, "Could not update cart item", err)
	}
	return c.JSON(cart)
}

// HandleRemoveItem deletes a cart line.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	cart, err := h.service.RemoveItem(c.UserContext(), c.Params("sessionId"), c.Params("itemId"))
	if err != nil {
		return respondError(c, h.logger, "Could not remove cart item", err)
	}
	return c.JSON(cart)
}

// HandleClearCart empties the cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	if err := h.service.Clear(c.UserContext(), c.Params("sessionId")); err != nil {
		return respondError(c, h.logger, "Could not clear cart", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
