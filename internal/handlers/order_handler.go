package handlers

import (
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// CreateOrderRequest is the checkout body: the session whose cart is ordered and the
// customer's contact data.
type CreateOrderRequest struct {
	SessionID            string `json:"session_id" validate:"required"`
	CustomerName         string `json:"customer_name" validate:"required,min=2,max=100"`
	CustomerEmail        string `json:"customer_email" validate:"required,email"`
	PhoneNumber          string `json:"phone_number" validate:"required,phone"`
	ShippingAddress      string `json:"shipping_address" validate:"required,min=10,max=500"`
	DeliveryInstructions string `json:"delivery_instructions" validate:"max=500"`
}

func (r CreateOrderRequest) customer() models.CustomerInfo {
	return models.CustomerInfo{
		Name:            r.CustomerName,
		Email:           r.CustomerEmail,
		PhoneNumber:     r.PhoneNumber,
		ShippingAddress: r.ShippingAddress,
		DeliveryNotes:   r.DeliveryInstructions,
	}
}

// PaymentRequest reports the outcome of a payment attempt.
type PaymentRequest struct {
	PaymentSuccessful *bool  `json:"payment_successful" validate:"required"`
	TransactionID     string `json:"transaction_id" validate:"required"`
	PaymentMethod     string `json:"payment_method" validate:"required"`
	PaymentGateway    string `json:"payment_gateway"`
	Notes             string `json:"notes" validate:"max=500"`
}

// StatusRequest is the body of a fulfilment status change.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
	logger   *log.Entry
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService, logger *log.Entry) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the order routes. Listing all orders and moving them through
// fulfilment require a staff token.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleClerk)

	orders := router.Group("/orders")
	orders.Post("/", h.HandleCreateOrder)
	orders.Get("/", auth, staff, h.HandleGetOrders)
	orders.Get("/number/:orderNumber", h.HandleGetOrderByNumber)
	orders.Get("/customer/:email", h.HandleGetOrdersByCustomer)
	orders.Get("/:id", h.HandleGetOrderByID)
	orders.Post("/:id/payment", h.HandleProcessPayment)
	orders.Post("/:id/cancel", h.HandleCancelOrder)
	orders.Patch("/:id/status", auth, staff, h.HandleUpdateOrderStatus)
}

// HandleGetOrders returns one page of orders, newest first.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 20)

	orders, total, err := h.service.ListOrders(c.UserContext(), page, size)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(fiber.Map{
		"items": orders,
		"page":  page,
		"size":  size,
		"total": total,
	})
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// HandleGetOrderByNumber retrieves a single order by its order number.
func (h *OrderHandler) HandleGetOrderByNumber(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByNumber(c.UserContext(), c.Params("orderNumber"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve order", err)
	}
	return c.JSON(order)
}

// HandleGetOrdersByCustomer lists the orders placed with an email address.
func (h *OrderHandler) HandleGetOrdersByCustomer(c *fiber.Ctx) error {
	orders, err := h.service.ListOrdersByCustomerEmail(c.UserContext(), c.Params("email"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleCreateOrder checks out a session's cart.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}

	order, err := h.service.CreateOrder(c.UserContext(), req.SessionID, req.customer())
	if err != nil {
		return respondError(c, h.logger, "Could not create order", err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleProcessPayment applies a payment outcome to an order.
func (h *OrderHandler) HandleProcessPayment(c *fiber.Ctx) error {
	var req PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}

	h.logger.WithFields(log.Fields{
		"order_id":       c.Params("id"),
		"transaction_id": req.TransactionID,
		"method":         req.PaymentMethod,
		"gateway":        req.PaymentGateway,
	}).Info("payment callback received")

	order, err := h.service.ProcessPayment(c.UserContext(), c.Params("id"), *req.PaymentSuccessful)
	if err != nil {
		return respondError(c, h.logger, "Could not process payment", err)
	}
	return c.JSON(order)
}

// HandleCancelOrder cancels an order that has not shipped.
func (h *OrderHandler) HandleCancelOrder(c *fiber.Ctx) error {
	order, err := h.service.CancelOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not cancel order", err)
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus moves an order through fulfilment. The status may be sent in
// the body or as the "status" query parameter.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	req := StatusRequest{Status: c.Query("status")}
	if req.Status == "" && len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badBody(c, err)
		}
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), c.Params("id"), models.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, h.logger, "Could not update order status", err)
	}
	return c.JSON(order)
}
