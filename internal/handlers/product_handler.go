package handlers

import (
	"fmt"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ProductRequest is the body of product create and update calls.
type ProductRequest struct {
	Name          string          `json:"name" validate:"required,min=2,max=100"`
	Description   string          `json:"description" validate:"max=1000"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity *int            `json:"stock_quantity" validate:"required,min=0,max=999999"`
	Category      string          `json:"category" validate:"required,min=2,max=50"`
	ImageURL      string          `json:"image_url" validate:"max=500"`
}

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.RequireFromString("999999.99")
)

func (r ProductRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		StockQuantity: *r.StockQuantity,
		Category:      r.Category,
		ImageURL:      r.ImageURL,
	}
}

// StockAdjustmentRequest is the body of a manual stock edit.
type StockAdjustmentRequest struct {
	Delta int `json:"delta" validate:"required,min=-999999,max=999999"`
}

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
	logger   *log.Entry
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService, logger *log.Entry) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// RegisterRoutes registers the catalog routes. Writes require an admin token.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	admin := middleware.RequireRole(models.RoleAdmin)

	products := router.Group("/products")
	products.Get("/", h.HandleGetProducts)
	products.Get("/categories", h.HandleGetCategories)
	products.Get("/search", h.HandleSearchProducts)
	products.Get("/category/:category", h.HandleGetProductsByCategory)
	products.Get("/:id", h.HandleGetProductByID)
	products.Post("/", auth, admin, h.HandleCreateProduct)
	products.Put("/:id", auth, admin, h.HandleUpdateProduct)
	products.Delete("/:id", auth, admin, h.HandleDeleteProduct)
	products.Patch("/:id/stock", auth, admin, h.HandleAdjustStock)
}

// HandleGetProducts returns one page of active products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", 20)

	products, total, err := h.service.GetActiveProducts(c.UserContext(), page, size)
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve products", err)
	}
	return c.JSON(fiber.Map{
		"items": products,
		"page":  page,
		"size":  size,
		"total": total,
	})
}

// HandleGetProductByID returns a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve product", err)
	}
	return c.JSON(product)
}

// HandleGetProductsByCategory returns the active products of a category.
func (h *ProductHandler) HandleGetProductsByCategory(c *fiber.Ctx) error {
	products, err := h.service.GetProductsByCategory(c.UserContext(), c.Params("category"))
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve products", err)
	}
	return c.JSON(products)
}

// HandleSearchProducts searches active products by name.
func (h *ProductHandler) HandleSearchProducts(c *fiber.Ctx) error {
	keyword := c.Query("keyword")
	if keyword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Query parameter 'keyword' is required",
		})
	}
	products, err := h.service.SearchProducts(c.UserContext(), keyword)
	if err != nil {
		return respondError(c, h.logger, "Could not search products", err)
	}
	return c.JSON(products)
}

// HandleGetCategories lists the categories of active products.
func (h *ProductHandler) HandleGetCategories(c *fiber.Ctx) error {
	categories, err := h.service.GetCategories(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "Could not retrieve categories", err)
	}
	return c.JSON(categories)
}

func (h *ProductHandler) parseProduct(c *fiber.Ctx) (*ProductRequest, bool, error) {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, false, badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return nil, false, err
	}
	if req.Price.LessThan(minPrice) || req.Price.GreaterThan(maxPrice) {
		return nil, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  map[string]string{"Price": "Price must be between 0.01 and 999999.99"},
		})
	}
	return &req, true, nil
}

// HandleCreateProduct adds a product to the catalog.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	req, ok, err := h.parseProduct(c)
	if !ok {
		return err
	}
	product, err := h.service.CreateProduct(c.UserContext(), req.input())
	if err != nil {
		return respondError(c, h.logger, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct replaces the editable fields of a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	req, ok, err := h.parseProduct(c)
	if !ok {
		return err
	}
	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), req.input())
	if err != nil {
		return respondError(c, h.logger, "Could not update product", err)
	}
	return c.JSON(product)
}

// HandleDeleteProduct deactivates a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteProduct(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, "Could not delete product", err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Product %s deleted successfully", id),
	})
}

// HandleAdjustStock adds or removes units of stock.
func (h *ProductHandler) HandleAdjustStock(c *fiber.Ctx) error {
	var req StockAdjustmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c, err)
	}
	if ok, err := validateRequest(c, h.validate, req); !ok {
		return err
	}
	product, err := h.service.AdjustStock(c.UserContext(), c.Params("id"), req.Delta)
	if err != nil {
		return respondError(c, h.logger, "Could not adjust stock", err)
	}
	return c.JSON(product)
}
