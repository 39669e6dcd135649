package services

import (
	"context"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ProductInput carries the editable fields of a catalog entry.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Category      string
	ImageURL      string
}

func (in ProductInput) validate(id string) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return models.NewInvalidOperation("product", id, "product name is required")
	case strings.TrimSpace(in.Category) == "":
		return models.NewInvalidOperation("product", id, "product category is required")
	case in.Price.IsNegative():
		return models.NewInvalidOperation("product", id, "price must not be negative")
	case in.StockQuantity < 0:
		return models.NewInvalidOperation("product", id, "stock quantity must not be negative")
	}
	return nil
}

func (in ProductInput) apply(p *models.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.StockQuantity = in.StockQuantity
	p.Category = strings.TrimSpace(in.Category)
	p.ImageURL = in.ImageURL
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	stock  *StockKeeper
	logger *log.Entry
	now    func() time.Time
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, stock *StockKeeper, logger *log.Entry) *ProductService {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	if stock == nil {
		stock = NewStockKeeper(DefaultStockPolicy(), nil, logger)
	}
	return &ProductService{
		repo:   repo,
		stock:  stock,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetActiveProducts returns a page of active products and the number of active products.
func (s *ProductService) GetActiveProducts(ctx context.Context, page, size int) ([]models.Product, int64, error) {
	offset, limit := pageBounds(page, size)
	return s.repo.GetActive(ctx, offset, limit)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProductsByCategory returns the active products of a category.
func (s *ProductService) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return s.repo.GetByCategory(ctx, strings.TrimSpace(category))
}

// SearchProducts matches active products whose name contains keyword, ignoring case.
func (s *ProductService) SearchProducts(ctx context.Context, keyword string) ([]models.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []models.Product{}, nil
	}
	return s.repo.SearchByName(ctx, keyword)
}

// GetCategories returns the distinct categories of active products, sorted.
func (s *ProductService) GetCategories(ctx context.Context) ([]string, error) {
	return s.repo.Categories(ctx)
}

// CreateProduct adds an active product to the catalog.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(""); err != nil {
		return nil, err
	}
	now := s.now()
	product := &models.Product{
		ID:        uuid.New().String(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(product)

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{"product_id": product.ID, "name": product.Name}).Info("product created")
	return product, nil
}

// UpdateProduct replaces the editable fields of a product. The write is version-checked
// like every other stock mutation.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(id); err != nil {
		return nil, err
	}
	product, err := s.stock.Modify(ctx, s.repo, id, "update", func(p *models.Product) error {
		in.apply(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithField("product_id", id).Info("product updated")
	return product, nil
}

// DeleteProduct hides a product from the catalog. Orders keep referencing it.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.stock.Modify(ctx, s.repo, id, "delete", func(p *models.Product) error {
		p.Active = false
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithField("product_id", id).Info("product deactivated")
	return nil
}

// AdjustStock adds delta units to a product's stock; a negative delta takes units away
// and fails with InsufficientStock if the result would go below zero.
func (s *ProductService) AdjustStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, models.NewInvalidOperation("product", id, "stock adjustment must not be zero")
	}
	product, err := s.stock.Adjust(ctx, s.repo, id, delta, "adjust", nil)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"delta":      delta,
		"stock":      product.StockQuantity,
	}).Info("stock adjusted")
	return product, nil
}
