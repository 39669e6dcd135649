package bootstrap

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type sample struct {
	name, description, price, category string
	stock                              int
}

var samples = []sample{
	{"Laptop", "14-inch laptop, 16GB RAM, 512GB SSD", "999.99", "Electronics", 50},
	{"Wireless Mouse", "Ergonomic mouse with a silent click", "29.99", "Electronics", 200},
	{"Mechanical Keyboard", "Tenkeyless keyboard with brown switches", "89.99", "Electronics", 150},
	{"4K Monitor", "27-inch IPS panel", "399.99", "Electronics", 60},
	{"Smartphone", "6.1-inch display, 5G", "699.99", "Electronics", 100},
	{"Office Chair", "Mesh back with lumbar support", "199.99", "Furniture", 30},
	{"Desk Lamp", "LED lamp with dimmer", "39.99", "Furniture", 75},
	{"Bookshelf", "Oak bookshelf, five shelves", "149.99", "Furniture", 25},
}

// SeedCatalog fills an empty catalog with sample products. Failures are logged and
// never returned: the application must still start with whatever catalog it has.
func SeedCatalog(ctx context.Context, repo repositories.ProductRepository, logger *log.Entry) {
	count, err := repo.Count(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not count products, skipping catalog seed")
		return
	}
	if count > 0 {
		logger.WithField("products", count).Info("catalog already populated, skipping seed")
		return
	}

	seeded := 0
	for _, s := range samples {
		product := &models.Product{
			Name:          s.name,
			Description:   s.description,
			Price:         decimal.RequireFromString(s.price),
			StockQuantity: s.stock,
			Category:      s.category,
			Active:        true,
		}
		if err := repo.Create(ctx, product); err != nil {
			logger.WithField("name", s.name).WithError(err).Warn("failed to seed product")
			continue
		}
		seeded++
	}
	logger.WithField("products", seeded).Info("catalog seeded")
}
