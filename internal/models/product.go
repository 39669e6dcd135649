package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the store.
//
// Version is the optimistic-concurrency token: every persisted mutation must be written
// conditionally on the version that was read and bumps it by one.
type Product struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name          string          `json:"name" gorm:"type:varchar(100);not null;index"`
	Description   string          `json:"description" gorm:"type:varchar(1000)"`
	Price         decimal.Decimal `json:"price" gorm:"type:numeric(10,2);not null"`
	StockQuantity int             `json:"stock_quantity" gorm:"not null;check:stock_quantity >= 0"`
	Category      string          `json:"category" gorm:"type:varchar(50);not null;index"`
	ImageURL      string          `json:"image_url" gorm:"type:varchar(500)"`
	Active        bool            `json:"active" gorm:"not null;default:true;index"`
	Version       int64           `json:"version" gorm:"not null;default:0"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Touch stamps the modification time. Callers do this explicitly on every mutation.
func (p *Product) Touch(now time.Time) {
	p.UpdatedAt = now
}

// HasStock reports whether qty units can be taken from the current stock.
func (p *Product) HasStock(qty int) bool {
	return qty >= 0 && p.StockQuantity >= qty
}
