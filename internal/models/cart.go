package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one product in a session's cart. There is at most one line per
// (session, product) pair.
type CartLine struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SessionID string          `json:"session_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_cart_session_product"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_session_product"`
	Quantity  int             `json:"quantity" gorm:"not null;check:quantity >= 1"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2)"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName keeps the table name aligned with the rest of the schema.
func (CartLine) TableName() string {
	return "cart_items"
}

// Recalculate derives the subtotal from the product's current price.
func (l *CartLine) Recalculate(price decimal.Decimal) {
	l.Subtotal = price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartItemView is a cart line joined with the live product data.
type CartItemView struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Available   bool            `json:"available"`
}

// CartSnapshot is the priced view of a session's cart.
type CartSnapshot struct {
	SessionID   string          `json:"session_id"`
	Items       []CartItemView  `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}
