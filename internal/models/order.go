package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// paymentTransitions allows a FAILED payment to be retried, successfully or not.
// REFUNDED is only reached by cancelling a paid order.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:    {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
}

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the order status table allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the payment status table allows s -> next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderLine is one purchased product. PriceAtPurchase is captured when the order is
// created and never recomputed from the catalog.
type OrderLine struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string          `json:"-" gorm:"type:varchar(36);not null;index"`
	Position        int             `json:"position" gorm:"not null"`
	ProductID       string          `json:"product_id" gorm:"type:varchar(36);not null;index"`
	ProductName     string          `json:"product_name" gorm:"type:varchar(100)"`
	Quantity        int             `json:"quantity" gorm:"not null;check:quantity >= 1"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" gorm:"type:numeric(10,2);not null"`
	Subtotal        decimal.Decimal `json:"subtotal" gorm:"type:numeric(12,2);not null"`
}

// TableName keeps the table name aligned with the rest of the schema.
func (OrderLine) TableName() string {
	return "order_items"
}

// NewOrderLine snapshots the product's current price.
func NewOrderLine(id string, position int, product *Product, qty int) OrderLine {
	return OrderLine{
		ID:              id,
		Position:        position,
		ProductID:       product.ID,
		ProductName:     product.Name,
		Quantity:        qty,
		PriceAtPurchase: product.Price,
		Subtotal:        product.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

// CustomerInfo is the contact and delivery data captured at checkout.
type CustomerInfo struct {
	Name            string `json:"customer_name"`
	Email           string `json:"customer_email"`
	PhoneNumber     string `json:"phone_number"`
	ShippingAddress string `json:"shipping_address"`
	DeliveryNotes   string `json:"delivery_instructions"`
}

// Order represents a customer order. It owns its lines; they are created and deleted
// together with the order and never change after creation.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber     string          `json:"order_number" gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerName    string          `json:"customer_name" gorm:"type:varchar(100);not null"`
	CustomerEmail   string          `json:"customer_email" gorm:"type:varchar(255);not null;index"`
	PhoneNumber     string          `json:"phone_number" gorm:"type:varchar(20)"`
	ShippingAddress string          `json:"shipping_address" gorm:"type:varchar(500);not null"`
	DeliveryNotes   string          `json:"delivery_instructions" gorm:"type:varchar(500)"`
	Lines           []OrderLine     `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(16);not null;index"`
	PaymentStatus   PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null"`
	Version         int64           `json:"version" gorm:"not null;default:0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RecalculateTotal sets TotalAmount to the sum of the line subtotals.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal)
	}
	o.TotalAmount = total
}

// ApplyCustomer copies checkout contact data onto the order.
func (o *Order) ApplyCustomer(info CustomerInfo) {
	o.CustomerName = info.Name
	o.CustomerEmail = info.Email
	o.PhoneNumber = info.PhoneNumber
	o.ShippingAddress = info.ShippingAddress
	o.DeliveryNotes = info.DeliveryNotes
}
