package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusShipped.Terminal())
	assert.False(t, OrderStatus("LOST").Valid())
}

func TestPaymentStatus_Transitions(t *testing.T) {
	assert.True(t, PaymentStatusPending.CanTransitionTo(PaymentStatusCompleted))
	assert.True(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusCompleted))
	assert.True(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusFailed))
	assert.False(t, PaymentStatusFailed.CanTransitionTo(PaymentStatusRefunded))
	assert.True(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusRefunded))
	assert.False(t, PaymentStatusCompleted.CanTransitionTo(PaymentStatusCompleted))
	assert.False(t, PaymentStatusRefunded.CanTransitionTo(PaymentStatusCompleted))
	assert.False(t, PaymentStatusPending.CanTransitionTo(PaymentStatusRefunded))
}

func TestOrder_RecalculateTotal(t *testing.T) {
	a := &Product{ID: "a", Name: "A", Price: decimal.RequireFromString("10.00")}
	b := &Product{ID: "b", Name: "B", Price: decimal.RequireFromString("2.50")}

	order := &Order{Lines: []OrderLine{
		NewOrderLine("l1", 0, a, 2),
		NewOrderLine("l2", 1, b, 3),
	}}
	order.RecalculateTotal()

	assert.True(t, decimal.RequireFromString("27.50").Equal(order.TotalAmount))

	// The snapshot does not follow later price edits.
	a.Price = decimal.RequireFromString("99.00")
	order.RecalculateTotal()
	assert.True(t, decimal.RequireFromString("27.50").Equal(order.TotalAmount))
}

func TestCartLine_Recalculate(t *testing.T) {
	line := CartLine{Quantity: 4}
	line.Recalculate(decimal.RequireFromString("1.25"))
	assert.True(t, decimal.RequireFromString("5").Equal(line.Subtotal))
}
