package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestShopMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewShopMetrics(reg)

	m.CheckoutSucceeded(10 * time.Millisecond)
	m.CheckoutFailed("insufficient_stock")
	m.CheckoutFailed("insufficient_stock")
	m.PaymentProcessed(true)
	m.OrderCancelled(true)
	m.StockConflict("checkout")
	m.StockMoved(-3)
	m.StockMoved(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockConflicts.WithLabelValues("checkout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockUnits.WithLabelValues("restored")))
}

func TestShopMetrics_RegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewShopMetrics(reg)
	second := NewShopMetrics(reg)

	first.StatusChanged("SHIPPED")
	second.StatusChanged("SHIPPED")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.statusChanges.WithLabelValues("SHIPPED")))
}

func TestShopMetrics_NilIsSafe(t *testing.T) {
	var m *ShopMetrics
	assert.NotPanics(t, func() {
		m.CheckoutSucceeded(time.Second)
		m.CheckoutFailed("internal")
		m.PaymentProcessed(false)
		m.OrderCancelled(false)
		m.StatusChanged("CONFIRMED")
		m.StockConflict("restock")
		m.StockMoved(1)
	})

	var h *HTTPMetrics
	assert.NotPanics(t, func() { h.Observe("GET", "/", 200, time.Millisecond) })
}

func TestHTTPMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("GET", "/api/v1/products/:id", 404, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/products/:id", "404")))
}
