package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics holds the business counters of the order lifecycle.
// All methods are safe to call on a nil *ShopMetrics.
type ShopMetrics struct {
	checkouts        *prometheus.CounterVec
	checkoutDuration prometheus.Histogram
	payments         *prometheus.CounterVec
	cancellations    *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	stockConflicts   *prometheus.CounterVec
	stockUnits       *prometheus.CounterVec
}

// NewShopMetrics registers the collectors on registerer (the default registerer if nil).
func NewShopMetrics(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Checkout attempts by result (success or error kind)",
		}, []string{"result"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of successful checkouts in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
		payments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_payments_total",
			Help: "Payment outcomes applied to orders",
		}, []string{"outcome"}),
		cancellations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_cancellations_total",
			Help: "Cancelled orders, split by whether stock was restored and payment refunded",
		}, []string{"refunded"}),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_changes_total",
			Help: "Order status transitions by target status",
		}, []string{"status"}),
		stockConflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_conflicts_total",
			Help: "Optimistic-concurrency conflicts on product stock by operation",
		}, []string{"operation"}),
		stockUnits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_units_total",
			Help: "Units of stock committed or restored",
		}, []string{"direction"}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// CheckoutSucceeded counts a placed order and its duration.
func (m *ShopMetrics) CheckoutSucceeded(duration time.Duration) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues("success").Inc()
	m.checkoutDuration.Observe(duration.Seconds())
}

// CheckoutFailed counts a rejected checkout. reason is an error kind or "internal".
func (m *ShopMetrics) CheckoutFailed(reason string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(reason).Inc()
}

// PaymentProcessed counts an applied payment outcome.
func (m *ShopMetrics) PaymentProcessed(successful bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if successful {
		outcome = "completed"
	}
	m.payments.WithLabelValues(outcome).Inc()
}

// OrderCancelled counts a cancellation.
func (m *ShopMetrics) OrderCancelled(refunded bool) {
	if m == nil {
		return
	}
	label := "false"
	if refunded {
		label = "true"
	}
	m.cancellations.WithLabelValues(label).Inc()
}

// StatusChanged counts a fulfilment transition.
func (m *ShopMetrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// StockConflict counts a stale-version write on product stock.
func (m *ShopMetrics) StockConflict(operation string) {
	if m == nil {
		return
	}
	m.stockConflicts.WithLabelValues(operation).Inc()
}

// StockMoved counts units taken from (delta < 0) or returned to (delta > 0) stock.
func (m *ShopMetrics) StockMoved(delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta < 0 {
		m.stockUnits.WithLabelValues("committed").Add(float64(-delta))
		return
	}
	m.stockUnits.WithLabelValues("restored").Add(float64(delta))
}
