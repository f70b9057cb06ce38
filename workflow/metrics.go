package workflow

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmdatafocus/shop_inventory/tabular"
)

// Metrics are the business counters of the inventory workflows. A nil *Metrics records nothing.
type Metrics struct {
	checkouts      *prometheus.CounterVec
	lineFailures   *prometheus.CounterVec
	saleValue      prometheus.Counter
	movements      *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	criticalStock  prometheus.Gauge
	lockWait       prometheus.Histogram
	lowStockChecks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_checkouts_total",
				Help: "Checkouts by outcome",
			},
			[]string{"result"},
		),
		lineFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_checkout_line_failures_total",
				Help: "Checkout line steps that failed, by step",
			},
			[]string{"step"},
		),
		saleValue: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "inventory_sales_value_total",
				Help: "Sum of recorded purchase line totals",
			},
		),
		movements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_stock_movements_total",
				Help: "Stock movements applied, by kind and reason",
			},
			[]string{"kind", "reason"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_alerts_total",
				Help: "Low stock notifications, by sink and result",
			},
			[]string{"sink", "result"},
		),
		criticalStock: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "inventory_critical_products",
				Help: "Products at or below minimum stock at the last check",
			},
		),
		lockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "inventory_stock_lock_wait_seconds",
				Help:    "Time spent waiting for a per-product stock lock",
				Buckets: prometheus.DefBuckets,
			},
		),
		lowStockChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_low_stock_checks_total",
				Help: "Scheduled low stock checks, by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.checkouts, m.lineFailures, m.saleValue, m.movements, m.alerts, m.criticalStock, m.lockWait, m.lowStockChecks)
	return m
}

// RegisterCacheMetrics exposes the read cache hit and miss counts.
func RegisterCacheMetrics(reg prometheus.Registerer, reader *tabular.CachedReader) {
	reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "inventory_read_cache_hits_total",
			Help: "Table reads served from cache",
		}, func() float64 { return float64(reader.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "inventory_read_cache_misses_total",
			Help: "Table reads that went to the store",
		}, func() float64 { return float64(reader.Stats().Misses) }),
	)
}

func (m *Metrics) checkout(result string) {
	if m != nil {
		m.checkouts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) lineFailure(step string) {
	if m != nil {
		m.lineFailures.WithLabelValues(step).Inc()
	}
}

func (m *Metrics) sale(value float64) {
	if m != nil {
		m.saleValue.Add(value)
	}
}

func (m *Metrics) movement(kind, reason string) {
	if m != nil {
		m.movements.WithLabelValues(kind, reason).Inc()
	}
}

func (m *Metrics) alert(sink, result string) {
	if m != nil {
		m.alerts.WithLabelValues(sink, result).Inc()
	}
}

func (m *Metrics) critical(n int) {
	if m != nil {
		m.criticalStock.Set(float64(n))
	}
}

func (m *Metrics) waited(seconds float64) {
	if m != nil {
		m.lockWait.Observe(seconds)
	}
}

func (m *Metrics) lowStockCheck(result string) {
	if m != nil {
		m.lowStockChecks.WithLabelValues(result).Inc()
	}
}
