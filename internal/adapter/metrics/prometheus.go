package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sales"

// PurchaseMetrics records purchase outcomes on its own registry.
type PurchaseMetrics struct {
	registry *prometheus.Registry

	purchasesTotal   *prometheus.CounterVec
	purchaseDuration *prometheus.HistogramVec
	releasesTotal    *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
}

func NewPurchaseMetrics() *PurchaseMetrics {
	m := &PurchaseMetrics{
		registry: prometheus.NewRegistry(),
		purchasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purchases_total",
				Help:      "Purchase attempts by outcome.",
			},
			[]string{"outcome"},
		),
		purchaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "purchase_duration_seconds",
				Help:      "Time spent running one purchase attempt.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		releasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_releases_total",
				Help:      "Compensating releases by resource and result.",
			},
			[]string{"resource", "success"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sale_events_published_total",
				Help:      "Sale events handed to the broker by result.",
			},
			[]string{"success"},
		),
	}

	m.registry.MustRegister(
		m.purchasesTotal,
		m.purchaseDuration,
		m.releasesTotal,
		m.eventsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *PurchaseMetrics) ObservePurchase(outcome string, d time.Duration) {
	m.purchasesTotal.WithLabelValues(outcome).Inc()
	m.purchaseDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *PurchaseMetrics) ObserveCompensation(resource string, ok bool) {
	m.releasesTotal.WithLabelValues(resource, strconv.FormatBool(ok)).Inc()
}

func (m *PurchaseMetrics) ObserveEventPublish(ok bool) {
	m.eventsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PurchaseMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PurchaseMetrics) Registry() *prometheus.Registry {
	return m.registry
}
