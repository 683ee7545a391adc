// Package metrics registers the Prometheus instruments for the sync layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the sync layer.
type Metrics struct {
	AdapterCalls         *prometheus.CounterVec
	AdapterErrors        *prometheus.CounterVec
	AdapterLatency       *prometheus.HistogramVec
	DedupSuppressed      *prometheus.CounterVec
	SubscriptionsLive    prometheus.Gauge
	SubscribeReattach    prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationsDeduped prometheus.Counter
}

// New creates and registers all instruments on reg. Pass a fresh registry in
// tests to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AdapterCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condosync_adapter_calls_total",
			Help: "Remote store round-trips by collection and operation.",
		}, []string{"collection", "op"}),
		AdapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condosync_adapter_errors_total",
			Help: "Remote store failures by collection and error kind.",
		}, []string{"collection", "kind"}),
		AdapterLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "condosync_adapter_latency_seconds",
			Help:    "Remote store round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "op"}),
		DedupSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condosync_dedup_suppressed_total",
			Help: "Idempotent ledger operations answered without a remote write.",
		}, []string{"collection", "field"}),
		SubscriptionsLive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "condosync_subscriptions_live",
			Help: "Currently active push listeners.",
		}),
		SubscribeReattach: factory.NewCounter(prometheus.CounterOpts{
			Name: "condosync_subscription_reattach_total",
			Help: "Push listener reconnects after transport failure.",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "condosync_notifications_sent_total",
			Help: "Notification records created.",
		}),
		NotificationsDeduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "condosync_notifications_deduped_total",
			Help: "Notification emissions suppressed by the dedup ledger.",
		}),
	}
}

// NewForTest returns metrics bound to a throwaway registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
