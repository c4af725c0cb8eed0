package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// fast responses (0 - 500ms)
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	// medium (500ms - 2s)
	750, 1000, 1250, 1500, 1750, 2000,
	// slow (2s - 15s)
	2500, 3000, 4000, 5000, 7500, 10000, 15000,
	// provider calls behind retries can take a while
	20000, 30000, 45000, 60000,
}

// Domain collectors. Registered once by NewPrometheus.
var (
	PaymentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "payments_created_total",
			Help:      "Payments accepted by the orchestrator, partitioned by provider and kind.",
		},
		[]string{"provider", "kind"},
	)

	PaymentsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "payments_finalized_total",
			Help:      "Payments reaching a terminal status, partitioned by provider, status and source of the transition.",
		},
		[]string{"provider", "status", "source"},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "webhook_deliveries_total",
			Help:      "Outbound subscriber webhook attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "provider_requests_total",
			Help:      "Provider HTTP calls by provider, operation and outcome.",
		},
		[]string{"provider", "op", "outcome"},
	)

	ReconcilerTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: "gateway",
			Name:      "reconciler_ticks_total",
			Help:      "Status poll ticks executed by the reconciliation poller.",
		},
	)
)

func domainCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		PaymentsCreated,
		PaymentsFinalized,
		WebhookDeliveries,
		ProviderRequests,
		ReconcilerTicks,
	}
}
