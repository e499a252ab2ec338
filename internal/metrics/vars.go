package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pylot_quote_latency_seconds",
		Help:    "Time to obtain a quote, per protocol",
		Buckets: prometheus.DefBuckets,
	}, []string{"protocol"})

	QuoteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_quote_failures_total",
		Help: "Quote failures by protocol and reason",
	}, []string{"protocol", "reason"})

	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_route_decisions_total",
		Help: "Optimization outcomes (selected or a failure class)",
	}, []string{"outcome"})

	DecisionScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pylot_route_score",
		Help:    "Winning route composite score",
		Buckets: prometheus.ExponentialBuckets(1e-3, 10, 9),
	})

	RouteHops = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pylot_route_hops",
		Help:    "Hop count of the winning route",
		Buckets: prometheus.LinearBuckets(1, 1, 4),
	})

	RoutesFiltered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_routes_filtered_total",
		Help: "Candidate routes dropped before scoring",
	}, []string{"reason"})

	GasPrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pylot_gas_price_wei",
		Help: "Last observed gas price per chain",
	}, []string{"chain"})

	PriceUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pylot_price_updates_total",
		Help: "Price points ingested into the oracle",
	})

	OutcomesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_outcomes_ingested_total",
		Help: "Execution outcome reports consumed, per protocol",
	}, []string{"protocol"})

	AnalyticsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_analytics_published_total",
		Help: "Decision records delivered, per sink",
	}, []string{"sink"})

	AnalyticsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pylot_analytics_dropped_total",
		Help: "Decision records dropped to keep routing unblocked, per sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(
		QuoteLatency,
		QuoteFailures,
		Decisions,
		DecisionScore,
		RouteHops,
		RoutesFiltered,
		GasPrice,
		PriceUpdates,
		OutcomesIngested,
		AnalyticsPublished,
		AnalyticsDropped,
	)
}
