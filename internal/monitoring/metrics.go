package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"

	"github.com/parrotlabs/parrot/internal/poster"
)

// MetricsCollector tracks posting outcomes for Prometheus.
type MetricsCollector struct {
	postsPublished *prometheus.CounterVec
	postsRejected  *prometheus.CounterVec
	postErrors     *prometheus.CounterVec
	dryRuns        *prometheus.CounterVec
	cyclesTotal    prometheus.Counter
}

// NewMetricsCollector registers the agent's metrics on the given registry.
// Pass nil to use the default registry.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	mc := &MetricsCollector{
		postsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parrot_posts_published_total",
				Help: "Posts successfully published",
			},
			[]string{"handle"},
		),
		postsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parrot_posts_rejected_total",
				Help: "Candidate posts rejected before publishing",
			},
			[]string{"handle", "reason"},
		),
		postErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parrot_post_errors_total",
				Help: "Posting invocations that failed with an error",
			},
			[]string{"handle"},
		),
		dryRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parrot_dry_runs_total",
				Help: "Invocations that completed in dry run mode",
			},
			[]string{"handle"},
		),
		cyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "parrot_cycles_total",
				Help: "Scheduler cycles started",
			},
		),
	}

	reg.MustRegister(mc.postsPublished, mc.postsRejected, mc.postErrors, mc.dryRuns, mc.cyclesTotal)
	return mc
}

// ObserveOutcome implements poster.Metrics.
func (mc *MetricsCollector) ObserveOutcome(outcome poster.Outcome, err error) {
	switch {
	case err != nil:
		mc.postErrors.WithLabelValues(outcome.Handle).Inc()
	case outcome.Rejected != "":
		mc.postsRejected.WithLabelValues(outcome.Handle, outcome.Rejected).Inc()
	case outcome.DryRun:
		mc.dryRuns.WithLabelValues(outcome.Handle).Inc()
	case outcome.Posted:
		mc.postsPublished.WithLabelValues(outcome.Handle).Inc()
	}
}

// ObserveCycle implements poster.Metrics.
func (mc *MetricsCollector) ObserveCycle() {
	mc.cyclesTotal.Inc()
}

// MetricsHandler returns the Prometheus scrape endpoint handler
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
