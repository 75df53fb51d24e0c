package monitoring

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/parrotlabs/parrot/internal/poster"
)

func TestCheckHealthAggregation(t *testing.T) {
	hc := NewHealthChecker("parrot", "test")
	hc.AddCheck("a", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	assert.Equal(t, StatusHealthy, hc.CheckHealth().Status)

	hc.AddCheck("b", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	assert.Equal(t, StatusDegraded, hc.CheckHealth().Status)

	hc.AddCheck("c", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	assert.Equal(t, StatusUnhealthy, hc.CheckHealth().Status)
}

func TestLLMHealthCheck(t *testing.T) {
	assert.Equal(t, StatusHealthy, LLMHealthCheck(true)().Status)
	assert.Equal(t, StatusDegraded, LLMHealthCheck(false)().Status)
}

func TestObserveOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc := NewMetricsCollector(reg)

	mc.ObserveOutcome(poster.Outcome{Handle: "alice", Posted: true}, nil)
	mc.ObserveOutcome(poster.Outcome{Handle: "alice", Rejected: "blocklist"}, nil)
	mc.ObserveOutcome(poster.Outcome{Handle: "alice", DryRun: true}, nil)
	mc.ObserveOutcome(poster.Outcome{Handle: "alice"}, errors.New("boom"))
	mc.ObserveCycle()

	assert.Equal(t, float64(1), testutil.ToFloat64(mc.postsPublished.WithLabelValues("alice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.postsRejected.WithLabelValues("alice", "blocklist")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.dryRuns.WithLabelValues("alice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.postErrors.WithLabelValues("alice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(mc.cyclesTotal))
}
