package health

import (
	"testing"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzer_OK(t *testing.T) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	report := NewAnalyzer(reg, logger).Analyze()

	assert.Equal(t, StatusOK, report.OverallStatus)
	assert.Equal(t, "Edge is healthy", report.Summary)
	assert.Empty(t, report.Signals)
}

func TestAnalyzer_DegradedPersistTier(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(metrics.PersistErrorsTotal)

	report := NewAnalyzer(reg, logs.NewLogger(10, logs.DEBUG)).Analyze()

	assert.Equal(t, StatusDegraded, report.OverallStatus)
	assert.Contains(t, report.Signals, "Persistent cache tier errors detected")
}

func TestAnalyzer_CriticalOrigin(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(metrics.PersistErrorsTotal)
	reg.Set(metrics.OriginUnhealthy, 1)

	report := NewAnalyzer(reg, logs.NewLogger(10, logs.DEBUG)).Analyze()

	assert.Equal(t, StatusCritical, report.OverallStatus)
	assert.Len(t, report.Signals, 2)
}

func TestUpstreamErrorRateRule(t *testing.T) {
	snap := map[string]int64{
		string(metrics.UpstreamRequestsTotal): 5,
		string(metrics.UpstreamErrorsTotal):   5,
	}
	assert.False(t, UpstreamErrorRateRule(snap).Triggered, "too few requests")

	snap[string(metrics.UpstreamRequestsTotal)] = 100
	assert.False(t, UpstreamErrorRateRule(snap).Triggered)

	snap[string(metrics.UpstreamErrorsTotal)] = 10
	assert.True(t, UpstreamErrorRateRule(snap).Triggered)
}

func TestPrefetchFailureRule(t *testing.T) {
	snap := map[string]int64{
		string(metrics.PrefetchExecutedTotal): 4,
		string(metrics.PrefetchFailuresTotal): 2,
	}
	assert.False(t, PrefetchFailureRule(snap).Triggered)

	snap[string(metrics.PrefetchFailuresTotal)] = 5
	assert.True(t, PrefetchFailureRule(snap).Triggered)
}

func TestAnalyzer_CustomRules(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.Inc(metrics.PersistErrorsTotal)

	always := func(map[string]int64) RuleResult {
		return RuleResult{Triggered: true, Signal: "custom", Severity: StatusDegraded}
	}
	report := NewAnalyzer(reg, logs.NewLogger(10, logs.DEBUG), always).Analyze()

	assert.Equal(t, []string{"custom"}, report.Signals)
}

func TestAnalyzer_LogBasedPersistFailures(t *testing.T) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	for i := 0; i < 3; i++ {
		logger.Warn(`cache: persistent save failed for "home-1", serving from memory only: disk full`)
	}

	report := NewAnalyzer(reg, logger).Analyze()

	assert.Equal(t, StatusDegraded, report.OverallStatus)
	assert.Contains(t, report.Signals, "Repeated persistent tier failures in recent logs")
}

func TestAnalyzer_LogBasedPanicDetection(t *testing.T) {
	reg := metrics.NewRegistry()
	logger := logs.NewLogger(10, logs.DEBUG)

	logger.Error("panic recovered: runtime error")

	report := NewAnalyzer(reg, logger).Analyze()

	assert.Equal(t, StatusCritical, report.OverallStatus)
	assert.Contains(t, report.Signals, "Handler panics detected in logs")
}
