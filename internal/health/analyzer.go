// Package health turns metrics and recent log lines into a health report.
package health

import (
	"strings"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
)

const logWindow = 100

type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

func NewAnalyzer(reg *metrics.Registry, logger *logs.Logger, rules ...Rule) *Analyzer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Analyzer{metrics: reg, logger: logger, rules: rules}
}

func (a *Analyzer) Analyze() Report {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}
		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- log signals ---------- */

	degradedWrites, panics := 0, 0
	for _, entry := range a.logger.GetLast(logWindow) {
		switch {
		case entry.Level == logs.WARN && strings.Contains(entry.Message, "serving from memory only"):
			degradedWrites++
		case entry.Level == logs.ERROR && strings.Contains(entry.Message, "panic"):
			panics++
		}
	}

	if degradedWrites >= 3 {
		signals = append(signals, "Repeated persistent tier failures in recent logs")
		recommendations = append(recommendations, "Restart with a healthy cache backend or set CACHE_BACKEND=none")
		status = escalate(status, StatusDegraded)
	}
	if panics > 0 {
		signals = append(signals, "Handler panics detected in logs")
		recommendations = append(recommendations, "Inspect recovered panics and stabilize error handling")
		status = StatusCritical
	}

	summary := "Edge is healthy"
	if status != StatusOK {
		summary = "Edge health issues detected"
	}

	return Report{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}

func escalate(current, next Status) Status {
	switch {
	case next == StatusCritical:
		return StatusCritical
	case next == StatusDegraded && current == StatusOK:
		return StatusDegraded
	}
	return current
}
