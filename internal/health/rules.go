package health

import "comic-edge/internal/metrics"

// RuleResult is the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       Status
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

func DefaultRules() []Rule {
	return []Rule{
		OriginUnhealthyRule,
		PersistErrorRule,
		UpstreamErrorRateRule,
		PrefetchFailureRule,
		CorruptPayloadRule,
	}
}

// An unreachable upstream means readers only get cached or placeholder
// content.
func OriginUnhealthyRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.OriginUnhealthy)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "One or more upstreams are unreachable",
			Recommendation: "Check the site origin and comic API; see /admin/origins",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

func PersistErrorRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.PersistErrorsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Persistent cache tier errors detected",
			Recommendation: "Check disk space for SQLite or Redis connectivity; cache is running memory-only",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// UpstreamErrorRateRule fires when at least 10% of comic API requests failed,
// once there are enough requests to judge.
func UpstreamErrorRateRule(snapshot map[string]int64) RuleResult {
	requests := snapshot[string(metrics.UpstreamRequestsTotal)]
	errs := snapshot[string(metrics.UpstreamErrorsTotal)]

	if requests >= 10 && errs*10 >= requests {
		return RuleResult{
			Triggered:      true,
			Signal:         "High comic API error rate",
			Recommendation: "Inspect upstream status and API_BASE_URL",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

func PrefetchFailureRule(snapshot map[string]int64) RuleResult {
	failed := snapshot[string(metrics.PrefetchFailuresTotal)]
	executed := snapshot[string(metrics.PrefetchExecutedTotal)]

	if failed > 0 && failed > executed {
		return RuleResult{
			Triggered:      true,
			Signal:         "Most prefetches are failing",
			Recommendation: "Check prefetch targets and origin reachability",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

func CorruptPayloadRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.CacheCorruptTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Malformed cached payloads were discarded",
			Recommendation: "Check for schema changes in cached upstream responses",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}
