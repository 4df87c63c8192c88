package origin

import "time"

// HealthPolicy defines when an upstream is considered down or recovered.
type HealthPolicy struct {
	FailureThreshold int // consecutive failures to mark unhealthy
	SuccessThreshold int // consecutive successes to mark healthy again
}

type ProbePolicy struct {
	Interval time.Duration
	Timeout  time.Duration
}

type Config struct {
	Health HealthPolicy
	Probe  ProbePolicy
}

func DefaultConfig() Config {
	return Config{
		Health: HealthPolicy{
			FailureThreshold: 3,
			SuccessThreshold: 2,
		},
		Probe: ProbePolicy{
			Interval: 30 * time.Second,
			Timeout:  3 * time.Second,
		},
	}
}
