// Package origin tracks the reachability of the upstreams the edge depends on.
package origin

import (
	"sort"
	"sync"
	"time"

	"comic-edge/internal/metrics"
)

type State int

const (
	Healthy State = iota
	Unhealthy
)

func (s State) String() string {
	if s == Unhealthy {
		return "unhealthy"
	}
	return "healthy"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Upstream is the health record for one probed URL.
type Upstream struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
	LastError    string    `json:"last_error,omitempty"`
	LastChecked  time.Time `json:"last_checked"`
}

// Tracker holds upstream health with hysteresis.
type Tracker struct {
	mu        sync.RWMutex
	upstreams map[string]*Upstream
	config    Config
	metrics   *metrics.Registry
	now       func() time.Time
}

func NewTracker(cfg Config, reg *metrics.Registry) *Tracker {
	return &Tracker{
		upstreams: make(map[string]*Upstream),
		config:    cfg,
		metrics:   reg,
		now:       time.Now,
	}
}

// Add registers an upstream; it starts healthy.
func (t *Tracker) Add(name, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.upstreams[name]; exists {
		return
	}
	t.upstreams[name] = &Upstream{Name: name, URL: url, State: Healthy}
	t.updateGaugesLocked()
}

func (t *Tracker) MarkFailure(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.upstreams[name]
	if !ok {
		return
	}
	t.metrics.Inc(metrics.OriginFailuresTotal)

	u.FailureCount++
	u.SuccessCount = 0
	u.LastChecked = t.now()
	if err != nil {
		u.LastError = err.Error()
	}
	if u.FailureCount >= t.config.Health.FailureThreshold {
		u.State = Unhealthy
	}
	t.updateGaugesLocked()
}

func (t *Tracker) MarkSuccess(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.upstreams[name]
	if !ok {
		return
	}
	u.SuccessCount++
	u.FailureCount = 0
	u.LastChecked = t.now()
	u.LastError = ""
	if u.SuccessCount >= t.config.Health.SuccessThreshold {
		u.State = Healthy
	}
	t.updateGaugesLocked()
}

func (t *Tracker) IsHealthy(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	u, ok := t.upstreams[name]
	return ok && u.State == Healthy
}

// Upstreams returns copies of every record, sorted by name.
func (t *Tracker) Upstreams() []Upstream {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Upstream, 0, len(t.upstreams))
	for _, u := range t.upstreams {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *Tracker) updateGaugesLocked() {
	var healthy, unhealthy int64
	for _, u := range t.upstreams {
		if u.State == Healthy {
			healthy++
		} else {
			unhealthy++
		}
	}
	t.metrics.Set(metrics.OriginHealthy, healthy)
	t.metrics.Set(metrics.OriginUnhealthy, unhealthy)
}
