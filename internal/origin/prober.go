package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
)

// Prober periodically checks every tracked upstream. Any response below 500
// counts as reachable.
type Prober struct {
	tracker *Tracker
	client  *http.Client
	config  Config
	metrics *metrics.Registry
	logger  *logs.Logger
}

func NewProber(tracker *Tracker, cfg Config, reg *metrics.Registry, logger *logs.Logger) *Prober {
	return &Prober{
		tracker: tracker,
		client:  &http.Client{Timeout: cfg.Probe.Timeout},
		config:  cfg,
		metrics: reg,
		logger:  logger,
	}
}

// Start probes once immediately, then on every interval until ctx is done.
func (p *Prober) Start(ctx context.Context) {
	p.RunOnce(ctx)

	ticker := time.NewTicker(p.config.Probe.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Prober) RunOnce(ctx context.Context) {
	for _, u := range p.tracker.Upstreams() {
		if ctx.Err() != nil {
			return
		}
		p.metrics.Inc(metrics.OriginProbeRunsTotal)

		if err := p.probe(ctx, u.URL); err != nil {
			p.metrics.Inc(metrics.OriginProbeFailedTotal)
			wasHealthy := p.tracker.IsHealthy(u.Name)
			p.tracker.MarkFailure(u.Name, err)
			if wasHealthy && !p.tracker.IsHealthy(u.Name) {
				p.logger.Errorf("origin %s (%s) is unreachable: %v", u.Name, u.URL, err)
			}
			continue
		}

		wasHealthy := p.tracker.IsHealthy(u.Name)
		p.tracker.MarkSuccess(u.Name)
		if !wasHealthy && p.tracker.IsHealthy(u.Name) {
			p.logger.Infof("origin %s recovered", u.Name)
		}
	}
}

func (p *Prober) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "comic-edge-probe")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
