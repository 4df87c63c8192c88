package prefetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"comic-edge/internal/edge"
)

// Executor performs one prefetch.
type Executor interface {
	Execute(ctx context.Context, t Task) error
}

type ExecutorFunc func(ctx context.Context, t Task) error

func (f ExecutorFunc) Execute(ctx context.Context, t Task) error { return f(ctx, t) }

// Warmer fills the edge cache for a URI.
type Warmer interface {
	Owns(uri string) bool
	Warm(ctx context.Context, uri string) (edge.Outcome, error)
}

// Dispatcher sends each task to the executor for its kind.
type Dispatcher struct {
	Page  Executor
	Image Executor
	API   Executor
}

func (d Dispatcher) Execute(ctx context.Context, t Task) error {
	var ex Executor
	switch t.Kind {
	case KindImage:
		ex = d.Image
	case KindAPI:
		ex = d.API
	default:
		ex = d.Page
	}
	if ex == nil {
		return fmt.Errorf("no executor for %s tasks", t.Kind)
	}
	return ex.Execute(ctx, t)
}

// NewDispatcher wires the edge-backed executors. API targets and foreign
// images are fetched with client, limited to what targets allows.
func NewDispatcher(w Warmer, client *http.Client, targets *Targets) Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	f := fetcher{client: client, targets: targets}

	return Dispatcher{
		Page:  PageExecutor{warmer: w},
		Image: ImageExecutor{warmer: w, fetch: f},
		API:   APIExecutor{fetch: f},
	}
}

// PageExecutor warms a page into the edge cache.
type PageExecutor struct {
	warmer Warmer
}

func (e PageExecutor) Execute(ctx context.Context, t Task) error {
	_, err := e.warmer.Warm(ctx, t.Target)
	return err
}

// ImageExecutor warms origin images into the edge image bucket. Images on
// another host are downloaded and discarded so upstream caches see them.
type ImageExecutor struct {
	warmer Warmer
	fetch  fetcher
}

func (e ImageExecutor) Execute(ctx context.Context, t Task) error {
	if e.warmer.Owns(t.Target) {
		_, err := e.warmer.Warm(ctx, t.Target)
		return err
	}
	return e.fetch.get(ctx, t.Target, func(body io.Reader) error {
		_, err := io.Copy(io.Discard, body)
		return err
	})
}

// APIExecutor issues a GET and requires a JSON body, which is discarded.
type APIExecutor struct {
	fetch fetcher
}

func (e APIExecutor) Execute(ctx context.Context, t Task) error {
	return e.fetch.get(ctx, t.Target, func(body io.Reader) error {
		var v any
		if err := json.NewDecoder(body).Decode(&v); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
		return nil
	})
}

type fetcher struct {
	client  *http.Client
	targets *Targets
}

func (f fetcher) get(ctx context.Context, target string, consume func(io.Reader) error) error {
	u, err := f.targets.Resolve(target)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Prefetch", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return consume(resp.Body)
}
