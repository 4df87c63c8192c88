package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var ErrInstall = errors.New("edge install failed")

// Outcome says where a response came from. It is sent as X-Edge-Cache.
type Outcome string

const (
	Hit     Outcome = "HIT"
	Miss    Outcome = "MISS"
	Stale   Outcome = "STALE"
	Offline Outcome = "OFFLINE"
)

const DefaultMaxBodyBytes = 8 << 20

func DefaultShellPaths() []string {
	return []string{"/", "/manifest.json", "/icon-192.png", "/icon-512.png"}
}

func DefaultPopularCategories() []string {
	return []string{"action", "romance", "comedy"}
}

const popularCacheControl = "public, s-maxage=600, stale-while-revalidate=3600"

type Config struct {
	Origin            string
	Routes            []Route
	ShellPaths        []string
	PopularCategories []string
	MaxBodyBytes      int64
	BucketLimits      BucketLimits
	Timeout           time.Duration
}

// Cache fronts the site origin with per-route caching strategies.
type Cache struct {
	origin  *url.URL
	client  *http.Client
	proxy   *httputil.ReverseProxy
	buckets *Buckets

	mu      sync.RWMutex
	routes  router
	popular map[string]struct{}

	shell   []string
	maxBody int64

	// revalidations run on bg, not on the request context
	bg context.Context
	sf singleflight.Group
	wg sync.WaitGroup

	now     func() time.Time
	metrics *metrics.Registry
	logger  *logs.Logger
}

// New builds the asset cache. ctx bounds background revalidation and should
// live as long as the server.
func New(ctx context.Context, cfg Config, reg *metrics.Registry, logger *logs.Logger) (*Cache, error) {
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin %q: %w", cfg.Origin, err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", cfg.Origin)
	}

	routes := cfg.Routes
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	shell := cfg.ShellPaths
	if shell == nil {
		shell = DefaultShellPaths()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Cache{
		origin:  origin,
		client:  &http.Client{Timeout: timeout},
		proxy:   httputil.NewSingleHostReverseProxy(origin),
		buckets: NewBuckets(cfg.BucketLimits),
		routes:  newRouter(routes),
		popular: toSet(cfg.PopularCategories),
		shell:   shell,
		maxBody: maxBody,
		bg:      ctx,
		now:     time.Now,
		metrics: reg,
		logger:  logger,
	}
	c.proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		c.metrics.Inc(metrics.EdgeNetworkErrorsTotal)
		c.logger.Warnf("edge: proxy %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Offline", http.StatusBadGateway)
	}
	return c, nil
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

// Buckets exposes the bucket set for admin endpoints.
func (c *Cache) Buckets() *Buckets { return c.buckets }

// SetRoutes swaps the route table.
func (c *Cache) SetRoutes(routes []Route) {
	c.mu.Lock()
	c.routes = newRouter(routes)
	c.mu.Unlock()
}

// SetPopularCategories swaps the category slugs that get a shared-cache
// Cache-Control header.
func (c *Cache) SetPopularCategories(slugs []string) {
	c.mu.Lock()
	c.popular = toSet(slugs)
	c.mu.Unlock()
}

// Route returns the route a request path would use.
func (c *Cache) Route(p string) Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.routes.match(p)
}

// AllowList is every bucket name the current configuration uses.
func (c *Cache) AllowList() []string {
	c.mu.RLock()
	names := c.routes.buckets()
	c.mu.RUnlock()

	for _, n := range []string{BucketApp, BucketStatic} {
		if !contains(names, n) {
			names = append(names, n)
		}
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Install pre-warms the shell paths into the static bucket. Either every path
// is stored or none is.
func (c *Cache) Install(ctx context.Context) error {
	responses := make([]*Response, len(c.shell))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range c.shell {
		g.Go(func() error {
			resp, err := c.fetch(gctx, p, nil)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInstall, p, err)
			}
			if resp.Oversized() {
				resp.Close()
				return fmt.Errorf("%w: %s: body over %s", ErrInstall, p, humanize.Bytes(uint64(c.maxBody)))
			}
			if !resp.OK() {
				return fmt.Errorf("%w: %s: status %d", ErrInstall, p, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	static := c.buckets.Open(BucketStatic)
	var total int64
	for _, resp := range responses {
		c.metrics.Add(metrics.EdgeEvictionsTotal, int64(static.Put(resp)))
		total += int64(len(resp.Body))
	}
	c.logger.Infof("edge: installed %d shell assets (%s)", len(responses), humanize.Bytes(uint64(total)))
	return nil
}

// Activate deletes every bucket that is not in the allow-list and returns the
// names removed.
func (c *Cache) Activate() []string {
	allow := toSet(c.AllowList())

	var deleted []string
	for _, name := range c.buckets.Names() {
		if _, ok := allow[name]; ok {
			continue
		}
		if c.buckets.Delete(name) {
			deleted = append(deleted, name)
			c.logger.Infof("edge: deleted stale bucket %s", name)
		}
	}
	return deleted
}

// Wait blocks until background revalidations have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func (c *Cache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		c.proxy.ServeHTTP(w, r)
		return
	}

	rt := c.Route(r.URL.Path)
	resp, outcome := c.serve(r.Context(), rt, r.URL.RequestURI(), forwardHeaders(r.Header))

	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	h.Set("X-Edge-Cache", string(outcome))
	h.Set("X-Edge-Strategy", string(rt.Strategy))
	if c.isPopularCategory(r.URL.Path) {
		h.Set("Cache-Control", popularCacheControl)
	}

	w.WriteHeader(resp.Status)
	if err := resp.WriteBody(w); err != nil {
		c.logger.Debugf("edge: write %s: %v", r.URL.Path, err)
	}
}

// Owns reports whether uri is served by this cache's origin. Relative URIs
// always are.
func (c *Cache) Owns(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return !u.IsAbs() || u.Host == c.origin.Host
}

// Warm runs the strategy for uri without a client, filling the route's
// bucket. A placeholder or non-2xx result is reported as an error.
func (c *Cache) Warm(ctx context.Context, uri string) (Outcome, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.IsAbs() {
		if !c.Owns(uri) {
			return "", fmt.Errorf("warm %q: not on origin %s", uri, c.origin.Host)
		}
		u = &url.URL{Path: u.Path, RawQuery: u.RawQuery}
	}

	rt := c.Route(u.Path)
	resp, outcome := c.serve(ctx, rt, u.RequestURI(), nil)
	resp.Close()
	if outcome == Offline {
		return outcome, fmt.Errorf("warm %q: origin unreachable", uri)
	}
	if !resp.OK() {
		return outcome, fmt.Errorf("warm %q: status %d", uri, resp.Status)
	}
	return outcome, nil
}

func (c *Cache) isPopularCategory(p string) bool {
	if !strings.HasPrefix(p, "/the-loai/") {
		return false
	}
	parts := strings.Split(p, "/")
	if len(parts) < 3 {
		return false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.popular[parts[2]]
	return ok
}

func (c *Cache) serve(ctx context.Context, rt Route, uri string, hdr http.Header) (*Response, Outcome) {
	b := c.buckets.Open(rt.Bucket)

	var (
		resp    *Response
		outcome Outcome
	)
	switch rt.Strategy {
	case CacheFirst:
		resp, outcome = c.cacheFirst(ctx, b, uri, hdr)
	case NetworkFirst:
		resp, outcome = c.networkFirst(ctx, b, uri, hdr)
	default:
		resp, outcome = c.staleWhileRevalidate(ctx, b, uri, hdr)
	}
	if outcome == Offline {
		c.metrics.Inc(metrics.EdgeOfflineTotal)
	}
	return resp, outcome
}

func (c *Cache) cacheFirst(ctx context.Context, b *Bucket, uri string, hdr http.Header) (*Response, Outcome) {
	if cached, ok := b.Match(uri); ok {
		c.metrics.Inc(metrics.EdgeHitsTotal)
		return cached, Hit
	}
	c.metrics.Inc(metrics.EdgeMissesTotal)

	resp, err := c.fetch(ctx, uri, hdr)
	if err != nil {
		c.networkFailed(uri, err)
		return placeholder(uri, http.StatusNotFound, "Image not available"), Offline
	}
	c.store(b, resp)
	return resp, Miss
}

func (c *Cache) networkFirst(ctx context.Context, b *Bucket, uri string, hdr http.Header) (*Response, Outcome) {
	resp, err := c.fetch(ctx, uri, hdr)
	if err == nil {
		c.metrics.Inc(metrics.EdgeMissesTotal)
		c.store(b, resp)
		return resp, Miss
	}

	c.networkFailed(uri, err)
	if cached, ok := b.Match(uri); ok {
		c.metrics.Inc(metrics.EdgeStaleServedTotal)
		return cached, Stale
	}
	return placeholder(uri, http.StatusServiceUnavailable, "Offline"), Offline
}

func (c *Cache) staleWhileRevalidate(ctx context.Context, b *Bucket, uri string, hdr http.Header) (*Response, Outcome) {
	if cached, ok := b.Match(uri); ok {
		c.metrics.Inc(metrics.EdgeStaleServedTotal)
		c.revalidate(b, uri, hdr)
		return cached, Stale
	}
	c.metrics.Inc(metrics.EdgeMissesTotal)

	resp, err := c.fetch(ctx, uri, hdr)
	if err != nil {
		c.networkFailed(uri, err)
		return placeholder(uri, http.StatusNotFound, "Page not available"), Offline
	}
	c.store(b, resp)
	return resp, Miss
}

// revalidate refreshes uri in the background. Concurrent refreshes of the
// same entry share one fetch.
func (c *Cache) revalidate(b *Bucket, uri string, hdr http.Header) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		_, _, _ = c.sf.Do(b.Name()+" "+uri, func() (any, error) {
			c.metrics.Inc(metrics.EdgeRevalidationsTotal)
			resp, err := c.fetch(c.bg, uri, hdr)
			if err != nil {
				c.networkFailed(uri, err)
				return nil, nil
			}
			c.store(b, resp)
			resp.Close()
			return nil, nil
		})
	}()
}

func (c *Cache) store(b *Bucket, resp *Response) {
	if !resp.OK() {
		return
	}
	if resp.Oversized() {
		c.logger.Debugf("edge: not caching %s (over %s)", resp.URL, humanize.Bytes(uint64(c.maxBody)))
		return
	}
	if n := b.Put(resp); n > 0 {
		c.metrics.Add(metrics.EdgeEvictionsTotal, int64(n))
	}
}

func (c *Cache) networkFailed(uri string, err error) {
	c.metrics.Inc(metrics.EdgeNetworkErrorsTotal)
	c.logger.Warnf("edge: fetch %s failed: %v", uri, err)
}

// fetch performs a GET against the origin and buffers up to maxBody bytes of
// the body. A longer body is returned oversized with the connection still
// open; the caller must Close or WriteBody it.
func (c *Cache) fetch(ctx context.Context, uri string, hdr http.Header) (*Response, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", uri, err)
	}
	target := c.origin.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	if err != nil {
		res.Body.Close()
		return nil, fmt.Errorf("read body: %w", err)
	}

	resp := &Response{
		URL:      uri,
		Status:   res.StatusCode,
		Header:   storableHeaders(res.Header),
		Body:     body,
		StoredAt: c.now(),
	}
	if int64(len(body)) > c.maxBody {
		resp.rest = res.Body
	} else {
		res.Body.Close()
	}
	return resp, nil
}

func placeholder(uri string, status int, msg string) *Response {
	return &Response{
		URL:    uri,
		Status: status,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte(msg),
	}
}

var forwarded = []string{"Accept", "Accept-Language", "User-Agent"}

func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header, len(forwarded))
	for _, k := range forwarded {
		if v := in.Values(k); len(v) > 0 {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}

var dropped = map[string]struct{}{
	"Connection":        {},
	"Keep-Alive":        {},
	"Transfer-Encoding": {},
	"Content-Length":    {},
	"Set-Cookie":        {},
	"Trailer":           {},
	"Upgrade":           {},
}

func storableHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for k, vs := range in {
		if _, skip := dropped[k]; skip {
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}
