// Package otruyen is a caching client for the otruyen comic API.
package otruyen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"comic-edge/internal/caps"
	"comic-edge/internal/logs"
	"comic-edge/internal/metrics"
	"comic-edge/internal/store"

	"golang.org/x/sync/singleflight"
)

var (
	ErrUpstream      = errors.New("upstream request failed")
	ErrInvalidStatus = errors.New("invalid list status")
	ErrForbiddenHost = errors.New("chapter host not allowed")
)

const (
	DefaultBaseURL  = "https://otruyenapi.com/v1/api"
	DefaultImageCDN = "https://img.otruyenapi.com"

	CategoriesTTL = time.Hour
	homePageSize  = 15
)

func DefaultChapterHosts() []string {
	return []string{"otruyenapi.com", "otruyencdn.com"}
}

type Config struct {
	BaseURL  string
	ImageCDN string
	// ChapterHosts are host suffixes Chapter may fetch from, besides the
	// API host itself.
	ChapterHosts []string
	Timeout      time.Duration
	// TTL for cached reads; zero uses the cache default.
	TTL time.Duration
}

type Client struct {
	base   *url.URL
	cdn    string
	hosts  []string
	http   *http.Client
	ttl    time.Duration
	cache  *store.Tiered
	sf     singleflight.Group
	caps   caps.Capabilities
	reg    *metrics.Registry
	logger *logs.Logger
}

func New(cfg Config, cache *store.Tiered, c caps.Capabilities, reg *metrics.Registry, logger *logs.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageCDN == "" {
		cfg.ImageCDN = DefaultImageCDN
	}
	if cfg.ChapterHosts == nil {
		cfg.ChapterHosts = DefaultChapterHosts()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse api base %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base %q must be an absolute URL", cfg.BaseURL)
	}

	return &Client{
		base:   base,
		cdn:    strings.TrimSuffix(cfg.ImageCDN, "/"),
		hosts:  cfg.ChapterHosts,
		http:   &http.Client{Timeout: cfg.Timeout},
		ttl:    cfg.TTL,
		cache:  cache,
		caps:   c,
		reg:    reg,
		logger: logger,
	}, nil
}

// Home is the landing page listing: newest comics.
func (c *Client) Home(ctx context.Context, page int) (Page, error) {
	page = clampPage(page)
	q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(homePageSize)}}
	return cached[Page](ctx, c, "home-"+strconv.Itoa(page), c.ttl, c.endpoint("danh-sach/"+StatusNew, q))
}

func (c *Client) List(ctx context.Context, status string, page int) (Page, error) {
	if !validStatus(status) {
		return Page{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	page = clampPage(page)
	key := fmt.Sprintf("list-%s-%d", status, page)
	return cached[Page](ctx, c, key, c.ttl, c.endpoint("danh-sach/"+status, pageQuery(page)))
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	list, err := cached[categoryList](ctx, c, "categories", CategoriesTTL, c.endpoint("the-loai", nil))
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) ByCategory(ctx context.Context, slug string, page int) (Page, error) {
	if err := checkSlug(slug); err != nil {
		return Page{}, err
	}
	page = clampPage(page)
	key := fmt.Sprintf("category-%s-%d", slug, page)
	return cached[Page](ctx, c, key, c.ttl, c.endpoint("the-loai/"+slug, pageQuery(page)))
}

func (c *Client) Comic(ctx context.Context, slug string) (Comic, error) {
	if err := checkSlug(slug); err != nil {
		return Comic{}, err
	}
	d, err := cached[comicDetail](ctx, c, "comic-"+slug, c.ttl, c.endpoint("truyen-tranh/"+slug, nil))
	if err != nil {
		return Comic{}, err
	}
	return d.Item, nil
}

// Search always goes to the network.
func (c *Client) Search(ctx context.Context, keyword string) (Page, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return Page{}, errors.New("search keyword is empty")
	}
	var env envelope[Page]
	if err := c.getJSON(ctx, c.endpoint("tim-kiem", url.Values{"keyword": {keyword}}), &env); err != nil {
		return Page{}, err
	}
	return env.Data, nil
}

// Chapter loads a chapter manifest from its chapter_api_data URL.
func (c *Client) Chapter(ctx context.Context, apiURL string) (Chapter, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return Chapter{}, fmt.Errorf("parse chapter url: %w", err)
	}
	target := c.base.ResolveReference(u)
	if target.Scheme != "https" && target.Scheme != "http" {
		return Chapter{}, fmt.Errorf("%w: scheme %q", ErrForbiddenHost, target.Scheme)
	}
	if !c.allowedHost(target.Hostname()) {
		return Chapter{}, fmt.Errorf("%w: %s", ErrForbiddenHost, target.Hostname())
	}

	return cachedBy(ctx, c, "chapter-"+target.String(), c.ttl, func(ctx context.Context) (Chapter, error) {
		var raw struct {
			chapterPayload
			Data *chapterPayload `json:"data"`
		}
		if err := c.getJSON(ctx, target.String(), &raw); err != nil {
			return Chapter{}, err
		}
		p := raw.chapterPayload
		if raw.Data != nil {
			p = *raw.Data
		}
		return resolveChapter(p), nil
	})
}

func resolveChapter(p chapterPayload) Chapter {
	if len(p.Images) > 0 {
		return Chapter{Name: p.Item.ChapterName, Images: p.Images}
	}

	pages := append(p.Item.ChapterImage[:0:0], p.Item.ChapterImage...)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].ImagePage < pages[j].ImagePage })

	domain := strings.TrimSuffix(p.DomainCDN, "/")
	dir := strings.Trim(p.Item.ChapterPath, "/")
	images := make([]string, 0, len(pages))
	for _, img := range pages {
		images = append(images, domain+"/"+dir+"/"+img.ImageFile)
	}
	return Chapter{Name: p.Item.ChapterName, Images: images}
}

func (c *Client) allowedHost(host string) bool {
	if host == c.base.Hostname() {
		return true
	}
	for _, h := range c.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := c.base.ResolveReference(&url.URL{Path: p})
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// cached serves the enveloped payload at target through the tiered cache.
func cached[T any](ctx context.Context, c *Client, key string, ttl time.Duration, target string) (T, error) {
	return cachedBy(ctx, c, key, ttl, func(ctx context.Context) (T, error) {
		var env envelope[T]
		if err := c.getJSON(ctx, target, &env); err != nil {
			var zero T
			return zero, err
		}
		return env.Data, nil
	})
}

// cachedBy reads key from the cache or loads it. Concurrent misses on one key
// share a single load, which is detached from any one caller's cancellation;
// each caller still stops waiting when its own ctx is done.
func cachedBy[T any](ctx context.Context, c *Client, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := store.GetJSON[T](ctx, c.cache, key); ok {
		return v, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(key, func() (any, error) {
		out, err := load(shared)
		if err != nil {
			return out, err
		}
		if err := store.SetJSON(shared, c.cache, key, out, ttl); err != nil {
			c.logger.Warnf("otruyen: cache %s: %v", key, err)
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	c.reg.Inc(metrics.UpstreamRequestsTotal)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.upstreamErr(fmt.Errorf("%w: GET %s: %v", ErrUpstream, target, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.upstreamErr(fmt.Errorf("%w: GET %s: status %d", ErrUpstream, target, resp.StatusCode))
	}

	var status struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	dec := json.NewDecoder(resp.Body)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return c.upstreamErr(fmt.Errorf("%w: decode %s: %v", ErrUpstream, target, err))
	}
	if err := json.Unmarshal(raw, &status); err == nil && status.Status != "" && status.Status != "success" {
		return c.upstreamErr(fmt.Errorf("%w: %s: %s %s", ErrUpstream, target, status.Status, status.Message))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.upstreamErr(fmt.Errorf("%w: decode %s: %v", ErrUpstream, target, err))
	}
	return nil
}

func (c *Client) upstreamErr(err error) error {
	c.reg.Inc(metrics.UpstreamErrorsTotal)
	c.logger.Warnf("otruyen: %v", err)
	return err
}

func clampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func pageQuery(page int) url.Values {
	return url.Values{"page": {strconv.Itoa(page)}}
}

func checkSlug(slug string) error {
	if slug == "" || strings.ContainsAny(slug, "/?#") || strings.Contains(slug, "..") {
		return fmt.Errorf("invalid slug %q", slug)
	}
	return nil
}
