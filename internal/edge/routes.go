package edge

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

type Strategy string

const (
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
)

func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate:
		return st, nil
	}
	return "", fmt.Errorf("unknown cache strategy %q", s)
}

// Route binds a path prefix to a strategy and the bucket it caches into.
type Route struct {
	Prefix   string   `json:"prefix"`
	Strategy Strategy `json:"strategy"`
	Bucket   string   `json:"bucket"`
}

// imageRoute applies to any path with an image extension, before the prefix
// table is consulted.
var imageRoute = Route{Prefix: "*.img", Strategy: CacheFirst, Bucket: BucketImages}

// defaultRoute applies when no prefix matches.
var defaultRoute = Route{Prefix: "", Strategy: StaleWhileRevalidate, Bucket: BucketDynamic}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
}

func isImagePath(p string) bool {
	_, ok := imageExts[strings.ToLower(path.Ext(p))]
	return ok
}

func DefaultRoutes() []Route {
	return []Route{
		{Prefix: "/", Strategy: StaleWhileRevalidate, Bucket: BucketDynamic},
		{Prefix: "/api/", Strategy: NetworkFirst, Bucket: BucketDynamic},
		{Prefix: "/truyen-tranh/", Strategy: StaleWhileRevalidate, Bucket: BucketDynamic},
		{Prefix: "/the-loai/", Strategy: StaleWhileRevalidate, Bucket: BucketDynamic},
		{Prefix: "/static/", Strategy: CacheFirst, Bucket: BucketStatic},
		{Prefix: "/images/", Strategy: CacheFirst, Bucket: BucketImages},
	}
}

// ParseRoutes reads "prefix=strategy:bucket" pairs separated by commas,
// e.g. "/api/=network-first:dynamic-v1,/static/=cache-first:static-v1".
func ParseRoutes(s string) ([]Route, error) {
	var routes []Route
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		prefix, rest, ok := strings.Cut(part, "=")
		if !ok || !strings.HasPrefix(prefix, "/") {
			return nil, fmt.Errorf("route %q: want prefix=strategy:bucket", part)
		}
		strategy, bucket, ok := strings.Cut(rest, ":")
		if !ok || bucket == "" {
			return nil, fmt.Errorf("route %q: missing bucket", part)
		}
		st, err := ParseStrategy(strategy)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", part, err)
		}
		routes = append(routes, Route{Prefix: prefix, Strategy: st, Bucket: bucket})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes in %q", s)
	}
	return routes, nil
}

// router picks the longest matching prefix.
type router struct {
	routes []Route
}

func newRouter(routes []Route) router {
	sorted := append([]Route(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return router{routes: sorted}
}

func (r router) match(p string) Route {
	if isImagePath(p) {
		return imageRoute
	}
	for _, rt := range r.routes {
		if strings.HasPrefix(p, rt.Prefix) {
			return rt
		}
	}
	return defaultRoute
}

// buckets lists every bucket name the table can write to.
func (r router) buckets() []string {
	seen := map[string]struct{}{imageRoute.Bucket: {}, defaultRoute.Bucket: {}}
	for _, rt := range r.routes {
		seen[rt.Bucket] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
