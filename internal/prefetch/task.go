package prefetch

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

type Kind string

const (
	KindPage  Kind = "page"
	KindImage Kind = "image"
	KindAPI   Kind = "api"
)

type Priority int

const (
	Low Priority = iota
	High
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

// ParsePriority accepts "low", "high" or "" (low).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "low":
		return Low, nil
	case "high":
		return High, nil
	}
	return Low, fmt.Errorf("unknown prefetch priority %q", s)
}

// ParseKind accepts a kind name; "" means classify from the target.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindPage, KindImage, KindAPI:
		return k, nil
	}
	return "", fmt.Errorf("unknown prefetch kind %q", s)
}

// Task is one resource to warm.
type Task struct {
	Target     string
	Kind       Kind
	Priority   Priority
	EnqueuedAt time.Time
}

var imageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {},
}

// Classify guesses the kind of target: anything under /api/ is an API call,
// image extensions are images, the rest are pages.
func Classify(target string) Kind {
	p := target
	if u, err := url.Parse(target); err == nil {
		p = u.Path
	}
	if strings.Contains(p, "/api/") {
		return KindAPI
	}
	if _, ok := imageExts[strings.ToLower(path.Ext(p))]; ok {
		return KindImage
	}
	return KindPage
}
