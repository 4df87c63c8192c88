package prefetch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrForbiddenTarget = errors.New("prefetch target not allowed")

// Targets decides which URLs may be prefetched. Relative targets resolve
// against the site origin; absolute ones must be http(s) on the origin host
// or an allowed host.
type Targets struct {
	base *url.URL
	// exact host:port entries, from URLs
	exact map[string]struct{}
	// host name suffixes, from bare names
	suffixes []string
}

// NewTargets builds the policy. Each allowed entry is either a URL, which
// allows exactly its host and port, or a bare host name, which also allows
// its subdomains.
func NewTargets(base string, allowed ...string) (*Targets, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse prefetch base %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("prefetch base %q must be an absolute URL", base)
	}

	t := &Targets{base: u, exact: map[string]struct{}{strings.ToLower(u.Host): {}}}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.Contains(a, "://") {
			au, err := url.Parse(a)
			if err != nil || au.Host == "" {
				return nil, fmt.Errorf("parse allowed prefetch host %q", a)
			}
			t.exact[strings.ToLower(au.Host)] = struct{}{}
			continue
		}
		t.suffixes = append(t.suffixes, strings.ToLower(strings.TrimPrefix(a, ".")))
	}
	return t, nil
}

// Resolve returns the absolute URL for target, or ErrForbiddenTarget.
func (t *Targets) Resolve(target string) (*url.URL, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrForbiddenTarget, target, err)
	}
	u := t.base.ResolveReference(ref)

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrForbiddenTarget, u.Scheme)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in %q", ErrForbiddenTarget, u.Redacted())
	}
	if !t.allowedHost(u) {
		return nil, fmt.Errorf("%w: host %s", ErrForbiddenTarget, u.Host)
	}
	return u, nil
}

// Check reports whether target may be prefetched.
func (t *Targets) Check(target string) error {
	_, err := t.Resolve(target)
	return err
}

func (t *Targets) allowedHost(u *url.URL) bool {
	if _, ok := t.exact[strings.ToLower(u.Host)]; ok {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, s := range t.suffixes {
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}
