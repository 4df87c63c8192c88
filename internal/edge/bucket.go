package edge

import (
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
)

// Bucket names. The version suffix is bumped when the layout of a bucket
// changes; Activate drops names that fall out of the allow-list.
const (
	BucketApp     = "comic-app-v1"
	BucketStatic  = "static-v1"
	BucketDynamic = "dynamic-v1"
	BucketImages  = "images-v1"
)

const (
	DefaultBucketMaxEntries       = 1000
	DefaultBucketMaxBytes   int64 = 64 << 20
)

// BucketLimits bound each bucket. When a Put goes over either limit the
// oldest entries are evicted first. Zero values use the defaults.
type BucketLimits struct {
	MaxEntries int
	MaxBytes   int64
}

func (l BucketLimits) withDefaults() BucketLimits {
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultBucketMaxEntries
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultBucketMaxBytes
	}
	return l
}

// Response is an upstream response. Stored responses are fully buffered;
// a fresh response over the body limit keeps the unread remainder in rest
// and is never stored.
type Response struct {
	URL      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time

	rest io.ReadCloser
}

// OK reports a 2xx status; only those are stored.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Oversized reports a body that was too large to buffer.
func (r *Response) Oversized() bool {
	return r.rest != nil
}

// WriteBody writes the whole body to w and releases the upstream connection.
func (r *Response) WriteBody(w io.Writer) error {
	if _, err := w.Write(r.Body); err != nil {
		r.Close()
		return err
	}
	if r.rest == nil {
		return nil
	}
	defer r.Close()
	_, err := io.Copy(w, r.rest)
	return err
}

// Close releases an unread oversized body. It is a no-op otherwise.
func (r *Response) Close() {
	if r.rest != nil {
		r.rest.Close()
	}
}

// Bucket is one named response cache keyed by request URI, bounded by entry
// count and body bytes with first-in-first-out eviction.
type Bucket struct {
	name   string
	limits BucketLimits

	mu      sync.RWMutex
	entries map[uint64]*Response
	// order keeps keys in insertion order, oldest first. Replacing an
	// entry keeps its position.
	order []uint64
	bytes int64
}

func newBucket(name string, limits BucketLimits) *Bucket {
	return &Bucket{name: name, limits: limits.withDefaults(), entries: make(map[uint64]*Response)}
}

func keyOf(uri string) uint64 {
	return xxhash.Sum64String(uri)
}

func (b *Bucket) Name() string { return b.name }

// Match returns the stored response for uri.
func (b *Bucket) Match(uri string) (*Response, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.entries[keyOf(uri)]
	if !ok || r.URL != uri {
		return nil, false
	}
	return r, true
}

// Put stores resp under its URL, replacing any previous copy, and returns how
// many older entries were evicted to stay within the limits. The entry just
// stored is never evicted.
func (b *Bucket) Put(resp *Response) int {
	k := keyOf(resp.URL)

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.entries[k]; ok {
		b.bytes -= int64(len(old.Body))
	} else {
		b.order = append(b.order, k)
	}
	b.entries[k] = resp
	b.bytes += int64(len(resp.Body))

	evicted := 0
	for len(b.order) > 1 && (len(b.entries) > b.limits.MaxEntries || b.bytes > b.limits.MaxBytes) {
		oldest := b.order[0]
		b.order = b.order[1:]
		b.bytes -= int64(len(b.entries[oldest].Body))
		delete(b.entries, oldest)
		evicted++
	}
	return evicted
}

func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Bucket) Bytes() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bytes
}

// BucketStats is the admin view of one bucket.
type BucketStats struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
	Size    string `json:"size"`
}

// Buckets is the set of named buckets, opened lazily.
type Buckets struct {
	limits BucketLimits

	mu sync.Mutex
	m  map[string]*Bucket
}

func NewBuckets(limits BucketLimits) *Buckets {
	return &Buckets{limits: limits.withDefaults(), m: make(map[string]*Bucket)}
}

// Open returns the bucket called name, creating it if needed.
func (bs *Buckets) Open(name string) *Bucket {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	b, ok := bs.m[name]
	if !ok {
		b = newBucket(name, bs.limits)
		bs.m[name] = b
	}
	return b
}

// Names lists bucket names in sorted order.
func (bs *Buckets) Names() []string {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	out := make([]string, 0, len(bs.m))
	for name := range bs.m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (bs *Buckets) Delete(name string) bool {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if _, ok := bs.m[name]; !ok {
		return false
	}
	delete(bs.m, name)
	return true
}

func (bs *Buckets) Stats() []BucketStats {
	names := bs.Names()
	out := make([]BucketStats, 0, len(names))
	for _, name := range names {
		b := bs.Open(name)
		n := b.Bytes()
		out = append(out, BucketStats{
			Name:    name,
			Entries: b.Len(),
			Bytes:   n,
			Size:    humanize.Bytes(uint64(n)),
		})
	}
	return out
}
