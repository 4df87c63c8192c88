package store

import "time"

// Entry is a single cached value together with the metadata both tiers need
// to decide whether it is still usable.
//
// An entry is valid iff now - StoredAt < TTL. There is no version or logical
// timestamp: a later Set for the same key simply replaces the entry.
type Entry struct {
	Key      string        `json:"key"`
	Value    []byte        `json:"data"`
	StoredAt time.Time     `json:"timestamp"`
	TTL      time.Duration `json:"ttl"`
}

// Valid reports whether the entry is still fresh at the given time.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// ExpiresAt is the first instant at which the entry is no longer valid.
func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}
