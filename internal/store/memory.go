package store

import "time"

// memoryTier is a bounded map with first-in-first-out eviction.
// It is not safe for concurrent use; Tiered guards it.
type memoryTier struct {
	capacity int

	entries map[string]Entry

	// order keeps keys in insertion order. The front (index 0) is the oldest.
	// Overwriting an existing key keeps its original position.
	order []string
}

func newMemoryTier(capacity int) *memoryTier {
	if capacity <= 0 {
		capacity = 1
	}
	return &memoryTier{
		capacity: capacity,
		entries:  make(map[string]Entry, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (m *memoryTier) get(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// set stores the entry and returns the key evicted to make room, if any.
func (m *memoryTier) set(e Entry) (evicted string, didEvict bool) {
	if _, exists := m.entries[e.Key]; exists {
		m.entries[e.Key] = e
		return "", false
	}

	if len(m.entries) >= m.capacity && len(m.order) > 0 {
		evicted = m.order[0]
		m.order = m.order[1:]
		delete(m.entries, evicted)
		didEvict = true
	}

	m.entries[e.Key] = e
	m.order = append(m.order, e.Key)
	return evicted, didEvict
}

func (m *memoryTier) remove(key string) bool {
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)

	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// sweep drops every entry that is no longer valid at now.
func (m *memoryTier) sweep(now time.Time) int {
	kept := m.order[:0]
	removed := 0
	for _, k := range m.order {
		if m.entries[k].Valid(now) {
			kept = append(kept, k)
			continue
		}
		delete(m.entries, k)
		removed++
	}
	m.order = kept
	return removed
}

func (m *memoryTier) keys(now time.Time) []string {
	out := make([]string, 0, len(m.order))
	for _, k := range m.order {
		if m.entries[k].Valid(now) {
			out = append(out, k)
		}
	}
	return out
}

func (m *memoryTier) len() int {
	return len(m.entries)
}
