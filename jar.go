package jarkeep

import (
	"context"
	"sync"
)

// Jar is the live cookie jar owned by the embedded web surface. The surface
// guarantees its own internal consistency; this package only reads it
// snapshot-style and writes individual records.
type Jar interface {
	// Cookies returns a snapshot of every record currently in the jar.
	Cookies(ctx context.Context) ([]Cookie, error)

	// SetCookie installs one record, replacing any record with the same
	// (name, domain, path) identity.
	SetCookie(ctx context.Context, c Cookie) error

	// OnChange registers fn to run after any jar mutation. fn may be
	// invoked from arbitrary goroutines and must not block.
	OnChange(fn func())
}

// MemoryJar is an in-process Jar with change notification. It stands in for
// the embedded surface's jar in hosts that have none, and in tests.
type MemoryJar struct {
	mu        sync.Mutex
	order     []string
	records   map[string]Cookie
	listeners []func()
}

// NewMemoryJar returns an empty MemoryJar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{records: make(map[string]Cookie)}
}

// Cookies returns the jar contents in insertion order.
func (j *MemoryJar) Cookies(_ context.Context) ([]Cookie, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Cookie, 0, len(j.order))
	for _, key := range j.order {
		out = append(out, j.records[key])
	}
	return out, nil
}

// SetCookie upserts c by identity and notifies listeners.
func (j *MemoryJar) SetCookie(_ context.Context, c Cookie) error {
	j.mu.Lock()
	key := c.identityKey()
	if _, ok := j.records[key]; !ok {
		j.order = append(j.order, key)
	}
	j.records[key] = c
	listeners := make([]func(), len(j.listeners))
	copy(listeners, j.listeners)
	j.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
	return nil
}

// RemoveCookie deletes the record with c's identity, if present, and notifies
// listeners.
func (j *MemoryJar) RemoveCookie(c Cookie) {
	j.mu.Lock()
	key := c.identityKey()
	if _, ok := j.records[key]; ok {
		delete(j.records, key)
		for i, k := range j.order {
			if k == key {
				j.order = append(j.order[:i], j.order[i+1:]...)
				break
			}
		}
	}
	listeners := make([]func(), len(j.listeners))
	copy(listeners, j.listeners)
	j.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnChange registers a change listener.
func (j *MemoryJar) OnChange(fn func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.listeners = append(j.listeners, fn)
}
