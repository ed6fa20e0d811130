// Package dedupe admits each (horse, race) key once on the asynchronous
// ingest path, before results reach the queue.
//
// It is a fast filter only: the rating record history stays the source of
// truth for idempotency, so a forgotten key can at worst cost one redundant
// no-op update.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen result keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if
	// not. Returns true if key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so that it can be submitted again. Used when an
	// admitted result could not be queued or applied.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of remembered keys.
	Size() int64
}

// ringDeduper remembers keys in a map; in bounded mode a ring of insertion
// order decides which key to forget first.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // key -> ring slot, -1 in unbounded mode
	ring    []string
	next    int // next ring slot to overwrite
	maxSize int
}

// NewInMemoryDeduper creates a deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: 50000}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
		for i := range d.ring {
			d.ring[i] = vacant
		}
	}
	return d
}

// vacant marks an empty ring slot. Keys are "horse/race", so a lone NUL
// byte never collides with one.
const vacant = "\x00"

func (d *ringDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize <= 0 {
		d.seen[key] = -1
		return false
	}

	if old := d.ring[d.next]; old != vacant {
		delete(d.seen, old)
	}
	d.ring[d.next] = key
	d.seen[key] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *ringDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.seen[key]
	if !ok {
		return
	}
	delete(d.seen, key)
	if slot >= 0 {
		d.ring[slot] = vacant
	}
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
