package chat

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Directory holds the live conversations keyed by id. Turns on the same
// conversation are serialized by a per-entry lock; different conversations
// never contend beyond the brief map lookup.
type Directory struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// entry pairs a conversation with the lock serializing its turns. snap is
// the last committed copy, readable without waiting for an in-flight turn.
type entry struct {
	mu      sync.Mutex
	conv    *Conversation
	snap    atomic.Pointer[Conversation]
	removed atomic.Bool
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]*entry)}
}

// Create registers conv. It fails with ErrConflict when the id is taken.
func (d *Directory) Create(conv *Conversation) error {
	return d.CreateWith(conv, nil)
}

// CreateWith registers conv and runs fn on it before any other caller can
// take the entry lock. A turn arriving for the id meanwhile waits for fn.
func (d *Directory) CreateWith(conv *Conversation, fn func(c *Conversation) error) error {
	e := &entry{conv: conv}
	e.snap.Store(conv.clone())
	e.mu.Lock()
	defer e.mu.Unlock()

	d.mu.Lock()
	if _, ok := d.entries[conv.ID]; ok {
		d.mu.Unlock()
		return ErrConflict
	}
	d.entries[conv.ID] = e
	d.mu.Unlock()

	if fn == nil {
		return nil
	}
	err := fn(e.conv)
	e.snap.Store(e.conv.clone())
	return err
}

func (d *Directory) lookup(id string) (*entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	return e, ok
}

// With runs fn on the conversation while holding its entry lock and
// publishes the result as the new snapshot. It fails with ErrNotFound when
// the conversation is absent or was removed while fn was waiting.
func (d *Directory) With(id string, fn func(c *Conversation) error) error {
	e, ok := d.lookup(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed.Load() {
		return ErrNotFound
	}
	err := fn(e.conv)
	e.snap.Store(e.conv.clone())
	return err
}

// Get returns a copy of the last committed state of a conversation.
func (d *Directory) Get(id string) (Conversation, bool) {
	e, ok := d.lookup(id)
	if !ok || e.removed.Load() {
		return Conversation{}, false
	}
	return *e.snap.Load().clone(), true
}

// Remove drops the conversation. It is safe to call from inside With.
func (d *Directory) Remove(id string) bool {
	d.mu.Lock()
	e, ok := d.entries[id]
	if ok {
		delete(d.entries, id)
	}
	d.mu.Unlock()
	if ok {
		e.removed.Store(true)
	}
	return ok
}

// Len returns the number of live conversations.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// IDs returns the live conversation ids in sorted order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	ids := make([]string, 0, len(d.entries))
	for id := range d.entries {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot returns copies of every live conversation, ordered by id.
func (d *Directory) Snapshot() []Conversation {
	ids := d.IDs()
	out := make([]Conversation, 0, len(ids))
	for _, id := range ids {
		if c, ok := d.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// Sweep visits every conversation present when the sweep starts. Each visit
// holds the entry lock, so check-and-transition in fn is atomic with respect
// to turns on the same conversation. It returns the ids for which fn
// reported true.
func (d *Directory) Sweep(fn func(c *Conversation) bool) []string {
	var hit []string
	for _, id := range d.IDs() {
		var matched bool
		err := d.With(id, func(c *Conversation) error {
			matched = fn(c)
			return nil
		})
		if err == nil && matched {
			hit = append(hit, id)
		}
	}
	return hit
}
