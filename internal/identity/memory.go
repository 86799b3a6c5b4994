package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"github.com/zulandar/switchboard/internal/chat"
)

// MemoryDirectory is an in-process identity directory used by demo mode.
// Names are matched fuzzily; emails and logins must match exactly.
type MemoryDirectory struct {
	mu     sync.RWMutex
	people []chat.Identity
	keys   []string // Fold(people[i].Name)
}

// NewMemory returns a directory holding people.
func NewMemory(people []chat.Identity) *MemoryDirectory {
	d := &MemoryDirectory{}
	for _, p := range people {
		d.Add(p)
	}
	return d
}

// Add registers an identity, replacing any with the same id.
func (d *MemoryDirectory) Add(p chat.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.people {
		if d.people[i].ID == p.ID {
			d.people[i] = p
			d.keys[i] = Fold(p.Name)
			return
		}
	}
	d.people = append(d.people, p)
	d.keys = append(d.keys, Fold(p.Name))
}

type foldedNames []string

func (f foldedNames) String(i int) string { return f[i] }
func (f foldedNames) Len() int            { return len(f) }

// Search returns exact name matches first, then exact email or login
// matches, then fuzzy name matches by score.
func (d *MemoryDirectory) Search(_ context.Context, query string) ([]chat.Identity, error) {
	key := Fold(query)
	if key == "" {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[int]bool)
	var out []chat.Identity
	add := func(i int) {
		if seen[i] || len(out) >= SearchLimit {
			return
		}
		seen[i] = true
		out = append(out, d.people[i])
	}

	for i, k := range d.keys {
		if k == key {
			add(i)
		}
	}
	for i, p := range d.people {
		if strings.EqualFold(p.Email, key) || (p.Login != "" && strings.EqualFold(p.Login, key)) {
			add(i)
		}
	}
	for _, m := range fuzzy.FindFrom(key, foldedNames(d.keys)) {
		add(m.Index)
	}
	return out, nil
}

// GetByID returns the identity with id, or nil, nil.
func (d *MemoryDirectory) GetByID(_ context.Context, id string) (*chat.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.people {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}
