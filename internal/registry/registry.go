// Package registry is the in-memory connection table (spec.md §4.3, C3):
// up to N simultaneous BLE links, each carrying its kind, address, MTU,
// RSSI and per-service ready flags. Mutex discipline mirrors the
// teacher's Central struct (satas20-smart-punch/server/ble/central.go),
// generalized from two fixed hand slots to an N-slot table.
package registry

import (
	"errors"
	"sync"

	"github.com/augmental/mouthpad-bridge/internal/kind"
)

var (
	ErrFull        = errors.New("registry: full")
	ErrDuplicate   = errors.New("registry: kind slot already occupied")
	ErrNotFound    = errors.New("registry: link not found")
)

// Flag names the per-service readiness bits a link tracks.
type Flag int

const (
	FlagNUSReady Flag = iota
	FlagHIDReady
	FlagBASReady
)

// Link is one active BLE connection (spec.md §3 Link record).
type Link struct {
	Handle        uint64
	Kind          kind.Kind
	Address       string
	Name          string // truncated to 31 bytes by Insert
	MTU           uint16
	RSSI          int16
	NUSReady      bool
	HIDReady      bool
	BASReady      bool
	SecurityLevel int
}

func (l Link) clone() *Link {
	c := l
	return &c
}

// Registry is the connection table. Readers take the shared lock;
// writers take the exclusive lock; no suspension happens while held.
type Registry struct {
	mu       sync.RWMutex
	maxLinks int
	links    map[uint64]*Link

	subMu     sync.Mutex
	onInsert  []func(*Link)
	onRemove  []func(*Link)
}

// New creates a Registry capped at maxLinks simultaneous links (N=4
// suffices per spec.md §3).
func New(maxLinks int) *Registry {
	return &Registry{
		maxLinks: maxLinks,
		links:    make(map[uint64]*Link),
	}
}

// Insert adds a new link, enforcing the cardinality invariants: at most
// one Wearable, at most one of each glasses arm, total <= maxLinks.
func (r *Registry) Insert(l Link) (*Link, error) {
	r.mu.Lock()
	if len(r.links) >= r.maxLinks {
		r.mu.Unlock()
		return nil, ErrFull
	}
	if l.Kind == kind.Wearable || l.Kind == kind.GlassesLeft || l.Kind == kind.GlassesRight {
		for _, existing := range r.links {
			if existing.Kind == l.Kind {
				r.mu.Unlock()
				return nil, ErrDuplicate
			}
		}
	}
	if len(l.Name) > 31 {
		l.Name = l.Name[:31]
	}
	stored := l.clone()
	r.links[l.Handle] = stored
	r.mu.Unlock()

	r.fire(r.onInsertSnapshot(), stored)
	return stored, nil
}

// Remove deletes a link by handle, returning it if present.
func (r *Registry) Remove(handle uint64) (*Link, bool) {
	r.mu.Lock()
	l, ok := r.links[handle]
	if ok {
		delete(r.links, handle)
	}
	r.mu.Unlock()

	if ok {
		r.fire(r.onRemoveSnapshot(), l)
	}
	return l, ok
}

// LookupByHandle returns a copy of the link for handle, if any.
func (r *Registry) LookupByHandle(handle uint64) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[handle]
	if !ok {
		return Link{}, false
	}
	return *l, true
}

// LookupByAddress returns a copy of the link with the given address.
func (r *Registry) LookupByAddress(addr string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		if l.Address == addr {
			return *l, true
		}
	}
	return Link{}, false
}

// LookupByKind returns a copy of the first link of the given kind.
func (r *Registry) LookupByKind(k kind.Kind) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		if l.Kind == k {
			return *l, true
		}
	}
	return Link{}, false
}

// Count returns the number of active links.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// HasKind reports whether any link of the given kind is connected.
func (r *Registry) HasKind(k kind.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		if l.Kind == k {
			return true
		}
	}
	return false
}

// SetFlag mutates a single readiness flag (MTU and RSSI have their own
// SetMTU/SetRSSI). Only a single field update happens while the lock
// is held, per the
// concurrency model's "no suspension while holding a registry lock"
// rule.
func (r *Registry) SetFlag(handle uint64, flag Flag, value bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[handle]
	if !ok {
		return ErrNotFound
	}
	switch flag {
	case FlagNUSReady:
		l.NUSReady = value
	case FlagHIDReady:
		l.HIDReady = value
	case FlagBASReady:
		l.BASReady = value
	}
	return nil
}

// SetMTU records the negotiated MTU for a link.
func (r *Registry) SetMTU(handle uint64, mtu uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[handle]
	if !ok {
		return ErrNotFound
	}
	l.MTU = mtu
	return nil
}

// SetRSSI records the most recently polled RSSI for a link.
func (r *Registry) SetRSSI(handle uint64, rssi int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[handle]
	if !ok {
		return ErrNotFound
	}
	l.RSSI = rssi
	return nil
}

// Handles returns every active connection handle, for callers (e.g.
// telemetry) that need to iterate without holding the lock themselves.
func (r *Registry) Handles() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, 0, len(r.links))
	for h := range r.links {
		out = append(out, h)
	}
	return out
}

// NeedGlassesPair reports whether scanning must continue to find
// glasses arms: true iff zero or exactly one arm is connected.
func (r *Registry) NeedGlassesPair() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	arms := 0
	for _, l := range r.links {
		if l.Kind == kind.GlassesLeft || l.Kind == kind.GlassesRight {
			arms++
		}
	}
	return arms < 2
}

// OnInsert registers a subscriber fired after a link is inserted.
func (r *Registry) OnInsert(fn func(*Link)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.onInsert = append(r.onInsert, fn)
}

// OnRemove registers a subscriber fired after a link is removed.
func (r *Registry) OnRemove(fn func(*Link)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

func (r *Registry) onInsertSnapshot() []func(*Link) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	out := make([]func(*Link), len(r.onInsert))
	copy(out, r.onInsert)
	return out
}

func (r *Registry) onRemoveSnapshot() []func(*Link) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	out := make([]func(*Link), len(r.onRemove))
	copy(out, r.onRemove)
	return out
}

func (r *Registry) fire(subs []func(*Link), l *Link) {
	for _, fn := range subs {
		fn(l)
	}
}
