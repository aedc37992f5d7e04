// Package ledger tracks live foreign allocations by address.
//
// The reference runtime records every control block it hands out and forgets
// it when the last reference is dropped. Forgetting an address that was never
// recorded, or was already forgotten, is how a double release shows up.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownAllocation is returned by Forget for addresses that are not live.
var ErrUnknownAllocation = errors.New("ptrbridge: release of unknown allocation")

// Ledger is a set of live allocations keyed by address.
//
// Thread-safe.
type Ledger struct {
	mu   sync.RWMutex
	live map[uintptr]string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{live: make(map[uintptr]string)}
}

// Record marks addr as live and owned by segment.
func (l *Ledger) Record(addr uintptr, segment string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.live[addr] = segment
}

// Forget removes addr and returns the segment it was recorded under.
func (l *Ledger) Forget(addr uintptr) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	segment, ok := l.live[addr]
	if !ok {
		return "", fmt.Errorf("%w: %#x", ErrUnknownAllocation, addr)
	}
	delete(l.live, addr)
	return segment, nil
}

// Contains reports whether addr is live.
func (l *Ledger) Contains(addr uintptr) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.live[addr]
	return ok
}

// Count returns the number of live allocations.
// Useful for testing memory leaks.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.live)
}

// CountSegment returns the number of live allocations recorded under segment.
func (l *Ledger) CountSegment(segment string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, s := range l.live {
		if s == segment {
			n++
		}
	}
	return n
}

// Segments returns the sorted set of segments with live allocations.
func (l *Ledger) Segments() []string {
	l.mu.RLock()
	seen := make(map[string]struct{}, len(l.live))
	for _, s := range l.live {
		seen[s] = struct{}{}
	}
	l.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
