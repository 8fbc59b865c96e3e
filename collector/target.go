// Package collector tracks live connection-pool state for a single
// named target (e.g. one SQL engine) inside a host process, and
// exposes it through a Hooks interface that a connection pool wires
// to its own lifecycle events.
package collector

import (
	"sync"
)

// ConnID identifies a single DBAPI-level connection. Any comparable
// value works; host applications typically use a pointer or an
// integer handle.
type ConnID interface{}

// CollectionTarget tracks the live state of one named connection pool
// target: the set of connections in each state, plus monotonic
// lifetime counters. All derived counts are computed from the
// identifier sets rather than reconciled against the counters (see
// DESIGN.md, "numCheckedOut reconciliation").
type CollectionTarget struct {
	Name string

	mu            sync.Mutex
	collectors    map[*EngineCollector]struct{}
	connections   map[ConnID]struct{}
	checkedIn     map[ConnID]struct{}
	invalidated   map[ConnID]struct{}
	detached      map[ConnID]struct{}
	transactions  map[ConnID]struct{}

	totalCheckouts   int64
	totalInvalidated int64
	totalConnects    int64
	totalDisconnects int64
}

var (
	targetsMu sync.Mutex
	targets   = map[string]*CollectionTarget{}
)

// TargetForName returns the process-wide CollectionTarget for name,
// creating it on first use. All engines sharing a name report into
// the same target, matching collection_for_name in the original
// client library.
func TargetForName(name string) *CollectionTarget {
	targetsMu.Lock()
	defer targetsMu.Unlock()
	t, ok := targets[name]
	if !ok {
		t = newCollectionTarget(name)
		targets[name] = t
	}
	return t
}

func newCollectionTarget(name string) *CollectionTarget {
	return &CollectionTarget{
		Name:         name,
		collectors:   map[*EngineCollector]struct{}{},
		connections:  map[ConnID]struct{}{},
		checkedIn:    map[ConnID]struct{}{},
		invalidated:  map[ConnID]struct{}{},
		detached:     map[ConnID]struct{}{},
		transactions: map[ConnID]struct{}{},
	}
}

// attach registers a collector against this target (the Go analogue
// of the Python weakref.WeakSet; Go has no weak references, so
// detach must be called explicitly from the collector's shutdown path).
func (t *CollectionTarget) attach(c *EngineCollector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collectors[c] = struct{}{}
}

// Detach removes a collector previously attached with attach.
func (t *CollectionTarget) Detach(c *EngineCollector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.collectors, c)
}

// NumPools is the number of EngineCollectors currently attached.
func (t *CollectionTarget) NumPools() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.collectors)
}

// NumCheckedOut is derived by subtracting detached, invalidated, and
// checked-in connections from the full connection set; it is never
// reconciled against TotalCheckouts (see DESIGN.md).
func (t *CollectionTarget) NumCheckedOut() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for id := range t.connections {
		if _, ok := t.detached[id]; ok {
			continue
		}
		if _, ok := t.invalidated[id]; ok {
			continue
		}
		if _, ok := t.checkedIn[id]; ok {
			continue
		}
		count++
	}
	return count
}

// NumCheckedIn is the number of connections currently idle in a pool.
func (t *CollectionTarget) NumCheckedIn() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.checkedIn)
}

// NumDetached is the number of connections detached from their pool.
func (t *CollectionTarget) NumDetached() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.detached)
}

// NumInvalidated is the number of connections marked invalid but not
// yet closed.
func (t *CollectionTarget) NumInvalidated() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.invalidated)
}

// NumConnections is the total number of live DBAPI connections known
// to this target.
func (t *CollectionTarget) NumConnections() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.connections)
}

// NumTransactions is the number of connections currently inside an
// explicit (begin()'d) transaction.
func (t *CollectionTarget) NumTransactions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.transactions)
}

// Totals snapshots the four lifetime counters.
func (t *CollectionTarget) Totals() (checkouts, invalidated, connects, disconnects int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCheckouts, t.totalInvalidated, t.totalConnects, t.totalDisconnects
}
