package collector

import "log"

// Hooks is the eight-method pool-lifecycle surface a host connection
// pool implements and wires to its own events. It covers the nine pool
// lifecycle events: soft and hard invalidation both map to Invalidate.
// EngineCollector implements bookkeeping against a CollectionTarget for
// these methods; host code calls the matching EngineCollector method
// directly from its own event callbacks.
type Hooks interface {
	Connect(id ConnID)
	Checkout(id ConnID)
	Checkin(id ConnID)
	Invalidate(id ConnID)
	Reset(id ConnID)
	Close(id ConnID)
	Detach(id ConnID)
	CloseDetached(id ConnID)
}

// EngineCollector binds one pooled SQL engine's lifecycle events to a
// shared CollectionTarget, the Go analogue of the original
// EngineCollector/event.listen wiring.
type EngineCollector struct {
	Target *CollectionTarget
	Name   string // logging name, e.g. the engine's logging_name
}

var _ Hooks = (*EngineCollector)(nil)

// NewEngineCollector attaches a new collector to target. Call Dispose
// when the underlying engine is disposed, so the target's collector
// count (and hence NumPools) stays accurate.
func NewEngineCollector(target *CollectionTarget, name string) *EngineCollector {
	c := &EngineCollector{Target: target, Name: name}
	target.attach(c)
	return c
}

// Dispose detaches this collector from its target, the counterpart to
// NewEngineCollector. Call it when the underlying pooled engine is
// disposed.
func (c *EngineCollector) Dispose() {
	c.Target.Detach(c)
}

// Connect records a new DBAPI connection entering the pool.
func (c *EngineCollector) Connect(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalConnects++
	t.connections[id] = struct{}{}
	t.checkedIn[id] = struct{}{}
}

// Checkout records a connection leaving the idle pool for use.
func (c *EngineCollector) Checkout(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCheckouts++
	delete(t.checkedIn, id)
}

// Checkin records a connection returning to the idle pool.
func (c *EngineCollector) Checkin(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkedIn[id] = struct{}{}
}

// Invalidate records a connection being marked bad, whether via a
// hard or soft invalidation; totalInvalidated increments for both
// (spec.md §9 Open Question, resolved "both" — see DESIGN.md).
func (c *EngineCollector) Invalidate(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalInvalidated++
	t.invalidated[id] = struct{}{}
}

// Reset records a connection leaving an explicit transaction. The
// connection may or may not have been recorded as "in transaction";
// removal is a no-op either way.
func (c *EngineCollector) Reset(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transactions, id)
}

// Close records a connection being permanently closed.
func (c *EngineCollector) Close(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transactions, id)
	delete(t.invalidated, id)
	delete(t.checkedIn, id)
	if _, ok := t.connections[id]; ok {
		delete(t.connections, id)
		t.totalDisconnects++
	} else {
		log.Printf("collector %s: connection closed but was not tracked", c.Name)
	}
	if _, ok := t.detached[id]; ok {
		log.Printf("collector %s: closed connection was unexpectedly marked detached", c.Name)
	}
	delete(t.detached, id)
}

// Detach records a connection being detached from its pool (e.g.
// handed off to application code outside the pool's management).
func (c *EngineCollector) Detach(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached[id] = struct{}{}
}

// CloseDetached records a previously-detached connection being closed.
func (c *EngineCollector) CloseDetached(id ConnID) {
	t := c.Target
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.transactions, id)
	delete(t.invalidated, id)
	delete(t.checkedIn, id)
	delete(t.detached, id)
	if _, ok := t.connections[id]; ok {
		delete(t.connections, id)
		t.totalDisconnects++
	} else {
		log.Printf("collector %s: detached connection closed but was not tracked", c.Name)
	}
}
