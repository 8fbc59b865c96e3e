// Package bucket implements a generic time-windowed map: entries are
// kept only as long as their own reported interval says they should
// still be fresh, and stale entries are swept out on every put/get.
package bucket

import (
	"errors"
	"time"
)

// IntervalFactor is the slack multiplier applied to an entry's
// reported interval before it is considered stale, matching the
// original implementation's TimeBucket.
const IntervalFactor = 1.2

// ErrStaleTimestamp is returned when a caller supplies a timestamp
// significantly older than the bucket's last-seen timestamp, which
// would otherwise let an old record race an already-evicted one back
// into the map.
var ErrStaleTimestamp = errors.New("bucket: timestamp is stale relative to last write")

type entry[V any] struct {
	timestamp time.Time
	interval  time.Duration
	value     V
}

// TimeBucket stores the most recent value seen for each key, evicting
// any entry whose own interval (times IntervalFactor) has elapsed
// since it was written.
type TimeBucket[K comparable, V any] struct {
	data         map[K]entry[V]
	lastTime     time.Time
	lastInterval time.Duration
}

// New creates an empty TimeBucket.
func New[K comparable, V any]() *TimeBucket[K, V] {
	return &TimeBucket[K, V]{data: make(map[K]entry[V])}
}

// sweep evicts stale entries and validates that now is not too far
// behind the bucket's last-seen timestamp, then records now/interval
// as the new high-water mark. interval of zero reuses the bucket's
// previous interval, mirroring the Python implementation's `None`.
func (b *TimeBucket[K, V]) sweep(now time.Time, interval time.Duration) error {
	if interval > 0 {
		b.lastInterval = interval
	}
	oldestToAccept := time.Duration(float64(b.lastInterval) * IntervalFactor)
	if b.lastInterval > 0 && !b.lastTime.IsZero() && now.Before(b.lastTime.Add(-oldestToAccept)) {
		return ErrStaleTimestamp
	}
	for k, e := range b.data {
		if now.After(e.timestamp.Add(time.Duration(float64(e.interval) * IntervalFactor))) {
			delete(b.data, k)
		}
	}
	b.lastTime = now
	return nil
}

// Put records value for key at time now, with the given freshness
// interval, after sweeping stale entries.
func (b *TimeBucket[K, V]) Put(now time.Time, interval time.Duration, key K, value V) error {
	if err := b.sweep(now, interval); err != nil {
		return err
	}
	b.data[key] = entry[V]{timestamp: now, interval: b.lastInterval, value: value}
	return nil
}

// Get sweeps stale entries as of now and returns the value for key,
// if still present.
func (b *TimeBucket[K, V]) Get(now time.Time, key K) (V, bool) {
	_ = b.sweep(now, 0)
	e, ok := b.data[key]
	return e.value, ok
}

// Keys sweeps stale entries as of now and returns the surviving keys.
func (b *TimeBucket[K, V]) Keys(now time.Time) []K {
	_ = b.sweep(now, 0)
	keys := make([]K, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

// Len sweeps stale entries as of now and returns the surviving count.
func (b *TimeBucket[K, V]) Len(now time.Time) int {
	_ = b.sweep(now, 0)
	return len(b.data)
}

// Delete removes key unconditionally.
func (b *TimeBucket[K, V]) Delete(key K) {
	delete(b.data, key)
}

// Snapshot returns a copy of the surviving (key, value) pairs, after
// sweeping as of now.
func (b *TimeBucket[K, V]) Snapshot(now time.Time) map[K]V {
	_ = b.sweep(now, 0)
	out := make(map[K]V, len(b.data))
	for k, e := range b.data {
		out[k] = e.value
	}
	return out
}
