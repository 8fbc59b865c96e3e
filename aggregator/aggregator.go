// Package aggregator routes decoded internal Values into per-type
// time-windowed buckets keyed by (host, program, process token), and
// produces the per-program and per-host summaries the stream
// translator turns into external collectd records.
package aggregator

import (
	"errors"
	"time"

	"github.com/sqlalchemy/collectd-pool/bucket"
	"github.com/sqlalchemy/collectd-pool/metrics"
	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/types"
)

// ErrUnknownInternalType is returned by Ingest for any Values whose
// Type is neither sqlalchemy_pool nor sqlalchemy_totals (including
// sqlalchemy_process, which only the aggregator itself synthesizes).
var ErrUnknownInternalType = errors.New("aggregator: unknown internal type")

// processCountTTLFactor multiplies a record's own interval to decide
// how long a process is still considered "alive" for the purpose of
// the synthesized numprocs record, even if its own per-record bucket
// (interval * bucket.IntervalFactor) has already expired it. A
// process that misses one beat shouldn't vanish from the count.
const processCountTTLFactor = 5

type recordKey struct {
	host, program, token string
}

// GroupKey identifies a single (host, program) summary row.
type GroupKey struct {
	Host, Program string
}

// Aggregator holds the live server-side state for one internal-type
// bucket set: the raw per-process records plus a longer-lived process
// presence bucket used to synthesize "sqlalchemy_process".
type Aggregator struct {
	pool      *bucket.TimeBucket[recordKey, *protocol.Values]
	totals    *bucket.TimeBucket[recordKey, *protocol.Values]
	processes *bucket.TimeBucket[recordKey, struct{}]
}

// New builds an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{
		pool:      bucket.New[recordKey, *protocol.Values](),
		totals:    bucket.New[recordKey, *protocol.Values](),
		processes: bucket.New[recordKey, struct{}](),
	}
}

// Ingest routes a decoded Values into the right per-type bucket, and
// refreshes that process's presence record.
func (a *Aggregator) Ingest(v *protocol.Values) error {
	key := recordKey{host: v.Host, program: v.PluginInstance, token: v.TypeInstance}
	now := time.Unix(v.Time, 0)
	interval := time.Duration(v.Interval) * time.Second

	var b *bucket.TimeBucket[recordKey, *protocol.Values]
	switch v.Type {
	case types.PoolInternal.Name:
		b = a.pool
	case types.TotalsInternal.Name:
		b = a.totals
	default:
		return ErrUnknownInternalType
	}
	if err := b.Put(now, interval, key, v); err != nil {
		return err
	}
	// Process presence outlives the record's own bucket entry so a
	// process that misses a single beat isn't immediately reported gone.
	return a.processes.Put(now, interval*processCountTTLFactor, key, struct{}{})
}

// ProgramSummary is one (host, program) row: the element-wise sum of
// every live process's values for that type, plus the live process count.
type ProgramSummary struct {
	Host, Program string
	NumProcs      int
	Values        []float64
}

// HostSummary is one host-wide row, summed across every program
// running on that host.
type HostSummary struct {
	Host     string
	NumProcs int
	Values   []float64
}

func sumValues(dst, src []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(src))
	}
	for i, v := range src {
		if i < len(dst) {
			dst[i] += v
		}
	}
	return dst
}

// PoolByProgram groups live sqlalchemy_pool records by (host, program).
func (a *Aggregator) PoolByProgram(now time.Time) []ProgramSummary {
	return groupByProgram(a.pool, now)
}

// PoolByHost groups live sqlalchemy_pool records by host.
func (a *Aggregator) PoolByHost(now time.Time) []HostSummary {
	return groupByHost(a.pool, now)
}

// TotalsByProgram groups live sqlalchemy_totals records by (host, program).
func (a *Aggregator) TotalsByProgram(now time.Time) []ProgramSummary {
	return groupByProgram(a.totals, now)
}

// TotalsByHost groups live sqlalchemy_totals records by host.
func (a *Aggregator) TotalsByHost(now time.Time) []HostSummary {
	return groupByHost(a.totals, now)
}

// ProcessCounts returns the live process count per (host, program),
// using the longer process-presence TTL rather than each type
// bucket's own (shorter) expiry.
func (a *Aggregator) ProcessCounts(now time.Time) map[GroupKey]int {
	out := map[GroupKey]int{}
	for key := range a.processes.Snapshot(now) {
		gk := GroupKey{Host: key.host, Program: key.program}
		out[gk]++
	}
	return out
}

func groupByProgram(b *bucket.TimeBucket[recordKey, *protocol.Values], now time.Time) []ProgramSummary {
	snap := b.Snapshot(now)
	metrics.BucketSizeHistogram.With(map[string]string{"bucket": "byprogram"}).Observe(float64(len(snap)))

	groups := map[GroupKey]*ProgramSummary{}
	order := []GroupKey{}
	for key, v := range snap {
		gk := GroupKey{Host: key.host, Program: key.program}
		g, ok := groups[gk]
		if !ok {
			g = &ProgramSummary{Host: gk.Host, Program: gk.Program}
			groups[gk] = g
			order = append(order, gk)
		}
		g.NumProcs++
		g.Values = sumValues(g.Values, v.Values)
	}
	out := make([]ProgramSummary, 0, len(order))
	for _, gk := range order {
		out = append(out, *groups[gk])
	}
	return out
}

func groupByHost(b *bucket.TimeBucket[recordKey, *protocol.Values], now time.Time) []HostSummary {
	snap := b.Snapshot(now)
	metrics.BucketSizeHistogram.With(map[string]string{"bucket": "byhost"}).Observe(float64(len(snap)))

	groups := map[string]*HostSummary{}
	order := []string{}
	for key, v := range snap {
		g, ok := groups[key.host]
		if !ok {
			g = &HostSummary{Host: key.host}
			groups[key.host] = g
			order = append(order, key.host)
		}
		g.NumProcs++
		g.Values = sumValues(g.Values, v.Values)
	}
	out := make([]HostSummary, 0, len(order))
	for _, h := range order {
		out = append(out, *groups[h])
	}
	return out
}
