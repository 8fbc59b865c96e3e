// Package statmodel builds the dashboard's per-(host, program) row
// model out of an aggregator.Aggregator snapshot. Rendering those rows
// to a terminal is out of scope (spec.md Non-goals); this package
// only maintains the numbers a renderer would display.
package statmodel

import (
	"time"

	"github.com/sqlalchemy/collectd-pool/aggregator"
)

// killAfterFactor and dropAfterFactor scale an interval to decide when
// a row that has stopped reporting should first be zeroed, and when
// it should be removed outright.
const (
	killAfterFactor = 2
	dropAfterFactor = 5
)

// HostProg is one (host, program) row: the numbers the original
// connmon dashboard renders, kept here without the terminal UI.
type HostProg struct {
	Hostname string `csv:"Host"`
	Progname string `csv:"Program"`

	lastTime time.Time

	totalCheckouts     int64
	haveTotalCheckouts bool

	ProcessCount    int `csv:"Processes"`
	ConnectionCount int `csv:"Connections"`
	CheckoutCount   int `csv:"CheckedOut"`

	MaxProcessCount int `csv:"MaxProcesses"`
	MaxConnections  int `csv:"MaxConnections"`
	MaxCheckedOut   int `csv:"MaxCheckedOut"`

	CheckoutsPerSecond     float64 `csv:"CheckoutsPerSecond"`
	haveCheckoutsPerSecond bool
}

// KillProcesses zeroes the live counts for a row that has stopped
// reporting but hasn't yet aged out entirely.
func (h *HostProg) KillProcesses() {
	h.ProcessCount, h.ConnectionCount, h.CheckoutCount = 0, 0, 0
	h.CheckoutsPerSecond = 0
	h.haveCheckoutsPerSecond = true
}

// UpdatePoolStats applies one interval's pool_internal summary.
func (h *HostProg) UpdatePoolStats(checkedOut, connections int) {
	h.CheckoutCount = checkedOut
	if checkedOut > h.MaxCheckedOut {
		h.MaxCheckedOut = checkedOut
	}
	h.ConnectionCount = connections
	if connections > h.MaxConnections {
		h.MaxConnections = connections
	}
}

// UpdateTotalStats applies one interval's sqlalchemy_totals summary,
// deriving checkouts/sec only once a full interval has elapsed and
// the monotonic checkout counter has actually advanced.
func (h *HostProg) UpdateTotalStats(interval time.Duration, timestamp time.Time, totalCheckouts int64, numProcs int) {
	if numProcs > h.MaxProcessCount {
		h.MaxProcessCount = numProcs
	}
	h.ProcessCount = numProcs

	if !h.haveTotalCheckouts {
		h.totalCheckouts = totalCheckouts
		h.haveTotalCheckouts = true
	}

	if h.lastTime.IsZero() {
		h.lastTime = timestamp
		h.totalCheckouts = totalCheckouts
		return
	}
	delta := timestamp.Sub(h.lastTime)
	if delta >= interval && totalCheckouts > h.totalCheckouts {
		h.CheckoutsPerSecond = float64(totalCheckouts-h.totalCheckouts) / delta.Seconds()
		h.haveCheckoutsPerSecond = true
		h.lastTime = timestamp
		h.totalCheckouts = totalCheckouts
	}
}

// checkoutsPerSecond returns the row's rate if one has ever been
// computed, and whether it has.
func (h *HostProg) checkoutsPerSecond() (float64, bool) {
	return h.CheckoutsPerSecond, h.haveCheckoutsPerSecond
}

type rowKey struct{ host, prog string }

// Stat is the dashboard's whole-fleet summary: one HostProg per
// (host, program) seen recently, plus fleet-wide totals and
// high-water marks.
type Stat struct {
	HostCount       int
	MaxHostCount    int
	ProcessCount    int
	MaxProcessCount int
	ConnectionCount int
	MaxConnections  int
	CheckoutCount   int
	MaxCheckedOut   int
	CheckoutsPerSecond float64

	rows map[rowKey]*HostProg
}

// New builds an empty Stat.
func New() *Stat {
	return &Stat{rows: map[rowKey]*HostProg{}}
}

func (s *Stat) rowFor(host, prog string) *HostProg {
	key := rowKey{host, prog}
	row, ok := s.rows[key]
	if !ok {
		row = &HostProg{Hostname: host, Progname: prog}
		s.rows[key] = row
	}
	return row
}

// Update pulls one snapshot out of agg at now, applies it to the
// per-(host, program) rows, ages out rows that have stopped
// reporting, and refreshes the fleet-wide totals.
func (s *Stat) Update(agg *aggregator.Aggregator, now time.Time, interval time.Duration) {
	seen := map[rowKey]struct{}{}

	// Use the aggregator's own smoothed process presence count rather
	// than each row's raw NumProcs: NumProcs reflects only the
	// sqlalchemy_totals bucket's short (1.2x-interval) TTL, so a process
	// that misses a single reporting beat would otherwise flicker out of
	// the dashboard/CSV view even though the wire re-emission path
	// (stream.Translator) tolerates it via the longer process-presence TTL.
	procCounts := agg.ProcessCounts(now)

	for _, row := range agg.TotalsByProgram(now) {
		hp := s.rowFor(row.Host, row.Program)
		var totalCheckouts int64
		if len(row.Values) > 0 {
			totalCheckouts = int64(row.Values[0]) // checkouts is field 0 of sqlalchemy_totals
		}
		numProcs := procCounts[aggregator.GroupKey{Host: row.Host, Program: row.Program}]
		hp.UpdateTotalStats(interval, now, totalCheckouts, numProcs)
		seen[rowKey{row.Host, row.Program}] = struct{}{}
	}

	for _, row := range agg.PoolByProgram(now) {
		hp := s.rowFor(row.Host, row.Program)
		var checkedOut, connections int
		if len(row.Values) >= 5 {
			checkedOut = int(row.Values[1])  // checkedout
			connections = int(row.Values[4]) // connections
		}
		hp.UpdatePoolStats(checkedOut, connections)
		seen[rowKey{row.Host, row.Program}] = struct{}{}
	}

	for key, row := range s.rows {
		if _, ok := seen[key]; ok {
			continue
		}
		age := now.Sub(row.lastTime)
		switch {
		case age > interval*dropAfterFactor:
			delete(s.rows, key)
		case age > interval*killAfterFactor:
			row.KillProcesses()
		}
	}

	s.refreshTotals()
}

func (s *Stat) refreshTotals() {
	hosts := map[string]struct{}{}
	var process, connections, checkouts int
	var checkoutsPerSecond float64

	for _, row := range s.rows {
		hosts[row.Hostname] = struct{}{}
		process += row.ProcessCount
		connections += row.ConnectionCount
		checkouts += row.CheckoutCount
		if rate, ok := row.checkoutsPerSecond(); ok {
			checkoutsPerSecond += rate
		}
	}

	s.HostCount = len(hosts)
	s.ProcessCount = process
	s.ConnectionCount = connections
	s.CheckoutCount = checkouts
	s.CheckoutsPerSecond = checkoutsPerSecond

	if s.HostCount > s.MaxHostCount {
		s.MaxHostCount = s.HostCount
	}
	if s.ProcessCount > s.MaxProcessCount {
		s.MaxProcessCount = s.ProcessCount
	}
	if s.ConnectionCount > s.MaxConnections {
		s.MaxConnections = s.ConnectionCount
	}
	if s.CheckoutCount > s.MaxCheckedOut {
		s.MaxCheckedOut = s.CheckoutCount
	}
}

// Rows returns a snapshot of the current per-(host, program) rows.
func (s *Stat) Rows() []*HostProg {
	out := make([]*HostProg, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out
}
