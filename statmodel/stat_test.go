package statmodel

import (
	"testing"
	"time"

	"github.com/sqlalchemy/collectd-pool/aggregator"
)

func TestCheckoutsPerSecondRequiresElapsedIntervalAndProgress(t *testing.T) {
	h := &HostProg{Hostname: "h1", Progname: "p1"}
	interval := 10 * time.Second
	start := time.Unix(1000, 0)

	h.UpdateTotalStats(interval, start, 100, 1)
	if rate, ok := h.checkoutsPerSecond(); ok {
		t.Fatalf("rate should not be set yet: %v", rate)
	}

	// Less than one interval elapsed: no update even though checkouts moved.
	h.UpdateTotalStats(interval, start.Add(5*time.Second), 150, 1)
	if _, ok := h.checkoutsPerSecond(); ok {
		t.Fatalf("rate should not update before a full interval elapses")
	}

	// A full interval elapsed and checkouts advanced: rate computed.
	h.UpdateTotalStats(interval, start.Add(15*time.Second), 250, 1)
	rate, ok := h.checkoutsPerSecond()
	if !ok {
		t.Fatalf("expected rate to be computed")
	}
	want := float64(250-100) / 15.0
	if rate != want {
		t.Errorf("rate = %v, want %v", rate, want)
	}
}

// TestCheckoutsPerSecondUpdatesOnExactIntervalBoundary mirrors spec.md's
// worked example (Scenario F): a 10s interval and timestamps exactly 10s
// apart (1000, then 1010) must still update the rate (delta == interval
// counts as elapsed, not just delta > interval).
func TestCheckoutsPerSecondUpdatesOnExactIntervalBoundary(t *testing.T) {
	h := &HostProg{Hostname: "h1", Progname: "p1"}
	interval := 10 * time.Second
	start := time.Unix(1000, 0)

	h.UpdateTotalStats(interval, start, 100, 1)
	h.UpdateTotalStats(interval, start.Add(10*time.Second), 130, 1)

	rate, ok := h.checkoutsPerSecond()
	if !ok {
		t.Fatalf("expected rate to be computed exactly at the interval boundary")
	}
	if rate != 3.0 {
		t.Errorf("rate = %v, want 3.0", rate)
	}
}

func TestKillProcessesZeroesLiveCounts(t *testing.T) {
	h := &HostProg{ProcessCount: 3, ConnectionCount: 5, CheckoutCount: 2}
	h.KillProcesses()
	if h.ProcessCount != 0 || h.ConnectionCount != 0 || h.CheckoutCount != 0 {
		t.Errorf("KillProcesses did not zero live counts: %+v", h)
	}
	if rate, ok := h.checkoutsPerSecond(); !ok || rate != 0 {
		t.Errorf("KillProcesses should set rate to 0, got %v, %v", rate, ok)
	}
}

func TestRowAgesOutAfterDropFactor(t *testing.T) {
	s := New()
	row := s.rowFor("h1", "p1")
	row.lastTime = time.Unix(1000, 0)
	row.ProcessCount = 1

	interval := 10 * time.Second
	// Within kill factor: row stays alive, not yet zeroed.
	s.Update(aggregator.New(), time.Unix(1005, 0), interval)
	if _, ok := s.rows[rowKey{"h1", "p1"}]; !ok {
		t.Fatalf("row should still be present shortly after last report")
	}

	// Past kill factor, before drop factor: zeroed but still present.
	s.Update(aggregator.New(), time.Unix(1025, 0), interval)
	row = s.rows[rowKey{"h1", "p1"}]
	if row == nil {
		t.Fatalf("row should still be present")
	}
	if row.ProcessCount != 0 {
		t.Errorf("row should have been zeroed by KillProcesses, got %+v", row)
	}

	// Past drop factor: removed entirely.
	s.Update(aggregator.New(), time.Unix(1000+60, 0), interval)
	if _, ok := s.rows[rowKey{"h1", "p1"}]; ok {
		t.Errorf("row should have been dropped after 5x interval idle")
	}
}
