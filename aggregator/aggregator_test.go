package aggregator

import (
	"testing"
	"time"

	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/types"
)

func poolValues(host, program, token string, t int64, interval int64, values []float64) *protocol.Values {
	return &protocol.Values{
		Host: host, Plugin: types.PluginName, PluginInstance: program,
		Type: types.PoolInternal.Name, TypeInstance: token,
		Time: t, Interval: interval, Values: values,
	}
}

func TestIngestRejectsUnknownType(t *testing.T) {
	a := New()
	v := &protocol.Values{Type: "not_a_real_type", Host: "h", PluginInstance: "p", TypeInstance: "tok", Time: 1, Interval: 1}
	if err := a.Ingest(v); err != ErrUnknownInternalType {
		t.Fatalf("Ingest = %v, want ErrUnknownInternalType", err)
	}
}

func TestPoolByProgramSumsAcrossProcesses(t *testing.T) {
	a := New()
	now := int64(1000)
	if err := a.Ingest(poolValues("host1", "appA", "1:aaa", now, 10, []float64{1, 2, 3, 0, 5})); err != nil {
		t.Fatal(err)
	}
	if err := a.Ingest(poolValues("host1", "appA", "2:bbb", now, 10, []float64{1, 1, 1, 0, 2})); err != nil {
		t.Fatal(err)
	}

	rows := a.PoolByProgram(time.Unix(now, 0))
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.Host != "host1" || row.Program != "appA" {
		t.Fatalf("unexpected group key: %+v", row)
	}
	if row.NumProcs != 2 {
		t.Fatalf("NumProcs = %d, want 2", row.NumProcs)
	}
	want := []float64{2, 3, 4, 0, 7}
	for i, v := range want {
		if row.Values[i] != v {
			t.Errorf("Values[%d] = %v, want %v", i, row.Values[i], v)
		}
	}
}

func TestPoolByHostSumsAcrossPrograms(t *testing.T) {
	a := New()
	now := int64(2000)
	if err := a.Ingest(poolValues("host1", "appA", "1:aaa", now, 10, []float64{1, 0, 0, 0, 1})); err != nil {
		t.Fatal(err)
	}
	if err := a.Ingest(poolValues("host1", "appB", "2:bbb", now, 10, []float64{1, 0, 0, 0, 1})); err != nil {
		t.Fatal(err)
	}
	rows := a.PoolByHost(time.Unix(now, 0))
	if len(rows) != 1 || rows[0].Host != "host1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[0].NumProcs != 2 {
		t.Fatalf("NumProcs = %d, want 2", rows[0].NumProcs)
	}
}

func TestProcessCountSurvivesMissedBeat(t *testing.T) {
	a := New()
	start := int64(3000)
	interval := int64(10)
	if err := a.Ingest(poolValues("host1", "appA", "1:aaa", start, interval, []float64{1, 0, 0, 0, 1})); err != nil {
		t.Fatal(err)
	}

	// One missed beat: well past the pool bucket's own 1.2x interval
	// expiry (12s), but well within the process TTL (5x interval = 50s).
	later := time.Unix(start+25, 0)
	counts := a.ProcessCounts(later)
	if counts[GroupKey{Host: "host1", Program: "appA"}] != 1 {
		t.Errorf("process count did not survive a missed beat: %+v", counts)
	}

	// But the pool bucket itself should have dropped the stale record.
	rows := a.PoolByProgram(later)
	if len(rows) != 0 {
		t.Errorf("expected pool record to have expired, got %+v", rows)
	}
}
