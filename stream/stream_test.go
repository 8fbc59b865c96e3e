package stream

import (
	"testing"

	"github.com/sqlalchemy/collectd-pool/types"
)

func TestBreakProgramSummaryProducesOneRecordPerField(t *testing.T) {
	tr := NewTranslator(types.PluginName)
	values := []float64{1, 2, 3, 0, 5}
	out := tr.BreakProgramSummary(types.PoolInternal, "host1", "appA", values, 2, true, 1000, 10)

	// 5 pool fields + synthesized numprocs = 6 external records.
	if len(out) != 6 {
		t.Fatalf("len(out) = %d, want 6", len(out))
	}
	last := out[len(out)-1]
	if last.TypeInstance != "numprocs" || last.Values[0] != 2 {
		t.Errorf("last record = %+v, want numprocs=2", last)
	}
	for _, rec := range out {
		if len(rec.Values) != 1 {
			t.Errorf("external record %+v should carry exactly one value", rec)
		}
		if rec.Type != types.CountExternal.Name {
			t.Errorf("pool fields are all GAUGE and should map to %q, got %q", types.CountExternal.Name, rec.Type)
		}
	}
}

func TestBreakProgramSummaryDeriveFieldsMapToDeriveExternal(t *testing.T) {
	tr := NewTranslator(types.PluginName)
	out := tr.BreakProgramSummary(types.TotalsInternal, "host1", "appA", []float64{10, 1, 2, 3}, 0, false, 1000, 10)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4 (no numprocs for totals)", len(out))
	}
	for _, rec := range out {
		if rec.Type != types.DeriveExternal.Name {
			t.Errorf("totals fields are all DERIVE and should map to %q, got %q", types.DeriveExternal.Name, rec.Type)
		}
	}
}

func TestBreakHostSummaryUsesHostPluginInstance(t *testing.T) {
	tr := NewTranslator(types.PluginName)
	out := tr.BreakHostSummary(types.PoolInternal, "host1", []float64{1, 2, 3, 0, 5}, 2, true, 1000, 10)
	for _, rec := range out {
		if rec.PluginInstance != "host" {
			t.Errorf("PluginInstance = %q, want %q", rec.PluginInstance, "host")
		}
	}
}
