// Package stream translates the server's internal per-program and
// per-host summaries into individual collectd "count"/"derive"
// records external collectd writer plugins can already understand.
package stream

import (
	"time"

	"github.com/sqlalchemy/collectd-pool/aggregator"
	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/types"
)

// Translator breaks a composite internal Values (several named
// data sources sharing one record) into one external Values per data
// source, mirroring StreamTranslator.break_into_individual_values.
type Translator struct {
	plugin string
}

// NewTranslator builds a Translator that tags every emitted record
// with the given collectd plugin name.
func NewTranslator(plugin string) *Translator {
	return &Translator{plugin: plugin}
}

// externalTypeFor returns the external type ("count" for GAUGE,
// "derive" for DERIVE) a given internal field maps onto.
func externalTypeFor(kind protocol.ValueKind) *protocol.Type {
	if kind == protocol.Derive {
		return types.DeriveExternal
	}
	return types.CountExternal
}

// BreakProgramSummary expands one (host, program) row of an internal
// type into one external Values per named field, plus a synthesized
// "numprocs" field when withNumProcs is true (TranslateSnapshot asks
// for it on sqlalchemy_pool rows only, not on sqlalchemy_totals rows).
func (tr *Translator) BreakProgramSummary(internal *protocol.Type, host, program string, values []float64, numProcs int, withNumProcs bool, now int64, interval int64) []*protocol.Values {
	out := make([]*protocol.Values, 0, len(internal.Fields)+1)
	for i, f := range internal.Fields {
		if i >= len(values) {
			break
		}
		out = append(out, tr.record(externalTypeFor(f.Kind), host, program, f.Name, values[i], now, interval))
	}
	if withNumProcs {
		out = append(out, tr.record(types.CountExternal, host, program, "numprocs", float64(numProcs), now, interval))
	}
	return out
}

// BreakHostSummary is BreakProgramSummary's host-wide counterpart:
// the plugin instance becomes the literal string "host" rather than a
// program name, matching the original summarizer's host rollup.
func (tr *Translator) BreakHostSummary(internal *protocol.Type, host string, values []float64, numProcs int, withNumProcs bool, now int64, interval int64) []*protocol.Values {
	return tr.BreakProgramSummary(internal, host, "host", values, numProcs, withNumProcs, now, interval)
}

func (tr *Translator) record(t *protocol.Type, host, program, fieldName string, value float64, now, interval int64) *protocol.Values {
	return &protocol.Values{
		Host:           host,
		Plugin:         tr.plugin,
		PluginInstance: program,
		Type:           t.Name,
		TypeInstance:   fieldName,
		Time:           now,
		Interval:       interval,
		Values:         []float64{value},
	}
}

// TranslateSnapshot pulls every live record out of agg at now and
// emits the full set of external records: per-program and per-host,
// for both the pool and totals internal types.
func (tr *Translator) TranslateSnapshot(agg *aggregator.Aggregator, now int64, interval int64) []*protocol.Values {
	var out []*protocol.Values

	nowTime := time.Unix(now, 0)
	procCounts := agg.ProcessCounts(nowTime)

	for _, row := range agg.PoolByProgram(nowTime) {
		n := procCounts[aggregator.GroupKey{Host: row.Host, Program: row.Program}]
		out = append(out, tr.BreakProgramSummary(types.PoolInternal, row.Host, row.Program, row.Values, n, true, now, interval)...)
	}
	for _, row := range agg.PoolByHost(nowTime) {
		out = append(out, tr.BreakHostSummary(types.PoolInternal, row.Host, row.Values, row.NumProcs, true, now, interval)...)
	}
	for _, row := range agg.TotalsByProgram(nowTime) {
		out = append(out, tr.BreakProgramSummary(types.TotalsInternal, row.Host, row.Program, row.Values, 0, false, now, interval)...)
	}
	for _, row := range agg.TotalsByHost(nowTime) {
		out = append(out, tr.BreakHostSummary(types.TotalsInternal, row.Host, row.Values, 0, false, now, interval)...)
	}
	return out
}
