// Package types holds the fixed catalogue of collectd Types this
// pipeline speaks: "internal" types exchanged between a pool client
// and this package's server, and "external" types the server
// re-emits so any collectd writer plugin can consume them.
package types

import "github.com/sqlalchemy/collectd-pool/protocol"

// PluginName is the collectd plugin name carried on every message.
const PluginName = "sqlalchemy"

// Internal types, private to the client<->server wire protocol.

// PoolInternal carries the current size of each pool bucket. These
// numbers go up and down, so every field is a GAUGE.
var PoolInternal = protocol.NewType("sqlalchemy_pool",
	protocol.Field{Name: "numpools", Kind: protocol.Gauge},
	protocol.Field{Name: "checkedout", Kind: protocol.Gauge},
	protocol.Field{Name: "checkedin", Kind: protocol.Gauge},
	protocol.Field{Name: "detached", Kind: protocol.Gauge},
	protocol.Field{Name: "connections", Kind: protocol.Gauge},
)

// ProcessInternal carries the live process count for a (host, program)
// pair. It is never sent by a client; the aggregator synthesizes it.
var ProcessInternal = protocol.NewType("sqlalchemy_process",
	protocol.Field{Name: "numprocs", Kind: protocol.Gauge},
)

// TotalsInternal carries monotonic counters; the server reports these
// as DERIVE so consumers see a rate rather than a running total.
var TotalsInternal = protocol.NewType("sqlalchemy_totals",
	protocol.Field{Name: "checkouts", Kind: protocol.Derive},
	protocol.Field{Name: "invalidated", Kind: protocol.Derive},
	protocol.Field{Name: "connects", Kind: protocol.Derive},
	protocol.Field{Name: "disconnects", Kind: protocol.Derive},
)

// External types, public collectd types from types.db: a generic
// single-GAUGE "count" and a single-DERIVE "derive".
var (
	CountExternal  = protocol.NewType("count", protocol.Field{Name: "value", Kind: protocol.Gauge})
	DeriveExternal = protocol.NewType("derive", protocol.Field{Name: "value", Kind: protocol.Derive})
)

// Internal is the set of types a client Encoder/server Decoder must
// know in order to speak the client<->server leg of the protocol.
var Internal = []*protocol.Type{PoolInternal, ProcessInternal, TotalsInternal}

// External is the set of types the server emits downstream.
var External = []*protocol.Type{CountExternal, DeriveExternal}
