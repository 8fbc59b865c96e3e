// Package sender builds and ships the per-process "sqlalchemy_pool"
// and "sqlalchemy_totals" internal records to a collectd destination,
// the client-side half of the wire protocol.
package sender

import (
	"sync"
	"time"

	"github.com/sqlalchemy/collectd-pool/collector"
	"github.com/sqlalchemy/collectd-pool/metrics"
	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/transport"
	"github.com/sqlalchemy/collectd-pool/types"
)

var encoder = protocol.NewEncoder(types.Internal...)

// Sender packages one (hostname, program) identity's records for one
// collectd destination and ships them over a cached transport.Client.
type Sender struct {
	Hostname string
	Program  string
	Plugin   string

	addr   string
	client *transport.Client
}

type senderKey struct {
	hostname, program, addr string
}

var (
	sendersMu sync.Mutex
	senders   = map[senderKey]*Sender{}
)

// GetSender returns the process-wide Sender for this (hostname,
// program, destination) triple, creating it on first use, mirroring
// Sender.get_sender's registry-by-key cache in the original client.
func GetSender(hostname, program, addr string) *Sender {
	key := senderKey{hostname, program, addr}
	sendersMu.Lock()
	defer sendersMu.Unlock()
	s, ok := senders[key]
	if !ok {
		s = &Sender{
			Hostname: hostname,
			Program:  program,
			Plugin:   types.PluginName,
			addr:     addr,
			client:   transport.ClientForAddr(addr),
		}
		senders[key] = s
	}
	return s
}

// Send builds and transmits the pool_internal and totals_internal
// records for target, tagged with processToken as the plugin
// instance's type_instance.
func (s *Sender) Send(target *collector.CollectionTarget, now time.Time, interval time.Duration, processToken string) error {
	base := protocol.Values{
		Host:           s.Hostname,
		Plugin:         s.Plugin,
		PluginInstance: s.Program,
		TypeInstance:   processToken,
		Interval:       int64(interval / time.Second),
		Time:           now.Unix(),
	}

	pool := base
	pool.Type = types.PoolInternal.Name
	pool.Values = []float64{
		float64(target.NumPools()),
		float64(target.NumCheckedOut()),
		float64(target.NumCheckedIn()),
		float64(target.NumDetached()),
		float64(target.NumConnections()),
	}
	if err := s.sendOne(&pool); err != nil {
		return err
	}

	checkouts, invalidated, connects, disconnects := target.Totals()
	totals := base
	totals.Type = types.TotalsInternal.Name
	totals.Values = []float64{
		float64(checkouts),
		float64(invalidated),
		float64(connects),
		float64(disconnects),
	}
	return s.sendOne(&totals)
}

func (s *Sender) sendOne(v *protocol.Values) error {
	wire, err := encoder.Encode(v)
	if err != nil {
		return err
	}
	if err := s.client.Send(wire); err != nil {
		metrics.SendErrorCount.With(map[string]string{"target": s.addr}).Inc()
		return err
	}
	metrics.PacketsSentCount.With(map[string]string{"type": v.Type}).Inc()
	return nil
}
