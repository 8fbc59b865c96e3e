// collectd-dashboard receives the same sqlalchemy_pool/sqlalchemy_totals
// internal records as collectd-server and keeps a live per-(host,
// program) row model (statmodel.Stat) up to date. Rendering those rows
// to a terminal is explicitly out of scope (spec.md Non-goals); this
// binary is a black-box-consumable data source for whatever renders
// them, logging a one-line summary each cycle in place of a UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/sqlalchemy/collectd-pool/aggregator"
	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/statmodel"
	"github.com/sqlalchemy/collectd-pool/transport"
	"github.com/sqlalchemy/collectd-pool/types"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	host     = flag.String("host", "localhost", "address to listen for collectd packets on")
	port     = flag.String("port", "25828", "UDP port to listen for collectd packets on")
	interval = flag.Duration("report-interval", 10*time.Second, "how often the row model is refreshed from the aggregator")

	ctx, cancel = context.WithCancel(context.Background())
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer cancel()

	receiver := transport.NewReceiver(protocol.NewDecoder(types.Internal...))
	rtx.Must(receiver.Listen(fmt.Sprintf("%s:%s", *host, *port)), "Could not listen on %s:%s", *host, *port)

	agg := aggregator.New()
	stat := statmodel.New()

	go func() {
		if err := receiver.Serve(ctx); err != nil {
			log.Printf("collectd-dashboard: receive loop exited: %v", err)
		}
	}()

	go func() {
		for v := range receiver.ValuesC {
			if err := agg.Ingest(v); err != nil {
				log.Printf("collectd-dashboard: dropping record from %s/%s: %v", v.Host, v.PluginInstance, err)
			}
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			receiver.Close()
			fmt.Println("ok")
			return
		case now := <-ticker.C:
			stat.Update(agg, now, *interval)
			log.Printf("dashboard: %d hosts, %d processes, %d checked out, %.2f checkouts/sec",
				stat.HostCount, stat.ProcessCount, stat.CheckoutCount, stat.CheckoutsPerSecond)
		}
	}
}
