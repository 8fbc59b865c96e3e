// collectd-server receives sqlalchemy_pool/sqlalchemy_totals internal
// records from one or more client processes, aggregates them across
// every reporting process, and re-emits per-program and per-host
// "count"/"derive" records any collectd writer plugin can already
// consume (spec.md §4.6, §4.7).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"

	"github.com/sqlalchemy/collectd-pool/aggregator"
	"github.com/sqlalchemy/collectd-pool/protocol"
	"github.com/sqlalchemy/collectd-pool/statmodel"
	"github.com/sqlalchemy/collectd-pool/stream"
	"github.com/sqlalchemy/collectd-pool/transport"
	"github.com/sqlalchemy/collectd-pool/types"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	listenAddr = flag.String("listen", ":25827", "UDP address to receive sqlalchemy_pool/sqlalchemy_totals packets on")
	sinkAddr   = flag.String("sink", "localhost:25826", "UDP address of the collectd daemon to re-emit external count/derive records to")
	forward    = flag.String("forward", "", "if set, a secondary UDP destination every raw inbound packet is also copied to unparsed")
	interval   = flag.Duration("report-interval", 10*time.Second, "how often the aggregator's summaries are translated and re-emitted")
	promAddr   = flag.String("prom", ":9090", "Prometheus metrics export address and port")
	csvPath    = flag.String("csv-snapshot", "", "if set, periodically overwrite this file with a CSV dump of the current per-(host,program) table")

	ctx, cancel = context.WithCancel(context.Background())
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer cancel()

	promSrv := prometheusx.MustStartPrometheus(*promAddr)
	defer promSrv.Shutdown(ctx)

	receiver := transport.NewReceiver(protocol.NewDecoder(types.Internal...))
	if *forward != "" {
		receiver.Forward = transport.ClientForAddr(*forward)
	}
	rtx.Must(receiver.Listen(*listenAddr), "Could not listen on %s", *listenAddr)

	agg := aggregator.New()
	translator := stream.NewTranslator(types.PluginName)
	sink := transport.ClientForAddr(*sinkAddr)
	externalEncoder := protocol.NewEncoder(types.External...)

	var stat *statmodel.Stat
	if *csvPath != "" {
		stat = statmodel.New()
	}

	go func() {
		if err := receiver.Serve(ctx); err != nil {
			log.Printf("collectd-server: receive loop exited: %v", err)
		}
	}()

	go func() {
		for v := range receiver.ValuesC {
			if err := agg.Ingest(v); err != nil {
				log.Printf("collectd-server: dropping record from %s/%s: %v", v.Host, v.PluginInstance, err)
			}
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			receiver.Close()
			return
		case now := <-ticker.C:
			records := translator.TranslateSnapshot(agg, now.Unix(), int64(*interval/time.Second))
			for _, rec := range records {
				wire, err := externalEncoder.Encode(rec)
				if err != nil {
					log.Printf("collectd-server: could not encode external record: %v", err)
					continue
				}
				if err := sink.Send(wire); err != nil {
					log.Printf("collectd-server: could not forward to sink %s: %v", *sinkAddr, err)
				}
			}
			if stat != nil {
				stat.Update(agg, now, *interval)
				dumpCSV(*csvPath, stat.Rows())
			}
		}
	}
}

func dumpCSV(path string, rows []*statmodel.HostProg) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("collectd-server: could not open csv snapshot %s: %v", path, err)
		return
	}
	defer f.Close()
	if err := gocsv.Marshal(rows, f); err != nil {
		log.Printf("collectd-server: could not write csv snapshot: %v", err)
	}
}
