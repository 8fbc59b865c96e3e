// example-pool-client is a minimal reference implementation of a host
// application wiring its connection pool's lifecycle events to this
// package's collector.Hooks surface. A real caller would invoke the
// matching EngineCollector method directly from its own pool's
// connect/checkout/checkin/... callbacks instead of this goroutine's
// synthetic event loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"

	"github.com/sqlalchemy/collectd-pool/collector"
	"github.com/sqlalchemy/collectd-pool/poolplugin"
)

var (
	collectdURL = flag.String("url", "", "database-style URL whose query string may carry collectd_host/collectd_port/collectd_report_host/collectd_program_name overrides")
	reportEvery = flag.Duration("report-interval", 2*time.Second, "how often this process ships its pool stats")

	mainCtx, mainCancel = context.WithCancel(context.Background())
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not get args from environment variables")
	defer mainCancel()

	var u *url.URL
	if *collectdURL != "" {
		parsed, err := url.Parse(*collectdURL)
		rtx.Must(err, "Could not parse -url %q", *collectdURL)
		u = parsed
	}

	ec, err := poolplugin.Start(u, poolplugin.Config{ProgramName: "example-pool-client"}, *reportEvery)
	rtx.Must(err, "Could not start pool plugin")
	defer ec.Dispose()

	go simulatePool(mainCtx, ec)

	<-mainCtx.Done()
	fmt.Println("ok")
}

// simulatePool stands in for a real connection pool's own event
// callbacks: it opens a connection, checks it out, then checks it back
// in, so the reporting path has something nonzero to ship.
func simulatePool(ctx context.Context, ec *collector.EngineCollector) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	var next int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := next
			next++
			ec.Connect(id)
			ec.Checkout(id)
			log.Printf("example-pool-client: connection %d checked out", id)
			ec.Checkin(id)
		}
	}
}
