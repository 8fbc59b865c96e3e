// Package poolplugin is the glue a host application calls once, at
// engine-creation time, to start reporting a connection pool's stats:
// the Go analogue of client/plugin.py's Plugin.engine_created /
// start_plugin. It resolves configuration (§4.4, spec.md §6),
// attaches a collector.EngineCollector to the named pool target, and
// registers it with the background worker.
package poolplugin

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/sqlalchemy/collectd-pool/collector"
	"github.com/sqlalchemy/collectd-pool/config"
	"github.com/sqlalchemy/collectd-pool/sender"
	"github.com/sqlalchemy/collectd-pool/worker"
)

// DefaultCollectdAddr is where a client ships stats absent any
// override: this system's own server plugin, not the stock collectd
// daemon (spec.md §6: 25826 vs 25827).
const DefaultCollectdAddr = "localhost:25827"

// Config carries the keyword/flag half of a plugin's configuration;
// zero values mean "unset", so the host app can set only what it cares
// about and let everything else default or come from the URL.
type Config struct {
	CollectdHost string
	CollectdPort string
	ReportHost   string
	ProgramName  string
}

func (c Config) overrides() map[string]string {
	m := map[string]string{}
	if c.CollectdHost != "" {
		m["collectd_host"] = c.CollectdHost
	}
	if c.CollectdPort != "" {
		m["collectd_port"] = c.CollectdPort
	}
	if c.ReportHost != "" {
		m["collectd_report_host"] = c.ReportHost
	}
	if c.ProgramName != "" {
		m["collectd_program_name"] = c.ProgramName
	}
	return m
}

// Start resolves configuration from engineURL's query string and cfg
// (URL values win, per spec.md §6), attaches a fresh EngineCollector
// to the named pool target, and registers it with the background
// worker at the given reporting interval. The returned EngineCollector
// implements collector.Hooks; the host pool wires its own lifecycle
// events to its methods directly. Call Dispose on the collector when
// the pool shuts down.
func Start(engineURL *url.URL, cfg Config, interval time.Duration) (*collector.EngineCollector, error) {
	resolved, _, _ := config.Resolve(engineURL, cfg.overrides(),
		"collectd_host", "collectd_port", "collectd_report_host", "collectd_program_name")

	reportHost := resolved["collectd_report_host"]
	if reportHost == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("poolplugin: could not determine hostname: %w", err)
		}
		reportHost = h
	}

	progName := resolved["collectd_program_name"]
	if progName == "" {
		progName = os.Args[0]
	}

	addr := DefaultCollectdAddr
	if resolved["collectd_host"] != "" {
		port := resolved["collectd_port"]
		if port == "" {
			port = "25827"
		}
		addr = resolved["collectd_host"] + ":" + port
	}

	target := collector.TargetForName(progName)
	engineCollector := collector.NewEngineCollector(target, progName)

	snd := sender.GetSender(reportHost, progName, addr)
	worker.RegisterTarget(target, snd, interval)

	return engineCollector, nil
}
