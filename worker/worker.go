// Package worker runs the single background goroutine per process
// that periodically ships each registered (CollectionTarget, Sender)
// pair's stats out over the wire. Mirrors the original client
// worker's single daemon thread, restarted automatically across a
// fork (spec.md §4.4).
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sqlalchemy/collectd-pool/collector"
	"github.com/sqlalchemy/collectd-pool/metrics"
	"github.com/sqlalchemy/collectd-pool/sender"
	"github.com/sqlalchemy/collectd-pool/uuid"
	"golang.org/x/sys/unix"
)

func currentPid() int { return unix.Getpid() }

// Tick is how often the worker wakes up to check whether any
// registered pair is due to be sent.
const Tick = 200 * time.Millisecond

// DefaultInterval is how often each registered pair is actually sent,
// absent an override passed to RegisterTarget.
const DefaultInterval = 2 * time.Second

type targetKey struct {
	target *collector.CollectionTarget
	sender *sender.Sender
}

type registration struct {
	interval time.Duration
	lastSent time.Time
}

var (
	mu         sync.Mutex
	targets    = map[targetKey]*registration{}
	startedPid int
	cancel     context.CancelFunc
)

// RegisterTarget adds (target, snd) to the set of pairs the
// background worker ships on every tick, starting the worker
// goroutine if it is not already running for this process. Safe to
// call repeatedly; re-registering the same pair just updates its
// interval.
func RegisterTarget(target *collector.CollectionTarget, snd *sender.Sender, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	mu.Lock()
	key := targetKey{target, snd}
	if _, ok := targets[key]; !ok {
		targets[key] = &registration{interval: interval}
	} else {
		targets[key].interval = interval
	}
	mu.Unlock()
	ensureStarted()
}

// ensureStarted launches the background goroutine, restarting it if
// the process has forked since it was last started (detected via
// pid mismatch, the same check the process token generator uses).
func ensureStarted() {
	mu.Lock()
	defer mu.Unlock()
	pid := currentPid()
	if cancel != nil && startedPid == pid {
		return
	}
	ctx, c := context.WithCancel(context.Background())
	cancel = c
	startedPid = pid
	go run(ctx)
}

// Stop cancels the background goroutine, if running. Intended for
// tests and clean process shutdown.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if cancel != nil {
		cancel()
		cancel = nil
	}
}

func run(ctx context.Context) {
	token := uuid.ProcessToken()
	log.Printf("worker: starting background sender in pid %d, process token %s", startedPid, token)

	ticker := time.NewTicker(Tick)
	defer ticker.Stop()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker: background sender panicked, exiting: %v", r)
		}
	}()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("worker: background sender shutting down")
			return
		case now := <-ticker.C:
			metrics.WorkerTickHistogram.Observe(now.Sub(last).Seconds())
			last = now
			tick(now, token)
		}
	}
}

type dueTarget struct {
	key      targetKey
	interval time.Duration
}

func tick(now time.Time, token string) {
	mu.Lock()
	due := make([]dueTarget, 0, len(targets))
	for key, reg := range targets {
		if now.Sub(reg.lastSent) > reg.interval {
			reg.lastSent = now
			due = append(due, dueTarget{key: key, interval: reg.interval})
		}
	}
	mu.Unlock()

	for _, d := range due {
		key := d.key
		if err := key.sender.Send(key.target, now, d.interval, token); err != nil {
			// Ordinary send errors are logged and the worker keeps running
			// (spec.md §7): a dropped stats packet is not worth crashing
			// the host application over.
			log.Printf("worker: error sending stats for target %q: %v", key.target.Name, err)
		}
	}
}
