// Package uuid builds the process token that identifies a single
// running process to the server: "pid:uuid6" (spec.md §4.4). It is
// cached so repeated calls from the same process return the same
// string, and is fork-aware: a child process gets a fresh token
// rather than inheriting its parent's.
package uuid

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	mu           sync.Mutex
	cachedToken  string
	cachedForPid int
)

// ProcessToken returns the "pid:uuid6" token for the current process,
// generating and caching a fresh UUID suffix the first time it is
// called, or again after a fork changes the pid (see worker.ensureStarted).
func ProcessToken() string {
	mu.Lock()
	defer mu.Unlock()
	pid := os.Getpid()
	if cachedToken == "" || cachedForPid != pid {
		cachedToken = fmt.Sprintf("%d:%s", pid, shortUUID())
		cachedForPid = pid
	}
	return cachedToken
}

// shortUUID returns the first six hex characters of a fresh random
// UUID: enough entropy to disambiguate processes sharing a pid across
// reboots/namespaces without the verbosity of a full UUID on every
// packet's type-instance field.
func shortUUID() string {
	id := uuid.New()
	return id.String()[:6]
}
