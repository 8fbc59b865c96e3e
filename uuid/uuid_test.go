package uuid

import (
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestProcessTokenHasPidPrefix(t *testing.T) {
	token := ProcessToken()
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		t.Fatalf("token %q has no pid:suffix shape", token)
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		t.Fatalf("pid part %q not numeric: %v", parts[0], err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	if len(parts[1]) != 6 {
		t.Errorf("suffix %q not 6 characters", parts[1])
	}
}

func TestProcessTokenIsCached(t *testing.T) {
	a := ProcessToken()
	b := ProcessToken()
	if a != b {
		t.Errorf("ProcessToken() not stable across calls: %q != %q", a, b)
	}
}
