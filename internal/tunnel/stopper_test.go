package tunnel

import (
	"errors"
	"testing"

	"cftunnel/internal/errs"
	"cftunnel/internal/model"
)

func TestStopperSelection(t *testing.T) {
	if _, ok := stopperFor("windows").(*pidStopper); !ok {
		t.Fatal("windows must use the pid strategy")
	}
	for _, goos := range []string{"linux", "darwin", "freebsd"} {
		if _, ok := stopperFor(goos).(*portStopper); !ok {
			t.Fatalf("%s must use the port-lookup strategy", goos)
		}
	}
}

func TestPortStopperRejectsUnsetPort(t *testing.T) {
	var s portStopper
	_, err := s.FindTarget(model.Profile{Name: "broken", Hostname: "h"})
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError for port 0, got %v", err)
	}
}

func TestPIDStopperTrustsStoredPID(t *testing.T) {
	var s pidStopper
	pid, err := s.FindTarget(model.Profile{Name: "office", ProcessPID: 1234})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if pid != 1234 {
		t.Fatalf("expected stored pid, got %d", pid)
	}
	pid, err = s.FindTarget(model.Profile{Name: "office"})
	if err != nil || pid != 0 {
		t.Fatalf("stopped profile must yield no target, got %d err %v", pid, err)
	}
}
