package service

import (
	"testing"
	"time"
)

func TestSupervisorStopIsNoOpWhenNotStarted(t *testing.T) {
	s := NewSupervisor(nil)
	if err := s.Stop(time.Second); err != nil {
		t.Fatalf("expected Stop on unstarted supervisor to be a no-op, got %v", err)
	}
}

func TestSupervisorAttrNotStarted(t *testing.T) {
	s := NewSupervisor(nil)
	if _, err := s.Attr("totalClientRequests"); err == nil {
		t.Fatalf("expected ServiceNotStartedError")
	} else if _, ok := err.(ServiceNotStartedError); !ok {
		t.Fatalf("expected ServiceNotStartedError, got %T", err)
	}
}

// TestSupervisorStartStopRestart exercises the repeated start/stop
// lifecycle from §8; it requires a live libzmq/czmq runtime.
func TestSupervisorStartStopRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a live czmq runtime")
	}
	s := NewSupervisor(nil)
	for i := 0; i < 2; i++ {
		if err := s.Start(2, "inproc://lucena-service-test"); err != nil {
			t.Fatalf("Start: %v", err)
		}
		if err := s.Start(2, "inproc://lucena-service-test"); err == nil {
			t.Fatalf("expected ServiceAlreadyStartedError on double start")
		}
		if err := s.Stop(2 * time.Second); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
}
