package controller

import (
	"testing"
	"time"
)

func TestStartInvalidArgument(t *testing.T) {
	c := New(nil)
	if _, err := c.Start(0); err == nil {
		t.Fatalf("expected InvalidArgumentError for N=0")
	} else if _, ok := err.(InvalidArgumentError); !ok {
		t.Fatalf("expected InvalidArgumentError for N=0, got %T", err)
	}
	if _, err := c.Start(-1); err == nil {
		t.Fatalf("expected InvalidArgumentError for N=-1")
	} else if _, ok := err.(InvalidArgumentError); !ok {
		t.Fatalf("expected InvalidArgumentError for N=-1, got %T", err)
	}
}

func TestSendRecvNotStartedBeforeStart(t *testing.T) {
	c := New(nil)
	if err := c.Send([]byte("worker#0"), []byte("client"), []byte("corr"), map[string]interface{}{}); err == nil {
		t.Fatalf("expected NotStartedError")
	} else if _, ok := err.(NotStartedError); !ok {
		t.Fatalf("expected NotStartedError, got %T", err)
	}
	if _, _, _, _, err := c.Recv(); err == nil {
		t.Fatalf("expected NotStartedError")
	} else if _, ok := err.(NotStartedError); !ok {
		t.Fatalf("expected NotStartedError, got %T", err)
	}
}

func TestStopIsNoOpWhenNotStarted(t *testing.T) {
	c := New(nil)
	if err := c.Stop(time.Second); err != nil {
		t.Fatalf("expected Stop on unstarted controller to be a no-op, got %v", err)
	}
}

// TestStartStopRestart exercises the full lifecycle described in §8:
// start/stop/start/stop must succeed repeatedly. It requires a live
// libzmq/czmq runtime to actually spawn worker threads.
func TestStartStopRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a live czmq runtime")
	}
	c := New(nil)
	for i := 0; i < 2; i++ {
		ids, err := c.Start(2)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 worker identities, got %v", ids)
		}
		if _, err := c.Start(1); err == nil {
			t.Fatalf("expected AlreadyStartedError on double start")
		} else if _, ok := err.(AlreadyStartedError); !ok {
			t.Fatalf("expected AlreadyStartedError, got %T", err)
		}
		if err := c.Stop(2 * time.Second); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
}
