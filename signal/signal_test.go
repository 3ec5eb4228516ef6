package signal

import (
	"testing"
	"time"
)

func TestIsSignal(t *testing.T) {
	frame := make([]byte, 4)
	frame[3] = 0x7f
	if !IsSignal(frame) {
		t.Fatalf("expected signal frame to be recognized")
	}
	if IsSignal([]byte{0, 0, 0}) {
		t.Fatalf("3-byte frame must not be a signal")
	}
	if IsSignal([]byte{1, 2, 3, 4}) {
		t.Fatalf("frame with non-0x7f high byte must not be a signal")
	}
}

func TestPairReadyStop(t *testing.T) {
	supervisor, supervised, err := NewPair()
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	defer supervisor.Close()
	defer supervised.Close()

	done := make(chan error, 1)
	go func() {
		done <- supervised.Signal(READY)
	}()
	status, err := supervisor.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != READY {
		t.Fatalf("expected READY, got %x", status)
	}
	if err := <-done; err != nil {
		t.Fatalf("Signal: %v", err)
	}

	if err := supervisor.Signal(STOP); err != nil {
		t.Fatalf("Signal STOP: %v", err)
	}
	status, err = supervised.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != STOP {
		t.Fatalf("expected STOP, got %x", status)
	}
}

func TestWaitTimeout(t *testing.T) {
	supervisor, supervised, err := NewPair()
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	defer supervisor.Close()
	defer supervised.Close()

	_, err = supervisor.Wait(50 * time.Millisecond)
	if _, ok := err.(TimeoutError); !ok {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}
