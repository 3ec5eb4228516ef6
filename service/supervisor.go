package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/geoffjay/lucena/signal"
	"github.com/geoffjay/lucena/worker"
	"github.com/sirupsen/logrus"
)

// ServiceAlreadyStartedError is returned by Supervisor.Start on a double
// start.
type ServiceAlreadyStartedError struct{}

func (ServiceAlreadyStartedError) Error() string { return "service: already started" }

// ServiceNotStartedError is returned by Supervisor.Attr when no Service
// thread exists.
type ServiceNotStartedError struct{}

func (ServiceNotStartedError) Error() string { return "service: not started" }

// StartTimeout bounds how long Start waits for the Service's READY signal.
const StartTimeout = 5 * time.Second

// Supervisor drives a single Service thread, mirroring the Worker
// supervisor's start/stop lifecycle shape. It has no Send/Recv; Attr is its
// only call on a running Service.
type Supervisor struct {
	log *logrus.Entry

	mu      sync.Mutex
	started bool
	svc     *Service
	sup     *signal.Endpoint
	wg      sync.WaitGroup
}

// NewSupervisor creates an unstarted Supervisor.
func NewSupervisor(log *logrus.Entry) *Supervisor {
	return &Supervisor{log: log}
}

// Start spawns the Service thread with numWorkers workers bound to
// externalEndpoint, and blocks until it signals READY. An optional
// configure callback is applied to every pool worker before it starts
// serving, letting a caller bind domain-specific handlers.
func (s *Supervisor) Start(numWorkers int, externalEndpoint string, configure ...func(*worker.Worker)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ServiceAlreadyStartedError{}
	}

	sup, sub, err := signal.NewPair()
	if err != nil {
		return fmt.Errorf("service supervisor: signal pair: %w", err)
	}

	svc := New(s.log)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := svc.Run(numWorkers, externalEndpoint, sub, configure...); err != nil && s.log != nil {
			s.log.WithError(err).Warn("service exited with error")
		}
	}()

	status, err := sup.Wait(StartTimeout)
	if err != nil {
		return fmt.Errorf("service supervisor: waiting for ready: %w", err)
	}
	if status != signal.READY {
		return fmt.Errorf("service supervisor: unexpected status %x", status)
	}

	s.svc = svc
	s.sup = sup
	s.started = true
	return nil
}

// Stop signals STOP and joins the Service thread within timeout. It is a
// no-op if the Service is not running, and permits a subsequent Start once
// it returns.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	if err := s.sup.Signal(signal.STOP); err != nil && s.log != nil {
		s.log.WithError(err).Warn("service supervisor: stop signal failed")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		if s.log != nil {
			s.log.Warn("service supervisor: stop timed out joining service thread")
		}
	}

	s.sup.Close()
	s.sup = nil
	s.svc = nil
	s.started = false
	return nil
}

// Attr reads an introspectable attribute off the running Service, mirroring
// the $req:eval path for in-process callers. Fails with
// ServiceNotStartedError if the Service is not running.
func (s *Supervisor) Attr(name string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ServiceNotStartedError{}
	}
	v, _ := s.svc.Attr(name)
	return v, nil
}
