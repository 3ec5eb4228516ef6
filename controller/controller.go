// Package controller implements the Worker supervisor: it spawns a pool of
// Workers on independent threads, handshakes their readiness, routes
// requests to a chosen worker, and stops them as a unit.
package controller

import (
	"fmt"
	"sync"
	"time"

	"github.com/geoffjay/lucena/envelope"
	"github.com/geoffjay/lucena/signal"
	"github.com/geoffjay/lucena/worker"
	czmq "github.com/zeromq/goczmq/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StartTimeout bounds how long Start waits for each worker's READY signal.
const StartTimeout = 5 * time.Second

// AlreadyStartedError is returned by Start when a pool is already running.
type AlreadyStartedError struct{}

func (AlreadyStartedError) Error() string { return "controller: already started" }

// NotStartedError is returned by Send/Recv when no pool is running.
type NotStartedError struct{}

func (NotStartedError) Error() string { return "controller: not started" }

// InvalidArgumentError is returned by Start for a non-positive worker count.
type InvalidArgumentError struct {
	N int
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("controller: invalid worker count %d", e.N)
}

type workerHandle struct {
	identity string
	supSide  *signal.Endpoint
}

// Controller is the Worker supervisor. It owns a ROUTER endpoint that
// worker DEALER sockets connect to.
type Controller struct {
	log    *logrus.Entry
	router *czmq.Sock
	endpoint string

	mu      sync.Mutex
	started bool
	workers []*workerHandle
	wg      sync.WaitGroup
}

// New creates an unstarted Controller.
func New(log *logrus.Entry) *Controller {
	return &Controller{log: log}
}

// Start spawns N workers, each on its own thread, and blocks until every
// one has signaled READY. It returns the ordered list of worker identities.
// An optional configure callback runs against each worker before it starts
// serving, letting a caller bind domain-specific handlers (e.g. a MathWorker
// binding {"$req":"sum"}) on top of the three built-ins every worker is
// seeded with.
func (c *Controller) Start(n int, configure ...func(*worker.Worker)) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n < 1 {
		return nil, InvalidArgumentError{N: n}
	}
	if c.started {
		return nil, AlreadyStartedError{}
	}

	var configureWorker func(*worker.Worker)
	if len(configure) > 0 {
		configureWorker = configure[0]
	}

	c.endpoint = "inproc://lucena-controller-" + uuid.NewString()
	router, err := czmq.NewRouter("@" + c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("controller: bind router: %w", err)
	}
	c.router = router

	identities := make([]string, 0, n)
	for i := 0; i < n; i++ {
		identity := fmt.Sprintf("worker#%d", i)
		sup, sub, err := signal.NewPair()
		if err != nil {
			return nil, fmt.Errorf("controller: signal pair: %w", err)
		}

		w := worker.New(identity, c.log)
		if configureWorker != nil {
			configureWorker(w)
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := w.Run(c.endpoint, sub); err != nil && c.log != nil {
				c.log.WithError(err).WithField("worker", identity).Warn("worker exited with error")
			}
		}()

		status, err := sup.Wait(StartTimeout)
		if err != nil {
			return nil, fmt.Errorf("controller: waiting for %s ready: %w", identity, err)
		}
		if status != signal.READY {
			return nil, fmt.Errorf("controller: %s sent unexpected status %x", identity, status)
		}

		c.workers = append(c.workers, &workerHandle{identity: identity, supSide: sup})
		identities = append(identities, identity)
	}

	c.started = true
	return identities, nil
}

// Stop sends {$signal:"stop"} to every worker, awaits its {$rep:"OK"} ack,
// and joins all worker threads within timeout. It is a no-op if the pool
// is not running, and permits a subsequent Start once it returns.
func (c *Controller) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	for _, h := range c.workers {
		frames, err := envelope.WorkerFrames([]byte(h.identity), []byte(""), []byte(""), envelope.Message{"$signal": "stop"})
		if err != nil {
			continue
		}
		if err := c.router.SendMessage(frames); err != nil && c.log != nil {
			c.log.WithError(err).WithField("worker", h.identity).Warn("controller: stop send failed")
		}
	}

	deadline := time.Now().Add(timeout)
	pending := make(map[string]bool, len(c.workers))
	for _, h := range c.workers {
		pending[h.identity] = true
	}
	for len(pending) > 0 && time.Now().Before(deadline) {
		if err := c.router.SetOption(czmq.SockSetRcvtimeo(100)); err != nil {
			break
		}
		frames, err := c.router.RecvMessage()
		if err != nil {
			continue
		}
		workerID, _, _, msg, err := envelope.DecodeWorkerFrames(frames)
		if err != nil {
			continue
		}
		if msg["$rep"] == "OK" {
			delete(pending, string(workerID))
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		if c.log != nil {
			c.log.Warn("controller: stop timed out joining worker threads")
		}
	}

	for _, h := range c.workers {
		h.supSide.Close()
	}
	c.router.Destroy()
	c.router = nil
	c.workers = nil
	c.started = false
	return nil
}

// Send passes a request envelope through to workerID via the router.
func (c *Controller) Send(workerID, clientID, correlationID []byte, message envelope.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return NotStartedError{}
	}
	frames, err := envelope.WorkerFrames(workerID, clientID, correlationID, message)
	if err != nil {
		return err
	}
	return c.router.SendMessage(frames)
}

// Recv reads one envelope from the router: a worker reply. READY signals
// travel over each worker's signal pair, not the router.
func (c *Controller) Recv() (workerID, clientID, correlationID []byte, message envelope.Message, err error) {
	c.mu.Lock()
	router := c.router
	started := c.started
	c.mu.Unlock()
	if !started {
		return nil, nil, nil, nil, NotStartedError{}
	}
	frames, err := router.RecvMessage()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return envelope.DecodeWorkerFrames(frames)
}

// Endpoint returns the router endpoint workers connect to. Empty until
// Start has been called.
func (c *Controller) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Poller exposes the underlying router socket for a Service's poll loop.
func (c *Controller) Poller() *czmq.Sock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.router
}
