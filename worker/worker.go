// Package worker implements the single-threaded worker loop: a cooperative
// reactor that resolves one request at a time against its handler table
// over a control endpoint shared with a Controller.
package worker

import (
	"time"

	"github.com/geoffjay/lucena/envelope"
	"github.com/geoffjay/lucena/handler"
	"github.com/geoffjay/lucena/signal"
	czmq "github.com/zeromq/goczmq/v4"
	"github.com/sirupsen/logrus"
)

// PollInterval bounds how long a single poll waits before re-checking
// stopRequested, per the concurrency model's short-timeout-loop rule.
const PollInterval = 100 * time.Millisecond

// Worker is a single-threaded resolver: it matches each request it receives
// on its control endpoint against Handlers and sends back the reply. It
// never runs two requests concurrently.
type Worker struct {
	Identity string
	Handlers *handler.Table

	stopRequested bool
	control       *czmq.Sock
	log           *logrus.Entry

	// attrs exposes additional introspectable attributes beyond
	// stopRequested, e.g. a domain-specific Worker's own counters.
	attrs map[string]func() interface{}
}

// New builds a worker identified by identity. Handlers is seeded here with
// the three built-ins via handler.NewTable(w).
func New(identity string, log *logrus.Entry) *Worker {
	w := &Worker{
		Identity: identity,
		attrs:    map[string]func() interface{}{},
		log:      log,
	}
	w.Handlers = handler.NewTable(w)
	return w
}

// RequestStop implements handler.Owner: invoked by the bound {$signal:"stop"}
// handler.
func (w *Worker) RequestStop() {
	w.stopRequested = true
}

// Attr implements handler.Owner for the eval built-in.
func (w *Worker) Attr(name string) (interface{}, bool) {
	if name == "stopRequested" {
		return w.stopRequested, true
	}
	if fn, ok := w.attrs[name]; ok {
		return fn(), true
	}
	return nil, false
}

// SetAttr registers a named introspectable attribute for $req:eval.
func (w *Worker) SetAttr(name string, get func() interface{}) {
	w.attrs[name] = get
}

// Bind registers an additional handler, on top of the three built-ins.
func (w *Worker) Bind(pattern handler.Message, h handler.Callable) {
	w.Handlers.Bind(pattern, h)
}

// Run connects to controlEndpoint as a DEALER, sends READY, then loops
// resolving one request at a time until a stop handler sets stopRequested.
// ready, if non-nil, is signaled once the control connection is ready.
func (w *Worker) Run(controlEndpoint string, ready *signal.Endpoint) error {
	// The identity must be set before connecting so the Controller's ROUTER
	// can address this worker as w.Identity.
	sock := czmq.NewSock(czmq.Dealer)
	sock.SetOption(czmq.SockSetIdentity(w.Identity))
	if err := sock.Connect(controlEndpoint); err != nil {
		sock.Destroy()
		return err
	}
	w.control = sock
	defer sock.Destroy()

	poller, err := czmq.NewPoller(sock)
	if err != nil {
		return err
	}
	defer poller.Destroy()

	if ready != nil {
		if err := ready.Signal(signal.READY); err != nil {
			return err
		}
	}

	for !w.stopRequested {
		readable, err := poller.Wait(int(PollInterval.Milliseconds()))
		if err != nil {
			continue
		}
		if readable == nil {
			continue
		}

		frames, err := sock.RecvMessage()
		if err != nil {
			if w.log != nil {
				w.log.WithError(err).Warn("worker: recv failed")
			}
			continue
		}
		// The ROUTER consumed the identity frame; the empty delimiter that
		// followed it still arrives first.
		if len(frames) > 0 && len(frames[0]) == 0 {
			frames = frames[1:]
		}

		clientID, corrID, req, err := envelope.DecodeWorkerSideFrames(frames)
		if err != nil {
			if w.log != nil {
				w.log.WithError(err).Warn("worker: dropping malformed envelope")
			}
			continue
		}

		rep := w.Handlers.Resolve(req)

		out, err := envelope.WorkerSideFrames(clientID, corrID, rep)
		if err != nil {
			if w.log != nil {
				w.log.WithError(err).Warn("worker: dropping malformed reply")
			}
			continue
		}
		if err := sock.SendMessage(append([][]byte{envelope.Delim}, out...)); err != nil {
			if w.log != nil {
				w.log.WithError(err).Warn("worker: send failed")
			}
		}
	}
	return nil
}
