// Package service implements the Service dispatch loop: the long-lived I/O
// loop that owns the external client endpoint, pairs requests with idle
// in-process workers, and routes replies back to their originating client.
package service

import (
	"fmt"
	"time"

	"github.com/geoffjay/lucena/controller"
	"github.com/geoffjay/lucena/envelope"
	"github.com/geoffjay/lucena/signal"
	"github.com/geoffjay/lucena/worker"
	czmq "github.com/zeromq/goczmq/v4"
	"github.com/sirupsen/logrus"
)

// PollInterval bounds each iteration of the dispatch loop.
const PollInterval = 100 * time.Millisecond

// Service is the dispatch loop described in the data model: it owns the
// external router, forwards requests to idle workers in FIFO order, and
// answers $req:eval introspection about its own counters directly.
type Service struct {
	log    *logrus.Entry
	pool   *controller.Controller
	external *czmq.Sock

	stopRequested       bool
	readyWorkers        []string
	pending             int
	totalClientRequests int
}

// New builds an unstarted Service.
func New(log *logrus.Entry) *Service {
	return &Service{log: log, pool: controller.New(log)}
}

// RequestStop implements handler.Owner for a future stop-request path; the
// dispatch loop itself sets stopRequested directly from its control signal,
// this exists so Service can also be introspected/controlled uniformly.
func (s *Service) RequestStop() {
	s.stopRequested = true
}

// Attr implements handler.Owner: exposes totalClientRequests, pending, and
// the current count of idle workers for $req:eval introspection.
func (s *Service) Attr(name string) (interface{}, bool) {
	switch name {
	case "totalClientRequests":
		return s.totalClientRequests, true
	case "pending":
		return s.pending, true
	case "readyWorkers":
		return len(s.readyWorkers), true
	case "stopRequested":
		return s.stopRequested, true
	default:
		return nil, false
	}
}

func isEvalRequest(msg envelope.Message) bool {
	req, _ := msg["$req"].(string)
	return req == "eval"
}

func (s *Service) evalReply(msg envelope.Message) envelope.Message {
	attr, _ := msg["$attr"].(string)
	value, ok := s.Attr(attr)
	reply := envelope.Message{}
	for k, v := range msg {
		reply[k] = v
	}
	if !ok {
		reply["$rep"] = nil
		reply["$error"] = fmt.Sprintf("no such attribute %q", attr)
		return reply
	}
	reply["$rep"] = value
	return reply
}

// Run binds the external router at externalEndpoint, starts numWorkers
// workers, signals READY on control once both are up, and runs the
// dispatch loop until a STOP signal is received and pending reaches zero.
// An optional configure callback is applied to every pool worker before it
// starts serving, letting a caller bind domain-specific handlers.
func (s *Service) Run(numWorkers int, externalEndpoint string, control *signal.Endpoint, configure ...func(*worker.Worker)) error {
	external, err := czmq.NewRouter("@" + externalEndpoint)
	if err != nil {
		return fmt.Errorf("service: bind external router: %w", err)
	}
	s.external = external
	defer external.Destroy()

	identities, err := s.pool.Start(numWorkers, configure...)
	if err != nil {
		return fmt.Errorf("service: start worker pool: %w", err)
	}
	s.readyWorkers = append([]string{}, identities...)

	if control != nil {
		if err := control.Signal(signal.READY); err != nil {
			return err
		}
	}

	poller, err := czmq.NewPoller(control.Sock(), s.external, s.pool.Poller())
	if err != nil {
		return err
	}
	defer poller.Destroy()

	externalRegistered := true
	for {
		wantExternal := len(s.readyWorkers) > 0 && !s.stopRequested
		if wantExternal != externalRegistered {
			if wantExternal {
				poller.Add(s.external)
			} else {
				poller.Remove(s.external)
			}
			externalRegistered = wantExternal
		}

		if s.stopRequested && s.pending == 0 {
			break
		}

		readable, err := poller.Wait(int(PollInterval.Milliseconds()))
		if err != nil || readable == nil {
			continue
		}

		switch readable {
		case control.Sock():
			status, err := control.Wait(0)
			if err == nil && status == signal.STOP {
				s.stopRequested = true
			}
		case s.pool.Poller():
			workerID, clientID, corrID, reply, err := s.pool.Recv()
			if err != nil {
				continue
			}
			s.readyWorkers = append(s.readyWorkers, string(workerID))
			s.pending--
			out, err := envelope.ClientFrames(clientID, corrID, reply)
			if err != nil {
				continue
			}
			_ = s.external.SendMessage(out)
		case s.external:
			frames, err := s.external.RecvMessage()
			if err != nil {
				continue
			}
			clientID, corrID, req, err := envelope.DecodeClientFrames(frames)
			if err != nil {
				if s.log != nil {
					s.log.WithError(err).Warn("service: dropping malformed envelope")
				}
				continue
			}

			if isEvalRequest(req) {
				out, err := envelope.ClientFrames(clientID, corrID, s.evalReply(req))
				if err == nil {
					_ = s.external.SendMessage(out)
				}
				continue
			}

			workerID := s.readyWorkers[0]
			s.readyWorkers = s.readyWorkers[1:]
			if err := s.pool.Send([]byte(workerID), clientID, corrID, req); err != nil {
				continue
			}
			s.pending++
			s.totalClientRequests++
		}
	}

	return s.pool.Stop(5 * time.Second)
}
