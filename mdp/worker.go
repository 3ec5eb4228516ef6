package mdp

// Majordomo Protocol Worker API.
// Implements the MDP/Worker spec at http://rfc.zeromq.org/spec:7.

import (
	"fmt"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// Worker is a remote MDP worker: a process that connects a DEALER socket to
// a Broker, registers for a named service, and exchanges REQUEST/REPLY
// frames with it. It is distinct from the in-process worker package, which
// resolves requests against a handler table over a local control endpoint;
// this Worker hands raw request frames to its caller and does not use a
// handler table.
type Worker struct {
	broker  string
	service string
	worker  *czmq.Sock // socket to broker
	poller  *czmq.Poller

	heartbeatAt time.Time     // when to send HEARTBEAT
	liveness    int           // how many attempts left
	heartbeat   time.Duration // heartbeat delay
	reconnect   time.Duration // reconnect delay

	expectReply bool   // false only at start
	replyTo     string // return identity, if any

	shutdown bool
}

// NewWorker creates a new worker connected to broker and registered for
// service.
func NewWorker(broker, service string) (w *Worker, err error) {
	w = &Worker{
		broker:    broker,
		service:   service,
		heartbeat: 2500 * time.Millisecond,
		reconnect: 2500 * time.Millisecond,
	}

	err = w.ConnectToBroker()
	runtime.SetFinalizer(w, (*Worker).Close)

	return
}

// SendToBroker sends a command frame, with an empty leading delimiter as
// required by DEALER-to-ROUTER framing (the ROUTER side prepends the
// worker's routing identity automatically on receipt).
func (w *Worker) SendToBroker(command string, option string, msg []string) error {
	n := 3
	if option != "" {
		n++
	}
	m := make([]string, n, n+len(msg))
	m = append(m, msg...)

	if option != "" {
		m[3] = option
	}
	m[2] = command
	m[1] = MdpwWorker
	m[0] = ""

	err := w.worker.SendMessage(stringArrayToByte2D(m))
	if err != nil {
		log.WithFields(log.Fields{"command": command, "error": err}).Error("failed to send message to broker")
	} else {
		log.WithFields(log.Fields{"command": command, "frames": len(m)}).Debug("sent message to broker")
	}
	return err
}

// ConnectToBroker connects or reconnects to the broker and re-registers the
// worker's service.
func (w *Worker) ConnectToBroker() (err error) {
	w.Close()

	if w.worker, err = czmq.NewDealer(w.broker); err != nil {
		log.WithError(err).Error("failed to create dealer")
		return
	}
	if err = w.worker.Connect(w.broker); err != nil {
		log.WithError(err).Error("failed to connect to broker")
		return
	}
	if w.poller, err = czmq.NewPoller(); err != nil {
		log.WithError(err).Error("failed to create socket poller")
		return
	}
	if err = w.poller.Add(w.worker); err != nil {
		log.WithError(err).Error("failed to add worker socket to poller")
		return
	}

	if err = w.SendToBroker(MdpwReady, w.service, []string{}); err != nil {
		log.WithError(err).Error("failed to send ready message to broker")
		return
	}

	w.liveness = HeartbeatLiveness
	w.heartbeatAt = time.Now().Add(w.heartbeat)

	log.WithFields(log.Fields{"broker": w.broker, "service": w.service}).Info("worker connected to broker")
	return
}

// Shutdown requests that Recv return after its current poll timeout.
func (w *Worker) Shutdown() {
	w.shutdown = true
	time.Sleep(w.heartbeat)
}

// Terminated reports whether Shutdown has been requested.
func (w *Worker) Terminated() bool {
	return w.shutdown
}

// Close destroys the worker's broker socket.
func (w *Worker) Close() {
	if w.worker != nil {
		w.worker.Destroy()
		w.worker = nil
	}
}

// SetHeartbeat sets the heartbeat delay.
func (w *Worker) SetHeartbeat(heartbeat time.Duration) {
	w.heartbeat = heartbeat
}

// SetReconnect sets the reconnection delay.
func (w *Worker) SetReconnect(reconnect time.Duration) {
	w.reconnect = reconnect
}

// Reply sends reply to the client the worker is currently answering.
func (w *Worker) Reply(reply []string) error {
	if w.replyTo == "" {
		return fmt.Errorf("no recipient provided")
	}
	m := make([]string, 1, 1+len(reply))
	m = append(m, reply...)
	m[0] = w.replyTo
	return w.SendToBroker(MdpwReply, "", m)
}

// Recv sends reply (if any) to the broker, then waits for the next
// REQUEST, handling HEARTBEAT and DISCONNECT transparently and
// reconnecting once liveness is exhausted.
func (w *Worker) Recv(reply []string) (msg []string, err error) {
	if len(reply) > 0 {
		if err := w.Reply(reply); err != nil {
			log.WithError(err).Error("failed to send reply")
			return nil, err
		}
	}

	w.expectReply = true

	for {
		socket, perr := w.poller.Wait(int(w.heartbeat / time.Millisecond))
		if perr != nil {
			log.WithError(perr).Error("worker poller failed")
			break
		}
		if w.shutdown {
			break
		}

		if socket == nil {
			w.liveness--
			if w.liveness == 0 {
				time.Sleep(w.reconnect)
				if err = w.ConnectToBroker(); err != nil {
					log.WithError(err).Error("worker failed to reconnect to broker")
				}
			}
		} else {
			recv, _ := socket.RecvMessage()
			recvMsg := byte2DToStringArray(recv)

			if len(recvMsg) == 0 {
				w.liveness--
				if w.liveness == 0 {
					time.Sleep(w.reconnect)
					if err = w.ConnectToBroker(); err != nil {
						log.WithError(err).Error("worker failed to reconnect to broker")
					}
				}
			} else {
				w.liveness = HeartbeatLiveness

				if err := ValidateWorkerMessage(recvMsg); err != nil {
					log.WithError(err).Error("received invalid worker message")
					continue
				}

				command := recvMsg[2]
				body := recvMsg[3:]

				switch command {
				case MdpwRequest:
					w.replyTo, msg = unwrap(body)
					return msg, nil
				case MdpwHeartbeat:
					log.Trace("worker received a heartbeat")
				case MdpwDisconnect:
					if err = w.ConnectToBroker(); err != nil {
						log.WithError(err).Error("worker failed to reconnect to broker")
					}
				default:
					log.WithField("command", command).Warn("received unknown command")
				}
			}
		}

		if time.Now().After(w.heartbeatAt) {
			if err = w.SendToBroker(MdpwHeartbeat, "", []string{}); err != nil {
				log.WithError(err).Error("worker failed to send heartbeat")
			}
			w.heartbeatAt = time.Now().Add(w.heartbeat)
		}
	}

	log.Debug("worker recv loop exited")
	return
}
