package mdp

import (
	"fmt"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"
)

// Broker defines a single broker instance: a standalone process-level
// router that mediates between remote clients and remote workers by
// service name.
type Broker struct {
	Socket       *czmq.Sock               // socket for clients & workers
	endpoint     string                   // broker binds to this endpoint
	services     map[string]*Service      // hash of known services
	workers      map[string]*brokerWorker // hash of known workers
	Waiting      []*brokerWorker          // idle workers, oldest first
	HeartbeatAt  time.Time                // when to send the next heartbeat round
	isBound      bool
	ErrorChannel chan error

	mmi *MMIHandler
}

// Service defines a single named service as seen by the broker: a FIFO of
// pending client requests and a FIFO of idle workers bound to it.
type Service struct {
	broker   *Broker
	name     string
	requests [][]string      // queued client requests, FIFO
	waiting  []*brokerWorker // idle workers bound to this service, FIFO
}

// brokerWorker defines a single worker known to the broker, idle or busy.
type brokerWorker struct {
	broker   *Broker
	idString string    // identity, quoted for map keys and logging
	identity string    // routing address, used as the ROUTER frame
	service  *Service  // owning service, once READY has been seen
	expiry   time.Time // expires at, unless refreshed by a heartbeat
}

// WorkerInfo reports a snapshot of one known worker.
type WorkerInfo struct {
	ID          string `json:"id"`
	Identity    string `json:"identity"`
	ServiceName string `json:"service-name"`
}

// NewBroker creates a new, unbound broker instance.
func NewBroker(endpoint string) (*Broker, error) {
	broker := &Broker{
		endpoint:     endpoint,
		services:     make(map[string]*Service),
		workers:      make(map[string]*brokerWorker),
		Waiting:      make([]*brokerWorker, 0),
		HeartbeatAt:  time.Now().Add(HeartbeatInterval),
		ErrorChannel: make(chan error, 1),
	}
	broker.mmi = NewMMIHandler(broker)
	return broker, nil
}

// GetWorkerInfo reports all workers currently known to the broker.
func (b *Broker) GetWorkerInfo() []WorkerInfo {
	var info []WorkerInfo
	for _, worker := range b.workers {
		name := ""
		if worker.service != nil {
			name = worker.service.name
		}
		info = append(info, WorkerInfo{ID: worker.idString, Identity: worker.identity, ServiceName: name})
	}
	return info
}

// Close unbinds and destroys the broker socket.
func (b *Broker) Close() (err error) {
	if b.isBound && b.Socket != nil {
		err = b.Socket.Unbind(b.endpoint)
		b.Socket.Destroy()
		b.Socket = nil
		b.isBound = false
	}
	close(b.ErrorChannel)
	return
}

// Bind binds the broker's single ROUTER socket, shared by clients and
// workers alike.
func (b *Broker) Bind() (err error) {
	b.Socket, err = czmq.NewRouter(b.endpoint)
	if err != nil {
		b.ErrorChannel <- err
		log.WithField("endpoint", b.endpoint).Error("broker failed to bind")
		return err
	}

	if err := b.Socket.SetOption(czmq.SockSetRcvhwm(500000)); err != nil {
		log.WithError(err).Warn("failed to set receive high-water mark")
	}
	runtime.SetFinalizer(b, (*Broker).Close)

	log.WithField("endpoint", b.endpoint).Info("broker is active")
	b.isBound = true
	return nil
}

// Run is the mediation loop: poll, dispatch one message by header, purge
// expired workers, send heartbeats when due. It returns when the poller
// errors (e.g. the socket was destroyed).
func (b *Broker) Run(done chan bool) {
	poller, _ := czmq.NewPoller(b.Socket)

	log.Debug("starting broker mediation loop")
	for {
		socket, err := poller.Wait(int(HeartbeatInterval / time.Millisecond))
		if err != nil {
			break
		}
		if socket != nil {
			recv, _ := socket.RecvMessage()
			msg := byte2DToStringArray(recv)
			if len(msg) > 0 {
				sender, msg := popStr(msg)
				_, msg = popStr(msg) // empty delimiter
				header, msg := popStr(msg)

				switch header {
				case MdpcClient:
					b.ClientMsg(sender, msg)
				case MdpwWorker:
					b.WorkerMsg(sender, msg)
				default:
					log.WithFields(log.Fields{"header": header, "sender": sender}).Warn("invalid message header")
				}
			}
		}

		b.purgeExpiredWorkers()
		b.sendHeartbeatsIfDue()
	}

	done <- true
}

// purgeExpiredWorkers deletes idle workers that haven't heartbeated in
// time. The waiting list is ordered oldest-first, so it stops at the first
// live worker.
func (b *Broker) purgeExpiredWorkers() {
	now := time.Now()
	for len(b.Waiting) > 0 {
		if b.Waiting[0].expiry.After(now) {
			break
		}
		log.WithField("worker", b.Waiting[0].idString).Debug("purging expired worker")
		b.Waiting[0].Delete(false)
	}
}

// sendHeartbeatsIfDue sends a heartbeat to every idle worker once
// HeartbeatInterval has elapsed since the last round.
func (b *Broker) sendHeartbeatsIfDue() {
	if time.Now().Before(b.HeartbeatAt) {
		return
	}
	for _, worker := range b.Waiting {
		if err := worker.Send(MdpwHeartbeat, "", []string{}); err != nil {
			b.ErrorChannel <- err
			log.WithError(err).Error("failed to send heartbeat")
		}
	}
	b.HeartbeatAt = time.Now().Add(HeartbeatInterval)
}

// WorkerMsg processes one READY, REPLY, HEARTBEAT or DISCONNECT message
// sent to the broker by a worker.
func (b *Broker) WorkerMsg(sender string, msg []string) {
	if len(msg) == 0 {
		log.Error("zero length worker message")
		return
	}

	command, msg := popStr(msg)
	idString := fmt.Sprintf("%q", sender)
	_, workerReady := b.workers[idString]
	worker := b.workerRequire(sender)

	switch command {
	case MdpwReady:
		switch {
		case workerReady:
			// duplicate READY: not the first command in this session
			worker.Delete(true)
		case IsMMIService(serviceNameOf(msg)):
			// a worker may never register for a reserved service name
			worker.Delete(true)
		default:
			worker.service = b.ServiceRequire(msg[0])
			worker.Waiting()
		}
	case MdpwReply:
		if !workerReady {
			worker.Delete(true)
			return
		}
		client, reply := unwrap(msg)
		snd := stringArrayToByte2D(append([]string{client, "", MdpcClient, worker.service.name}, reply...))
		if err := b.Socket.SendMessage(snd); err != nil {
			b.ErrorChannel <- err
			log.WithError(err).Error("failed to relay reply to client")
			return
		}
		worker.Waiting()
	case MdpwHeartbeat:
		if !workerReady {
			worker.Delete(true)
			return
		}
		worker.expiry = time.Now().Add(HeartbeatExpiry)
	case MdpwDisconnect:
		worker.Delete(false)
	default:
		log.WithField("command", command).Error("invalid worker command")
	}
}

func serviceNameOf(msg []string) string {
	if len(msg) == 0 {
		return ""
	}
	return msg[0]
}

// ClientMsg processes a request coming from a client: mmi.* names are
// answered internally, everything else is queued and dispatched to the
// named service.
func (b *Broker) ClientMsg(sender string, msg []string) {
	if len(msg) < 1 {
		log.Error("client message missing service frame")
		return
	}

	serviceFrame, payload := popStr(msg)

	if IsMMIService(serviceFrame) {
		code := b.mmi.HandleRequest(serviceFrame, payload)
		snd := stringArrayToByte2D([]string{sender, "", MdpcClient, serviceFrame, code})
		if err := b.Socket.SendMessage(snd); err != nil {
			b.ErrorChannel <- err
			log.WithError(err).Error("failed to send MMI reply to client")
		}
		return
	}

	service := b.ServiceRequire(serviceFrame)
	envelope := append([]string{sender, ""}, payload...)
	service.Dispatch(envelope)
}

// ServiceRequire is a lazy constructor that locates a service by name, or
// creates a new one.
func (b *Broker) ServiceRequire(name string) *Service {
	service, ok := b.services[name]
	if !ok {
		service = &Service{broker: b, name: name}
		b.services[name] = service
		log.WithField("service", name).Debug("registered new service")
	}
	return service
}

// Dispatch queues msg (if any) and, while both the idle queue and the
// request queue are non-empty, pairs the head of each and sends REQUEST.
func (s *Service) Dispatch(msg []string) {
	if len(msg) > 0 {
		s.requests = append(s.requests, msg)
	}

	s.broker.purgeExpiredWorkers()
	for len(s.waiting) > 0 && len(s.requests) > 0 {
		var worker *brokerWorker
		worker, s.waiting = popWorker(s.waiting)
		s.broker.Waiting = delWorker(s.broker.Waiting, worker)
		var request []string
		request, s.requests = popMsg(s.requests)
		if err := worker.Send(MdpwRequest, "", request); err != nil {
			s.broker.ErrorChannel <- err
			log.WithError(err).Error("failed to dispatch request to worker")
		}
	}
}

// workerRequire is a lazy constructor that locates a worker by identity, or
// creates a new one.
func (b *Broker) workerRequire(identity string) *brokerWorker {
	idString := fmt.Sprintf("%q", identity)
	worker, ok := b.workers[idString]
	if !ok {
		worker = &brokerWorker{broker: b, idString: idString, identity: identity}
		b.workers[idString] = worker
		log.WithField("id", idString).Debug("registering new worker")
	}
	return worker
}

// Delete removes the worker from the broker, its service, and the idle
// queue, optionally notifying it with a reciprocating DISCONNECT first.
func (w *brokerWorker) Delete(disconnect bool) {
	if disconnect {
		if err := w.Send(MdpwDisconnect, "", []string{}); err != nil {
			w.broker.ErrorChannel <- err
			log.WithError(err).Error("failed to send disconnect to worker")
		}
	}

	if w.service != nil {
		w.service.waiting = delWorker(w.service.waiting, w)
	}
	w.broker.Waiting = delWorker(w.broker.Waiting, w)
	delete(w.broker.workers, w.idString)
}

// Send formats and sends a command to the worker's routing address.
func (w *brokerWorker) Send(command, option string, msg []string) error {
	m := []string{w.identity, "", MdpwWorker, command}
	if option != "" {
		m = append(m, option)
	}
	m = append(m, msg...)

	log.WithFields(log.Fields{"command": MdpsCommands[command], "worker": w.idString}).Trace("sending message")
	return w.broker.Socket.SendMessage(stringArrayToByte2D(m))
}

// Waiting marks the worker idle: it is appended to the tail of both the
// broker-wide and per-service idle queues, its expiry is refreshed, and any
// queued request for its service is dispatched immediately.
func (w *brokerWorker) Waiting() {
	w.broker.Waiting = append(w.broker.Waiting, w)
	w.service.waiting = append(w.service.waiting, w)
	w.expiry = time.Now().Add(HeartbeatExpiry)
	w.service.Dispatch(nil)
}
