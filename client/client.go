// Package client implements RemoteClient, the thin client-facing helper
// spec.md §1 names as an external collaborator with only its interface
// specified. It speaks the non-broker wire protocol of §6: three frames
// [correlationId, empty delimiter, json(message)], answered in kind. Like a
// REQ socket, its DEALER puts an empty frame in front of each request, so the
// Service's ROUTER sees [clientId, delim, correlationId, delim, json]; the
// same leading empty frame is stripped from each reply. It is
// grounded on mdp.Client's DEALER-plus-poller shape (mdp/client.go) but
// drops the MDP header/service frames, since this path talks directly to a
// Service's external router rather than through a Broker.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	czmq "github.com/zeromq/goczmq/v4"

	"github.com/geoffjay/lucena/envelope"
)

// RemoteClient is a single connection to a Service's external endpoint.
type RemoteClient struct {
	endpoint string
	sock     *czmq.Sock
	poller   *czmq.Poller
	timeout  time.Duration
}

// New connects a RemoteClient to endpoint.
func New(endpoint string) (*RemoteClient, error) {
	sock, err := czmq.NewDealer(endpoint)
	if err != nil {
		return nil, fmt.Errorf("client: failed to create dealer: %w", err)
	}
	if err := sock.Connect(endpoint); err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("client: failed to connect to %s: %w", endpoint, err)
	}
	poller, err := czmq.NewPoller(sock)
	if err != nil {
		sock.Destroy()
		return nil, fmt.Errorf("client: failed to create poller: %w", err)
	}
	return &RemoteClient{endpoint: endpoint, sock: sock, poller: poller, timeout: 2500 * time.Millisecond}, nil
}

// SetTimeout overrides the default Recv timeout.
func (c *RemoteClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Close destroys the client's socket and poller.
func (c *RemoteClient) Close() {
	if c.poller != nil {
		c.poller.Destroy()
		c.poller = nil
	}
	if c.sock != nil {
		c.sock.Destroy()
		c.sock = nil
	}
}

// Request sends message tagged with a fresh correlation id and returns the
// reply message, or an error if no reply arrives within the configured
// timeout.
func (c *RemoteClient) Request(message envelope.Message) (envelope.Message, error) {
	correlationID := []byte(uuid.NewString())
	if err := c.send(correlationID, message); err != nil {
		return nil, err
	}
	return c.recv(correlationID)
}

func (c *RemoteClient) send(correlationID []byte, message envelope.Message) error {
	body, err := json.Marshal(message)
	if err != nil {
		return &envelope.MalformedPayloadError{Cause: err}
	}
	frames := [][]byte{{}, correlationID, {}, body}
	if err := c.sock.SendMessage(frames); err != nil {
		return fmt.Errorf("client: send failed: %w", err)
	}
	return nil
}

func (c *RemoteClient) recv(want []byte) (envelope.Message, error) {
	socket, err := c.poller.Wait(int(c.timeout / time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("client: poller failed: %w", err)
	}
	if socket == nil {
		return nil, fmt.Errorf("client: timed out waiting for reply after %s", c.timeout)
	}

	frames, err := socket.RecvMessage()
	if err != nil {
		return nil, fmt.Errorf("client: recv failed: %w", err)
	}
	if len(frames) > 0 && len(frames[0]) == 0 {
		frames = frames[1:]
	}
	if len(frames) != 3 {
		return nil, &envelope.MalformedEnvelopeError{Reason: fmt.Sprintf("expected 3 frames, got %d", len(frames))}
	}
	if len(frames[1]) != 0 {
		return nil, &envelope.MalformedEnvelopeError{Reason: "frame 1 is not an empty delimiter"}
	}
	if string(frames[0]) != string(want) {
		log.WithFields(log.Fields{"want": string(want), "got": string(frames[0])}).Warn("reply correlation id mismatch, discarding")
		return c.recv(want)
	}

	var message envelope.Message
	if err := json.Unmarshal(frames[2], &message); err != nil {
		return nil, &envelope.MalformedPayloadError{Cause: err}
	}
	return message, nil
}
