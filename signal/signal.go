// Package signal implements the paired in-process endpoint used by every
// supervisor/supervised-loop relationship in Lucena to exchange a one-shot
// READY or STOP signal, modeled on CZMQ's zsock_new_pair bind/connect
// convention (endpoints prefixed with "@" bind, ">" connect).
package signal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	czmq "github.com/zeromq/goczmq/v4"
)

// Status values carried by a signal frame. The high byte 0x7f marks the
// frame as a signal rather than application data.
const (
	READY uint32 = 0x7f000001
	STOP  uint32 = 0x7f000002
)

// TimeoutError is returned by Wait when no signal arrives within the
// requested deadline.
type TimeoutError struct{}

func (TimeoutError) Error() string { return "signal: wait timed out" }

// InvalidSignalError is returned by Wait when a frame is the wrong length
// or its high byte is not the signal marker 0x7f.
type InvalidSignalError struct {
	Frame []byte
}

func (e InvalidSignalError) Error() string {
	return fmt.Sprintf("signal: invalid signal frame %x", e.Frame)
}

// Endpoint is one side of a connected signal pair.
type Endpoint struct {
	sock *czmq.Sock
}

// NewPair creates a connected pair bound over a process-local, uniquely
// named inproc transport. The first return value is the supervisor's side
// (the bind side), the second is the supervised loop's side (the connect
// side).
func NewPair() (supervisor *Endpoint, supervised *Endpoint, err error) {
	address := "inproc://lucena-signal-" + uuid.NewString()

	bound, err := czmq.NewPair("@" + address)
	if err != nil {
		return nil, nil, fmt.Errorf("signal: bind pair: %w", err)
	}

	connected, err := czmq.NewPair(">" + address)
	if err != nil {
		bound.Destroy()
		return nil, nil, fmt.Errorf("signal: connect pair: %w", err)
	}

	return &Endpoint{sock: bound}, &Endpoint{sock: connected}, nil
}

// Signal writes a single signal frame carrying status.
func (e *Endpoint) Signal(status uint32) error {
	frame := make([]byte, 4)
	binary.LittleEndian.PutUint32(frame, status)
	return e.sock.SendFrame(frame, czmq.FlagNone)
}

// Wait blocks until a signal frame arrives, up to timeout (zero or negative
// means block indefinitely), and returns its status. It fails with
// TimeoutError if no frame arrives in time, or InvalidSignalError if the
// frame received is not a well-formed signal frame.
func (e *Endpoint) Wait(timeout time.Duration) (uint32, error) {
	if timeout > 0 {
		if err := e.sock.SetOption(czmq.SockSetRcvtimeo(int(timeout.Milliseconds()))); err != nil {
			return 0, fmt.Errorf("signal: set timeout: %w", err)
		}
	}
	frame, _, err := e.sock.RecvFrame()
	if err != nil {
		return 0, TimeoutError{}
	}
	if !IsSignal(frame) {
		return 0, InvalidSignalError{Frame: frame}
	}
	return binary.LittleEndian.Uint32(frame), nil
}

// IsSignal reports whether frame is a well-formed 4-byte signal frame: its
// high byte (the last byte in little-endian encoding) must be 0x7f.
func IsSignal(frame []byte) bool {
	return len(frame) == 4 && frame[3] == 0x7f
}

// Close destroys the underlying socket.
func (e *Endpoint) Close() {
	e.sock.Destroy()
}

// Sock exposes the underlying socket so it can be registered directly with
// a czmq.Poller alongside other endpoints.
func (e *Endpoint) Sock() *czmq.Sock {
	return e.sock
}
