// Package envelope implements the multipart frame codec shared by every
// control-plane endpoint in Lucena: Client-Service and Service-Worker.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Delim is the empty delimiter frame that separates routing frames from the
// correlation id and, in turn, from the JSON body.
var Delim = []byte{}

// MalformedEnvelopeError reports a frame-count or delimiter-position mismatch.
type MalformedEnvelopeError struct {
	Reason string
}

func (e *MalformedEnvelopeError) Error() string {
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// MalformedPayloadError reports a JSON decode failure on a body frame.
type MalformedPayloadError struct {
	Cause error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Cause)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Cause
}

// Message is a JSON object carrying the framework's reserved keys
// ($req, $rep, $signal, $error, $attr, $param) alongside user-defined keys.
type Message map[string]interface{}

// ClientFrames encodes the Client<->Service envelope:
// [clientId, delim, correlationId, delim, json(message)].
func ClientFrames(clientID, correlationID []byte, message Message) ([][]byte, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, &MalformedPayloadError{Cause: err}
	}
	return [][]byte{clientID, Delim, correlationID, Delim, body}, nil
}

// DecodeClientFrames is the inverse of ClientFrames.
func DecodeClientFrames(frames [][]byte) (clientID, correlationID []byte, message Message, err error) {
	if len(frames) != 5 {
		return nil, nil, nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("expected 5 frames, got %d", len(frames))}
	}
	if !bytes.Equal(frames[1], Delim) || !bytes.Equal(frames[3], Delim) {
		return nil, nil, nil, &MalformedEnvelopeError{Reason: "delimiter frame missing at position 1 or 3"}
	}
	var msg Message
	if err := json.Unmarshal(frames[4], &msg); err != nil {
		return nil, nil, nil, &MalformedPayloadError{Cause: err}
	}
	return frames[0], frames[2], msg, nil
}

// WorkerFrames encodes the Service<->Worker envelope, used identically in
// both directions (the worker is the routing source on the return trip):
// [workerId, delim, clientId, delim, correlationId, delim, json(message)].
func WorkerFrames(workerID, clientID, correlationID []byte, message Message) ([][]byte, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, &MalformedPayloadError{Cause: err}
	}
	return [][]byte{workerID, Delim, clientID, Delim, correlationID, Delim, body}, nil
}

// DecodeWorkerFrames is the inverse of WorkerFrames.
func DecodeWorkerFrames(frames [][]byte) (workerID, clientID, correlationID []byte, message Message, err error) {
	if len(frames) != 7 {
		return nil, nil, nil, nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("expected 7 frames, got %d", len(frames))}
	}
	if !bytes.Equal(frames[1], Delim) || !bytes.Equal(frames[3], Delim) || !bytes.Equal(frames[5], Delim) {
		return nil, nil, nil, nil, &MalformedEnvelopeError{Reason: "delimiter frame missing at position 1, 3 or 5"}
	}
	var msg Message
	if err := json.Unmarshal(frames[6], &msg); err != nil {
		return nil, nil, nil, nil, &MalformedPayloadError{Cause: err}
	}
	return frames[0], frames[2], frames[4], msg, nil
}

// WorkerSideFrames encodes the same envelope as WorkerFrames but without the
// leading workerId frame: a worker's own control socket is a DEALER
// connected to the controller's ROUTER, and ROUTER sockets strip the peer
// identity from outbound frames and prepend it to inbound ones
// automatically, so the worker never sees its own identity frame. The empty
// delimiter that follows the identity does arrive; the worker loop strips it
// before decoding and puts it back in front of each reply.
// Shape: [clientId, delim, correlationId, delim, json(message)].
func WorkerSideFrames(clientID, correlationID []byte, message Message) ([][]byte, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return nil, &MalformedPayloadError{Cause: err}
	}
	return [][]byte{clientID, Delim, correlationID, Delim, body}, nil
}

// DecodeWorkerSideFrames is the inverse of WorkerSideFrames.
func DecodeWorkerSideFrames(frames [][]byte) (clientID, correlationID []byte, message Message, err error) {
	if len(frames) != 5 {
		return nil, nil, nil, &MalformedEnvelopeError{Reason: fmt.Sprintf("expected 5 frames, got %d", len(frames))}
	}
	if !bytes.Equal(frames[1], Delim) || !bytes.Equal(frames[3], Delim) {
		return nil, nil, nil, &MalformedEnvelopeError{Reason: "delimiter frame missing at position 1 or 3"}
	}
	var msg Message
	if err := json.Unmarshal(frames[4], &msg); err != nil {
		return nil, nil, nil, &MalformedPayloadError{Cause: err}
	}
	return frames[0], frames[2], msg, nil
}
