package mdp

import "time"

// Majordomo Protocol Client and Worker API.
// Implements the MDP/Worker spec at http://rfc.zeromq.org/spec:7.

const (
	// MdpcClient is the protocol header a client prefixes every request with.
	MdpcClient = "CLIENT#1"

	// MdpwWorker is the protocol header a worker prefixes every command with.
	MdpwWorker = "WORKER#1"

	// HeartbeatLiveness is the number of heartbeat cycles a worker is deemed to
	// be dead after.
	HeartbeatLiveness = 3

	// HeartbeatInterval is the interval at which the broker sends heartbeats to
	// idle workers.
	HeartbeatInterval = 2500 * time.Millisecond

	// HeartbeatExpiry is the total duration for a worker until it is deemed to
	// be dead.
	HeartbeatExpiry = HeartbeatInterval * HeartbeatLiveness
)

// MDP worker command bytes.
const (
	MdpwReady      = string(rune(0x01)) // Worker ready
	MdpwRequest    = string(rune(0x02)) // Request from broker to worker
	MdpwReply      = string(rune(0x03)) // Reply from worker to broker
	MdpwHeartbeat  = string(rune(0x04)) // Heartbeat
	MdpwDisconnect = string(rune(0x05)) // Worker disconnect
)

// MMI (Majordomo Management Interface) constants. The only implemented
// internal service is mmi.service; any other mmi.* name is unimplemented.
const (
	MMINamespace = "mmi."
	MMIService   = "mmi.service"
)

// MMI response codes following HTTP-style status codes.
const (
	MMICodeOK             = "200" // service registered
	MMICodeNotFound       = "404" // service not registered
	MMICodeNotImplemented = "501" // unknown MMI method
)

// MdpsCommands names worker commands for log output.
var MdpsCommands = map[string]string{
	MdpwReady:      "READY",
	MdpwRequest:    "REQUEST",
	MdpwReply:      "REPLY",
	MdpwHeartbeat:  "HEARTBEAT",
	MdpwDisconnect: "DISCONNECT",
}
