// Package control implements the line-oriented JSON control protocol served
// over the Unix domain socket at /run/lnmgr.sock, and the subscriber
// registry that fans out post-evaluate diffs.
package control

import "github.com/routerwrt/lnmgr/internal/status"

const protocolVersion = 1

var supportedFeatures = []string{"status", "dump", "save", "subscribe"}

// HelloReply is sent in response to HELLO.
type HelloReply struct {
	Type     string   `json:"type"`
	Version  int      `json:"version"`
	Features []string `json:"features"`
}

func newHelloReply() HelloReply {
	return HelloReply{Type: "hello", Version: protocolVersion, Features: supportedFeatures}
}

// NodeStatus is the per-node shape shared by STATUS, DUMP and snapshot
// payloads; events use Event.
type NodeStatus struct {
	ID       string          `json:"id"`
	State    string          `json:"state,omitempty"`
	Type     string          `json:"type"`
	Code     string          `json:"code,omitempty"`
	Enabled  bool            `json:"enabled,omitempty"`
	Auto     bool            `json:"auto,omitempty"`
	Requires []string        `json:"requires,omitempty"`
	Actions  bool            `json:"actions,omitempty"`
	Signals  map[string]bool `json:"signals,omitempty"`
}

// StatusReply is the STATUS/STATUS <id> reply shape.
type StatusReply struct {
	Type  string       `json:"type"`
	Nodes []NodeStatus `json:"nodes"`
}

// DumpReply is the DUMP reply shape.
type DumpReply struct {
	Type  string       `json:"type"`
	Nodes []NodeStatus `json:"nodes"`
}

// SaveReply wraps Saved for the SAVE command's reply envelope.
type SaveReply struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Nodes   []any  `json:"nodes"`
}

// SignalReply is the SIGNAL command's reply shape.
type SignalReply struct {
	Type    string `json:"type"`
	Changed bool   `json:"changed"`
}

// Snapshot is sent once to a subscriber immediately after SUBSCRIBE.
type Snapshot struct {
	Type  string       `json:"type"`
	Nodes []NodeStatus `json:"nodes"`
}

// Event is sent to every subscriber for each node whose projected status,
// code or signal map changed since the subscriber's last tick.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	State   string          `json:"state"`
	Code    string          `json:"code,omitempty"`
	Signals map[string]bool `json:"signals"`
}

// ErrorReply reports a malformed or unrecognized command.
type ErrorReply struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newErrorReply(msg string) ErrorReply {
	return ErrorReply{Type: "error", Message: msg}
}

func statusString(p status.Projected) (string, string) {
	code := p.Code.String()
	return p.Status.String(), code
}
