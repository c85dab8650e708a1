package control

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/idgen"
	"github.com/routerwrt/lnmgr/internal/lnlog"
	"github.com/routerwrt/lnmgr/internal/status"
)

// Server is the control-socket listener plus subscriber registry. The
// reactor polls Server.FD() for readability and calls AcceptOne exactly once
// per wakeup; everything else (notifying subscribers) happens out of band
// from Notify.
type Server struct {
	path string
	fd   int
	g    *graph.Graph
	subs []*subscriber
	log  zerolog.Logger
}

type subscriber struct {
	fd     int
	token  string
	mirror map[string]mirrorEntry
}

type mirrorEntry struct {
	state   string
	code    string
	signals map[string]bool
}

// Listen binds a SOCK_STREAM Unix socket at path, mode 0666, removing any
// stale socket file first.
func Listen(path string, g *graph.Graph) (*Server, error) {
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("create control socket: %w", err)
	}

	sa := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind control socket: %w", err)
	}

	if err := os.Chmod(path, 0666); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("chmod control socket: %w", err)
	}

	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set control socket non-blocking: %w", err)
	}

	return &Server{path: path, fd: fd, g: g, log: lnlog.Named("control")}, nil
}

// FD returns the listening socket's file descriptor.
func (s *Server) FD() int { return s.fd }

// Close closes the listening socket, every registered subscriber, and
// unlinks the socket path.
func (s *Server) Close() {
	for _, sub := range s.subs {
		unix.Close(sub.fd)
	}
	s.subs = nil
	unix.Close(s.fd)
	_ = os.Remove(s.path)
}

// AcceptOne accepts a single pending connection and dispatches exactly one
// command. It reports whether handling the command mutated the graph (a
// successful SIGNAL), so the reactor can fold that into its changed bit.
func (s *Server) AcceptOne() (mutated bool, err error) {
	connFD, _, err := unix.Accept(s.fd)
	if err != nil {
		if err == unix.EAGAIN {
			return false, nil
		}
		return false, fmt.Errorf("accept control connection: %w", err)
	}

	reqID := idgen.NewULIDString()

	line, readErr := readLine(connFD)
	if readErr != nil {
		s.log.Debug().Str("request_id", reqID).Err(readErr).Msg("control connection closed before a command arrived")
		unix.Close(connFD)
		return false, nil
	}

	reply, mutated, subscribe := s.dispatch(line)
	s.log.Debug().Str("request_id", reqID).Str("line", line).Msg("control command dispatched")

	if err := writeJSONLine(connFD, reply); err != nil {
		unix.Close(connFD)
		return mutated, nil
	}

	if !subscribe {
		unix.Close(connFD)
		return mutated, nil
	}

	if err := unix.SetNonblock(connFD, true); err != nil {
		unix.Close(connFD)
		return mutated, nil
	}

	token := idgen.NewSessionToken()
	sub := &subscriber{fd: connFD, token: token, mirror: make(map[string]mirrorEntry)}
	if err := s.sendSnapshot(sub); err != nil {
		unix.Close(connFD)
		return mutated, nil
	}
	s.subs = append(s.subs, sub)
	s.log.Info().Str("session", token).Msg("subscriber registered")

	return mutated, nil
}

func readLine(fd int) (string, error) {
	buf := make([]byte, 4096)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return "", err
	}
	line := string(bytes.TrimRight(buf[:n], "\r\n"))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return line, nil
}

func writeJSONLine(fd int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = unix.Write(fd, data)
	return err
}

func (s *Server) dispatch(line string) (reply any, mutated bool, subscribe bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return newErrorReply("empty command"), false, false
	}

	switch strings.ToUpper(fields[0]) {
	case "HELLO":
		return newHelloReply(), false, false

	case "STATUS":
		if len(fields) >= 2 {
			return s.statusReply(fields[1]), false, false
		}
		return s.statusReply(""), false, false

	case "DUMP":
		return s.dumpReply(), false, false

	case "SAVE":
		return s.saveReply(), false, false

	case "SIGNAL":
		return s.signalReply(fields)

	case "SUBSCRIBE":
		return s.snapshotFor(), false, true

	default:
		return newErrorReply("unrecognized command"), false, false
	}
}

func (s *Server) nodeStatus(n *graph.Node) NodeStatus {
	explain := s.g.Explain(n.ID())
	projected := status.Project(explain, status.AdminUp(n))
	st, code := statusString(projected)
	desc, _ := graph.LookupKind(n.Kind())

	return NodeStatus{
		ID:       n.ID(),
		State:    st,
		Type:     desc.ConfigName,
		Code:     code,
		Enabled:  n.Enabled,
		Auto:     n.AutoUp,
		Requires: n.Requires(),
		Actions:  n.Actions != nil,
		Signals:  n.Signals(),
	}
}

func (s *Server) statusReply(id string) StatusReply {
	if id != "" {
		n := s.g.FindNode(id)
		if n == nil {
			return StatusReply{Type: "status", Nodes: nil}
		}
		return StatusReply{Type: "status", Nodes: []NodeStatus{s.nodeStatus(n)}}
	}

	nodes := s.g.Nodes()
	out := make([]NodeStatus, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, s.nodeStatus(n))
	}
	return StatusReply{Type: "status", Nodes: out}
}

func (s *Server) dumpReply() DumpReply {
	nodes := s.g.Nodes()
	out := make([]NodeStatus, 0, len(nodes))
	for _, n := range nodes {
		desc, _ := graph.LookupKind(n.Kind())
		out = append(out, NodeStatus{
			ID:       n.ID(),
			Type:     desc.ConfigName,
			Enabled:  n.Enabled,
			Auto:     n.AutoUp,
			Requires: n.Requires(),
			Actions:  n.Actions != nil,
		})
	}
	return DumpReply{Type: "dump", Nodes: out}
}

func (s *Server) saveReply() SaveReply {
	saved := s.g.Save()
	nodes := make([]any, len(saved.Nodes))
	for i, n := range saved.Nodes {
		nodes[i] = n
	}
	return SaveReply{Type: "save", Version: saved.Version, Nodes: nodes}
}

func (s *Server) signalReply(fields []string) (SignalReply, bool, bool) {
	if len(fields) != 4 {
		return SignalReply{Type: "signal"}, false, false
	}
	nodeID, signal, raw := fields[1], fields[2], fields[3]

	var value bool
	switch raw {
	case "1":
		value = true
	case "0":
		value = false
	default:
		return SignalReply{Type: "signal"}, false, false
	}

	changed := s.g.SetSignal(nodeID, signal, value)
	return SignalReply{Type: "signal", Changed: changed}, changed, false
}

func (s *Server) snapshotFor() Snapshot {
	nodes := s.g.Nodes()
	out := make([]NodeStatus, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, s.nodeStatus(n))
	}
	return Snapshot{Type: "snapshot", Nodes: out}
}

func (s *Server) sendSnapshot(sub *subscriber) error {
	nodes := s.g.Nodes()
	snap := Snapshot{Type: "snapshot", Nodes: make([]NodeStatus, 0, len(nodes))}

	for _, n := range nodes {
		ns := s.nodeStatus(n)
		snap.Nodes = append(snap.Nodes, ns)
		// The mirror is seeded below, only once the whole snapshot has
		// been written.
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := writeAll(sub.fd, data); err != nil {
		if isFatalWriteErr(err) {
			return err
		}
		// Partial snapshot tolerated: subscriber stays registered, mirror
		// stays empty so every node looks changed on the next Notify.
		return nil
	}

	for _, n := range nodes {
		explain := s.g.Explain(n.ID())
		projected := status.Project(explain, status.AdminUp(n))
		st, code := statusString(projected)
		sub.mirror[n.ID()] = mirrorEntry{state: st, code: code, signals: n.Signals()}
	}

	return nil
}

// Notify walks every node for every subscriber, sending one event per node
// whose projected status/code or signal map changed since that subscriber's
// last successful tick. A write failing with EPIPE or ECONNRESET drops the
// subscriber; on any other write error (such as EAGAIN) the subscriber stays
// registered and the node is sent again on the next Notify. The mirror entry
// for a node is only updated after that node's event is actually written.
func (s *Server) Notify() {
	if len(s.subs) == 0 {
		return
	}

	alive := s.subs[:0]
	for _, sub := range s.subs {
		if s.notifyOne(sub) {
			alive = append(alive, sub)
		} else {
			s.log.Info().Str("session", sub.token).Msg("subscriber dropped")
			unix.Close(sub.fd)
		}
	}
	s.subs = alive
}

func (s *Server) notifyOne(sub *subscriber) bool {
	for _, n := range s.g.Nodes() {
		explain := s.g.Explain(n.ID())
		projected := status.Project(explain, status.AdminUp(n))
		st, code := statusString(projected)
		signals := n.Signals()

		prev, ok := sub.mirror[n.ID()]
		if ok && prev.state == st && prev.code == code && signalsEqual(prev.signals, signals) {
			continue
		}

		ev := Event{Type: "event", ID: n.ID(), State: st, Code: code, Signals: signals}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		data = append(data, '\n')

		if err := writeAll(sub.fd, data); err != nil {
			if isFatalWriteErr(err) {
				return false
			}
			continue // EAGAIN mid-event: skip updating mirror, try again next tick
		}

		sub.mirror[n.ID()] = mirrorEntry{state: st, code: code, signals: signals}
	}
	return true
}

func signalsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func writeAll(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func isFatalWriteErr(err error) bool {
	switch err {
	case unix.EPIPE, unix.ECONNRESET:
		return true
	default:
		return false
	}
}
