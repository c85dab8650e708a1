package graph

import "context"

// State is a node's lifecycle state.
type State int

const (
	StateInactive State = iota
	StateWaiting
	StateActive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailReason records why a node is Failed.
type FailReason int

const (
	FailNone FailReason = iota
	FailCycle
	FailAction
	FailTopology
)

func (r FailReason) String() string {
	switch r {
	case FailCycle:
		return "cycle"
	case FailAction:
		return "action"
	case FailTopology:
		return "topology"
	default:
		return "none"
	}
}

// VlanEntry is a single resolved per-node VLAN membership.
type VlanEntry struct {
	VID       uint16
	Tagged    bool
	PVID      bool
	Inherited bool
}

// Topology is the derived layout computed fresh by every Prepare pass.
type Topology struct {
	Master       *Node
	Slaves       []*Node
	IsBridge     bool
	IsBridgePort bool
	Vlans        []VlanEntry
}

func (t *Topology) reset() {
	t.Master = nil
	t.Slaves = nil
	t.IsBridge = false
	t.IsBridgePort = false
	t.Vlans = nil
}

func (t *Topology) findVlan(vid uint16) *VlanEntry {
	for i := range t.Vlans {
		if t.Vlans[i].VID == vid {
			return &t.Vlans[i]
		}
	}
	return nil
}

// ActionOps are the kind-dispatched activation/deactivation side effects. A
// node whose Actions is nil has no side effect in either direction.
type ActionOps interface {
	Activate(ctx context.Context, n *Node) error
	Deactivate(ctx context.Context, n *Node)
}

// signalEntry is a single named boolean gate, kept in declaration order so
// Explain's "first missing signal" is deterministic.
type signalEntry struct {
	name  string
	value bool
}

// Node is a single dependency-graph vertex: a physical/virtual link, an L2
// aggregate, an L3 network or a service.
type Node struct {
	id   string
	kind Kind
	typ  Type

	Enabled     bool
	AutoUp      bool
	State       State
	Activated   bool
	AutoLatched bool
	Present     bool
	FailReason  FailReason

	requires []string // ordered dependency node ids

	signals      []signalEntry
	signalIndex  map[string]int
	Features     []Feature
	Topology     Topology
	Actions      ActionOps
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Kind returns the node's concrete kind.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the node's semantic type.
func (n *Node) Type() Type { return n.typ }

// Requires returns the ordered list of required node ids.
func (n *Node) Requires() []string {
	out := make([]string, len(n.requires))
	copy(out, n.requires)
	return out
}

// SignalNames returns the declared signal names in declaration order.
func (n *Node) SignalNames() []string {
	out := make([]string, len(n.signals))
	for i, s := range n.signals {
		out[i] = s.name
	}
	return out
}

// SignalValue returns the current value of signal name and whether it exists.
func (n *Node) SignalValue(name string) (bool, bool) {
	if i, ok := n.signalIndex[name]; ok {
		return n.signals[i].value, true
	}
	return false, false
}

// Signals returns a snapshot of every signal on the node as a name->value map.
func (n *Node) Signals() map[string]bool {
	out := make(map[string]bool, len(n.signals))
	for _, s := range n.signals {
		out[s.name] = s.value
	}
	return out
}

func (n *Node) findSignal(name string) *signalEntry {
	if i, ok := n.signalIndex[name]; ok {
		return &n.signals[i]
	}
	return nil
}

// FeatureOf returns the first feature of the given type, if any.
func (n *Node) FeatureOf(t FeatureType) Feature {
	for _, f := range n.Features {
		if f.Type() == t {
			return f
		}
	}
	return nil
}

// requiresMet reports whether every required node is Active.
func (n *Node) requiresMet(g *Graph) bool {
	for _, id := range n.requires {
		r, ok := g.nodes[id]
		if !ok || r.State != StateActive {
			return false
		}
	}
	return true
}

// signalsMet reports whether every declared signal currently reads true.
func (n *Node) signalsMet() bool {
	for _, s := range n.signals {
		if !s.value {
			return false
		}
	}
	return true
}
