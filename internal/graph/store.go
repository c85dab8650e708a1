package graph

import "context"

// Graph is the in-memory dependency graph: the full set of nodes, their
// requires edges and signal gates. A Graph is not safe for concurrent use;
// lnmgr serializes all graph access on the reactor's single goroutine.
type Graph struct {
	nodes map[string]*Node
	order []string // insertion order, for deterministic iteration/save
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// FindNode returns the node with the given id, or nil if it doesn't exist.
func (g *Graph) FindNode(id string) *Node {
	return g.nodes[id]
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// AddNode creates a node of the given kind and adds it to the graph. It
// returns nil if id is already in use or kind is unknown.
func (g *Graph) AddNode(id string, kind Kind) *Node {
	if _, exists := g.nodes[id]; exists {
		return nil
	}
	desc, ok := LookupKind(kind)
	if !ok {
		return nil
	}
	n := &Node{
		id:          id,
		kind:        kind,
		typ:         desc.Type,
		signalIndex: make(map[string]int),
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n
}

// DelNode removes a node from the graph. Reports false if it didn't exist.
func (g *Graph) DelNode(id string) bool {
	if _, exists := g.nodes[id]; !exists {
		return false
	}
	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

// AddSignal declares a new named signal on a node, initially false. Reports
// false if the node doesn't exist or the signal is already declared.
func (g *Graph) AddSignal(nodeID, name string) bool {
	n, ok := g.nodes[nodeID]
	if !ok || name == "" {
		return false
	}
	if _, exists := n.signalIndex[name]; exists {
		return false
	}
	n.signalIndex[name] = len(n.signals)
	n.signals = append(n.signals, signalEntry{name: name, value: false})
	return true
}

// SetSignal sets a signal's value, declaring it dynamically if it doesn't
// already exist on the node. It returns whether the value actually changed
// (a new signal counts as a change), so callers can gate an evaluate pass on
// it the way the ingesters and the SIGNAL control command do.
func (g *Graph) SetSignal(nodeID, name string, value bool) bool {
	n, ok := g.nodes[nodeID]
	if !ok || name == "" {
		return false
	}
	if i, exists := n.signalIndex[name]; exists {
		if n.signals[i].value == value {
			return false
		}
		n.signals[i].value = value
		return true
	}
	n.signalIndex[name] = len(n.signals)
	n.signals = append(n.signals, signalEntry{name: name, value: value})
	return true
}

// AddRequire adds a dependency edge from nodeID onto requireID. Reports
// false if either node is missing or the edge already exists.
func (g *Graph) AddRequire(nodeID, requireID string) bool {
	n, ok := g.nodes[nodeID]
	if !ok {
		return false
	}
	if _, ok := g.nodes[requireID]; !ok {
		return false
	}
	for _, id := range n.requires {
		if id == requireID {
			return false
		}
	}
	n.requires = append(n.requires, requireID)
	return true
}

// DelRequire removes a dependency edge. Reports false if it didn't exist.
func (g *Graph) DelRequire(nodeID, requireID string) bool {
	n, ok := g.nodes[nodeID]
	if !ok {
		return false
	}
	for i, id := range n.requires {
		if id == requireID {
			n.requires = append(n.requires[:i], n.requires[i+1:]...)
			return true
		}
	}
	return false
}

// EnableNode marks a node enabled, moving it out of Inactive into Waiting
// so the next Evaluate pass will attempt to bring it up.
func (g *Graph) EnableNode(id string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.Enabled = true
	if n.State == StateInactive {
		n.State = StateWaiting
	}
	return true
}

// DisableNode marks a node disabled, running its deactivate action if it was
// Active, and resets it to Inactive.
func (g *Graph) DisableNode(ctx context.Context, id string) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	if n.State == StateActive && n.Actions != nil {
		n.Actions.Deactivate(ctx, n)
	}
	n.Enabled = false
	n.State = StateInactive
	n.Activated = false
	return true
}

// Flush disables every node (running deactivate actions as needed) and
// empties the graph. Used when a SAVE/reload replaces the whole config.
func (g *Graph) Flush(ctx context.Context) {
	for _, id := range append([]string(nil), g.order...) {
		if n := g.nodes[id]; n != nil && n.Enabled {
			g.DisableNode(ctx, id)
		}
	}
	g.nodes = make(map[string]*Node)
	g.order = nil
}
