package graph

import "sort"

// SavedNode is the serializable snapshot of a single node, as emitted by
// SAVE.
type SavedNode struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Enabled  bool     `json:"enabled"`
	Auto     bool     `json:"auto"`
	Signals  []string `json:"signals"`
	Requires []string `json:"requires"`
}

// Saved is the top-level SAVE document.
type Saved struct {
	Version int         `json:"version"`
	Nodes   []SavedNode `json:"nodes"`
}

// Save returns the graph's current config-level intent (not runtime state)
// as a Saved document with nodes sorted by id, so repeated saves of an
// unchanged graph diff identically.
func (g *Graph) Save() Saved {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	out := Saved{Version: 1, Nodes: make([]SavedNode, 0, len(nodes))}
	for _, n := range nodes {
		desc, _ := LookupKind(n.kind)
		sn := SavedNode{
			ID:       n.id,
			Type:     desc.ConfigName,
			Enabled:  n.Enabled,
			Auto:     n.AutoUp,
			Signals:  n.SignalNames(),
			Requires: n.Requires(),
		}
		if sn.Signals == nil {
			sn.Signals = []string{}
		}
		if sn.Requires == nil {
			sn.Requires = []string{}
		}
		out.Nodes = append(out.Nodes, sn)
	}
	return out
}
