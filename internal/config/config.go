// Package config loads the declarative JSON configuration that describes
// the intended graph: which nodes exist, how they relate, and what must be
// true before each is considered up.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/lnerrors"
)

// VlanSpec is a single tagged/untagged/pvid VLAN membership entry, used by
// both the bridge-wide and per-port VLAN lists.
type VlanSpec struct {
	VID    uint16 `json:"vid"`
	Tagged bool   `json:"tagged"`
	PVID   bool   `json:"pvid"`
}

// NodeConfig is one entry of the top-level "nodes" array. Only the fields
// relevant to the node's kind need be set; the loader ignores feature keys
// that don't apply, but rejects any key it doesn't recognize at all.
type NodeConfig struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Enabled  bool     `json:"enabled"`
	Auto     bool     `json:"auto"`
	Signals  []string `json:"signals"`
	Requires []string `json:"requires"`

	Master string `json:"master,omitempty"`

	BridgeVlanFiltering *bool      `json:"bridge.vlan_filtering,omitempty"`
	BridgeVlans         []VlanSpec `json:"bridge.vlans,omitempty"`

	PortVlans []VlanSpec `json:"port.vlans,omitempty"`

	VlanVID *uint16 `json:"vlan.vid,omitempty"`

	DsaIsCPU    bool   `json:"dsa.is_cpu,omitempty"`
	DsaLink     string `json:"dsa.link,omitempty"`
	DsaSwitchID string `json:"dsa.switch_id,omitempty"`
}

// Document is the top-level config file shape.
type Document struct {
	Version int          `json:"version"`
	Flush   bool         `json:"flush"`
	Nodes   []NodeConfig `json:"nodes"`
}

// LoadFile reads and parses path, rejecting unrecognized top-level or
// per-node keys.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lnerrors.NewConfigInvalid("cannot read config file").WithCause(err)
	}
	return Parse(data)
}

// Parse decodes raw config JSON into a Document.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, lnerrors.NewConfigInvalid("malformed config json").WithCause(err)
	}
	if dec.More() {
		return nil, lnerrors.NewConfigInvalid("trailing content after top-level object")
	}

	if doc.Version != 1 {
		return nil, lnerrors.NewConfigInvalid(fmt.Sprintf("unsupported config version %d", doc.Version))
	}

	seen := make(map[string]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ID == "" {
			return nil, lnerrors.NewConfigInvalid("node missing required id")
		}
		if seen[n.ID] {
			return nil, lnerrors.NewConfigInvalid("duplicate node id").WithContext("id", n.ID)
		}
		seen[n.ID] = true

		if _, ok := graph.LookupKindName(n.Type); !ok {
			return nil, lnerrors.NewConfigInvalid("unknown node type").WithContext("id", n.ID).WithContext("type", n.Type)
		}
		if err := validateVlanSpecs(n.BridgeVlans); err != nil {
			return nil, err
		}
		if err := validateVlanSpecs(n.PortVlans); err != nil {
			return nil, err
		}
		if n.VlanVID != nil && (*n.VlanVID < 1 || *n.VlanVID > 4094) {
			return nil, lnerrors.NewConfigInvalid("vlan.vid out of range").WithContext("id", n.ID)
		}
	}

	for _, n := range doc.Nodes {
		for _, r := range n.Requires {
			if !seen[r] {
				return nil, lnerrors.NewConfigInvalid("requires references unknown node").
					WithContext("id", n.ID).WithContext("requires", r)
			}
		}
		if n.Master != "" && !seen[n.Master] {
			return nil, lnerrors.NewConfigInvalid("master references unknown node").
				WithContext("id", n.ID).WithContext("master", n.Master)
		}
	}

	return &doc, nil
}

func validateVlanSpecs(vlans []VlanSpec) error {
	seenPvid := false
	for i, v := range vlans {
		if v.VID < 1 || v.VID > 4094 {
			return lnerrors.NewConfigInvalid("vlan vid out of range").WithContext("vid", v.VID)
		}
		if v.PVID {
			if seenPvid {
				return lnerrors.NewConfigInvalid("more than one pvid in vlan list")
			}
			seenPvid = true
		}
		for j := 0; j < i; j++ {
			if vlans[j].VID == v.VID {
				return lnerrors.NewConfigInvalid("duplicate vid in vlan list").WithContext("vid", v.VID)
			}
		}
	}
	return nil
}

// Apply loads doc's nodes into g in three passes — create all, then declare
// signals/requires, then enable — so a node's requires may name a node
// defined later in the file. If doc.Flush is set, g is emptied first. Apply
// does not call Prepare or Evaluate; the caller does that once after every
// node in the file has been applied.
func Apply(ctx context.Context, g *graph.Graph, doc *Document) error {
	if doc.Flush {
		g.Flush(ctx)
	}

	for _, n := range doc.Nodes {
		desc, _ := graph.LookupKindName(n.Type)
		node := g.AddNode(n.ID, desc.Kind)
		if node == nil {
			return lnerrors.NewConfigInvalid("duplicate node id").WithContext("id", n.ID)
		}
		node.AutoUp = n.Auto
		attachFeatures(node, n)
	}

	for _, n := range doc.Nodes {
		for _, s := range n.Signals {
			if !g.AddSignal(n.ID, s) {
				return lnerrors.NewConfigInvalid("duplicate signal declaration").
					WithContext("id", n.ID).WithContext("signal", s)
			}
		}
	}

	for _, n := range doc.Nodes {
		for _, r := range n.Requires {
			if !g.AddRequire(n.ID, r) {
				return lnerrors.NewConfigInvalid("duplicate or invalid requires edge").
					WithContext("id", n.ID).WithContext("requires", r)
			}
		}
	}

	for _, n := range doc.Nodes {
		if n.Enabled {
			g.EnableNode(n.ID)
		}
	}

	return nil
}

func attachFeatures(node *graph.Node, n NodeConfig) {
	if n.Master != "" {
		node.Features = append(node.Features, &graph.MasterFeature{MasterID: n.Master})
	}

	if len(n.BridgeVlans) > 0 || n.BridgeVlanFiltering != nil || node.Kind() == graph.KindL2Bridge {
		filtering := true
		if n.BridgeVlanFiltering != nil {
			filtering = *n.BridgeVlanFiltering
		}
		node.Features = append(node.Features, &graph.BridgeFeature{
			VlanFiltering: filtering,
			Vlans:         toVlanEntries(n.BridgeVlans),
		})
	}

	// Every node naming a master is a bridge port in this model: topology
	// validation rejects a mastered node that isn't one, so the feature
	// always travels with "master".
	if n.Master != "" {
		node.Features = append(node.Features, &graph.BridgePortFeature{
			Vlans: toVlanEntries(n.PortVlans),
		})
	}

	if n.VlanVID != nil {
		node.Features = append(node.Features, &graph.VlanDomainFeature{VID: *n.VlanVID})
	}

	if node.Kind() == graph.KindLinkDSAPort {
		node.Features = append(node.Features, &graph.DsaPortFeature{
			IsCPU:    n.DsaIsCPU,
			Link:     n.DsaLink,
			SwitchID: n.DsaSwitchID,
		})
	}
}

func toVlanEntries(specs []VlanSpec) []graph.VlanEntry {
	if len(specs) == 0 {
		return nil
	}
	out := make([]graph.VlanEntry, len(specs))
	for i, s := range specs {
		out[i] = graph.VlanEntry{VID: s.VID, Tagged: s.Tagged, PVID: s.PVID}
	}
	return out
}
