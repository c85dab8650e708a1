package graph

// FeatureType identifies which optional behavior a Feature attaches to a node.
type FeatureType int

const (
	FeatureMaster FeatureType = iota
	FeatureBridge
	FeatureBridgePort
	FeatureVlanDomain
	FeatureDsaPort
)

func (t FeatureType) String() string {
	switch t {
	case FeatureMaster:
		return "master"
	case FeatureBridge:
		return "bridge"
	case FeatureBridgePort:
		return "bridge_port"
	case FeatureVlanDomain:
		return "vlan_domain"
	case FeatureDsaPort:
		return "dsa_port"
	default:
		return "unknown"
	}
}

// Feature is a node capability that participates in the validate/resolve
// passes of Prepare. A node carries zero or more Features; at most one of
// each FeatureType.
type Feature interface {
	Type() FeatureType
	validate(g *Graph, n *Node) FailReason
	resolve(g *Graph, n *Node) FailReason
}

// MasterFeature declares that a node is subordinate to another node (a
// bridge port pointing at its bridge, a bond slave pointing at its bond, ...).
type MasterFeature struct {
	MasterID string

	master *Node // resolved during Prepare
}

func (f *MasterFeature) Type() FeatureType { return FeatureMaster }

// Master returns the resolved master node, or nil before Prepare runs.
func (f *MasterFeature) Master() *Node { return f.master }

func (f *MasterFeature) validate(g *Graph, n *Node) FailReason {
	if f.MasterID == "" {
		return FailTopology
	}
	if f.MasterID == n.id {
		return FailTopology
	}
	count := 0
	for _, x := range n.Features {
		if x.Type() == FeatureMaster {
			count++
		}
	}
	if count > 1 {
		return FailTopology
	}
	return FailNone
}

func (f *MasterFeature) resolve(g *Graph, n *Node) FailReason {
	m, ok := g.nodes[f.MasterID]
	if !ok {
		return FailTopology
	}
	f.master = m
	n.Topology.Master = m
	m.Topology.Slaves = append(m.Topology.Slaves, n)
	return FailNone
}

// BridgeFeature marks a node as an L2 bridge and carries its VLAN membership
// table (the VLANs the bridge itself allows, independent of any port).
type BridgeFeature struct {
	VlanFiltering bool
	Vlans         []VlanEntry
}

func (f *BridgeFeature) Type() FeatureType { return FeatureBridge }

func validateVlanList(vlans []VlanEntry) FailReason {
	seenPvid := false
	for i, v := range vlans {
		if v.VID < 1 || v.VID > 4094 {
			return FailTopology
		}
		if v.PVID {
			if seenPvid {
				return FailTopology
			}
			seenPvid = true
		}
		for j := 0; j < i; j++ {
			if vlans[j].VID == v.VID {
				return FailTopology
			}
		}
	}
	return FailNone
}

func (f *BridgeFeature) validate(g *Graph, n *Node) FailReason {
	count := 0
	for _, x := range n.Features {
		if x.Type() == FeatureBridge {
			count++
		}
	}
	if count > 1 {
		return FailTopology
	}
	return validateVlanList(f.Vlans)
}

func (f *BridgeFeature) resolve(g *Graph, n *Node) FailReason {
	n.Topology.IsBridge = true
	n.Topology.Vlans = append(n.Topology.Vlans, f.Vlans...)
	return FailNone
}

// BridgePortFeature marks a node as a port of the bridge named by its sibling
// MasterFeature, and carries the port's own tagged/untagged/pvid membership.
type BridgePortFeature struct {
	Vlans []VlanEntry
}

func (f *BridgePortFeature) Type() FeatureType { return FeatureBridgePort }

func (f *BridgePortFeature) validate(g *Graph, n *Node) FailReason {
	if n.FeatureOf(FeatureMaster) == nil {
		return FailTopology
	}
	return validateVlanList(f.Vlans)
}

func (f *BridgePortFeature) resolve(g *Graph, n *Node) FailReason {
	mf, _ := n.FeatureOf(FeatureMaster).(*MasterFeature)
	if mf == nil || mf.master == nil {
		return FailTopology
	}
	if !mf.master.Topology.IsBridge {
		return FailTopology
	}
	n.Topology.IsBridgePort = true
	// n.Topology.Vlans is populated later, by resolveVlans: it inherits from
	// the bridge first and only then applies f.Vlans as overrides, so an
	// override can be rejected when it names a VID the bridge doesn't carry.
	return FailNone
}

// VlanDomainFeature marks a node as representing a single 802.1Q sub-interface
// (e.g. "lan1.100") layered over its parent link.
type VlanDomainFeature struct {
	VID uint16
}

func (f *VlanDomainFeature) Type() FeatureType { return FeatureVlanDomain }

func (f *VlanDomainFeature) validate(g *Graph, n *Node) FailReason {
	if f.VID < 1 || f.VID > 4094 {
		return FailTopology
	}
	return FailNone
}

func (f *VlanDomainFeature) resolve(g *Graph, n *Node) FailReason {
	return FailNone
}

// DsaPortFeature classifies a switch port managed by a DSA (Distributed
// Switch Architecture) driver: whether it is the CPU-facing port, which
// physical link it binds to, and which switch it belongs to when more than
// one is present.
type DsaPortFeature struct {
	IsCPU    bool
	Link     string
	SwitchID string
}

func (f *DsaPortFeature) Type() FeatureType { return FeatureDsaPort }

func (f *DsaPortFeature) validate(g *Graph, n *Node) FailReason {
	if !f.IsCPU && f.Link == "" {
		return FailTopology
	}
	return FailNone
}

func (f *DsaPortFeature) resolve(g *Graph, n *Node) FailReason {
	return FailNone
}
