package graph

import "github.com/routerwrt/lnmgr/internal/lnerrors"

// CapabilityChecker reports whether the host kernel/platform supports a
// named capability (e.g. "vlan_filtering", "dsa"). Implemented by the
// kernel adapter and injected into Prepare so the graph package itself
// never depends on the kernel package.
type CapabilityChecker interface {
	HasCapability(name string) bool
}

// capChecker is implemented by features that need a Phase 3 capability
// check against the running kernel (none of the built-in features require
// one today; it exists so a future feature can opt in without touching the
// Prepare pipeline).
type capChecker interface {
	capCheck(g *Graph, n *Node, checker CapabilityChecker) FailReason
}

// Prepare recompiles the graph's derived topology and VLAN membership from
// current node/feature intent. It must be called after any AddNode,
// AddRequire or feature mutation and before the first Evaluate. It runs, in
// order: feature validation, feature resolution, capability checks,
// topology construction, topology validation and VLAN resolution. Each
// phase stops at the first failure. When topology validation or VLAN
// resolution fails, the node responsible is marked Failed(Topology); a
// failure in an earlier phase only returns the error.
func (g *Graph) Prepare(caps CapabilityChecker) error {
	for _, n := range g.Nodes() {
		// Action failures are Evaluate's domain, not Prepare's: none of the
		// phases below assess or clear them, so a Failed(Action) node must
		// keep its reason across a topology recompile triggered by an
		// unrelated signal/control change. A genuine new topology failure
		// still overwrites it below, same as for any other node.
		if !(n.State == StateFailed && n.FailReason == FailAction) {
			n.FailReason = FailNone
		}
		n.Topology.reset()
	}

	if reason := g.featuresValidate(); reason != FailNone {
		return reason.asError()
	}

	if reason := g.featuresResolve(); reason != FailNone {
		return reason.asError()
	}

	if reason := g.featuresCapCheck(caps); reason != FailNone {
		return reason.asError()
	}

	if reason := g.buildTopology(); reason != FailNone {
		return reason.asError()
	}

	if reason := g.validateTopology(); reason != FailNone {
		for _, n := range g.Nodes() {
			if n.FailReason != FailNone {
				n.State = StateFailed
			}
		}
		return reason.asError()
	}

	if reason := g.resolveVlans(); reason != FailNone {
		for _, n := range g.Nodes() {
			if n.FailReason != FailNone {
				n.State = StateFailed
			}
		}
		return reason.asError()
	}

	return nil
}

func (r FailReason) asError() error {
	if r == FailNone {
		return nil
	}
	switch r {
	case FailCycle:
		return lnerrors.NewCycle("master/slave chain forms a cycle")
	case FailAction:
		return lnerrors.NewAction("action dispatch failed")
	default:
		return lnerrors.NewTopology("topology is invalid").WithContext("reason", r.String())
	}
}

func (g *Graph) featuresValidate() FailReason {
	for _, n := range g.Nodes() {
		for _, f := range n.Features {
			if reason := f.validate(g, n); reason != FailNone {
				return reason
			}
		}
	}
	return FailNone
}

func (g *Graph) featuresResolve() FailReason {
	for _, n := range g.Nodes() {
		for _, f := range n.Features {
			if reason := f.resolve(g, n); reason != FailNone {
				return reason
			}
		}
	}
	return FailNone
}

func (g *Graph) featuresCapCheck(caps CapabilityChecker) FailReason {
	if caps == nil {
		return FailNone
	}
	for _, n := range g.Nodes() {
		for _, f := range n.Features {
			cc, ok := f.(capChecker)
			if !ok {
				continue
			}
			if reason := cc.capCheck(g, n, caps); reason != FailNone {
				return reason
			}
		}
	}
	return FailNone
}

// buildTopology re-derives the master/slave adjacency from each node's
// MasterFeature, independently of the bookkeeping feature resolution already
// did, and rejects a node acquiring more than one master.
func (g *Graph) buildTopology() FailReason {
	for _, n := range g.Nodes() {
		n.Topology.Slaves = nil
	}

	for _, n := range g.Nodes() {
		mf, ok := n.FeatureOf(FeatureMaster).(*MasterFeature)
		if !ok {
			continue
		}
		if mf.master == nil {
			return FailTopology
		}
		if n.Topology.Master != nil && n.Topology.Master != mf.master {
			return FailTopology
		}
		n.Topology.Master = mf.master
	}

	for _, n := range g.Nodes() {
		if n.Topology.Master != nil {
			n.Topology.Master.Topology.Slaves = append(n.Topology.Master.Topology.Slaves, n)
		}
	}

	return FailNone
}

func (g *Graph) validateTopology() FailReason {
	for _, n := range g.Nodes() {
		if n.Topology.IsBridge && n.Topology.Master != nil {
			n.FailReason = FailTopology
			return FailTopology
		}
		if n.Topology.IsBridgePort && n.Topology.Master == nil {
			n.FailReason = FailTopology
			return FailTopology
		}
		if n.Topology.Master != nil && !n.Topology.IsBridgePort {
			n.FailReason = FailTopology
			return FailTopology
		}
		if n.Topology.Master != nil && !n.Topology.Master.Topology.IsBridge {
			n.FailReason = FailTopology
			return FailTopology
		}
	}

	for _, n := range g.Nodes() {
		slow, fast := n, n
		for fast.Topology.Master != nil {
			slow = slow.Topology.Master
			fast = fast.Topology.Master
			if fast != nil {
				fast = fast.Topology.Master
			}
			if fast == nil {
				break
			}
			if slow == fast {
				n.FailReason = FailTopology
				return FailTopology
			}
		}
	}

	return FailNone
}

func vlanFind(vlans []VlanEntry, vid uint16) *VlanEntry {
	for i := range vlans {
		if vlans[i].VID == vid {
			return &vlans[i]
		}
	}
	return nil
}

func vlanInheritFromBridge(port, bridge *Node) {
	for _, bv := range bridge.Topology.Vlans {
		if vlanFind(port.Topology.Vlans, bv.VID) != nil {
			continue
		}
		v := bv
		v.PVID = false
		v.Inherited = true
		port.Topology.Vlans = append(port.Topology.Vlans, v)
	}
}

func vlanApplyPortOverrides(port *Node, overrides []VlanEntry) FailReason {
	for _, pv := range overrides {
		v := vlanFind(port.Topology.Vlans, pv.VID)
		if v == nil {
			return FailTopology // port introduces a VLAN the bridge doesn't carry
		}
		v.Tagged = pv.Tagged
		v.PVID = pv.PVID
		v.Inherited = false
	}
	return FailNone
}

func vlanResolvePvid(port *Node) FailReason {
	var pvid *VlanEntry
	for i := range port.Topology.Vlans {
		v := &port.Topology.Vlans[i]
		if v.Tagged && v.PVID {
			return FailTopology
		}
		if v.PVID {
			if pvid != nil {
				return FailTopology
			}
			pvid = v
		}
	}

	if pvid == nil {
		for i := range port.Topology.Vlans {
			v := &port.Topology.Vlans[i]
			if !v.Tagged {
				v.PVID = true
				pvid = v
				break
			}
		}
	}

	if pvid == nil {
		return FailTopology
	}
	return FailNone
}

func (g *Graph) resolveVlans() FailReason {
	for _, n := range g.Nodes() {
		if !n.Topology.IsBridgePort {
			continue
		}
		br := n.Topology.Master
		bp, _ := n.FeatureOf(FeatureBridgePort).(*BridgePortFeature)

		vlanInheritFromBridge(n, br)

		if bp != nil {
			if reason := vlanApplyPortOverrides(n, bp.Vlans); reason != FailNone {
				n.FailReason = reason
				return reason
			}
		}

		if reason := vlanResolvePvid(n); reason != FailNone {
			n.FailReason = reason
			return reason
		}
	}
	return FailNone
}
