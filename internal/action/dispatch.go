// Package action dispatches a node's activate/deactivate side effects onto
// the kernel adapter, keyed by the node's kind. It implements
// graph.ActionOps so the graph package never needs to know about kernel.
package action

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/kernel"
	"github.com/routerwrt/lnmgr/internal/lnlog"
)

// Dispatcher implements graph.ActionOps against a kernel.Adapter, choosing
// the activate/deactivate pair to run from the node's Kind and resolved
// Topology.
type Dispatcher struct {
	adapter kernel.Adapter
	log     zerolog.Logger
}

// New returns a Dispatcher that drives adapter.
func New(adapter kernel.Adapter) *Dispatcher {
	return &Dispatcher{adapter: adapter, log: lnlog.Named("action")}
}

var _ graph.ActionOps = (*Dispatcher)(nil)

// Activate runs the side effect that brings n up. Most kinds have no
// activate action and succeed trivially.
func (d *Dispatcher) Activate(ctx context.Context, n *graph.Node) error {
	switch {
	case n.Topology.IsBridgePort:
		return d.activateBridgePort(ctx, n)
	case n.Topology.IsBridge:
		return d.activateBridge(ctx, n)
	}

	switch n.Kind() {
	case graph.KindLinkEthernet, graph.KindLinkWifi, graph.KindLinkDSAPort:
		return d.adapter.LinkSetUp(ctx, n.ID())
	default:
		return nil
	}
}

// Deactivate runs the side effect that takes n down. It is called
// synchronously from DisableNode, never from Evaluate.
func (d *Dispatcher) Deactivate(ctx context.Context, n *graph.Node) {
	switch {
	case n.Topology.IsBridgePort:
		// Port removal is delegated to the kernel when the underlying
		// link is deleted; nothing to do here.
		return
	case n.Topology.IsBridge:
		// Preserved from the original: bridge deactivate is a no-op.
		return
	}

	switch n.Kind() {
	case graph.KindLinkEthernet, graph.KindLinkWifi, graph.KindLinkDSAPort:
		if err := d.adapter.LinkSetDown(ctx, n.ID()); err != nil {
			d.log.Warn().Err(err).Str("id", n.ID()).Msg("link_set_down failed during deactivate")
		}
	}
}

func (d *Dispatcher) activateBridge(ctx context.Context, n *graph.Node) error {
	exists, err := d.adapter.LinkExists(ctx, n.ID())
	if err != nil {
		return err
	}
	if !exists {
		if err := d.adapter.BridgeCreate(ctx, n.ID()); err != nil {
			return err
		}
	}

	if bf, ok := n.FeatureOf(graph.FeatureBridge).(*graph.BridgeFeature); ok && bf.VlanFiltering {
		if err := d.adapter.BridgeSetVlanFiltering(ctx, n.ID(), true); err != nil {
			return err
		}
	}

	return d.adapter.LinkSetUp(ctx, n.ID())
}

func (d *Dispatcher) activateBridgePort(ctx context.Context, n *graph.Node) error {
	master := n.Topology.Master
	if master == nil {
		return nil
	}

	if err := d.adapter.BridgeAddPort(ctx, master.ID(), n.ID()); err != nil {
		return err
	}
	if err := d.adapter.LinkSetUp(ctx, n.ID()); err != nil {
		return err
	}

	for _, v := range n.Topology.Vlans {
		if err := d.adapter.BridgeVlanAdd(ctx, master.ID(), n.ID(), v.VID, v.Tagged, v.PVID); err != nil {
			return err
		}
	}

	return nil
}
