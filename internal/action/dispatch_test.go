package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerwrt/lnmgr/internal/graph"
)

// fakeAdapter records every call it receives and lets a test force an error
// from any single method.
type fakeAdapter struct {
	calls []string
	err   error

	existsReturn bool
}

func (f *fakeAdapter) LinkSetUp(ctx context.Context, id string) error {
	f.calls = append(f.calls, "up:"+id)
	return f.err
}
func (f *fakeAdapter) LinkSetDown(ctx context.Context, id string) error {
	f.calls = append(f.calls, "down:"+id)
	return f.err
}
func (f *fakeAdapter) LinkIsUp(ctx context.Context, id string) (bool, error) { return false, nil }
func (f *fakeAdapter) LinkExists(ctx context.Context, id string) (bool, error) {
	f.calls = append(f.calls, "exists:"+id)
	return f.existsReturn, f.err
}
func (f *fakeAdapter) LinkIfindex(ctx context.Context, id string) (int, error) { return 0, nil }
func (f *fakeAdapter) BridgeCreate(ctx context.Context, id string) error {
	f.calls = append(f.calls, "create:"+id)
	return f.err
}
func (f *fakeAdapter) BridgeSetVlanFiltering(ctx context.Context, id string, on bool) error {
	f.calls = append(f.calls, "vlanfilter:"+id)
	return f.err
}
func (f *fakeAdapter) BridgeAddPort(ctx context.Context, bridgeID, portID string) error {
	f.calls = append(f.calls, "addport:"+bridgeID+"/"+portID)
	return f.err
}
func (f *fakeAdapter) BridgeVlanAdd(ctx context.Context, bridgeID, portID string, vid uint16, tagged, pvid bool) error {
	f.calls = append(f.calls, "vlanadd:"+portID)
	return f.err
}
func (f *fakeAdapter) BridgeVlanDel(ctx context.Context, bridgeID, portID string, vid uint16) error {
	f.calls = append(f.calls, "vlandel:"+portID)
	return f.err
}

func TestActivate_LinkKindCallsLinkSetUp(t *testing.T) {
	g := graph.New()
	n := g.AddNode("eth0", graph.KindLinkEthernet)

	adapter := &fakeAdapter{}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), n))
	assert.Equal(t, []string{"up:eth0"}, adapter.calls)
}

func TestActivate_NonLinkKindWithNoTopologyIsNoop(t *testing.T) {
	g := graph.New()
	n := g.AddNode("lag0", graph.KindL2Bond)

	adapter := &fakeAdapter{}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), n))
	assert.Empty(t, adapter.calls)
}

func TestActivate_BridgeCreatesOnlyWhenAbsentAndAppliesVlanFiltering(t *testing.T) {
	g := graph.New()
	n := g.AddNode("br0", graph.KindL2Bridge)
	n.Topology.IsBridge = true
	n.Features = []graph.Feature{&graph.BridgeFeature{VlanFiltering: true}}

	adapter := &fakeAdapter{existsReturn: false}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), n))
	assert.Equal(t, []string{"exists:br0", "create:br0", "vlanfilter:br0", "up:br0"}, adapter.calls)
}

func TestActivate_BridgeSkipsCreateWhenAlreadyExists(t *testing.T) {
	g := graph.New()
	n := g.AddNode("br0", graph.KindL2Bridge)
	n.Topology.IsBridge = true

	adapter := &fakeAdapter{existsReturn: true}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), n))
	assert.Equal(t, []string{"exists:br0", "up:br0"}, adapter.calls)
}

func TestActivate_BridgePortAddsPortThenLinkUpThenEachVlan(t *testing.T) {
	g := graph.New()
	br := g.AddNode("br0", graph.KindL2Bridge)
	br.Topology.IsBridge = true
	port := g.AddNode("p1", graph.KindLinkEthernet)
	port.Topology.IsBridgePort = true
	port.Topology.Master = br
	port.Topology.Vlans = []graph.VlanEntry{{VID: 1, PVID: true}, {VID: 10, Tagged: true}}

	adapter := &fakeAdapter{}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), port))
	assert.Equal(t, []string{"addport:br0/p1", "up:p1", "vlanadd:p1", "vlanadd:p1"}, adapter.calls)
}

func TestActivate_BridgePortWithNoResolvedMasterIsNoop(t *testing.T) {
	g := graph.New()
	port := g.AddNode("p1", graph.KindLinkEthernet)
	port.Topology.IsBridgePort = true

	adapter := &fakeAdapter{}
	d := New(adapter)

	require.NoError(t, d.Activate(context.Background(), port))
	assert.Empty(t, adapter.calls)
}

func TestActivate_PropagatesKernelError(t *testing.T) {
	g := graph.New()
	n := g.AddNode("eth0", graph.KindLinkEthernet)

	adapter := &fakeAdapter{err: assertErr}
	d := New(adapter)

	assert.ErrorIs(t, d.Activate(context.Background(), n), assertErr)
}

func TestDeactivate_BridgeIsNoop(t *testing.T) {
	g := graph.New()
	n := g.AddNode("br0", graph.KindL2Bridge)
	n.Topology.IsBridge = true

	adapter := &fakeAdapter{}
	d := New(adapter)

	d.Deactivate(context.Background(), n)
	assert.Empty(t, adapter.calls)
}

func TestDeactivate_BridgePortIsNoop(t *testing.T) {
	g := graph.New()
	n := g.AddNode("p1", graph.KindLinkEthernet)
	n.Topology.IsBridgePort = true

	adapter := &fakeAdapter{}
	d := New(adapter)

	d.Deactivate(context.Background(), n)
	assert.Empty(t, adapter.calls)
}

func TestDeactivate_LinkKindCallsLinkSetDownAndToleratesError(t *testing.T) {
	g := graph.New()
	n := g.AddNode("eth0", graph.KindLinkEthernet)

	adapter := &fakeAdapter{err: assertErr}
	d := New(adapter)

	d.Deactivate(context.Background(), n)
	assert.Equal(t, []string{"down:eth0"}, adapter.calls)
}

var assertErr = context.DeadlineExceeded
