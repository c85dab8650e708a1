package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_RejectsDuplicateID(t *testing.T) {
	g := New()
	require.NotNil(t, g.AddNode("eth0", KindLinkEthernet))
	assert.Nil(t, g.AddNode("eth0", KindLinkWifi))
}

func TestAddNode_RejectsUnknownKind(t *testing.T) {
	g := New()
	assert.Nil(t, g.AddNode("eth0", Kind(9999)))
}

func TestNodes_PreservesInsertionOrder(t *testing.T) {
	g := New()
	g.AddNode("c", KindLinkEthernet)
	g.AddNode("a", KindLinkEthernet)
	g.AddNode("b", KindLinkEthernet)

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestDelNode_RemovesFromOrderAndSet(t *testing.T) {
	g := New()
	g.AddNode("eth0", KindLinkEthernet)
	require.True(t, g.DelNode("eth0"))
	assert.Nil(t, g.FindNode("eth0"))
	assert.Empty(t, g.Nodes())
	assert.False(t, g.DelNode("eth0"))
}

func TestSetSignal_ReportsChangeOnlyWhenValueDiffers(t *testing.T) {
	g := New()
	g.AddNode("eth0", KindLinkEthernet)

	assert.True(t, g.SetSignal("eth0", "carrier", true), "first write of a new signal is always a change")
	assert.False(t, g.SetSignal("eth0", "carrier", true), "same value is not a change")
	assert.True(t, g.SetSignal("eth0", "carrier", false))
	assert.False(t, g.SetSignal("missing-node", "carrier", true))
}

func TestAddSignal_RejectsDuplicateDeclaration(t *testing.T) {
	g := New()
	g.AddNode("eth0", KindLinkEthernet)
	require.True(t, g.AddSignal("eth0", "admin_up"))
	assert.False(t, g.AddSignal("eth0", "admin_up"))
}

func TestAddRequire_RejectsMissingNodesAndDuplicateEdges(t *testing.T) {
	g := New()
	g.AddNode("a", KindLinkEthernet)
	g.AddNode("b", KindLinkEthernet)

	assert.True(t, g.AddRequire("a", "b"))
	assert.False(t, g.AddRequire("a", "b"), "duplicate edge")
	assert.False(t, g.AddRequire("a", "missing"))
	assert.False(t, g.AddRequire("missing", "b"))
}

func TestEnableNode_MovesInactiveToWaiting(t *testing.T) {
	g := New()
	n := g.AddNode("eth0", KindLinkEthernet)
	require.True(t, g.EnableNode("eth0"))
	assert.True(t, n.Enabled)
	assert.Equal(t, StateWaiting, n.State)
}

func TestDisableNode_RunsDeactivateWhenActive(t *testing.T) {
	g := New()
	n := g.AddNode("eth0", KindLinkEthernet)
	n.State = StateActive
	n.Enabled = true

	deactivated := false
	n.Actions = fakeActions{deactivate: func() { deactivated = true }}

	require.True(t, g.DisableNode(context.Background(), "eth0"))
	assert.True(t, deactivated)
	assert.False(t, n.Enabled)
	assert.Equal(t, StateInactive, n.State)
}

func TestFlush_DisablesEveryNodeAndEmptiesGraph(t *testing.T) {
	g := New()
	g.AddNode("a", KindLinkEthernet)
	g.AddNode("b", KindLinkEthernet)
	g.EnableNode("a")
	g.EnableNode("b")

	g.Flush(context.Background())

	assert.Empty(t, g.Nodes())
	assert.Nil(t, g.FindNode("a"))
}

type fakeActions struct {
	activate   func() error
	deactivate func()
}

func (f fakeActions) Activate(ctx context.Context, n *Node) error {
	if f.activate != nil {
		return f.activate()
	}
	return nil
}

func (f fakeActions) Deactivate(ctx context.Context, n *Node) {
	if f.deactivate != nil {
		f.deactivate()
	}
}
