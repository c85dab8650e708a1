package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/lnerrors"
)

func TestParse_RejectsUnknownTopLevelField(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[],"bogus":true}`))
	require.Error(t, err)
	assert.True(t, lnerrors.IsCategory(err, lnerrors.CategoryConfigInvalid))
}

func TestParse_RejectsUnknownNodeField(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[{"id":"a","type":"ethernet","bogus":1}]}`))
	require.Error(t, err)
}

func TestParse_RejectsTrailingContent(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[]}{"extra":true}`))
	require.Error(t, err)
}

func TestParse_RejectsUnsupportedVersion(t *testing.T) {
	_, err := Parse([]byte(`{"version":2,"nodes":[]}`))
	require.Error(t, err)
}

func TestParse_RejectsDuplicateNodeID(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"a","type":"ethernet"},
		{"id":"a","type":"wifi"}
	]}`))
	require.Error(t, err)
}

func TestParse_RejectsUnknownNodeType(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[{"id":"a","type":"not-a-real-kind"}]}`))
	require.Error(t, err)
}

func TestParse_RejectsRequiresReferencingUnknownNode(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"a","type":"ethernet","requires":["missing"]}
	]}`))
	require.Error(t, err)
}

func TestParse_RejectsMasterReferencingUnknownNode(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"a","type":"ethernet","master":"missing"}
	]}`))
	require.Error(t, err)
}

func TestParse_AcceptsForwardReferencingRequires(t *testing.T) {
	doc, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"a","type":"ethernet","requires":["b"]},
		{"id":"b","type":"ethernet"}
	]}`))
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
}

func TestParse_RejectsVlanVidOutOfRange(t *testing.T) {
	_, err := Parse([]byte(`{"version":1,"nodes":[{"id":"a","type":"vlan","vlan.vid":5000}]}`))
	require.Error(t, err)
}

func TestApply_AttachesBridgePortFeatureWheneverMasterIsSet(t *testing.T) {
	doc, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"br0","type":"bridge"},
		{"id":"eth0","type":"ethernet","master":"br0"}
	]}`))
	require.NoError(t, err)

	g := graph.New()
	require.NoError(t, Apply(context.Background(), g, doc))

	eth0 := g.FindNode("eth0")
	require.NotNil(t, eth0.FeatureOf(graph.FeatureBridgePort))
	require.NotNil(t, eth0.FeatureOf(graph.FeatureMaster))
}

func TestApply_BridgeKindGetsImplicitBridgeFeature(t *testing.T) {
	doc, err := Parse([]byte(`{"version":1,"nodes":[{"id":"br0","type":"bridge"}]}`))
	require.NoError(t, err)

	g := graph.New()
	require.NoError(t, Apply(context.Background(), g, doc))

	br0 := g.FindNode("br0")
	bf, ok := br0.FeatureOf(graph.FeatureBridge).(*graph.BridgeFeature)
	require.True(t, ok)
	assert.True(t, bf.VlanFiltering, "bridge kind defaults to vlan filtering on")
}

func TestApply_EnablesOnlyNodesMarkedEnabled(t *testing.T) {
	doc, err := Parse([]byte(`{"version":1,"nodes":[
		{"id":"a","type":"ethernet","enabled":true},
		{"id":"b","type":"ethernet","enabled":false}
	]}`))
	require.NoError(t, err)

	g := graph.New()
	require.NoError(t, Apply(context.Background(), g, doc))

	assert.True(t, g.FindNode("a").Enabled)
	assert.False(t, g.FindNode("b").Enabled)
}

func TestApply_FlushEmptiesGraphFirst(t *testing.T) {
	g := graph.New()
	g.AddNode("stale", graph.KindLinkEthernet)

	doc, err := Parse([]byte(`{"version":1,"flush":true,"nodes":[{"id":"fresh","type":"ethernet"}]}`))
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), g, doc))

	assert.Nil(t, g.FindNode("stale"))
	assert.NotNil(t, g.FindNode("fresh"))
}
