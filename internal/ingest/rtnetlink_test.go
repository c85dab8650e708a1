//go:build linux

package ingest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/graph"
)

// ifinfomsgWithName builds the raw ifinfomsg+IFLA_IFNAME payload a
// RTM_NEWLINK/RTM_DELLINK message carries, the same shape linkName parses.
func ifinfomsgWithName(t *testing.T, name string, flags uint32) []byte {
	t.Helper()

	nameBytes := append([]byte(name), 0)
	attrLen := 4 + len(nameBytes)

	buf := make([]byte, 16+((attrLen+3)&^3))
	binary.NativeEndian.PutUint32(buf[4:8], 0) // Index
	binary.NativeEndian.PutUint32(buf[8:12], flags)

	binary.NativeEndian.PutUint16(buf[16:18], uint16(attrLen))
	binary.NativeEndian.PutUint16(buf[18:20], unix.IFLA_IFNAME)
	copy(buf[20:], nameBytes)

	return buf
}

func newLinkMsg(data []byte) unix.NetlinkMessage {
	return unix.NetlinkMessage{
		Header: unix.NlMsghdr{Type: unix.RTM_NEWLINK},
		Data:   data,
	}
}

func TestLinkName_ExtractsInterfaceNameAndFlags(t *testing.T) {
	data := ifinfomsgWithName(t, "eth0", unix.IFF_UP|unix.IFF_RUNNING)
	name, ifi := linkName(newLinkMsg(data))

	require.NotNil(t, ifi)
	assert.Equal(t, "eth0", name)
	assert.NotZero(t, ifi.Flags&unix.IFF_UP)
	assert.NotZero(t, ifi.Flags&unix.IFF_RUNNING)
	assert.Zero(t, ifi.Flags&unix.IFF_LOWER_UP)
}

func TestLinkName_TooShortMessageReturnsEmpty(t *testing.T) {
	name, ifi := linkName(unix.NetlinkMessage{Data: []byte{1, 2, 3}})
	assert.Empty(t, name)
	assert.Nil(t, ifi)
}

func TestApplyLinkMessage_WritesAdminUpRunningAndCarrierSignals(t *testing.T) {
	g := graph.New()
	g.AddNode("eth0", graph.KindLinkEthernet)
	g.AddSignal("eth0", "admin_up")
	g.AddSignal("eth0", "running")
	g.AddSignal("eth0", "carrier")

	data := ifinfomsgWithName(t, "eth0", unix.IFF_UP|unix.IFF_RUNNING|unix.IFF_LOWER_UP)
	changed := applyLinkMessage(g, newLinkMsg(data))

	assert.True(t, changed)
	n := g.FindNode("eth0")
	up, _ := n.SignalValue("admin_up")
	running, _ := n.SignalValue("running")
	carrier, _ := n.SignalValue("carrier")
	assert.True(t, up)
	assert.True(t, running)
	assert.True(t, carrier)
}

func TestApplyLinkMessage_UnknownInterfaceIsNoop(t *testing.T) {
	g := graph.New()
	data := ifinfomsgWithName(t, "ghost0", unix.IFF_UP)

	assert.False(t, applyLinkMessage(g, newLinkMsg(data)))
}

func TestClearLinkMessage_ForcesAllThreeSignalsFalse(t *testing.T) {
	g := graph.New()
	g.AddNode("eth0", graph.KindLinkEthernet)
	g.AddSignal("eth0", "admin_up")
	g.AddSignal("eth0", "running")
	g.AddSignal("eth0", "carrier")
	g.SetSignal("eth0", "admin_up", true)
	g.SetSignal("eth0", "running", true)
	g.SetSignal("eth0", "carrier", true)

	data := ifinfomsgWithName(t, "eth0", 0)
	changed := clearLinkMessage(g, newLinkMsg(data))

	assert.True(t, changed)
	n := g.FindNode("eth0")
	up, _ := n.SignalValue("admin_up")
	assert.False(t, up)
}
