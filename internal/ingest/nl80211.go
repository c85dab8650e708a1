//go:build linux

package ingest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/lnlog"
)

// Generic netlink and nl80211 constants not exposed by golang.org/x/sys/unix.
const (
	genlIDCtrl          = 0x10
	genlHdrLen          = 4
	ctrlCmdGetFamily    = 3
	ctrlAttrFamilyID    = 1
	ctrlAttrFamilyName  = 2
	ctrlAttrMcastGroups = 7

	ctrlAttrMcastGrpName = 1
	ctrlAttrMcastGrpID   = 2

	// nlaTypeMask strips the NLA_F_NESTED/NLA_F_NET_BYTEORDER flag bits the
	// kernel sets on an attribute's type field.
	nlaTypeMask = 0x3fff

	nl80211AttrIfindex = 3

	nl80211CmdStartAP    = 15
	nl80211CmdStopAP     = 16
	nl80211CmdConnect    = 46
	nl80211CmdDisconnect = 48

	nl80211McastGroupMLME = "mlme"
	nl80211McastGroupAP   = "ap"
)

// Nl80211Ingester tracks wireless AP/STA lifecycle events over generic
// netlink. It writes "beaconing" on AP start/stop and "associated" plus
// "connected" on STA connect/disconnect, to the node named after the
// interface the event references.
type Nl80211Ingester struct {
	fd       int
	familyID uint16
	log      zerolog.Logger
}

// NewNl80211Ingester opens a NETLINK_GENERIC socket and resolves the
// "nl80211" generic netlink family id.
func NewNl80211Ingester() (*Nl80211Ingester, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_GENERIC)
	if err != nil {
		return nil, fmt.Errorf("open genetlink socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind genetlink socket: %w", err)
	}

	family, groups, err := resolveFamily(fd, "nl80211")
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	log := lnlog.Named("ingest.nl80211")
	for _, name := range []string{nl80211McastGroupMLME, nl80211McastGroupAP} {
		gid, ok := groups[name]
		if !ok {
			log.Warn().Str("group", name).Msg("nl80211 multicast group not advertised by kernel")
			continue
		}
		if err := unix.SetsockoptInt(fd, unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(gid)); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("join nl80211 %q multicast group: %w", name, err)
		}
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set genetlink socket non-blocking: %w", err)
	}

	return &Nl80211Ingester{fd: fd, familyID: family, log: log}, nil
}

func (n *Nl80211Ingester) FD() int { return n.fd }

func (n *Nl80211Ingester) Close() error { return unix.Close(n.fd) }

// Sync is a no-op: nl80211 carries no dump-and-resync story comparable to
// rtnetlink's, matching the upstream behavior of this ingester.
func (n *Nl80211Ingester) Sync(g *graph.Graph) error { return nil }

func (n *Nl80211Ingester) Handle(g *graph.Graph) (bool, error) {
	buf := make([]byte, 8192)
	changed := false

	for {
		nbytes, _, err := unix.Recvfrom(n.fd, buf, 0)
		if err != nil {
			if err == unix.EAGAIN {
				return changed, nil
			}
			if err == unix.EINTR {
				continue
			}
			return changed, fmt.Errorf("recv genetlink: %w", err)
		}

		msgs, err := unix.ParseNetlinkMessage(buf[:nbytes])
		if err != nil {
			return changed, fmt.Errorf("parse genetlink message: %w", err)
		}

		for _, m := range msgs {
			if uint16(m.Header.Type) != n.familyID {
				continue
			}
			if applyNl80211Event(g, m.Data) {
				changed = true
			}
		}
	}
}

func applyNl80211Event(g *graph.Graph, data []byte) bool {
	if len(data) < genlHdrLen {
		return false
	}
	cmd := data[0]
	attrs := data[genlHdrLen:]

	ifindex, ok := findU32Attr(attrs, nl80211AttrIfindex)
	if !ok {
		return false
	}
	iface, err := net.InterfaceByIndex(int(ifindex))
	if err != nil {
		return false
	}

	changed := false
	switch cmd {
	case nl80211CmdStartAP, nl80211CmdStopAP:
		if g.SetSignal(iface.Name, "beaconing", cmd == nl80211CmdStartAP) {
			changed = true
		}
	case nl80211CmdConnect, nl80211CmdDisconnect:
		up := cmd == nl80211CmdConnect
		if g.SetSignal(iface.Name, "associated", up) {
			changed = true
		}
		if g.SetSignal(iface.Name, "connected", up) {
			changed = true
		}
	}
	return changed
}

// findU32Attr walks a flat nlattr list looking for attrType, returning its
// value interpreted as a native-endian uint32.
func findU32Attr(buf []byte, attrType uint16) (uint32, bool) {
	for len(buf) >= 4 {
		attrLen := binary.NativeEndian.Uint16(buf[0:2])
		aType := binary.NativeEndian.Uint16(buf[2:4])
		if attrLen < 4 || int(attrLen) > len(buf) {
			return 0, false
		}
		if aType == attrType && attrLen >= 8 {
			return binary.NativeEndian.Uint32(buf[4:8]), true
		}
		aligned := (int(attrLen) + 3) &^ 3
		if aligned > len(buf) {
			return 0, false
		}
		buf = buf[aligned:]
	}
	return 0, false
}

// resolveFamily issues a CTRL_CMD_GETFAMILY request for name and returns its
// generic-netlink family id plus the multicast group name-to-id table the
// same reply carries in its CTRL_ATTR_MCAST_GROUPS attribute.
func resolveFamily(fd int, name string) (uint16, map[string]uint32, error) {
	nameBytes := append([]byte(name), 0)
	attrLen := 4 + len(nameBytes)
	aligned := (attrLen + 3) &^ 3

	const hdrLen = 16 // nlmsghdr
	const genlLen = 4 // genlmsghdr
	total := hdrLen + genlLen + aligned

	buf := make([]byte, total)
	binary.NativeEndian.PutUint32(buf[0:4], uint32(total))
	binary.NativeEndian.PutUint16(buf[4:6], genlIDCtrl)
	binary.NativeEndian.PutUint16(buf[6:8], unix.NLM_F_REQUEST)
	// seq, pid left zero
	buf[16] = ctrlCmdGetFamily // cmd
	buf[17] = 1                // version
	binary.NativeEndian.PutUint16(buf[20:22], uint16(attrLen))
	binary.NativeEndian.PutUint16(buf[22:24], ctrlAttrFamilyName)
	copy(buf[24:], nameBytes)

	if err := unix.Sendto(fd, buf, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return 0, nil, fmt.Errorf("send genl family request: %w", err)
	}

	reply := make([]byte, 4096)
	nbytes, _, err := unix.Recvfrom(fd, reply, 0)
	if err != nil {
		return 0, nil, fmt.Errorf("recv genl family reply: %w", err)
	}

	msgs, err := unix.ParseNetlinkMessage(reply[:nbytes])
	if err != nil {
		return 0, nil, fmt.Errorf("parse genl family reply: %w", err)
	}

	for _, m := range msgs {
		if len(m.Data) <= genlHdrLen {
			continue
		}
		attrs := m.Data[genlHdrLen:]
		id, ok := findU32Attr(attrs, ctrlAttrFamilyID)
		if !ok {
			continue
		}
		return uint16(id), mcastGroupIDs(attrs), nil
	}

	return 0, nil, fmt.Errorf("nl80211 family not found")
}

// rawAttr is a single decoded netlink attribute at one nesting level.
type rawAttr struct {
	aType uint16
	value []byte
}

// splitAttrs walks a flat nlattr buffer one level deep, masking off the
// NLA_F_NESTED/NLA_F_NET_BYTEORDER flag bits on each attribute's type.
func splitAttrs(buf []byte) []rawAttr {
	var out []rawAttr
	for len(buf) >= 4 {
		attrLen := binary.NativeEndian.Uint16(buf[0:2])
		aType := binary.NativeEndian.Uint16(buf[2:4]) & nlaTypeMask
		if attrLen < 4 || int(attrLen) > len(buf) {
			return out
		}
		out = append(out, rawAttr{aType: aType, value: buf[4:attrLen]})
		aligned := (int(attrLen) + 3) &^ 3
		if aligned > len(buf) {
			return out
		}
		buf = buf[aligned:]
	}
	return out
}

// mcastGroupIDs parses a CTRL_CMD_GETFAMILY reply's attribute block and
// returns every advertised multicast group, keyed by name.
func mcastGroupIDs(attrs []byte) map[string]uint32 {
	groups := make(map[string]uint32)

	for _, a := range splitAttrs(attrs) {
		if a.aType != ctrlAttrMcastGroups {
			continue
		}
		for _, group := range splitAttrs(a.value) {
			var name string
			var id uint32
			for _, ga := range splitAttrs(group.value) {
				switch ga.aType {
				case ctrlAttrMcastGrpName:
					name = string(trimNull(ga.value))
				case ctrlAttrMcastGrpID:
					if len(ga.value) >= 4 {
						id = binary.NativeEndian.Uint32(ga.value)
					}
				}
			}
			if name != "" {
				groups[name] = id
			}
		}
	}

	return groups
}

func trimNull(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}
