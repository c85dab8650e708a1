package graph

// Type is the semantic category a Kind belongs to.
type Type int

const (
	TypeLink Type = iota
	TypeL2Aggregate
	TypeL3Network
	TypeService
)

func (t Type) String() string {
	switch t {
	case TypeLink:
		return "link"
	case TypeL2Aggregate:
		return "l2_aggregate"
	case TypeL3Network:
		return "l3_network"
	case TypeService:
		return "service"
	default:
		return "unknown"
	}
}

// Kind is a concrete node implementation kind (ethernet, bridge, dhcp-client, ...).
type Kind int

const (
	KindLinkGeneric Kind = iota
	KindLinkLoopback
	KindLinkEthernet
	KindLinkWifi
	KindLinkDSAPort
	KindLinkTun
	KindLinkTap
	KindLinkGRE
	KindLinkVTI
	KindLinkXFRM

	KindL2Bridge
	KindL2Bond
	KindL2Team
	KindL2LAG
	KindL2VlanDomain

	KindL3IPv4
	KindL3IPv6
	KindL3Dualstack
	KindL3VRF

	KindSvcDHCPClient
	KindSvcDHCPServer
	KindSvcRouter
	KindSvcFirewall
	KindSvcVPN
	KindSvcMonitor
)

// Flags is a capability bitset describing what a Kind can do.
type Flags uint32

const (
	FlagHasPorts Flags = 1 << iota
	FlagHasVlans
	FlagHasIP
	FlagProducesL2
	FlagProducesL3
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Desc is the static descriptor for a Kind, looked up from the kind registry.
type Desc struct {
	Kind       Kind
	Type       Type
	ConfigName string
	Flags      Flags
}

// kindTable is the authoritative, append-only registry of node kinds. Ported
// from original_source/src/node.c's kind_table, including the kinds spec.md's
// prose only mentions in passing (loopback, tun/tap/gre/vti/xfrm, bond/team/lag,
// the full L3 set, and the remaining service kinds).
var kindTable = []Desc{
	{KindLinkGeneric, TypeLink, "link", 0},
	{KindLinkLoopback, TypeLink, "loopback", 0},
	{KindLinkEthernet, TypeLink, "ethernet", 0},
	{KindLinkWifi, TypeLink, "wifi", 0},
	{KindLinkDSAPort, TypeLink, "dsa-port", FlagProducesL2},
	{KindLinkTun, TypeLink, "tun", FlagProducesL3},
	{KindLinkTap, TypeLink, "tap", FlagProducesL2},
	{KindLinkGRE, TypeLink, "gre", FlagProducesL3},
	{KindLinkVTI, TypeLink, "vti", FlagProducesL3},
	{KindLinkXFRM, TypeLink, "xfrm", FlagProducesL3},

	{KindL2Bridge, TypeL2Aggregate, "bridge", FlagHasPorts | FlagHasVlans},
	{KindL2Bond, TypeL2Aggregate, "bond", FlagHasPorts},
	{KindL2Team, TypeL2Aggregate, "team", FlagHasPorts},
	{KindL2LAG, TypeL2Aggregate, "lag", FlagHasPorts},
	{KindL2VlanDomain, TypeL2Aggregate, "vlan", FlagHasPorts | FlagHasVlans},

	{KindL3IPv4, TypeL3Network, "ipv4", FlagHasIP},
	{KindL3IPv6, TypeL3Network, "ipv6", FlagHasIP},
	{KindL3Dualstack, TypeL3Network, "dualstack", FlagHasIP},
	{KindL3VRF, TypeL3Network, "vrf", FlagHasIP},

	{KindSvcDHCPClient, TypeService, "dhcp-client", 0},
	{KindSvcDHCPServer, TypeService, "dhcp-server", 0},
	{KindSvcRouter, TypeService, "router", 0},
	{KindSvcFirewall, TypeService, "firewall", 0},
	{KindSvcVPN, TypeService, "vpn", 0},
	{KindSvcMonitor, TypeService, "monitor", 0},
}

// LookupKind returns the descriptor for kind, or (Desc{}, false) if unknown.
func LookupKind(kind Kind) (Desc, bool) {
	for _, d := range kindTable {
		if d.Kind == kind {
			return d, true
		}
	}
	return Desc{}, false
}

// LookupKindName returns the descriptor whose config name matches name.
func LookupKindName(name string) (Desc, bool) {
	for _, d := range kindTable {
		if d.ConfigName == name {
			return d, true
		}
	}
	return Desc{}, false
}
