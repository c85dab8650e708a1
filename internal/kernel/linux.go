//go:build linux

package kernel

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/vishvananda/netlink"

	"github.com/routerwrt/lnmgr/internal/lnerrors"
	"github.com/routerwrt/lnmgr/internal/lnlog"
)

// LinuxAdapter implements Adapter against the running kernel's link and
// bridge tables via vishvananda/netlink.
type LinuxAdapter struct {
	log zerolog.Logger
}

// NewLinuxAdapter returns an Adapter backed by the host's netlink socket.
func NewLinuxAdapter() *LinuxAdapter {
	return &LinuxAdapter{log: lnlog.Named("kernel")}
}

func wrapKernel(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return lnerrors.NewKernel(op).WithContext("id", id).WithCause(err)
}

func (a *LinuxAdapter) linkByName(id string) (netlink.Link, error) {
	link, err := netlink.LinkByName(id)
	if err != nil {
		var lnf netlink.LinkNotFoundError
		if errors.As(err, &lnf) {
			return nil, nil
		}
		return nil, err
	}
	return link, nil
}

func (a *LinuxAdapter) LinkSetUp(ctx context.Context, id string) error {
	link, err := a.linkByName(id)
	if err != nil {
		return wrapKernel("link_set_up", id, err)
	}
	if link == nil {
		return wrapKernel("link_set_up", id, errors.New("link does not exist"))
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return wrapKernel("link_set_up", id, err)
	}
	a.log.Debug().Str("id", id).Msg("link set up")
	return nil
}

func (a *LinuxAdapter) LinkSetDown(ctx context.Context, id string) error {
	link, err := a.linkByName(id)
	if err != nil {
		return wrapKernel("link_set_down", id, err)
	}
	if link == nil {
		return nil // idempotent: already gone
	}
	if err := netlink.LinkSetDown(link); err != nil {
		return wrapKernel("link_set_down", id, err)
	}
	a.log.Debug().Str("id", id).Msg("link set down")
	return nil
}

func (a *LinuxAdapter) LinkIsUp(ctx context.Context, id string) (bool, error) {
	link, err := a.linkByName(id)
	if err != nil {
		return false, wrapKernel("link_is_up", id, err)
	}
	if link == nil {
		return false, nil
	}
	return link.Attrs().Flags&netlink.FlagUp != 0, nil
}

func (a *LinuxAdapter) LinkExists(ctx context.Context, id string) (bool, error) {
	link, err := a.linkByName(id)
	if err != nil {
		return false, wrapKernel("link_exists", id, err)
	}
	return link != nil, nil
}

func (a *LinuxAdapter) LinkIfindex(ctx context.Context, id string) (int, error) {
	link, err := a.linkByName(id)
	if err != nil {
		return 0, wrapKernel("link_ifindex", id, err)
	}
	if link == nil {
		return 0, wrapKernel("link_ifindex", id, errors.New("link does not exist"))
	}
	return link.Attrs().Index, nil
}

func (a *LinuxAdapter) BridgeCreate(ctx context.Context, id string) error {
	link, err := a.linkByName(id)
	if err != nil {
		return wrapKernel("bridge_create", id, err)
	}
	if link != nil {
		return nil // idempotent: already exists
	}

	br := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: id}}
	if err := netlink.LinkAdd(br); err != nil {
		return wrapKernel("bridge_create", id, err)
	}
	a.log.Info().Str("id", id).Msg("bridge created")
	return nil
}

func (a *LinuxAdapter) BridgeSetVlanFiltering(ctx context.Context, id string, on bool) error {
	link, err := a.linkByName(id)
	if err != nil {
		return wrapKernel("bridge_set_vlan_filtering", id, err)
	}
	br, ok := link.(*netlink.Bridge)
	if !ok {
		return wrapKernel("bridge_set_vlan_filtering", id, errors.New("not a bridge"))
	}
	br.VlanFiltering = &on
	if err := netlink.LinkModify(br); err != nil {
		return wrapKernel("bridge_set_vlan_filtering", id, err)
	}
	return nil
}

func (a *LinuxAdapter) BridgeAddPort(ctx context.Context, bridgeID, portID string) error {
	bridge, err := a.linkByName(bridgeID)
	if err != nil {
		return wrapKernel("bridge_add_port", portID, err)
	}
	if bridge == nil {
		return wrapKernel("bridge_add_port", portID, errors.New("bridge does not exist"))
	}
	port, err := a.linkByName(portID)
	if err != nil {
		return wrapKernel("bridge_add_port", portID, err)
	}
	if port == nil {
		return wrapKernel("bridge_add_port", portID, errors.New("port does not exist"))
	}
	if port.Attrs().MasterIndex == bridge.Attrs().Index {
		return nil // idempotent: already a port
	}
	if err := netlink.LinkSetMaster(port, bridge); err != nil {
		return wrapKernel("bridge_add_port", portID, err)
	}
	a.log.Debug().Str("bridge", bridgeID).Str("port", portID).Msg("port added to bridge")
	return nil
}

func (a *LinuxAdapter) BridgeVlanAdd(ctx context.Context, bridgeID, portID string, vid uint16, tagged, pvid bool) error {
	port, err := a.linkByName(portID)
	if err != nil {
		return wrapKernel("bridge_vlan_add", portID, err)
	}
	if port == nil {
		return wrapKernel("bridge_vlan_add", portID, errors.New("port does not exist"))
	}
	if err := netlink.BridgeVlanAdd(port, vid, pvid, !tagged, false, false); err != nil {
		return wrapKernel("bridge_vlan_add", portID, err)
	}
	return nil
}

func (a *LinuxAdapter) BridgeVlanDel(ctx context.Context, bridgeID, portID string, vid uint16) error {
	port, err := a.linkByName(portID)
	if err != nil {
		return wrapKernel("bridge_vlan_del", portID, err)
	}
	if port == nil {
		return nil // idempotent
	}
	if err := netlink.BridgeVlanDel(port, vid, false, false, false, false); err != nil {
		return wrapKernel("bridge_vlan_del", portID, err)
	}
	return nil
}
