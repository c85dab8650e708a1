// Package kernel adapts the graph's activate/deactivate actions onto the
// running Linux kernel's link and bridge state via netlink.
package kernel

import "context"

// Adapter is the set of idempotent kernel operations the action dispatcher
// needs. Every method returns a *lnerrors.Error with category Kernel on
// failure; implementations must tolerate ENOBUFS internally rather than
// surface it; a caller that hits ENOBUFS on a netlink socket it owns asks
// the owning ingester to resync instead of failing the action.
type Adapter interface {
	LinkSetUp(ctx context.Context, id string) error
	LinkSetDown(ctx context.Context, id string) error
	LinkIsUp(ctx context.Context, id string) (bool, error)
	LinkExists(ctx context.Context, id string) (bool, error)
	LinkIfindex(ctx context.Context, id string) (int, error)

	BridgeCreate(ctx context.Context, id string) error
	BridgeSetVlanFiltering(ctx context.Context, id string, on bool) error
	BridgeAddPort(ctx context.Context, bridgeID, portID string) error

	BridgeVlanAdd(ctx context.Context, bridgeID, portID string, vid uint16, tagged, pvid bool) error
	BridgeVlanDel(ctx context.Context, bridgeID, portID string, vid uint16) error
}
