//go:build linux

package ingest

import (
	"fmt"
	"unsafe"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/routerwrt/lnmgr/internal/graph"
	"github.com/routerwrt/lnmgr/internal/lnlog"
)

// RtnetlinkIngester tracks link admin/operational state via RTMGRP_LINK
// multicast notifications. It writes three signals per interface node:
// admin_up (IFF_UP), running (IFF_RUNNING) and carrier (IFF_LOWER_UP); a
// RTM_DELLINK clears all three.
type RtnetlinkIngester struct {
	fd  int
	log zerolog.Logger
}

// NewRtnetlinkIngester opens an AF_NETLINK/NETLINK_ROUTE socket bound to
// RTMGRP_LINK and sets it non-blocking for epoll-driven reads.
func NewRtnetlinkIngester() (*RtnetlinkIngester, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("open rtnetlink socket: %w", err)
	}

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: unix.RTMGRP_LINK}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind rtnetlink socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set rtnetlink socket non-blocking: %w", err)
	}

	return &RtnetlinkIngester{fd: fd, log: lnlog.Named("ingest.rtnetlink")}, nil
}

func (r *RtnetlinkIngester) FD() int { return r.fd }

func (r *RtnetlinkIngester) Close() error {
	return unix.Close(r.fd)
}

// Sync issues an RTM_GETLINK dump request and applies every RTM_NEWLINK
// reply it sees until NLMSG_DONE, overwriting signal state for every
// interface reported. It is called at startup and again whenever Handle
// sees ENOBUFS.
func (r *RtnetlinkIngester) Sync(g *graph.Graph) error {
	if err := r.requestDump(); err != nil {
		return err
	}

	buf := make([]byte, 8192)
	for {
		n, _, err := unix.Recvfrom(r.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.ENOBUFS {
				continue // keep reading this dump until NLMSG_DONE; no new dump is requested
			}
			return fmt.Errorf("recv rtnetlink dump: %w", err)
		}

		msgs, err := unix.ParseNetlinkMessage(buf[:n])
		if err != nil {
			return fmt.Errorf("parse rtnetlink dump: %w", err)
		}

		done := false
		for _, m := range msgs {
			if m.Header.Type == unix.NLMSG_DONE {
				done = true
				break
			}
			if m.Header.Type == unix.RTM_NEWLINK {
				applyLinkMessage(g, m)
			}
		}
		if done {
			return nil
		}
	}
}

func (r *RtnetlinkIngester) requestDump() error {
	type ifinfomsgReq struct {
		hdr unix.NlMsghdr
		ifi unix.IfInfomsg
	}

	req := ifinfomsgReq{
		hdr: unix.NlMsghdr{
			Len:   uint32(unsafe.Sizeof(ifinfomsgReq{})),
			Type:  unix.RTM_GETLINK,
			Flags: unix.NLM_F_REQUEST | unix.NLM_F_DUMP,
			Seq:   1,
		},
		ifi: unix.IfInfomsg{Family: unix.AF_UNSPEC},
	}

	buf := (*[unsafe.Sizeof(req)]byte)(unsafe.Pointer(&req))[:]
	return unix.Sendto(r.fd, buf, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK})
}

// Handle drains pending multicast notifications, applying RTM_NEWLINK and
// RTM_DELLINK messages. On ENOBUFS (the kernel dropped messages because we
// read too slowly) it triggers a full Sync instead of trying to interpret a
// now-incomplete stream.
func (r *RtnetlinkIngester) Handle(g *graph.Graph) (bool, error) {
	buf := make([]byte, 8192)
	changed := false

	for {
		n, _, err := unix.Recvfrom(r.fd, buf, 0)
		if err != nil {
			if err == unix.EAGAIN {
				return changed, nil
			}
			if err == unix.EINTR {
				continue
			}
			if err == unix.ENOBUFS {
				r.log.Warn().Msg("rtnetlink ENOBUFS, resynchronizing")
				if syncErr := r.Sync(g); syncErr != nil {
					return changed, syncErr
				}
				return true, nil
			}
			return changed, fmt.Errorf("recv rtnetlink: %w", err)
		}

		msgs, err := unix.ParseNetlinkMessage(buf[:n])
		if err != nil {
			return changed, fmt.Errorf("parse rtnetlink message: %w", err)
		}

		for _, m := range msgs {
			switch m.Header.Type {
			case unix.RTM_NEWLINK:
				if applyLinkMessage(g, m) {
					changed = true
				}
			case unix.RTM_DELLINK:
				if clearLinkMessage(g, m) {
					changed = true
				}
			}
		}
	}
}

func linkName(m unix.NetlinkMessage) (string, *unix.IfInfomsg) {
	if len(m.Data) < int(unsafe.Sizeof(unix.IfInfomsg{})) {
		return "", nil
	}
	ifi := (*unix.IfInfomsg)(unsafe.Pointer(&m.Data[0]))

	attrs, err := unix.ParseNetlinkRouteAttr(&m)
	if err != nil {
		return "", ifi
	}
	for _, a := range attrs {
		if a.Attr.Type == unix.IFLA_IFNAME {
			return unix.ByteSliceToString(a.Value), ifi
		}
	}
	return "", ifi
}

func applyLinkMessage(g *graph.Graph, m unix.NetlinkMessage) bool {
	name, ifi := linkName(m)
	if name == "" || ifi == nil {
		return false
	}

	changed := false
	if g.SetSignal(name, "admin_up", ifi.Flags&unix.IFF_UP != 0) {
		changed = true
	}
	if g.SetSignal(name, "running", ifi.Flags&unix.IFF_RUNNING != 0) {
		changed = true
	}
	if g.SetSignal(name, "carrier", ifi.Flags&unix.IFF_LOWER_UP != 0) {
		changed = true
	}
	return changed
}

func clearLinkMessage(g *graph.Graph, m unix.NetlinkMessage) bool {
	name, _ := linkName(m)
	if name == "" {
		return false
	}

	changed := false
	if g.SetSignal(name, "admin_up", false) {
		changed = true
	}
	if g.SetSignal(name, "running", false) {
		changed = true
	}
	if g.SetSignal(name, "carrier", false) {
		changed = true
	}
	return changed
}
