// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package routing

import (
	"net/netip"

	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/iface"
	"github.com/dtaht/hnetd/prefix"
)

// NeighborResolver supplies the information the BFS needs that isn't
// carried on a TLV: this router's own outgoing link for a given
// local_link_id, and that link's last-seen peer address.
type NeighborResolver interface {
	// LinkByID resolves a local link_id to an interface name, ok=false
	// if unknown.
	LinkByID(linkID uint32) (ifname string, ok bool)
	// LastAddress returns the last-seen address of the neighbor
	// reached via (linkID, neighborLinkID), ok=false if none recorded.
	LastAddress(linkID, neighborLinkID uint32) (netip.Addr, bool)
	// HasIPv4Address reports whether ifname currently has an IPv4
	// address configured.
	HasIPv4Address(ifname string) bool
	// IsAdhoc reports whether ifname is flagged adhoc.
	IsAdhoc(ifname string) bool
	// DirectNeighbor reports whether (rid, linkID) is a currently
	// bidirectional neighbor on ifname.
	DirectNeighbor(ifname string, rid dncp.RID, linkID uint32) bool
}

type bfsState struct {
	nextHop  netip.Addr
	nextHop4 netip.Addr
	ifname   string
	hopcount uint32
	visited  bool
}

// RunBFS computes next-hops by breadth-first search from the local
// node over bidirectional neighbor edges, installing internal routes
// for assigned prefixes and default routes for externally-connected
// delegated prefixes, in a single route-update transaction. Only
// meaningful when no routing protocol was elected (spec's BFS
// fallback); callers are expected to skip calling this otherwise.
func RunBFS(view dncp.View, resolver NeighborResolver, registry *iface.Registry) {
	local := view.LocalNode()
	states := make(map[dncp.NodeID]*bfsState, len(view.Nodes()))
	for _, n := range view.Nodes() {
		states[n.ID] = &bfsState{}
	}
	states[local.ID].visited = true

	txn := registry.BeginRouteUpdate()
	defer txn.Commit()

	haveV4Uplink := false
	queue := []dncp.Node{local}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		cs := states[c.ID]

		for _, a := range c.TLVs {
			switch a.Type {
			case dncp.TypeNeighbor:
				neigh, ok := dncp.DecodeNeighbor(a)
				if !ok {
					continue
				}
				n, found := view.Node(dncp.NodeID(neigh.NeighborRID))
				if !found {
					continue
				}
				ns := states[n.ID]
				if ns == nil || ns.visited {
					continue
				}

				if c.ID == local.ID {
					ifname, ok := resolver.LinkByID(neigh.LocalLinkID)
					if !ok {
						continue
					}
					addr, ok := resolver.LastAddress(neigh.LocalLinkID, neigh.NeighborLinkID)
					if ok {
						ns.nextHop = addr
					}
					ns.ifname = ifname
					for _, na := range n.TLVsOfType(dncp.TypeRouterAddress) {
						ra, ok := dncp.DecodeRouterAddress(na)
						if ok && ra.LinkID == neigh.NeighborLinkID && ra.IsIPv4Mapped() {
							ns.nextHop4 = prefix.NetipPrefix(prefix.Prefix{Addr: ra.Address, Plen: 128}).Addr()
							break
						}
					}
				} else {
					ns.nextHop = cs.nextHop
					ns.nextHop4 = cs.nextHop4
					ns.ifname = cs.ifname
				}

				if !ns.nextHop.IsValid() || ns.ifname == "" {
					continue
				}
				ns.hopcount = cs.hopcount + 1
				ns.visited = true
				queue = append(queue, n)

			case dncp.TypeExternalConnection:
				if c.ID == local.ID {
					continue
				}
				for _, dp := range dncp.ExternalConnection(a) {
					if prefix.IsIPv4(dp.Prefix) {
						if cs.nextHop4.IsValid() && cs.ifname != "" && !haveV4Uplink && resolver.HasIPv4Address(cs.ifname) {
							txn.Add(iface.Route{Dest: prefix.Prefix{Plen: 0}, NextHop: cs.nextHop4, IfName: cs.ifname, Metric: cs.hopcount})
							haveV4Uplink = true
						}
					} else if cs.nextHop.IsValid() && cs.ifname != "" {
						txn.Add(iface.Route{Dest: prefix.Prefix{Plen: 0}, NextHop: cs.nextHop, IfName: cs.ifname, Metric: cs.hopcount})
					}
				}

			case dncp.TypeAssignedPrefix:
				if c.ID == local.ID {
					continue
				}
				ap, ok := dncp.DecodeAssignedPrefix(a)
				if !ok {
					continue
				}
				if cs.ifname != "" && !resolver.IsAdhoc(cs.ifname) && cs.hopcount == 1 &&
					resolver.DirectNeighbor(cs.ifname, c.RID, ap.LinkID) {
					continue
				}
				nh := cs.nextHop
				if !nh.IsValid() {
					continue
				}
				txn.Add(iface.Route{
					Dest:    ap.Prefix,
					NextHop: nh,
					IfName:  cs.ifname,
					Metric:  (cs.hopcount << 8) | ap.LinkID&0xff,
				})
			}
		}
	}
}
