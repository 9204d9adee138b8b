// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package routing

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/iface"
	"github.com/dtaht/hnetd/prefix"
	"github.com/dtaht/hnetd/tlv"
)

type fakeResolver struct {
	links     map[uint32]string
	addrs     map[[2]uint32]netip.Addr
	v4ifaces  map[string]bool
	adhoc     map[string]bool
	neighbors map[string]bool
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		links:     map[uint32]string{},
		addrs:     map[[2]uint32]netip.Addr{},
		v4ifaces:  map[string]bool{},
		adhoc:     map[string]bool{},
		neighbors: map[string]bool{},
	}
}

func (r *fakeResolver) LinkByID(linkID uint32) (string, bool) {
	ifname, ok := r.links[linkID]
	return ifname, ok
}

func (r *fakeResolver) LastAddress(linkID, neighborLinkID uint32) (netip.Addr, bool) {
	a, ok := r.addrs[[2]uint32{linkID, neighborLinkID}]
	return a, ok
}

func (r *fakeResolver) HasIPv4Address(ifname string) bool { return r.v4ifaces[ifname] }
func (r *fakeResolver) IsAdhoc(ifname string) bool         { return r.adhoc[ifname] }
func (r *fakeResolver) DirectNeighbor(ifname string, rid dncp.RID, linkID uint32) bool {
	return r.neighbors[ifname]
}

func TestBFSInstallsInternalRouteViaNeighbor(t *testing.T) {
	local := dncp.NewFake(dncp.NodeID{1}, dncp.RID{1})
	local.Publish(dncp.EncodeNeighbor(dncp.Neighbor{NeighborRID: dncp.RID{2}, LocalLinkID: 10, NeighborLinkID: 20}))

	remotePrefix, _ := prefix.Parse("2001:db8:1::/64")
	local.SetPeer(dncp.NodeID{2}, dncp.RID{2}, []tlv.Attr{
		dncp.EncodeAssignedPrefix(dncp.AssignedPrefix{LinkID: 20, Prefix: remotePrefix}),
	})

	resolver := newFakeResolver()
	resolver.links[10] = "eth0"
	peerAddr := netip.MustParseAddr("fe80::2")
	resolver.addrs[[2]uint32{10, 20}] = peerAddr

	sink := iface.NewBARTRouteSink()
	reg := iface.NewRegistry(sink)
	_, err := reg.Create("eth0", "eth0", "hybrid")
	require.NoError(t, err)

	RunBFS(local, resolver, reg)

	routes := sink.Routes()
	require.Len(t, routes, 1)
	assert.True(t, prefix.Equal(remotePrefix, routes[0].Dest))
	assert.Equal(t, peerAddr, routes[0].NextHop)
	assert.Equal(t, "eth0", routes[0].IfName)
	assert.EqualValues(t, (1<<8)|20&0xff, routes[0].Metric)
}

func TestBFSInstallsDefaultRouteViaExternalConnection(t *testing.T) {
	local := dncp.NewFake(dncp.NodeID{1}, dncp.RID{1})
	local.Publish(dncp.EncodeNeighbor(dncp.Neighbor{NeighborRID: dncp.RID{2}, LocalLinkID: 10, NeighborLinkID: 20}))

	dp, _ := prefix.Parse("2001:db8::/32")
	local.SetPeer(dncp.NodeID{2}, dncp.RID{2}, []tlv.Attr{
		dncp.EncodeExternalConnection([]dncp.DelegatedPrefixRecord{{Prefix: dp}}),
	})

	resolver := newFakeResolver()
	resolver.links[10] = "eth0"
	peerAddr := netip.MustParseAddr("fe80::2")
	resolver.addrs[[2]uint32{10, 20}] = peerAddr

	sink := iface.NewBARTRouteSink()
	reg := iface.NewRegistry(sink)
	_, err := reg.Create("eth0", "eth0", "hybrid")
	require.NoError(t, err)

	RunBFS(local, resolver, reg)

	routes := sink.Routes()
	require.Len(t, routes, 1)
	assert.EqualValues(t, 0, routes[0].Dest.Plen)
	assert.Equal(t, peerAddr, routes[0].NextHop)
}
