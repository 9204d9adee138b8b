// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package dncp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/prefix"
)

func TestRoutingProtocolRoundTrip(t *testing.T) {
	a := EncodeRoutingProtocol(RoutingProtocol{Protocol: 3, Preference: 200})
	got, ok := DecodeRoutingProtocol(a)
	require.True(t, ok)
	assert.EqualValues(t, 3, got.Protocol)
	assert.EqualValues(t, 200, got.Preference)
}

func TestNeighborRoundTrip(t *testing.T) {
	n := Neighbor{NeighborRID: RID{1, 2, 3, 4, 5, 6, 7, 8}, LocalLinkID: 11, NeighborLinkID: 22}
	a := EncodeNeighbor(n)
	got, ok := DecodeNeighbor(a)
	require.True(t, ok)
	assert.Equal(t, n, got)
}

func TestAssignedPrefixRoundTrip(t *testing.T) {
	p, err := prefix.Parse("2001:db8:1::/48")
	require.NoError(t, err)
	ap := AssignedPrefix{LinkID: 7, Prefix: p, Priority: 128, Authoritative: true}
	a := EncodeAssignedPrefix(ap)
	got, ok := DecodeAssignedPrefix(a)
	require.True(t, ok)
	assert.Equal(t, ap.LinkID, got.LinkID)
	assert.Equal(t, ap.Priority, got.Priority)
	assert.True(t, got.Authoritative)
	assert.True(t, prefix.Equal(ap.Prefix, got.Prefix))
}

func TestExternalConnectionRoundTrip(t *testing.T) {
	p1, _ := prefix.Parse("2001:db8::/32")
	p2, _ := prefix.Parse("10.0.0.0/8")
	dps := []DelegatedPrefixRecord{
		{Prefix: p1, PreferredSeconds: 1800, ValidSeconds: 3600},
		{Prefix: p2, PreferredSeconds: 300, ValidSeconds: 600, DHCPOpts: []byte{1, 2, 3}},
	}
	outer := EncodeExternalConnection(dps)
	got := ExternalConnection(outer)
	require.Len(t, got, 2)
	assert.True(t, prefix.Equal(dps[0].Prefix, got[0].Prefix))
	assert.Equal(t, dps[0].ValidSeconds, got[0].ValidSeconds)
	assert.True(t, prefix.Equal(dps[1].Prefix, got[1].Prefix))
	assert.Equal(t, []byte{1, 2, 3}, got[1].DHCPOpts)
}

func TestFakeViewPublishAndPeers(t *testing.T) {
	local := NodeID{0x01}
	f := NewFake(local, RID{1})
	h := f.Publish(EncodeRoutingProtocol(RoutingProtocol{Protocol: 1, Preference: 50}))
	assert.NotZero(t, h)

	peer := NodeID{0x02}
	f.SetPeer(peer, RID{2}, nil)

	assert.Len(t, f.Nodes(), 2)
	n, ok := f.Node(local)
	require.True(t, ok)
	assert.Len(t, n.TLVs, 1)

	f.RemovePeer(peer)
	assert.Len(t, f.Nodes(), 1)
}
