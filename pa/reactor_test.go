// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/prefix"
)

type fixedLinks []Link

func (f fixedLinks) Links() []Link { return []Link(f) }

func TestReactorAdvertisesAndAppliesNewLocalDP(t *testing.T) {
	s := NewStore(noopScheduler{})
	var rid dncp.RID
	rid[0] = 4
	s.SetRID(rid)

	view := dncp.NewFake(dncp.NodeID(rid), rid)
	core := NewCore(s, nil, 128)
	links := fixedLinks{{LinkID: 1, Plen: 64}}
	reactor := NewReactor(s, core, view, view, links, noopScheduler{})
	s.Subscribe(reactor)

	dpPrefix, _ := prefix.Parse("2001:db8::/32")
	s.AddDP(DP{Prefix: dpPrefix, Local: true})

	var cps []CPHandle
	for _, h := range s.AllCPs() {
		cps = append(cps, h)
	}
	require.Len(t, cps, 1)

	cp, ok := s.CP(cps[0])
	require.True(t, ok)
	assert.Equal(t, CPApplied, cp.State, "noopScheduler runs ScheduleApply synchronously")
	assert.True(t, cp.Published)
	assert.True(t, prefix.Contains(dpPrefix, cp.Prefix))

	local := view.LocalNode()
	var found bool
	for _, a := range local.TLVs {
		if ap, ok := dncp.DecodeAssignedPrefix(a); ok && prefix.Equal(ap.Prefix, cp.Prefix) {
			found = true
		}
	}
	assert.True(t, found, "reactor must publish the new CP's assigned-prefix TLV")
}

func TestReactorWithdrawsOnDPDeletion(t *testing.T) {
	s := NewStore(noopScheduler{})
	var rid dncp.RID
	rid[0] = 6
	s.SetRID(rid)

	view := dncp.NewFake(dncp.NodeID(rid), rid)
	core := NewCore(s, nil, 128)
	links := fixedLinks{{LinkID: 1, Plen: 64}}
	reactor := NewReactor(s, core, view, view, links, noopScheduler{})
	s.Subscribe(reactor)

	dpPrefix, _ := prefix.Parse("2001:db8::/32")
	dp := s.AddDP(DP{Prefix: dpPrefix, Local: true})
	require.Len(t, s.AllCPs(), 1)

	s.DeleteDP(dp)
	assert.Len(t, s.AllCPs(), 0)

	local := view.LocalNode()
	for _, a := range local.TLVs {
		if _, ok := dncp.DecodeAssignedPrefix(a); ok {
			t.Fatal("deleting the DP must unpublish its assigned-prefix TLV")
		}
	}
}
