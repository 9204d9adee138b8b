// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package iface

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/prefix"
)

func TestRegistryCreateDestroy(t *testing.T) {
	r := NewRegistry(NewBARTRouteSink())
	ifc, err := r.Create("eth0", "", "hybrid")
	require.NoError(t, err)
	assert.True(t, ifc.Flags.Has(FlagHybrid))

	_, err = r.Create("eth0", "", "hybrid")
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, r.Destroy("eth0"))
	_, err = r.Get("eth0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRouteTransactionWithdrawsStale(t *testing.T) {
	sink := NewBARTRouteSink()
	r := NewRegistry(sink)
	_, err := r.Create("wan0", "h1", "external")
	require.NoError(t, err)

	dst1, _ := prefix.Parse("2001:db8:1::/48")
	dst2, _ := prefix.Parse("2001:db8:2::/48")

	txn := r.BeginRouteUpdate()
	txn.Add(Route{Dest: dst1, IfName: "wan0", Metric: 1})
	txn.Commit()
	assert.Len(t, sink.Routes(), 1)

	txn2 := r.BeginRouteUpdate()
	txn2.Add(Route{Dest: dst2, IfName: "wan0", Metric: 1})
	txn2.Commit()

	routes := sink.Routes()
	require.Len(t, routes, 1)
	assert.True(t, prefix.Equal(routes[0].Dest, dst2))
}

func TestAddrconfRule(t *testing.T) {
	ifc := &Interface{IfName: "lan0"}
	p, _ := prefix.Parse("2001:db8:1::/64")
	ifc.AddAddrconfRule(p, 30*time.Minute, time.Hour, true, true)
	require.Len(t, ifc.AddrconfRules, 1)
	assert.EqualValues(t, 64, ifc.AddrconfRules[0].PrefixLength)
	assert.True(t, ifc.AddrconfRules[0].OnLink)
}

func TestDestroyWithdrawsRoutes(t *testing.T) {
	sink := NewBARTRouteSink()
	r := NewRegistry(sink)
	_, err := r.Create("wan0", "h1", "external")
	require.NoError(t, err)
	dst, _ := prefix.Parse("2001:db8::/32")
	sink.Install(Route{Dest: dst, IfName: "wan0"})
	require.NoError(t, r.Destroy("wan0"))
	assert.Empty(t, sink.Routes())
}
