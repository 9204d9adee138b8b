// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package routing elects a routing protocol from flooded
// routing-protocol TLVs and, failing election, computes next-hops by
// breadth-first search over the bidirectional neighbor graph. Kernel
// route installation itself is delegated to iface.RouteSink.
package routing

import "github.com/dtaht/hnetd/dncp"

// NoProtocol is the "none/fallback" sentinel protocol id.
const NoProtocol uint8 = 0

// MaxProtocol bounds the protocol id space the election loop scans;
// ids at or above this are never considered.
const MaxProtocol uint8 = 32

// Elect walks every node's routing-protocol TLVs and returns the
// winning protocol id: the highest-preference protocol unanimously
// supported by every router that advertised at least one
// routing-protocol TLV, tie-broken toward the larger protocol id.
// Returns NoProtocol if no protocol achieves unanimous support.
func Elect(view dncp.View) uint8 {
	var supported [MaxProtocol]uint32
	var preference [MaxProtocol]uint32
	var routerCount uint32

	for _, n := range view.Nodes() {
		haveRouting := false
		for _, a := range n.TLVsOfType(dncp.TypeRoutingProtocol) {
			rp, ok := dncp.DecodeRoutingProtocol(a)
			if !ok || rp.Protocol >= byte(MaxProtocol) {
				continue
			}
			supported[rp.Protocol]++
			preference[rp.Protocol] += uint32(rp.Preference)
			haveRouting = true
		}
		if haveRouting {
			routerCount++
		}
	}

	if routerCount == 0 {
		return NoProtocol
	}

	proto := NoProtocol
	var best uint32
	for i := uint8(1); i < MaxProtocol; i++ {
		if supported[i] == routerCount && preference[i] >= best {
			proto = i
			best = preference[i]
		}
	}
	return proto
}
