// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package iface

import (
	"net/netip"
	"time"

	"github.com/mdlayher/ndp"

	"github.com/dtaht/hnetd/prefix"
)

// AddAddrconfRule derives a router-advertisement prefix-information
// option from an assigned prefix and appends it to ifc's addrconf
// rules. autonomous controls SLAAC eligibility (RFC 4862); onLink
// controls whether hosts treat the prefix as directly reachable.
func (ifc *Interface) AddAddrconfRule(p prefix.Prefix, preferred, valid time.Duration, onLink, autonomous bool) {
	np := prefix.NetipPrefix(p)
	addr, ok := netip.AddrFromSlice(np.Addr().AsSlice())
	if !ok {
		return
	}
	ifc.AddrconfRules = append(ifc.AddrconfRules, ndp.PrefixInformation{
		PrefixLength:                   uint8(np.Bits()),
		OnLink:                         onLink,
		AutonomousAddressConfiguration: autonomous,
		ValidLifetime:                  valid,
		PreferredLifetime:              preferred,
		Prefix:                         addr,
	})
}

// ClearAddrconfRules drops every rule on ifc, e.g. on interface
// teardown or loss of the prefix they were derived from.
func (ifc *Interface) ClearAddrconfRules() {
	ifc.AddrconfRules = nil
}
