// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package prefix

import "net/netip"

// NetipPrefix converts p to the standard library's netip.Prefix,
// unmapping IPv4-mapped addresses back to 4-byte form so callers that
// key off netip.Prefix (route tables, LPM indexes) see plain IPv4
// prefixes rather than ::ffff:-wrapped IPv6 ones.
func NetipPrefix(p Prefix) netip.Prefix {
	addr := netip.AddrFrom16(p.Addr)
	plen := int(p.Plen)
	if IsIPv4(p) {
		addr = addr.Unmap()
		plen -= 96
		if plen < 0 {
			plen = 0
		}
	}
	return netip.PrefixFrom(addr, plen)
}

// FromNetipPrefix converts a netip.Prefix back to Prefix, re-mapping
// plain IPv4 addresses into ::ffff:0:0/96 form.
func FromNetipPrefix(np netip.Prefix) Prefix {
	addr := np.Addr()
	plen := np.Bits()
	if addr.Is4() {
		v4 := addr.As4()
		addr = netip.AddrFrom16([16]byte{10: 0xff, 11: 0xff, 12: v4[0], 13: v4[1], 14: v4[2], 15: v4[3]})
		plen += 96
	}
	return Prefix{Addr: addr.As16(), Plen: uint8(plen)}
}
