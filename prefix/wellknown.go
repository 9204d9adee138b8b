// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package prefix

// Well-known prefixes, mirroring the original implementation's
// ipv4_in_ipv6_prefix / ipv6_ula_prefix / ipv6_ll_prefix / ipv6_global_prefix.
var (
	// V4InV6 is ::ffff:0:0/96, the IPv4-mapped IPv6 range.
	V4InV6 = Prefix{Addr: [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 0, 0, 0, 0}, Plen: 96}

	// ULA is fc00::/7.
	ULA = Prefix{Addr: [16]byte{0xfc}, Plen: 7}

	// LinkLocal is fe80::/10.
	LinkLocal = Prefix{Addr: [16]byte{0xfe, 0x80}, Plen: 10}

	// Global is 2000::/3.
	Global = Prefix{Addr: [16]byte{0x20}, Plen: 3}
)

// IsIPv4 reports whether p lies within ::ffff:0:0/96.
func IsIPv4(p Prefix) bool { return Contains(V4InV6, p) }

// IsULA reports whether p lies within fc00::/7.
func IsULA(p Prefix) bool { return Contains(ULA, p) }

// IsLinkLocal reports whether p lies within fe80::/10.
func IsLinkLocal(p Prefix) bool { return Contains(LinkLocal, p) }

// IsGlobal reports whether p lies within 2000::/3.
func IsGlobal(p Prefix) bool { return Contains(Global, p) }

// AFLength returns the IPv6 prefix length if p is not an IPv4-mapped
// prefix, and the equivalent IPv4 prefix length (Plen-96) if it is.
func AFLength(p Prefix) uint8 {
	if IsIPv4(p) && p.Plen >= V4InV6.Plen {
		return p.Plen - V4InV6.Plen
	}
	return p.Plen
}
