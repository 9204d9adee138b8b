// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package prefix

import (
	"net"
	"strconv"
	"strings"
)

// Parse accepts "ADDR", "ADDR/PLEN" (IPv6), and dotted-quad IPv4 forms
// (optionally "A.B.C.D/PLEN" with PLEN interpreted in IPv4 bits and
// promoted to an IPv4-mapped IPv6 prefix). There is no prefix-length
// clamping: "/PLEN" greater than the address family's width fails.
func Parse(s string) (Prefix, error) {
	addrStr, plenStr, hasPlen := s, "", false
	if i := strings.IndexByte(s, '/'); i >= 0 {
		addrStr, plenStr = s[:i], s[i+1:]
		hasPlen = true
	}

	if ip4 := net.ParseIP(addrStr); ip4 != nil && ip4.To4() != nil && strings.Contains(addrStr, ".") {
		v4 := ip4.To4()
		plen := 32
		if hasPlen {
			n, err := strconv.Atoi(plenStr)
			if err != nil || n < 0 || n > 32 {
				return Prefix{}, &ParseError{Input: s, Msg: "invalid IPv4 prefix length"}
			}
			plen = n
		}
		var out Prefix
		copy(out.Addr[:], V4InV6.Addr[:12])
		copy(out.Addr[12:], v4)
		out.Plen = uint8(96 + plen)
		return out, nil
	}

	ip6 := net.ParseIP(addrStr)
	if ip6 == nil {
		return Prefix{}, &ParseError{Input: s, Msg: "not a valid address"}
	}
	ip6 = ip6.To16()
	if ip6 == nil {
		return Prefix{}, &ParseError{Input: s, Msg: "not a valid IPv6 address"}
	}

	plen := 128
	if hasPlen {
		n, err := strconv.Atoi(plenStr)
		if err != nil || n < 0 || n > 128 {
			return Prefix{}, &ParseError{Input: s, Msg: "invalid prefix length"}
		}
		plen = n
	}

	var out Prefix
	copy(out.Addr[:], ip6)
	out.Plen = uint8(plen)
	return out, nil
}

// String renders "address/plen". IPv4-mapped prefixes render as
// dotted-quad. canonical=true zeroes trailing bits past Plen before
// printing (matching prefix_ntop's canonical argument); canonical=false
// prints the address bits verbatim, which is what makes a non-canonical
// round-trip via Parse(String(p, false)) return the original value.
func String(p Prefix, canonical bool) string {
	if canonical {
		p = Canonical(p)
	}

	if IsIPv4(p) && p.Plen >= V4InV6.Plen {
		v4 := net.IP(p.Addr[12:16])
		plen := int(p.Plen) - int(V4InV6.Plen)
		if plen == 32 {
			return v4.String()
		}
		return v4.String() + "/" + strconv.Itoa(plen)
	}

	addr := net.IP(append([]byte(nil), p.Addr[:]...))
	if p.Plen == 128 {
		return addr.String()
	}
	return addr.String() + "/" + strconv.Itoa(int(p.Plen))
}
