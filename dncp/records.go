// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package dncp

import (
	"encoding/binary"

	"github.com/dtaht/hnetd/prefix"
	"github.com/dtaht/hnetd/tlv"
)

// TLV type tags flooded by nodes. These mirror the original HNCP_T_*
// constants (spec.md §3/§6).
const (
	TypeRoutingProtocol    uint16 = 2
	TypeNeighbor           uint16 = 3
	TypeRouterAddress      uint16 = 4
	TypeAssignedPrefix     uint16 = 5
	TypeExternalConnection uint16 = 6
	TypeDelegatedPrefix    uint16 = 7
)

// RoutingProtocol is a {protocol_id, preference} support record. Wire
// payload is 6 bytes: protocol, preference, and 4 bytes of padding,
// matching spec.md §6's HNCP_T_ROUTING_PROTOCOL layout.
type RoutingProtocol struct {
	Protocol   uint8
	Preference uint8
}

// EncodeRoutingProtocol renders r as a tlv.Attr.
func EncodeRoutingProtocol(r RoutingProtocol) tlv.Attr {
	payload := make([]byte, 6)
	payload[0] = r.Protocol
	payload[1] = r.Preference
	return tlv.Attr{Type: TypeRoutingProtocol, Payload: payload}
}

// DecodeRoutingProtocol parses a routing-protocol support record.
func DecodeRoutingProtocol(a tlv.Attr) (RoutingProtocol, bool) {
	if a.Type != TypeRoutingProtocol || len(a.Payload) < 2 {
		return RoutingProtocol{}, false
	}
	return RoutingProtocol{Protocol: a.Payload[0], Preference: a.Payload[1]}, true
}

// Neighbor is a bidirectional-link candidate record:
// {neighbor_RID, local_link_id, neighbor_link_id}.
type Neighbor struct {
	NeighborRID     RID
	LocalLinkID     uint32
	NeighborLinkID  uint32
}

// EncodeNeighbor renders n as a tlv.Attr.
func EncodeNeighbor(n Neighbor) tlv.Attr {
	payload := make([]byte, RIDLen+8)
	copy(payload, n.NeighborRID[:])
	binary.BigEndian.PutUint32(payload[RIDLen:], n.LocalLinkID)
	binary.BigEndian.PutUint32(payload[RIDLen+4:], n.NeighborLinkID)
	return tlv.Attr{Type: TypeNeighbor, Payload: payload}
}

// DecodeNeighbor parses a neighbor record.
func DecodeNeighbor(a tlv.Attr) (Neighbor, bool) {
	if a.Type != TypeNeighbor || len(a.Payload) < RIDLen+8 {
		return Neighbor{}, false
	}
	var n Neighbor
	copy(n.NeighborRID[:], a.Payload[:RIDLen])
	n.LocalLinkID = binary.BigEndian.Uint32(a.Payload[RIDLen:])
	n.NeighborLinkID = binary.BigEndian.Uint32(a.Payload[RIDLen+4:])
	return n, true
}

// RouterAddress is a {link_id, address} record.
type RouterAddress struct {
	LinkID  uint32
	Address [16]byte
}

// EncodeRouterAddress renders r as a tlv.Attr.
func EncodeRouterAddress(r RouterAddress) tlv.Attr {
	payload := make([]byte, 4+16)
	binary.BigEndian.PutUint32(payload[:4], r.LinkID)
	copy(payload[4:], r.Address[:])
	return tlv.Attr{Type: TypeRouterAddress, Payload: payload}
}

// DecodeRouterAddress parses a router-address record.
func DecodeRouterAddress(a tlv.Attr) (RouterAddress, bool) {
	if a.Type != TypeRouterAddress || len(a.Payload) < 20 {
		return RouterAddress{}, false
	}
	var r RouterAddress
	r.LinkID = binary.BigEndian.Uint32(a.Payload[:4])
	copy(r.Address[:], a.Payload[4:20])
	return r, true
}

// IsIPv4Mapped reports whether addr lies in ::ffff:0:0/96.
func (r RouterAddress) IsIPv4Mapped() bool {
	return prefix.IsIPv4(prefix.Prefix{Addr: r.Address, Plen: 128})
}

// AssignedPrefix is a {link_id, plen, prefix_bits, priority, flags} record.
type AssignedPrefix struct {
	LinkID    uint32
	Prefix    prefix.Prefix
	Priority  uint8
	Flags     uint16
	Authoritative bool
}

const apFlagAuthoritative uint16 = 0x0001

// EncodeAssignedPrefix renders ap as a tlv.Attr.
func EncodeAssignedPrefix(ap AssignedPrefix) tlv.Attr {
	nbytes := (int(ap.Prefix.Plen) + 7) / 8
	payload := make([]byte, 4+1+1+2+nbytes)
	binary.BigEndian.PutUint32(payload[0:4], ap.LinkID)
	payload[4] = ap.Prefix.Plen
	payload[5] = ap.Priority
	flags := ap.Flags
	if ap.Authoritative {
		flags |= apFlagAuthoritative
	}
	binary.BigEndian.PutUint16(payload[6:8], flags)
	copy(payload[8:], ap.Prefix.Addr[:nbytes])
	return tlv.Attr{Type: TypeAssignedPrefix, Payload: payload}
}

// DecodeAssignedPrefix parses an assigned-prefix record.
func DecodeAssignedPrefix(a tlv.Attr) (AssignedPrefix, bool) {
	if a.Type != TypeAssignedPrefix || len(a.Payload) < 8 {
		return AssignedPrefix{}, false
	}
	var ap AssignedPrefix
	ap.LinkID = binary.BigEndian.Uint32(a.Payload[0:4])
	plen := a.Payload[4]
	ap.Priority = a.Payload[5]
	flags := binary.BigEndian.Uint16(a.Payload[6:8])
	ap.Flags = flags &^ apFlagAuthoritative
	ap.Authoritative = flags&apFlagAuthoritative != 0
	nbytes := (int(plen) + 7) / 8
	if len(a.Payload) < 8+nbytes {
		return AssignedPrefix{}, false
	}
	var addr [16]byte
	copy(addr[:nbytes], a.Payload[8:8+nbytes])
	ap.Prefix = prefix.Prefix{Addr: addr, Plen: plen}
	return ap, true
}

// DelegatedPrefixRecord is a nested {plen, prefix_bits, lifetimes,
// dhcp_opts} record carried inside an external-connection container.
type DelegatedPrefixRecord struct {
	Prefix           prefix.Prefix
	PreferredSeconds uint32
	ValidSeconds     uint32
	DHCPOpts         []byte
}

// EncodeDelegatedPrefixRecord renders dp as a tlv.Attr, suitable for
// nesting inside an external-connection container payload.
func EncodeDelegatedPrefixRecord(dp DelegatedPrefixRecord) tlv.Attr {
	nbytes := (int(dp.Prefix.Plen) + 7) / 8
	payload := make([]byte, 1+1+4+4+nbytes+len(dp.DHCPOpts))
	payload[0] = dp.Prefix.Plen
	binary.BigEndian.PutUint32(payload[2:6], dp.PreferredSeconds)
	binary.BigEndian.PutUint32(payload[6:10], dp.ValidSeconds)
	copy(payload[10:10+nbytes], dp.Prefix.Addr[:nbytes])
	copy(payload[10+nbytes:], dp.DHCPOpts)
	return tlv.Attr{Type: TypeDelegatedPrefix, Payload: payload}
}

// DecodeDelegatedPrefixRecord parses a nested delegated-prefix record.
func DecodeDelegatedPrefixRecord(a tlv.Attr) (DelegatedPrefixRecord, bool) {
	if a.Type != TypeDelegatedPrefix || len(a.Payload) < 10 {
		return DelegatedPrefixRecord{}, false
	}
	var dp DelegatedPrefixRecord
	plen := a.Payload[0]
	dp.PreferredSeconds = binary.BigEndian.Uint32(a.Payload[2:6])
	dp.ValidSeconds = binary.BigEndian.Uint32(a.Payload[6:10])
	nbytes := (int(plen) + 7) / 8
	if len(a.Payload) < 10+nbytes {
		return DelegatedPrefixRecord{}, false
	}
	var addr [16]byte
	copy(addr[:nbytes], a.Payload[10:10+nbytes])
	dp.Prefix = prefix.Prefix{Addr: addr, Plen: plen}
	if len(a.Payload) > 10+nbytes {
		dp.DHCPOpts = append([]byte(nil), a.Payload[10+nbytes:]...)
	}
	return dp, true
}

// ExternalConnection decodes the nested delegated-prefix records carried
// by an external-connection container TLV.
func ExternalConnection(a tlv.Attr) []DelegatedPrefixRecord {
	if a.Type != TypeExternalConnection {
		return nil
	}
	var out []DelegatedPrefixRecord
	tlv.ForEach(a.Payload, func(child tlv.Attr) {
		if dp, ok := DecodeDelegatedPrefixRecord(child); ok {
			out = append(out, dp)
		}
	})
	return out
}

// EncodeExternalConnection builds an external-connection container TLV
// wrapping the given delegated-prefix records.
func EncodeExternalConnection(dps []DelegatedPrefixRecord) tlv.Attr {
	attrs := make([]tlv.Attr, len(dps))
	for i, dp := range dps {
		attrs[i] = EncodeDelegatedPrefixRecord(dp)
	}
	return tlv.Attr{Type: TypeExternalConnection, Payload: tlv.MarshalAll(attrs)}
}
