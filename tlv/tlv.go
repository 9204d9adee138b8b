// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package tlv implements the length-prefixed, type-tagged record format the
// flooding layer carries: a 2-byte type, a 2-byte payload length, the
// payload itself, and padding to the next 4-byte boundary. Containers (TLVs
// whose payload is itself a sequence of TLVs) are iterated with ForEach,
// which is safe against truncated or overlength children: it simply stops
// yielding once a child no longer fits.
package tlv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

const headerLen = 4

// ErrTruncated is returned by Parse when buf is shorter than a full header.
var ErrTruncated = errors.New("tlv: truncated header")

// Attr is one decoded record: its type tag and raw payload (header and
// padding stripped).
type Attr struct {
	Type    uint16
	Payload []byte
}

// pad4 rounds n up to the next multiple of 4.
func pad4(n int) int {
	return (n + 3) &^ 3
}

// Marshal encodes a into wire format: header, payload, zero padding to a
// 4-byte boundary.
func Marshal(a Attr) []byte {
	total := headerLen + len(a.Payload)
	padded := pad4(total)
	buf := make([]byte, padded)
	binary.BigEndian.PutUint16(buf[0:2], a.Type)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(a.Payload)))
	copy(buf[4:], a.Payload)
	return buf
}

// MarshalAll encodes a sequence of attrs back to back, each individually
// padded, preserving order.
func MarshalAll(attrs []Attr) []byte {
	var buf bytes.Buffer
	for _, a := range attrs {
		buf.Write(Marshal(a))
	}
	return buf.Bytes()
}

// Parse decodes the single TLV at the start of buf, returning the record
// and the total number of bytes it (including padding) occupies. It fails
// if buf is shorter than a header, or the declared length (plus padding)
// does not fit within buf.
func Parse(buf []byte) (Attr, int, error) {
	if len(buf) < headerLen {
		return Attr{}, 0, ErrTruncated
	}
	typ := binary.BigEndian.Uint16(buf[0:2])
	plen := int(binary.BigEndian.Uint16(buf[2:4]))
	total := headerLen + plen
	padded := pad4(total)
	if padded > len(buf) {
		return Attr{}, 0, ErrTruncated
	}
	payload := make([]byte, plen)
	copy(payload, buf[headerLen:total])
	return Attr{Type: typ, Payload: payload}, padded, nil
}

// ForEach walks well-formed TLVs in container, in order, calling fn for
// each. It stops (without error) as soon as a child's declared length does
// not fit in what remains of container — a truncated or malformed tail is
// silently dropped rather than causing the whole walk to fail, matching
// the original for_each_attr()'s tolerance of trailing garbage.
func ForEach(container []byte, fn func(Attr)) {
	for len(container) >= headerLen {
		a, n, err := Parse(container)
		if err != nil {
			return
		}
		fn(a)
		container = container[n:]
	}
}

// Count returns the number of well-formed top-level attrs in container.
func Count(container []byte) int {
	n := 0
	ForEach(container, func(Attr) { n++ })
	return n
}

// Collect returns all well-formed top-level attrs in container as a slice.
func Collect(container []byte) []Attr {
	var out []Attr
	ForEach(container, func(a Attr) { out = append(out, a) })
	return out
}

// ByTypeThenPayload imposes the canonical ordering used for signature
// stability: attrs are sorted first by Type, then lexicographically by
// Payload.
func ByTypeThenPayload(attrs []Attr) {
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].Type != attrs[j].Type {
			return attrs[i].Type < attrs[j].Type
		}
		return bytes.Compare(attrs[i].Payload, attrs[j].Payload) < 0
	})
}

// Canonicalize returns attrs re-ordered for canonical re-emission. Unknown
// types are preserved verbatim — canonicalization never drops a record,
// it only reorders.
func Canonicalize(attrs []Attr) []Attr {
	out := make([]Attr, len(attrs))
	copy(out, attrs)
	ByTypeThenPayload(out)
	return out
}
