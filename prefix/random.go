// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package prefix

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// ErrTooShort is returned when a requested sub-prefix length is shorter
// than its parent's.
var ErrTooShort = errors.New("prefix: requested length shorter than parent")

// ErrCounterTooWide is returned when an increment/last counter field would
// need more than 32 bits.
var ErrCounterTooWide = errors.New("prefix: counter field wider than 32 bits")

// Random returns a uniformly random sub-prefix of length plen inside
// parent. It fails if plen < parent.Plen.
func Random(parent Prefix, plen uint8) (Prefix, error) {
	if plen < parent.Plen {
		return Prefix{}, ErrTooShort
	}
	out := parent
	out.Plen = plen

	nBits := int(plen) - int(parent.Plen)
	if nBits == 0 {
		return Canonical(out), nil
	}
	randBytes := make([]byte, (nBits+7)/8)
	if _, err := rand.Read(randBytes); err != nil {
		return Prefix{}, err
	}
	BitCopyShift(out.Addr[:], int(parent.Plen), randBytes, 0, nBits)
	return Canonical(out), nil
}

// PseudoRandom deterministically derives a sub-prefix of length plen
// inside parent, keyed by (seed, counter): identical inputs always
// produce the identical output. It is used where the choice must be
// reproducible across restarts or across routers computing the same
// candidate (e.g. PA's seeded sub-prefix search).
func PseudoRandom(seed []byte, counter uint32, parent Prefix, plen uint8) (Prefix, error) {
	if plen < parent.Plen {
		return Prefix{}, ErrTooShort
	}
	out := parent
	out.Plen = plen

	nBits := int(plen) - int(parent.Plen)
	if nBits == 0 {
		return Canonical(out), nil
	}

	needed := (nBits + 7) / 8
	stream := make([]byte, 0, needed+sha256.Size)
	var ctrBuf [4]byte
	binary.BigEndian.PutUint32(ctrBuf[:], counter)
	block := 0
	for len(stream) < needed {
		h := sha256.New()
		h.Write(seed)
		h.Write(ctrBuf[:])
		var blockBuf [4]byte
		binary.BigEndian.PutUint32(blockBuf[:], uint32(block))
		h.Write(blockBuf[:])
		stream = h.Sum(stream)
		block++
	}
	BitCopyShift(out.Addr[:], int(parent.Plen), stream, 0, nBits)
	return Canonical(out), nil
}

// bitsToUint32 reads n (<=32) bits starting at bit offset start of b, as a
// big-endian unsigned integer.
func bitsToUint32(b *[16]byte, start, n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v = (v << 1) | uint32(bitAt(b, start+i))
	}
	return v
}

func putUint32Bits(b *[16]byte, start, n int, v uint32) {
	for i := n - 1; i >= 0; i-- {
		setBitAt(b, start+i, int(v&1))
		v >>= 1
	}
}

// Increment treats bits [protectedLen, p.Plen) as an unsigned counter,
// increments it by one, and wraps back to zero on overflow. It fails if
// p.Plen <= protectedLen, or if the counter field is wider than 32 bits.
// The returned bool is true iff the increment wrapped.
func Increment(p Prefix, protectedLen uint8) (Prefix, bool, error) {
	if p.Plen <= protectedLen {
		return Prefix{}, false, ErrCounterTooWide
	}
	n := int(p.Plen) - int(protectedLen)
	if n > 32 {
		return Prefix{}, false, ErrCounterTooWide
	}

	out := p
	counter := bitsToUint32(&out.Addr, int(protectedLen), n)
	counter++
	wrapped := false
	if n < 32 && counter >= (uint32(1)<<uint(n)) {
		counter = 0
		wrapped = true
	} else if n == 32 && counter == 0 {
		wrapped = true
	}
	putUint32Bits(&out.Addr, int(protectedLen), n, counter)
	return out, wrapped, nil
}

// Counter reads the counter field (bits [protectedLen, p.Plen)) as an
// unsigned integer, the same field Increment advances. It fails under
// the same conditions as Increment.
func Counter(p Prefix, protectedLen uint8) (uint32, error) {
	if p.Plen <= protectedLen {
		return 0, ErrCounterTooWide
	}
	n := int(p.Plen) - int(protectedLen)
	if n > 32 {
		return 0, ErrCounterTooWide
	}
	return bitsToUint32(&p.Addr, int(protectedLen), n), nil
}

// Last sets the counter field (bits [protectedLen, p.Plen)) to all-ones,
// i.e. the highest prefix Increment can ever produce before wrapping.
func Last(p Prefix, protectedLen uint8) (Prefix, error) {
	if p.Plen < protectedLen {
		return Prefix{}, ErrCounterTooWide
	}
	n := int(p.Plen) - int(protectedLen)
	out := p
	for i := 0; i < n; i++ {
		setBitAt(&out.Addr, int(protectedLen)+i, 1)
	}
	return out, nil
}
