// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package dncp provides the read-only node/TLV graph view this daemon
// consumes from the flooding layer (a Trickle-based TLV distribution
// protocol, assumed available and not reimplemented here — see
// SPEC_FULL.md §11), plus the TLV record shapes the PA, routing-election
// and BFS components decode off that view.
package dncp

import "bytes"

// RIDLen is the width, in bytes, of a router identifier.
const RIDLen = 8

// RID is a totally-ordered, fixed-width router identifier, derived
// upstream from a node-identity hash. The flooding layer assigns these;
// this package only compares and carries them.
type RID [RIDLen]byte

// Less reports whether r sorts before other under RID's total order
// (plain unsigned lexicographic byte comparison).
func (r RID) Less(other RID) bool {
	return bytes.Compare(r[:], other[:]) < 0
}

// Compare returns -1, 0 or 1 as r is less than, equal to, or greater than
// other.
func (r RID) Compare(other RID) int {
	return bytes.Compare(r[:], other[:])
}

// IsZero reports whether r is the zero RID (used as a "no owner" sentinel
// for locally-generated state).
func (r RID) IsZero() bool {
	return r == RID{}
}
