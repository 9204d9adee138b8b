// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package dncp

import "github.com/dtaht/hnetd/tlv"

// NodeID identifies a single node in the flooded graph. It is distinct
// from RID: a node may outlive the router identifier it currently
// advertises (e.g. across a collision-driven RID change), though in
// practice the two coincide for the lifetime of a session.
type NodeID RID

// Node is a single published vertex in the flooded TLV graph: a router
// identity plus the set of TLVs it currently has in the database.
type Node struct {
	ID   NodeID
	RID  RID
	TLVs []tlv.Attr
}

// TLVsOfType returns the subset of n's TLVs matching typ, in flooding
// order.
func (n Node) TLVsOfType(typ uint16) []tlv.Attr {
	var out []tlv.Attr
	for _, a := range n.TLVs {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

// View is the read-only window onto the flooded node/TLV database that
// pa, routing and the interface registry consume. Nothing in this
// package or its callers re-implements flooding or Trickle timing; a
// concrete View is supplied by whatever component owns that transport.
type View interface {
	// Nodes returns every node currently known, including the local
	// node.
	Nodes() []Node

	// LocalNode returns this router's own node.
	LocalNode() Node

	// Node looks up a single node by id.
	Node(id NodeID) (Node, bool)
}

// Publisher lets a component add or withdraw TLVs published under the
// local node. Handles are opaque and only meaningful to the Publisher
// that issued them.
type Publisher interface {
	// Publish adds a TLV to the local node's advertised set and
	// returns a handle for later removal. Publishing an
	// already-published (Type, Payload) pair is a no-op that returns
	// the existing handle.
	Publish(a tlv.Attr) Handle

	// Unpublish removes a previously published TLV. Unpublishing an
	// unknown or already-removed handle is a no-op.
	Unpublish(h Handle)
}

// Handle identifies one previously published TLV.
type Handle uint64
