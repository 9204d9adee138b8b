// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package dncp

import "github.com/dtaht/hnetd/tlv"

// Fake is an in-memory View+Publisher used by pa and routing tests. It
// has no flooding behavior of its own: Publish/Unpublish act only on the
// local node, and SetPeer installs another node's TLV set directly, as
// if it had already arrived over the wire.
type Fake struct {
	local     NodeID
	nodes     map[NodeID]Node
	next      Handle
	published map[Handle]tlv.Attr
}

// NewFake builds a Fake whose local node has the given id and RID.
func NewFake(local NodeID, rid RID) *Fake {
	return &Fake{
		local: local,
		nodes: map[NodeID]Node{
			local: {ID: local, RID: rid},
		},
		published: make(map[Handle]tlv.Attr),
	}
}

func (f *Fake) Nodes() []Node {
	out := make([]Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	return out
}

func (f *Fake) LocalNode() Node {
	return f.nodes[f.local]
}

func (f *Fake) Node(id NodeID) (Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// SetPeer installs or replaces a peer node's full TLV set, simulating
// the arrival of a flooded update.
func (f *Fake) SetPeer(id NodeID, rid RID, tlvs []tlv.Attr) {
	f.nodes[id] = Node{ID: id, RID: rid, TLVs: append([]tlv.Attr(nil), tlvs...)}
}

// RemovePeer drops a peer node entirely, simulating a flooding timeout.
func (f *Fake) RemovePeer(id NodeID) {
	delete(f.nodes, id)
}

func (f *Fake) Publish(a tlv.Attr) Handle {
	local := f.nodes[f.local]
	for h, existing := range f.published {
		if existing.Type == a.Type && string(existing.Payload) == string(a.Payload) {
			return h
		}
	}
	local.TLVs = append(local.TLVs, a)
	f.nodes[f.local] = local
	f.next++
	f.published[f.next] = a
	return f.next
}

// Unpublish removes the TLV that was published under h, if any.
func (f *Fake) Unpublish(h Handle) {
	a, ok := f.published[h]
	if !ok {
		return
	}
	delete(f.published, h)
	f.UnpublishMatching(a.Type, a.Payload)
}

// UnpublishMatching removes every local TLV of the given type whose
// payload equals payload.
func (f *Fake) UnpublishMatching(typ uint16, payload []byte) {
	local := f.nodes[f.local]
	kept := local.TLVs[:0]
	for _, a := range local.TLVs {
		if a.Type == typ && string(a.Payload) == string(payload) {
			continue
		}
		kept = append(kept, a)
	}
	local.TLVs = kept
	f.nodes[f.local] = local
}
