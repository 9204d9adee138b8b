// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/dtaht/hnetd/dncp"
)

// Link describes one local link Core should maintain a CP on, narrowed
// from iface.Registry so this package never depends on it.
type Link struct {
	LinkID uint32
	Plen   uint8
}

// LinkSource lists the links a Reactor drives Core's selection cycle
// over.
type LinkSource interface {
	Links() []Link
}

// Reactor subscribes to Store notifications and drives Core's
// propose/advertise/apply/withdraw cycle for every local DP across
// every known link, implementing spec 4.4's "PA core reacts to DP/AP
// changes, publishing APs as TLVs back to the flooding layer" data
// flow. Remote APs are read directly off view's published
// assigned-prefix TLVs, the same way routing.RunBFS reads TLVs off the
// view rather than through a separate ingestion pipeline.
type Reactor struct {
	store *Store
	core  *Core
	view  dncp.View
	pub   dncp.Publisher
	links LinkSource
	sched Scheduler
	now   func() time.Time
}

// NewReactor builds a Reactor. sched is used for Core.ScheduleApply's
// advertise-to-apply delay.
func NewReactor(store *Store, core *Core, view dncp.View, pub dncp.Publisher, links LinkSource, sched Scheduler) *Reactor {
	return &Reactor{store: store, core: core, view: view, pub: pub, links: links, sched: sched, now: time.Now}
}

func (r *Reactor) remoteAPs() []AP {
	local := r.view.LocalNode()
	var out []AP
	for _, n := range r.view.Nodes() {
		if n.ID == local.ID {
			continue
		}
		for _, a := range n.TLVs {
			ap, ok := dncp.DecodeAssignedPrefix(a)
			if !ok {
				continue
			}
			out = append(out, AP{
				Prefix:        ap.Prefix,
				LinkID:        ap.LinkID,
				RID:           n.RID,
				Authoritative: ap.Authoritative,
				Priority:      ap.Priority,
			})
		}
	}
	return out
}

// OnDPs implements Subscriber. A newly created local DP gets a CP
// proposed, advertised and scheduled for apply on every known link; a
// deleted DP has its CPs withdrawn (and unpublished) on every link.
// Both reactions are deferred via Scheduler.RunSoon, since a
// Subscriber must not mutate the Store synchronously from within a
// notification callback.
func (r *Reactor) OnDPs(changes map[DPHandle]*bitset.BitSet) {
	for h, flags := range changes {
		h := h
		if flags.Test(ChangeToDelete) {
			r.sched.RunSoon(func() { r.withdrawAllLinks(h) })
			continue
		}
		if flags.Test(ChangeCreated) {
			r.sched.RunSoon(func() { r.proposeAndAdvertise(h) })
		}
	}
}

func (r *Reactor) proposeAndAdvertise(h DPHandle) {
	dp, ok := r.store.DP(h)
	if !ok || !dp.Local {
		return
	}
	remote := r.remoteAPs()
	for _, link := range r.links.Links() {
		cpH, err := r.core.Select(h, link.LinkID, link.Plen, remote)
		if err != nil {
			continue
		}
		cp, ok := r.store.CP(cpH)
		if !ok || cp.State != CPProposed {
			continue
		}
		r.core.Advertise(cpH, r.pub)
		r.core.ScheduleApply(r.sched, cpH, r.now)
	}
}

func (r *Reactor) withdrawAllLinks(h DPHandle) {
	for _, link := range r.links.Links() {
		r.core.Withdraw(h, link.LinkID, r.pub)
	}
}

// OnAPs implements Subscriber: a changed remote AP is re-checked
// against every local DP's CP on the AP's link for a conflict, deferred
// via RunSoon for the same reason as OnDPs.
func (r *Reactor) OnAPs(changes map[APHandle]*bitset.BitSet) {
	for h := range changes {
		h := h
		r.sched.RunSoon(func() { r.resolveConflict(h) })
	}
}

func (r *Reactor) resolveConflict(h APHandle) {
	ap, ok := r.store.AP(h)
	if !ok {
		return
	}
	for _, dpH := range r.store.AllDPs() {
		dp, ok := r.store.DP(dpH)
		if !ok || !dp.Local {
			continue
		}
		r.core.ResolveConflict(dpH, ap.LinkID, ap, r.pub)
	}
}

// OnCPs, OnCPDs, OnFlood and OnIPv4 complete the Subscriber interface;
// Reactor reacts only to DP and AP changes.
func (r *Reactor) OnCPs(map[CPHandle]*bitset.BitSet)   {}
func (r *Reactor) OnCPDs(map[CPDHandle]*bitset.BitSet) {}
func (r *Reactor) OnFlood(*bitset.BitSet)              {}
func (r *Reactor) OnIPv4(*bitset.BitSet)               {}
