// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"errors"
	"fmt"
	"time"

	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/prefix"
)

// ErrNoFreePrefix is returned when the increment search wraps without
// finding a non-colliding candidate.
var ErrNoFreePrefix = errors.New("pa: no free sub-prefix found before wrap")

// HistoryLookup returns a previously-chosen prefix for (linkID, dp), if
// this router has selected one before for the same (DP, link) pair.
type HistoryLookup func(linkID uint32, dp prefix.Prefix) (prefix.Prefix, bool)

// Core is the per-(DP,link) prefix-assignment state machine: it
// proposes, adopts or withdraws CPs in reaction to DP and AP changes.
type Core struct {
	store    *Store
	history  HistoryLookup
	priority uint8
}

// NewCore builds a Core over store. history may be nil, in which case
// step (2.a) of the selection search is always skipped.
func NewCore(store *Store, history HistoryLookup, priority uint8) *Core {
	return &Core{store: store, history: history, priority: priority}
}

// overlaps reports whether two prefixes of the same address family
// share any bits, i.e. one contains the other.
func overlaps(a, b prefix.Prefix) bool {
	return prefix.Contains(a, b) || prefix.Contains(b, a)
}

// Select creates or adopts a CP for (dp, linkID), implementing spec
// selection rule 4.4: adopt a higher-RID remote claim if one already
// exists on the link, otherwise search for a free sub-prefix of
// linkPlen bits within dp.
func (c *Core) Select(dp DPHandle, linkID uint32, linkPlen uint8, remoteAPs []AP) (CPHandle, error) {
	dpv, ok := c.store.DP(dp)
	if !ok {
		return CPHandle{}, fmt.Errorf("pa: unknown DP")
	}

	if existing, _, found := c.store.FindCP(dp, linkID); found {
		return existing, nil
	}

	ourRID := c.store.RID()
	for _, ap := range remoteAPs {
		if ap.LinkID != linkID || !ap.Authoritative {
			continue
		}
		if !prefix.Contains(dpv.Prefix, ap.Prefix) {
			continue
		}
		if ourRID.Less(ap.RID) {
			h := c.store.AddCP(CP{DP: dp, LinkID: linkID, Prefix: ap.Prefix, State: CPAdvertised})
			return h, nil
		}
	}

	candidate, err := c.searchFreePrefix(dp, dpv, linkID, linkPlen, remoteAPs)
	if err != nil {
		return CPHandle{}, err
	}

	h := c.store.AddCP(CP{DP: dp, LinkID: linkID, Prefix: candidate, State: CPProposed, Authoritative: true})
	return h, nil
}

func (c *Core) searchFreePrefix(dp DPHandle, dpv DP, linkID uint32, linkPlen uint8, remoteAPs []AP) (prefix.Prefix, error) {
	collides := func(p prefix.Prefix) bool {
		for _, ap := range remoteAPs {
			if overlaps(p, ap.Prefix) {
				return true
			}
		}
		for _, ch := range c.store.AllCPs() {
			cp, _ := c.store.CP(ch)
			if cp.DP == dp && overlaps(p, cp.Prefix) {
				return true
			}
		}
		return false
	}

	if c.history != nil {
		if hist, ok := c.history(linkID, dpv.Prefix); ok && prefix.Contains(dpv.Prefix, hist) && !collides(hist) {
			return hist, nil
		}
	}

	seed := make([]byte, 4)
	seed[0] = byte(linkID >> 24)
	seed[1] = byte(linkID >> 16)
	seed[2] = byte(linkID >> 8)
	seed[3] = byte(linkID)

	anchor, err := prefix.PseudoRandom(append(seed, dpv.Prefix.Addr[:]...), 0, dpv.Prefix, linkPlen)
	if err != nil {
		return prefix.Prefix{}, err
	}
	if !collides(anchor) {
		return anchor, nil
	}

	cur := anchor
	for {
		next, wrapped, err := prefix.Increment(cur, dpv.Prefix.Plen)
		if err != nil {
			return prefix.Prefix{}, err
		}
		if !collides(next) {
			return next, nil
		}
		cur = next
		if wrapped {
			return prefix.Prefix{}, ErrNoFreePrefix
		}
	}
}

// ResolveConflict applies spec 4.4's conflict-resolution rules when a
// remote AP newly overlaps our CP for (dp, linkID), unpublishing our
// assigned-prefix TLV before dropping the CP if one was published.
func (c *Core) ResolveConflict(dp DPHandle, linkID uint32, remote AP, pub dncp.Publisher) {
	h, cp, found := c.store.FindCP(dp, linkID)
	if !found || !overlaps(cp.Prefix, remote.Prefix) {
		return
	}
	ourRID := c.store.RID()
	drop := false
	switch {
	case ourRID.Less(remote.RID) && remote.Priority >= c.priority:
		drop = true
	case remote.Priority > c.priority:
		drop = true
	default:
		// keep ours; remote is expected to withdraw.
	}
	if !drop {
		return
	}
	if cp.Published {
		pub.Unpublish(cp.PublishHandle)
	}
	c.store.DeleteCP(h)
}

// Advertise transitions a Proposed CP to Advertised and publishes the
// corresponding assigned-prefix TLV via pub, recording the returned
// handle on the CP so Withdraw can unpublish it later.
func (c *Core) Advertise(h CPHandle, pub dncp.Publisher) {
	cp, ok := c.store.CP(h)
	if !ok {
		return
	}
	attr := dncp.EncodeAssignedPrefix(dncp.AssignedPrefix{
		LinkID:        cp.LinkID,
		Prefix:        cp.Prefix,
		Priority:      c.priority,
		Authoritative: cp.Authoritative,
	})
	handle := pub.Publish(attr)
	c.store.UpdateCP(h, changeSet(ChangeIface), func(cp *CP) {
		cp.State = CPAdvertised
		cp.Published = true
		cp.PublishHandle = handle
	})
}

// ScheduleApply arms a one-shot timer via sched that promotes h from
// Advertised to Applied after 2x the current flooding delay, provided
// no conflicting change demoted it back to Proposed in the meantime.
func (c *Core) ScheduleApply(sched Scheduler, h CPHandle, now func() time.Time) {
	delay := 2 * c.store.FloodingDelay()
	sched.RunAfter(delay, func() {
		cp, ok := c.store.CP(h)
		if !ok || cp.State != CPAdvertised {
			return
		}
		c.store.UpdateCP(h, changeSet(ChangeIface), func(cp *CP) {
			cp.State = CPApplied
			cp.AppliedAt = now()
		})
	})
}

// Withdraw unpublishes the CP's assigned-prefix TLV, if one was
// published, and deletes the CP for (dp, linkID).
func (c *Core) Withdraw(dp DPHandle, linkID uint32, pub dncp.Publisher) {
	h, cp, found := c.store.FindCP(dp, linkID)
	if !found {
		return
	}
	if cp.Published {
		pub.Unpublish(cp.PublishHandle)
	}
	c.store.DeleteCP(h)
}
