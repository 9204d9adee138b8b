// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"crypto/sha256"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"

	"github.com/dtaht/hnetd/prefix"
)

// PDConfig bounds prefix-delegation sub-prefix sizing.
type PDConfig struct {
	MinLen      uint8 // pd will not hand out anything shorter than this
	MinRatioExp uint8 // pd will not hand out more than 1/2^MinRatioExp of a DP
}

// DefaultPDConfig matches the original daemon's compiled-in defaults.
func DefaultPDConfig() PDConfig {
	return PDConfig{MinLen: 62, MinRatioExp: 3}
}

// PD reserves CPDs out of the store's DPs for downstream PD client
// leases.
type PD struct {
	store *Store
	cfg   PDConfig
	sched Scheduler

	pendingBatch map[LeaseHandle]bool
	onUpdate     map[LeaseHandle]func(LeaseHandle)
}

// NewPD builds a PD reservation engine over store.
func NewPD(store *Store, cfg PDConfig, sched Scheduler) *PD {
	return &PD{
		store:        store,
		cfg:          cfg,
		sched:        sched,
		pendingBatch: make(map[LeaseHandle]bool),
		onUpdate:     make(map[LeaseHandle]func(LeaseHandle)),
	}
}

// NewLeaseID mints a fresh opaque lease identifier.
func NewLeaseID() string {
	return uuid.NewString()
}

// RequestLease registers a new lease and immediately attempts to
// reserve a CPD from every current DP. updateCB fires at most once per
// ~500ms, batching however many CPDs changed in that window.
func (p *PD) RequestLease(leaseID string, preferredLen, maxLen uint8, updateCB func(LeaseHandle)) LeaseHandle {
	h := p.store.AddLease(Lease{LeaseID: leaseID, PreferredLen: preferredLen, MaxLen: maxLen})
	if updateCB != nil {
		p.onUpdate[h] = updateCB
	}
	p.reserveAll(h)
	return h
}

// EndLease terminates a lease and every CPD reserved under it.
func (p *PD) EndLease(h LeaseHandle) {
	p.store.DeleteLease(h)
	delete(p.onUpdate, h)
	delete(p.pendingBatch, h)
}

// reserveAll attempts a reservation against every DP currently known,
// for leases that don't already have one against that DP.
func (p *PD) reserveAll(h LeaseHandle) {
	lease, ok := p.store.Lease(h)
	if !ok {
		return
	}
	have := make(map[DPHandle]bool)
	for _, ch := range p.store.CPDsForLease(h) {
		cpd, _ := p.store.CPD(ch)
		have[cpd.DP] = true
	}
	changed := false
	for _, dh := range p.store.AllDPs() {
		if have[dh] {
			continue
		}
		if p.reserveOne(h, lease, dh) {
			changed = true
		}
	}
	if changed {
		p.scheduleNotify(h)
	}
}

// effectiveLen computes L = max(preferred_len, DP.plen+min_ratio_exp,
// min_len), clamped to max_len. ok is false if L would exceed max_len.
func (p *PD) effectiveLen(lease Lease, dpPlen uint8) (uint8, bool) {
	l := lease.PreferredLen
	if v := dpPlen + p.cfg.MinRatioExp; v > l {
		l = v
	}
	if p.cfg.MinLen > l {
		l = p.cfg.MinLen
	}
	if l > lease.MaxLen {
		return 0, false
	}
	return l, true
}

func (p *PD) reserveOne(h LeaseHandle, lease Lease, dh DPHandle) bool {
	dp, ok := p.store.DP(dh)
	if !ok {
		return false
	}
	l, ok := p.effectiveLen(lease, dp.Prefix.Plen)
	if !ok {
		return false
	}

	anchor, err := prefix.PseudoRandom(pdSeed(lease.LeaseID, dp.Prefix), 0, dp.Prefix, l)
	if err != nil {
		return false
	}

	taken, ok := p.occupancy(dh, dp, l)
	cand := anchor
	for {
		free := true
		if ok {
			if c, err := prefix.Counter(cand, dp.Prefix.Plen); err == nil {
				free = !taken.Test(uint(c))
			}
		} else {
			free = !p.scanOverlap(cand)
		}
		if free {
			cph := p.store.AddCP(CP{DP: dh, Prefix: cand, State: CPProposed, Authoritative: true})
			p.store.AddCPD(CPD{Lease: h, CP: cph, DP: dh})
			if p.sched != nil {
				p.scheduleApply(cph)
			}
			return true
		}
		next, wrapped, err := prefix.Increment(cand, dp.Prefix.Plen)
		if err != nil || wrapped {
			return false
		}
		cand = next
	}
}

// occupancy builds a bitset indexed by counter value (bits
// [dp.Plen, l)) marking every length-l sub-prefix of dh already
// reserved by a CP. It bounds itself to counter fields of at most 24
// bits (16M slots) to keep the bitmap small; wider fields fall back to
// a direct overlap scan per candidate.
func (p *PD) occupancy(dh DPHandle, dp DP, l uint8) (*bitset.BitSet, bool) {
	n := int(l) - int(dp.Prefix.Plen)
	if n < 0 || n > 24 {
		return nil, false
	}
	bs := bitset.New(uint(1) << uint(n))
	for _, ch := range p.store.AllCPs() {
		cp, _ := p.store.CP(ch)
		if cp.DP != dh || cp.Prefix.Plen != l {
			continue
		}
		if c, err := prefix.Counter(cp.Prefix, dp.Prefix.Plen); err == nil {
			bs.Set(uint(c))
		}
	}
	return bs, true
}

func (p *PD) scanOverlap(cand prefix.Prefix) bool {
	for _, ch := range p.store.AllCPs() {
		cp, _ := p.store.CP(ch)
		if overlaps(cp.Prefix, cand) {
			return true
		}
	}
	return false
}

func pdSeed(leaseID string, dp prefix.Prefix) []byte {
	h := sha256.New()
	h.Write([]byte(leaseID))
	h.Write(dp.Addr[:])
	var plenBuf [1]byte
	plenBuf[0] = dp.Plen
	h.Write(plenBuf[:])
	return h.Sum(nil)
}

func (p *PD) scheduleApply(h CPHandle) {
	p.sched.RunAfter(0, func() {
		p.store.UpdateCP(h, changeSet(ChangeIface), func(cp *CP) {
			cp.State = CPApplied
			cp.AppliedAt = time.Now()
		})
	})
}

// scheduleNotify batches update_cb calls to at most once per ~500ms.
func (p *PD) scheduleNotify(h LeaseHandle) {
	if p.pendingBatch[h] {
		return
	}
	p.pendingBatch[h] = true
	if p.sched == nil {
		p.flushNotify(h)
		return
	}
	p.sched.RunAfter(500*time.Millisecond, func() {
		p.flushNotify(h)
	})
}

func (p *PD) flushNotify(h LeaseHandle) {
	delete(p.pendingBatch, h)
	if cb, ok := p.onUpdate[h]; ok {
		cb(h)
	}
}

// OnDPRemoved notifies every lease that had a CPD against the removed
// DP. The Store's own cascade (DeleteDP) purges those CPDs as soon as
// its subscriber callbacks return, so they can no longer be looked up
// afterwards; the caller passes the set of leases affected (captured
// before the purge) rather than this method looking them up.
func (p *PD) OnDPRemoved(affected []LeaseHandle) {
	for _, h := range affected {
		p.scheduleNotify(h)
	}
}
