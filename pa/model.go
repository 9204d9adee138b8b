// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/prefix"
)

// Change flag bit positions, carried in the bitset.BitSet delivered
// alongside each notified entity.
const (
	ChangeCreated = iota
	ChangeToDelete
	ChangeLifetimes
	ChangeDHCP
	ChangeIface
	ChangeFloodRID
	ChangeFloodDelay
)

func changeSet(bits ...uint) *bitset.BitSet {
	b := bitset.New(8)
	for _, n := range bits {
		b.Set(n)
	}
	return b
}

// DPHandle, APHandle, CPHandle, CPDHandle and LeaseHandle are
// arena-indexed references, stable across a mutation but invalidated
// (by generation) once the referent is deleted.
type (
	DPHandle    handle
	APHandle    handle
	CPHandle    handle
	CPDHandle   handle
	LeaseHandle handle
)

// DP is a delegated prefix, learned from an uplink or generated
// locally.
type DP struct {
	Prefix         prefix.Prefix
	ValidUntil     time.Time
	PreferredUntil time.Time
	DHCPOpts       []byte
	RID            dncp.RID // owning router; zero for locally-owned DPs
	Local          bool
	ToDelete       bool
}

// AP is a (prefix, link) binding advertised by some router, ours or
// remote.
type AP struct {
	Prefix        prefix.Prefix
	LinkID        uint32
	RID           dncp.RID
	Authoritative bool
	Priority      uint8
	ToDelete      bool
}

// CPState is a committed prefix's place in the per-(DP,link) selection
// state machine.
type CPState int

const (
	CPNone CPState = iota
	CPProposed
	CPAdvertised
	CPApplied
)

func (s CPState) String() string {
	switch s {
	case CPProposed:
		return "proposed"
	case CPAdvertised:
		return "advertised"
	case CPApplied:
		return "applied"
	default:
		return "none"
	}
}

// CP is this router's locally-applied AP for a given (DP, link): the
// sub-prefix chosen out of DP for link.
type CP struct {
	DP       DPHandle
	LinkID   uint32
	Prefix   prefix.Prefix
	State    CPState
	Authoritative bool // false when adopted from a higher-RID remote AP
	AppliedAt time.Time
	ToDelete bool

	Published     bool
	PublishHandle dncp.Handle
}

// Lease is a PD client's request for a sub-prefix out of some DP.
type Lease struct {
	LeaseID      string
	PreferredLen uint8
	MaxLen       uint8
}

// CPD is a CP reserved on behalf of a downstream PD client lease.
type CPD struct {
	Lease    LeaseHandle
	CP       CPHandle
	DP       DPHandle
	ToDelete bool
}

// Subscriber receives store change notifications in FIFO registration
// order. A subscriber must not mutate the Store synchronously from
// within a callback; schedule mutations via Store's Scheduler instead.
type Subscriber interface {
	OnDPs(changes map[DPHandle]*bitset.BitSet)
	OnAPs(changes map[APHandle]*bitset.BitSet)
	OnCPs(changes map[CPHandle]*bitset.BitSet)
	OnCPDs(changes map[CPDHandle]*bitset.BitSet)
	OnFlood(changes *bitset.BitSet)
	OnIPv4(changes *bitset.BitSet)
}

// Scheduler defers a subscriber-triggered mutation to run outside the
// current notification callback, matching the "mutations are
// scheduled through a timer" rule. The event loop's RunSoon satisfies
// this.
type Scheduler interface {
	RunSoon(fn func())
	RunAfter(d time.Duration, fn func())
}

// Store is the in-memory authoritative PA data model: DPs, APs, CPs,
// CPDs, leases, and the flood-derived local RID and flooding delay.
type Store struct {
	dps   *arena[DP]
	aps   *arena[AP]
	cps   *arena[CP]
	cpds  *arena[CPD]
	leases *arena[Lease]

	rid          dncp.RID
	floodingDelay time.Duration
	haveGlobalIPv4 bool

	subs  []Subscriber
	sched Scheduler
}

// NewStore builds an empty store. sched is used to defer any mutation
// a subscriber callback schedules.
func NewStore(sched Scheduler) *Store {
	return &Store{
		dps:    newArena[DP](),
		aps:    newArena[AP](),
		cps:    newArena[CP](),
		cpds:   newArena[CPD](),
		leases: newArena[Lease](),
		sched:  sched,
	}
}

// Subscribe registers sub to receive future change notifications.
func (s *Store) Subscribe(sub Subscriber) {
	s.subs = append(s.subs, sub)
}

// RID returns the router identifier currently derived from flood
// state.
func (s *Store) RID() dncp.RID { return s.rid }

// SetRID updates the flood-derived RID, notifying subscribers of a
// FloodRID change if it actually moved. RIDs are expected to be
// monotonic per node lifetime; this is the caller's responsibility to
// enforce (the flooding layer only ever grows a node's RID).
func (s *Store) SetRID(rid dncp.RID) {
	if rid == s.rid {
		return
	}
	s.rid = rid
	s.notifyFlood(changeSet(ChangeFloodRID))
}

// SetFloodingDelay updates the network-wide flooding delay used to
// size apply-delay timers.
func (s *Store) SetFloodingDelay(d time.Duration) {
	if d == s.floodingDelay {
		return
	}
	s.floodingDelay = d
	s.notifyFlood(changeSet(ChangeFloodDelay))
}

// FloodingDelay returns the current flooding delay.
func (s *Store) FloodingDelay() time.Duration { return s.floodingDelay }

func (s *Store) notifyFlood(changes *bitset.BitSet) {
	for _, sub := range s.subs {
		sub.OnFlood(changes)
	}
}

// SetHaveGlobalIPv4 records whether this router currently has a global
// IPv4 address, notifying the ipv4 category on change.
func (s *Store) SetHaveGlobalIPv4(have bool) {
	if have == s.haveGlobalIPv4 {
		return
	}
	s.haveGlobalIPv4 = have
	for _, sub := range s.subs {
		sub.OnIPv4(changeSet(ChangeIface))
	}
}

func (s *Store) HaveGlobalIPv4() bool { return s.haveGlobalIPv4 }

// --- DP ---

// AddDP creates a new delegated prefix and notifies subscribers.
func (s *Store) AddDP(dp DP) DPHandle {
	h := DPHandle(s.dps.alloc(dp))
	s.flushDPs(map[DPHandle]*bitset.BitSet{h: changeSet(ChangeCreated)})
	return h
}

// DP resolves a handle to its current value.
func (s *Store) DP(h DPHandle) (DP, bool) {
	v, ok := s.dps.get(handle(h))
	if !ok {
		return DP{}, false
	}
	return *v, true
}

// UpdateDP mutates the DP at h via fn and notifies subscribers with
// flags.
func (s *Store) UpdateDP(h DPHandle, flags *bitset.BitSet, fn func(*DP)) {
	v, ok := s.dps.get(handle(h))
	if !ok {
		return
	}
	fn(v)
	s.flushDPs(map[DPHandle]*bitset.BitSet{h: flags})
}

// DeleteDP marks a DP ToDelete, cascades the same mark onto every CP
// and CPD that references it (APs carry no DP reference and are left
// alone), notifies subscribers, then purges the now-dead entities.
func (s *Store) DeleteDP(h DPHandle) {
	v, ok := s.dps.get(handle(h))
	if !ok {
		return
	}
	v.ToDelete = true

	dpChanges := map[DPHandle]*bitset.BitSet{h: changeSet(ChangeToDelete)}
	cpChanges := map[CPHandle]*bitset.BitSet{}
	cpdChanges := map[CPDHandle]*bitset.BitSet{}

	for _, ch := range s.cps.all() {
		cp, _ := s.cps.get(ch)
		if cp.DP == h {
			cp.ToDelete = true
			cpChanges[CPHandle(ch)] = changeSet(ChangeToDelete)
		}
	}
	for _, ch := range s.cpds.all() {
		cpd, _ := s.cpds.get(ch)
		if cpd.DP == h {
			cpd.ToDelete = true
			cpdChanges[CPDHandle(ch)] = changeSet(ChangeToDelete)
		}
	}

	s.flushDPs(dpChanges)
	if len(cpChanges) > 0 {
		s.flushCPs(cpChanges)
	}
	if len(cpdChanges) > 0 {
		s.flushCPDs(cpdChanges)
	}

	s.purgeCPDs()
	s.purgeCPs()
	s.dps.release(handle(h))
}

func (s *Store) purgeCPs() {
	for _, ch := range s.cps.all() {
		cp, _ := s.cps.get(ch)
		if cp.ToDelete {
			s.cps.release(ch)
		}
	}
}

func (s *Store) purgeCPDs() {
	for _, ch := range s.cpds.all() {
		cpd, _ := s.cpds.get(ch)
		if cpd.ToDelete {
			s.cpds.release(ch)
		}
	}
}

// AllDPs returns every live DP handle.
func (s *Store) AllDPs() []DPHandle {
	raw := s.dps.all()
	out := make([]DPHandle, len(raw))
	for i, h := range raw {
		out[i] = DPHandle(h)
	}
	return out
}

func (s *Store) flushDPs(changes map[DPHandle]*bitset.BitSet) {
	for _, sub := range s.subs {
		sub.OnDPs(changes)
	}
}

// --- AP ---

func (s *Store) AddAP(ap AP) APHandle {
	h := APHandle(s.aps.alloc(ap))
	s.flushAPs(map[APHandle]*bitset.BitSet{h: changeSet(ChangeCreated)})
	return h
}

func (s *Store) AP(h APHandle) (AP, bool) {
	v, ok := s.aps.get(handle(h))
	if !ok {
		return AP{}, false
	}
	return *v, true
}

func (s *Store) UpdateAP(h APHandle, flags *bitset.BitSet, fn func(*AP)) {
	v, ok := s.aps.get(handle(h))
	if !ok {
		return
	}
	fn(v)
	s.flushAPs(map[APHandle]*bitset.BitSet{h: flags})
}

func (s *Store) DeleteAP(h APHandle) {
	if _, ok := s.aps.get(handle(h)); !ok {
		return
	}
	s.flushAPs(map[APHandle]*bitset.BitSet{h: changeSet(ChangeToDelete)})
	s.aps.release(handle(h))
}

// AllAPs returns every live AP handle.
func (s *Store) AllAPs() []APHandle {
	raw := s.aps.all()
	out := make([]APHandle, len(raw))
	for i, h := range raw {
		out[i] = APHandle(h)
	}
	return out
}

func (s *Store) flushAPs(changes map[APHandle]*bitset.BitSet) {
	for _, sub := range s.subs {
		sub.OnAPs(changes)
	}
}

// --- CP ---

func (s *Store) AddCP(cp CP) CPHandle {
	h := CPHandle(s.cps.alloc(cp))
	s.flushCPs(map[CPHandle]*bitset.BitSet{h: changeSet(ChangeCreated)})
	return h
}

func (s *Store) CP(h CPHandle) (CP, bool) {
	v, ok := s.cps.get(handle(h))
	if !ok {
		return CP{}, false
	}
	return *v, true
}

func (s *Store) UpdateCP(h CPHandle, flags *bitset.BitSet, fn func(*CP)) {
	v, ok := s.cps.get(handle(h))
	if !ok {
		return
	}
	fn(v)
	s.flushCPs(map[CPHandle]*bitset.BitSet{h: flags})
}

func (s *Store) DeleteCP(h CPHandle) {
	if _, ok := s.cps.get(handle(h)); !ok {
		return
	}
	s.flushCPs(map[CPHandle]*bitset.BitSet{h: changeSet(ChangeToDelete)})
	s.cps.release(handle(h))
}

// FindCP returns the CP for (dp, linkID) if one exists.
func (s *Store) FindCP(dp DPHandle, linkID uint32) (CPHandle, CP, bool) {
	for _, ch := range s.cps.all() {
		cp, _ := s.cps.get(ch)
		if cp.DP == dp && cp.LinkID == linkID {
			return CPHandle(ch), *cp, true
		}
	}
	return CPHandle{}, CP{}, false
}

// AllCPs returns every live CP handle.
func (s *Store) AllCPs() []CPHandle {
	raw := s.cps.all()
	out := make([]CPHandle, len(raw))
	for i, h := range raw {
		out[i] = CPHandle(h)
	}
	return out
}

func (s *Store) flushCPs(changes map[CPHandle]*bitset.BitSet) {
	for _, sub := range s.subs {
		sub.OnCPs(changes)
	}
}

// --- Lease / CPD ---

// AddLease registers a new PD client lease request.
func (s *Store) AddLease(l Lease) LeaseHandle {
	return LeaseHandle(s.leases.alloc(l))
}

func (s *Store) Lease(h LeaseHandle) (Lease, bool) {
	v, ok := s.leases.get(handle(h))
	if !ok {
		return Lease{}, false
	}
	return *v, true
}

// DeleteLease removes a lease and every CPD reserved under it.
func (s *Store) DeleteLease(h LeaseHandle) {
	if _, ok := s.leases.get(handle(h)); !ok {
		return
	}
	changes := map[CPDHandle]*bitset.BitSet{}
	for _, ch := range s.cpds.all() {
		cpd, _ := s.cpds.get(ch)
		if cpd.Lease == h {
			cpd.ToDelete = true
			changes[CPDHandle(ch)] = changeSet(ChangeToDelete)
		}
	}
	if len(changes) > 0 {
		s.flushCPDs(changes)
		s.purgeCPDs()
	}
	s.leases.release(handle(h))
}

func (s *Store) AddCPD(cpd CPD) CPDHandle {
	h := CPDHandle(s.cpds.alloc(cpd))
	s.flushCPDs(map[CPDHandle]*bitset.BitSet{h: changeSet(ChangeCreated)})
	return h
}

func (s *Store) CPD(h CPDHandle) (CPD, bool) {
	v, ok := s.cpds.get(handle(h))
	if !ok {
		return CPD{}, false
	}
	return *v, true
}

// CPDsForLease returns every CPD reserved under lease h.
func (s *Store) CPDsForLease(h LeaseHandle) []CPDHandle {
	var out []CPDHandle
	for _, ch := range s.cpds.all() {
		cpd, _ := s.cpds.get(ch)
		if cpd.Lease == h {
			out = append(out, CPDHandle(ch))
		}
	}
	return out
}

func (s *Store) flushCPDs(changes map[CPDHandle]*bitset.BitSet) {
	for _, sub := range s.subs {
		sub.OnCPDs(changes)
	}
}

// ExpireLifetimes deletes every DP whose ValidUntil has passed as of
// now, per the "valid_until <= now deletes the entity" lifetime rule.
func (s *Store) ExpireLifetimes(now time.Time) {
	for _, h := range s.AllDPs() {
		dp, ok := s.DP(h)
		if ok && !dp.ValidUntil.IsZero() && !dp.ValidUntil.After(now) {
			s.DeleteDP(h)
		}
	}
}
