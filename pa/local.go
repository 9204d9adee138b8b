// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"time"

	"github.com/dtaht/hnetd/prefix"
)

// LocalStatus is the bitset returned by an element's getStatus check.
type LocalStatus uint8

const (
	LocalCanKeep LocalStatus = 1 << iota
	LocalCanCreate
)

// ULAStore persists the ULA prefix chosen locally across restarts, so
// a router does not renumber its downstream links every reboot.
type ULAStore interface {
	Get() (prefix.Prefix, bool)
	Save(prefix.Prefix)
}

// LocalConfig holds the tunables for ULA/IPv4 local prefix generation.
type LocalConfig struct {
	UseULA            bool
	NoULAIfGlobalIPv6 bool
	UseRandomULA      bool
	RandomULAPlen     uint8
	ULAPrefix         prefix.Prefix

	UseIPv4            bool
	NoIPv4IfGlobalIPv6 bool
	HaveIPv4Iface      func() bool
	V4Prefix           prefix.Prefix

	LocalValidLifetime     time.Duration
	LocalPreferredLifetime time.Duration
	LocalUpdateDelay       time.Duration
}

// DefaultLocalConfig matches the original daemon's compiled-in
// defaults.
func DefaultLocalConfig() LocalConfig {
	v4, _ := prefix.Parse("10.0.0.0/8")
	return LocalConfig{
		UseULA:                 true,
		NoULAIfGlobalIPv6:      true,
		UseRandomULA:           true,
		RandomULAPlen:          48,
		ULAPrefix:              prefix.ULA,
		UseIPv4:                true,
		NoIPv4IfGlobalIPv6:     false,
		HaveIPv4Iface:          func() bool { return true },
		V4Prefix:               v4,
		LocalValidLifetime:     600 * time.Second,
		LocalPreferredLifetime: 300 * time.Second,
		LocalUpdateDelay:       330 * time.Second,
	}
}

// element is one of the two independently-scheduled local generators
// (ULA or IPv4). Each tracks its own LDP handle, so the two never
// share timing state — the original's pa_local_init copy-paste bug
// initialized ula.timeout/create_start twice and left ipv4's alone;
// here the two are separate struct values by construction, so there
// is nothing to double-initialize.
type element struct {
	ldp         DPHandle
	haveLDP     bool
	createStart time.Time
	timeout     time.Time

	filter     func(prefix.Prefix) bool
	getStatus  func(*Local) LocalStatus
	create     func(*Local) (prefix.Prefix, bool)
}

// Local runs the ULA and IPv4 local-prefix generators against store.
type Local struct {
	store *Store
	cfg   LocalConfig
	ula   ULAStore

	ulaElem  element
	ipv4Elem element

	startTime time.Time
}

// NewLocal builds a Local generator pair. ulaStore may be nil, in
// which case ULA generation always falls back to fresh random/fixed
// prefixes.
func NewLocal(store *Store, cfg LocalConfig, ulaStore ULAStore) *Local {
	l := &Local{store: store, cfg: cfg, ula: ulaStore}
	l.ulaElem = element{
		filter:    prefix.IsULA,
		getStatus: (*Local).ulaStatus,
		create:    (*Local).ulaCreate,
	}
	l.ipv4Elem = element{
		filter:    prefix.IsIPv4,
		getStatus: (*Local).ipv4Status,
		create:    (*Local).ipv4Create,
	}
	return l
}

func (l *Local) hasGlobalIPv6() bool {
	for _, h := range l.store.AllDPs() {
		dp, _ := l.store.DP(h)
		if !prefix.IsIPv4(dp.Prefix) && !prefix.IsULA(dp.Prefix) {
			return true
		}
	}
	return false
}

func (l *Local) hasHighestRID() bool {
	rid := l.store.RID()
	for _, h := range l.store.AllAPs() {
		ap, _ := l.store.AP(h)
		if rid.Less(ap.RID) {
			return false
		}
	}
	for _, h := range l.store.AllDPs() {
		dp, _ := l.store.DP(h)
		if !dp.Local && rid.Less(dp.RID) {
			return false
		}
	}
	return true
}

// genericStatus implements pa_local_generic_get_status: any DP
// matching filter that is either a local DP we don't own, or an
// external DP owned by a higher RID, forces status to zero.
func (l *Local) genericStatus(e *element, filter func(prefix.Prefix) bool) LocalStatus {
	rid := l.store.RID()
	for _, h := range l.store.AllDPs() {
		dp, _ := l.store.DP(h)
		if !filter(dp.Prefix) {
			continue
		}
		if dp.Local {
			if !e.haveLDP || h != e.ldp {
				return 0
			}
		} else if rid.Less(dp.RID) {
			return 0
		}
	}
	status := LocalCanKeep
	if l.hasHighestRID() {
		status |= LocalCanCreate
	}
	return status
}

func (l *Local) ulaStatus() LocalStatus {
	if !l.cfg.UseULA || (l.cfg.NoULAIfGlobalIPv6 && l.hasGlobalIPv6()) {
		return 0
	}
	return l.genericStatus(&l.ulaElem, prefix.IsULA)
}

func (l *Local) ipv4Status() LocalStatus {
	haveIface := l.cfg.HaveIPv4Iface != nil && l.cfg.HaveIPv4Iface()
	if !l.cfg.UseIPv4 || !haveIface || (l.cfg.NoIPv4IfGlobalIPv6 && l.hasGlobalIPv6()) {
		return 0
	}
	return l.genericStatus(&l.ipv4Elem, prefix.IsIPv4)
}

func (l *Local) ulaCreate() (prefix.Prefix, bool) {
	if l.ula != nil {
		if p, ok := l.ula.Get(); ok {
			return p, true
		}
	}
	if l.cfg.UseRandomULA {
		p, err := prefix.Random(l.cfg.ULAPrefix, l.cfg.RandomULAPlen)
		if err == nil {
			return p, true
		}
	}
	if l.cfg.ULAPrefix.Plen != 0 {
		return l.cfg.ULAPrefix, true
	}
	return prefix.Prefix{}, false
}

func (l *Local) ipv4Create() (prefix.Prefix, bool) {
	return l.cfg.V4Prefix, true
}

// terminate deletes e's LDP, matching __pa_local_elem_term.
func (l *Local) terminate(e *element) {
	if e.haveLDP {
		l.store.DeleteDP(e.ldp)
		e.haveLDP = false
	}
	e.createStart = time.Time{}
	e.timeout = time.Time{}
}

// update refreshes e's DP lifetimes, returning the next time update
// should run, matching pa_local_generic_update.
func (l *Local) update(e *element, now time.Time) time.Time {
	if !e.haveLDP {
		return time.Time{}
	}
	preferred := now.Add(l.cfg.LocalPreferredLifetime)
	valid := now.Add(l.cfg.LocalValidLifetime)
	l.store.UpdateDP(e.ldp, changeSet(ChangeLifetimes), func(dp *DP) {
		dp.PreferredUntil = preferred
		dp.ValidUntil = valid
	})
	if e.filter(l.cfg.ULAPrefix) && l.ula != nil {
		if dp, ok := l.store.DP(e.ldp); ok {
			l.ula.Save(dp.Prefix)
		}
	}
	return valid.Add(-l.cfg.LocalUpdateDelay)
}

// runElement implements pa_local_algo for one element.
func (l *Local) runElement(e *element, now time.Time) {
	status := e.getStatus(l)
	if status == 0 {
		l.terminate(e)
		return
	}

	switch {
	case e.haveLDP:
		if status&LocalCanKeep == 0 {
			l.terminate(e)
			return
		}
		if !e.timeout.After(now) {
			e.timeout = l.update(e, now)
		}
	case status&LocalCanCreate != 0:
		delay := 2 * l.store.FloodingDelay()
		if e.createStart.IsZero() {
			e.createStart = now
			e.timeout = now.Add(delay)
		} else if !now.Before(e.createStart.Add(delay)) {
			if p, ok := e.create(l); ok {
				e.ldp = l.store.AddDP(DP{Prefix: p, Local: true})
				e.haveLDP = true
			}
			e.createStart = time.Time{}
			e.timeout = l.update(e, now)
		}
	default:
		e.timeout = time.Time{}
	}
}

// Run executes one pass of the spontaneous prefix generation
// algorithm over both elements, returning the next time Run should be
// called (zero if neither element is pending).
func (l *Local) Run(now time.Time) time.Time {
	if l.startTime.IsZero() {
		l.startTime = now
	}
	l.runElement(&l.ulaElem, now)
	l.runElement(&l.ipv4Elem, now)

	var next time.Time
	for _, t := range []time.Time{l.ulaElem.timeout, l.ipv4Elem.timeout} {
		if t.IsZero() {
			continue
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// Stop terminates both elements, e.g. on daemon shutdown.
func (l *Local) Stop() {
	l.terminate(&l.ipv4Elem)
	l.terminate(&l.ulaElem)
}
