// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package iface

import (
	"net/netip"
	"sync"

	"github.com/gaissmai/bart"

	"github.com/dtaht/hnetd/prefix"
)

// Route is one route to be installed: destination, next-hop (zero
// value means "directly attached"/no gateway), outgoing interface and
// a metric used to break ties between overlapping routes.
type Route struct {
	Dest    prefix.Prefix
	NextHop netip.Addr
	IfName  string
	Metric  uint32
}

// RouteSink is the route-installation surface the registry drives.
// Kernel/netlink installation is out of scope (see package doc); the
// in-memory BARTRouteSink below is the only implementation here, but
// callers may substitute a netlink-backed one without touching the
// transaction logic in this file.
type RouteSink interface {
	// Install adds or replaces a route.
	Install(Route)
	// Withdraw removes a single route previously installed for dest.
	Withdraw(dest prefix.Prefix)
	// WithdrawInterface removes every route whose IfName matches.
	WithdrawInterface(ifname string)
	// Routes returns every currently installed route.
	Routes() []Route
}

// BARTRouteSink keeps installed routes in a gaissmai/bart
// longest-prefix-match table, keyed by destination prefix. It performs
// no kernel interaction: this is the "opaque sink" spec.md treats
// kernel route installation as.
type BARTRouteSink struct {
	mu sync.Mutex
	t  *bart.Table[Route]
}

// NewBARTRouteSink builds an empty route sink.
func NewBARTRouteSink() *BARTRouteSink {
	return &BARTRouteSink{t: new(bart.Table[Route])}
}

func (b *BARTRouteSink) Install(r Route) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.t.Insert(prefix.NetipPrefix(r.Dest), r)
}

func (b *BARTRouteSink) Withdraw(dest prefix.Prefix) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.t.Delete(prefix.NetipPrefix(dest))
}

func (b *BARTRouteSink) WithdrawInterface(ifname string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var dead []netip.Prefix
	for np, r := range b.t.All() {
		if r.IfName == ifname {
			dead = append(dead, np)
		}
	}
	for _, np := range dead {
		b.t.Delete(np)
	}
}

func (b *BARTRouteSink) Routes() []Route {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Route
	for _, r := range b.t.All() {
		out = append(out, r)
	}
	return out
}

// RouteTxn is a single update→add*→commit transaction over a
// RouteSink. Routes installed before the transaction began that are
// not re-added via Add are withdrawn on Commit; Discard abandons the
// transaction, leaving the sink untouched.
type RouteTxn struct {
	sink    RouteSink
	before  map[netip.Prefix]struct{}
	added   map[netip.Prefix]Route
	done    bool
}

func newRouteTxn(sink RouteSink) *RouteTxn {
	before := make(map[netip.Prefix]struct{})
	for _, r := range sink.Routes() {
		before[prefix.NetipPrefix(r.Dest)] = struct{}{}
	}
	return &RouteTxn{sink: sink, before: before, added: make(map[netip.Prefix]Route)}
}

// Add stages a route for installation.
func (t *RouteTxn) Add(r Route) {
	t.added[prefix.NetipPrefix(r.Dest)] = r
}

// Commit installs every staged route and withdraws any previously
// installed route not re-staged during this transaction.
func (t *RouteTxn) Commit() {
	if t.done {
		return
	}
	t.done = true
	for np := range t.before {
		if _, ok := t.added[np]; !ok {
			t.sink.Withdraw(prefix.FromNetipPrefix(np))
		}
	}
	for _, r := range t.added {
		t.sink.Install(r)
	}
}

// Discard abandons the transaction without touching the sink.
func (t *RouteTxn) Discard() {
	t.done = true
}
