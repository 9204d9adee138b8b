// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package iface implements the process-wide registry of local network
// interfaces: their mode flags, uplink state, delegated prefixes, and
// the route-installation transaction the routing component drives.
// Kernel route installation and netlink plumbing are out of scope; the
// registry's RouteSink is a pure interface and its default
// implementation keeps routes in an in-memory longest-prefix-match
// table rather than touching the kernel.
package iface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mdlayher/ndp"

	"github.com/dtaht/hnetd/prefix"
)

// Flags are the per-interface mode bits.
type Flags uint16

const (
	FlagExternal Flags = 1 << iota
	FlagAdhoc
	FlagGuest
	FlagHybrid
	FlagLeaf
	FlagDisablePA
	FlagULADefaultRouter
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// ErrNotFound is returned by registry lookups for an unknown ifname.
var ErrNotFound = errors.New("iface: interface not found")

// ErrExists is returned by Create when ifname is already registered.
var ErrExists = errors.New("iface: interface already exists")

// LinkID is the per-link identifier: user-assignable bits plus a mask
// width, carried in neighbor and router-address TLVs.
type LinkID struct {
	Bits uint32
	Mask uint8
}

func (l LinkID) String() string {
	return fmt.Sprintf("%x/%d", l.Bits, l.Mask)
}

// UplinkState tracks what an external (uplink-facing) interface has
// received from its upstream DHCP client.
type UplinkState struct {
	IPv4Source string
	DNS        []string // up to 4 IPv4 DNS servers
	DHCPv4Opts []byte
	DHCPv6Opts []byte
}

// Interface is one registered local interface.
type Interface struct {
	IfName  string
	Handle  string // external handle; empty means externally-managed mode
	Flags   Flags
	IP6Plen uint8
	IP4Plen uint8
	LinkID  LinkID

	AddrconfRules []ndp.PrefixInformation

	Uplink UplinkState

	// DelegatedPrefixes are the prefixes received over this interface
	// when it is an uplink (set via enable_ipv6_uplink/ipv4 commands).
	DelegatedPrefixes []DelegatedPrefix
}

// DelegatedPrefix is a prefix handed to the registry for a given
// interface, e.g. from an upstream DHCPv6-PD exchange.
type DelegatedPrefix struct {
	Prefix    prefix.Prefix
	Excluded  *prefix.Prefix
	Preferred uint32
	Valid     uint32
	Class     string
}

// Registry is the process-wide interface table. Zero value is not
// usable; use NewRegistry.
type Registry struct {
	mu    sync.Mutex
	ifs   map[string]*Interface
	sink  RouteSink
	txn   *RouteTxn
}

// NewRegistry builds an empty registry backed by sink for route
// installation. Pass NewBARTRouteSink() for the in-memory default.
func NewRegistry(sink RouteSink) *Registry {
	return &Registry{ifs: make(map[string]*Interface), sink: sink}
}

// Create registers a new interface. mode selects the initial flag set
// ("adhoc", "guest", "hybrid", "leaf", "external", "auto"); "auto"
// leaves Flags at zero, deferring classification to the caller.
func (r *Registry) Create(ifname, handle string, mode string) (*Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ifs[ifname]; ok {
		return nil, ErrExists
	}
	ifc := &Interface{IfName: ifname, Handle: handle, Flags: flagsForMode(mode)}
	r.ifs[ifname] = ifc
	return ifc, nil
}

func flagsForMode(mode string) Flags {
	switch mode {
	case "adhoc":
		return FlagAdhoc
	case "guest":
		return FlagGuest
	case "hybrid":
		return FlagHybrid
	case "leaf":
		return FlagLeaf
	case "external":
		return FlagExternal
	default:
		return 0
	}
}

// Destroy removes an interface and any routes it owned.
func (r *Registry) Destroy(ifname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ifs[ifname]; !ok {
		return ErrNotFound
	}
	delete(r.ifs, ifname)
	r.sink.WithdrawInterface(ifname)
	return nil
}

// Get returns the named interface.
func (r *Registry) Get(ifname string) (*Interface, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ifc, ok := r.ifs[ifname]
	if !ok {
		return nil, ErrNotFound
	}
	return ifc, nil
}

// All returns every registered interface, in no particular order.
func (r *Registry) All() []*Interface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Interface, 0, len(r.ifs))
	for _, ifc := range r.ifs {
		out = append(out, ifc)
	}
	return out
}

// SetDelegatedPrefixes replaces the uplink-delegated prefixes recorded
// against ifname (enable_ipv6_uplink / enable_ipv4_uplink commands).
func (r *Registry) SetDelegatedPrefixes(ifname string, dps []DelegatedPrefix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ifc, ok := r.ifs[ifname]
	if !ok {
		return ErrNotFound
	}
	ifc.DelegatedPrefixes = dps
	return nil
}

// ClearUplink drops uplink state for ifname (disable_ipv4/ipv6_uplink).
func (r *Registry) ClearUplink(ifname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ifc, ok := r.ifs[ifname]
	if !ok {
		return ErrNotFound
	}
	ifc.Uplink = UplinkState{}
	ifc.DelegatedPrefixes = nil
	return nil
}

// BeginRouteUpdate starts a route-installation transaction. Only one
// may be outstanding at a time; Commit or Discard ends it. Any routes
// left installed from a previous run that are not re-added by Add
// during this transaction are withdrawn on Commit.
func (r *Registry) BeginRouteUpdate() *RouteTxn {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txn = newRouteTxn(r.sink)
	return r.txn
}
