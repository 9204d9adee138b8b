// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package ipc implements the local control-plane protocol: a
// SOCK_DGRAM AF_UNIX server that accepts interface lifecycle, uplink
// enable/disable and state-dump requests, grounded on
// _examples/original_source/src/ipc.c's blobmsg-keyed command set.
// Each request/response is one JSON-encoded datagram rather than a
// blobmsg blob: no blobmsg/ubus library is available anywhere in the
// retrieved example pack, and encoding/json is the one serialization
// the pack's own config loader (viper) already layers on, so it is
// used here as a direct, justified substitute for the same structured
// key/value shape the original's blobmsg policy table describes.
package ipc

// PrefixSpec is one entry of a request's "prefix" array: restores the
// original's richer per-prefix object (address, excluded, lifetimes,
// class) rather than spec.md's simplified bare-address list, per
// SPEC_FULL.md §6.3.
type PrefixSpec struct {
	Address   string `json:"address"`
	Excluded  string `json:"excluded,omitempty"`
	Preferred uint32 `json:"preferred,omitempty"`
	Valid     uint32 `json:"valid,omitempty"`
	Class     uint32 `json:"class,omitempty"`
}

// Request is the structured shape of every datagram the server accepts,
// mirroring ipc_policy's field set (command, ifname, handle, prefix,
// ipv4source, dns, mode, disable_pa, ula_default_router).
type Request struct {
	Command          string       `json:"command"`
	IfName           string       `json:"ifname,omitempty"`
	Handle           string       `json:"handle,omitempty"`
	Prefix           []PrefixSpec `json:"prefix,omitempty"`
	IPv4Source       string       `json:"ipv4source,omitempty"`
	DNS              []string     `json:"dns,omitempty"`
	Mode             string       `json:"mode,omitempty"`
	DisablePA        bool         `json:"disable_pa,omitempty"`
	ULADefaultRouter bool         `json:"ula_default_router,omitempty"`
}

// Response is returned for every request; Dump is populated only for
// the "dump" command, Error only on failure.
type Response struct {
	Error string    `json:"error,omitempty"`
	Dump  *DumpState `json:"dump,omitempty"`
}

// DumpState is the state snapshot the "dump" command returns: every
// interface this router currently manages.
type DumpState struct {
	Interfaces []InterfaceState `json:"interfaces"`
}

// InterfaceState is one interface's externally-visible state.
type InterfaceState struct {
	IfName  string   `json:"ifname"`
	Handle  string   `json:"handle,omitempty"`
	Mode    string   `json:"mode"`
	Uplink  bool     `json:"uplink"`
	Prefixes []string `json:"prefixes,omitempty"`
}

const (
	CommandDump               = "dump"
	CommandIfUp               = "ifup"
	CommandIfDown              = "ifdown"
	CommandEnableIPv4Uplink    = "enable_ipv4_uplink"
	CommandDisableIPv4Uplink   = "disable_ipv4_uplink"
	CommandEnableIPv6Uplink    = "enable_ipv6_uplink"
	CommandDisableIPv6Uplink   = "disable_ipv6_uplink"
)
