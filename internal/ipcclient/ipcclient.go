// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package ipcclient is the shared request-building/sending code behind
// the hnet-ifup/hnet-ifdown multicall binary, mirroring the original's
// ipc_ifupdown() in _examples/original_source/src/ipc.c.
package ipcclient

import (
	"github.com/dtaht/hnetd/ipc"
)

// Options mirrors ipc_ifupdown's getopt flags ("-c mode -p prefix -d
// -u -k trickle_k -P ping_interval"), restricted to the fields this
// daemon's ipc.Request actually carries.
type Options struct {
	Mode             string
	Prefixes         []string
	DisablePA        bool
	ULADefaultRouter bool
}

// Up builds and sends an "ifup" request for ifname against the daemon
// listening at sockPath.
func Up(sockPath, ifname string, opt Options) (ipc.Response, error) {
	cl, err := ipc.Dial(sockPath)
	if err != nil {
		return ipc.Response{}, err
	}
	defer cl.Close()

	req := ipc.Request{
		Command:          ipc.CommandIfUp,
		IfName:           ifname,
		Handle:           ifname,
		Mode:             opt.Mode,
		DisablePA:        opt.DisablePA,
		ULADefaultRouter: opt.ULADefaultRouter,
	}
	if opt.Mode == "external" {
		req.Handle = ""
	}
	for _, p := range opt.Prefixes {
		req.Prefix = append(req.Prefix, ipc.PrefixSpec{Address: p})
	}
	return cl.Send(req)
}

// Down sends an "ifdown" request for ifname.
func Down(sockPath, ifname string) (ipc.Response, error) {
	cl, err := ipc.Dial(sockPath)
	if err != nil {
		return ipc.Response{}, err
	}
	defer cl.Close()
	return cl.Send(ipc.Request{Command: ipc.CommandIfDown, IfName: ifname})
}

// Dump sends a "dump" request and returns the resulting state snapshot.
func Dump(sockPath string) (ipc.Response, error) {
	cl, err := ipc.Dial(sockPath)
	if err != nil {
		return ipc.Response{}, err
	}
	defer cl.Close()
	return cl.Send(ipc.Request{Command: ipc.CommandDump})
}
