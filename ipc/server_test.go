// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package ipc

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/eventloop"
	"github.com/dtaht/hnetd/iface"
)

func TestIfUpIfDownDump(t *testing.T) {
	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	reg := iface.NewRegistry(iface.NewBARTRouteSink())
	sockPath := filepath.Join(t.TempDir(), "ipc.sock")
	srv, err := Listen(sockPath, reg, loop, nil)
	require.NoError(t, err)
	defer srv.Close()

	cl, err := Dial(sockPath)
	require.NoError(t, err)
	defer cl.Close()

	resp, err := cl.Send(Request{Command: CommandIfUp, IfName: "eth0", Mode: "hybrid"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)

	resp, err = cl.Send(Request{Command: CommandDump})
	require.NoError(t, err)
	require.NotNil(t, resp.Dump)
	require.Len(t, resp.Dump.Interfaces, 1)
	assert.Equal(t, "eth0", resp.Dump.Interfaces[0].IfName)
	assert.Equal(t, "hybrid", resp.Dump.Interfaces[0].Mode)

	resp, err = cl.Send(Request{Command: CommandIfDown, IfName: "eth0"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)

	resp, err = cl.Send(Request{Command: CommandDump})
	require.NoError(t, err)
	assert.Empty(t, resp.Dump.Interfaces)
}

func TestEnableDisableIPv6Uplink(t *testing.T) {
	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	reg := iface.NewRegistry(iface.NewBARTRouteSink())
	sockPath := filepath.Join(t.TempDir(), "ipc.sock")
	srv, err := Listen(sockPath, reg, loop, nil)
	require.NoError(t, err)
	defer srv.Close()

	cl, err := Dial(sockPath)
	require.NoError(t, err)
	defer cl.Close()

	_, err = cl.Send(Request{Command: CommandIfUp, IfName: "wan0", Mode: "external"})
	require.NoError(t, err)

	resp, err := cl.Send(Request{
		Command: CommandEnableIPv6Uplink,
		IfName:  "wan0",
		Prefix:  []PrefixSpec{{Address: "2001:db8::/32", Preferred: 600, Valid: 1200}},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)

	ifc, err := reg.Get("wan0")
	require.NoError(t, err)
	require.Len(t, ifc.DelegatedPrefixes, 1)

	resp, err = cl.Send(Request{Command: CommandDisableIPv6Uplink, IfName: "wan0"})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)

	ifc, err = reg.Get("wan0")
	require.NoError(t, err)
	assert.Empty(t, ifc.DelegatedPrefixes)
}

func TestUnknownCommandReturnsError(t *testing.T) {
	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	reg := iface.NewRegistry(iface.NewBARTRouteSink())
	sockPath := filepath.Join(t.TempDir(), "ipc.sock")
	srv, err := Listen(sockPath, reg, loop, nil)
	require.NoError(t, err)
	defer srv.Close()

	cl, err := Dial(sockPath)
	require.NoError(t, err)
	defer cl.Close()

	resp, err := cl.Send(Request{Command: "bogus"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Error)
}
