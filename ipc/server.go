// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package ipc

import (
	"encoding/json"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dtaht/hnetd/eventloop"
	"github.com/dtaht/hnetd/iface"
	"github.com/dtaht/hnetd/prefix"
)

// Server accepts control-plane requests over a SOCK_DGRAM AF_UNIX
// socket and dispatches them against an iface.Registry, grounded on
// ipc_handle's command dispatch in _examples/original_source/src/ipc.c.
type Server struct {
	conn     *net.UnixConn
	registry *iface.Registry
	log      *logrus.Entry
}

// Listen removes any stale socket at path, binds a new SOCK_DGRAM
// listener there, and registers it on loop. Matches ipc_init's
// unlink-then-usock sequence.
func Listen(path string, registry *iface.Registry, loop *eventloop.Loop, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	_ = os.Remove(path)
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, err
	}
	s := &Server{conn: conn, registry: registry, log: log}
	loop.RegisterUnixgram(conn, s.handle)
	return s, nil
}

// Close releases the underlying socket.
func (s *Server) Close() error {
	return s.conn.Close()
}

func (s *Server) handle(d eventloop.Datagram) {
	var req Request
	if err := json.Unmarshal(d.Data, &req); err != nil {
		s.log.WithError(err).Debug("ipc: malformed request")
		return
	}
	s.log.WithField("command", req.Command).Debug("ipc: handling request")

	resp := s.dispatch(req)
	out, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = s.conn.WriteTo(out, d.Addr)
}

func (s *Server) dispatch(req Request) Response {
	switch req.Command {
	case CommandDump:
		return Response{Dump: s.dump()}
	case CommandIfUp:
		return s.ifUp(req)
	case CommandIfDown:
		return s.ifDown(req)
	case CommandEnableIPv4Uplink, CommandEnableIPv6Uplink:
		return s.enableUplink(req)
	case CommandDisableIPv4Uplink, CommandDisableIPv6Uplink:
		return s.disableUplink(req)
	default:
		return Response{Error: "unknown command: " + req.Command}
	}
}

func (s *Server) dump() *DumpState {
	var out DumpState
	for _, ifc := range s.registry.All() {
		st := InterfaceState{
			IfName: ifc.IfName,
			Handle: ifc.Handle,
			Mode:   modeString(ifc.Flags),
			Uplink: ifc.Uplink.IPv4Source != "" || len(ifc.DelegatedPrefixes) > 0,
		}
		for _, dp := range ifc.DelegatedPrefixes {
			st.Prefixes = append(st.Prefixes, prefix.String(dp.Prefix, true))
		}
		out.Interfaces = append(out.Interfaces, st)
	}
	return &out
}

func modeString(f iface.Flags) string {
	switch {
	case f.Has(iface.FlagAdhoc):
		return "adhoc"
	case f.Has(iface.FlagGuest):
		return "guest"
	case f.Has(iface.FlagHybrid):
		return "hybrid"
	case f.Has(iface.FlagLeaf):
		return "leaf"
	case f.Has(iface.FlagExternal):
		return "external"
	default:
		return "auto"
	}
}

func (s *Server) ifUp(req Request) Response {
	if req.IfName == "" {
		return Response{Error: "ifup: missing ifname"}
	}
	mode := req.Mode
	if mode == "" {
		mode = "auto"
	}
	handle := req.Handle
	if mode == "external" {
		handle = ""
	}
	ifc, err := s.registry.Create(req.IfName, handle, mode)
	if err == iface.ErrExists {
		ifc, err = s.registry.Get(req.IfName)
	}
	if err != nil {
		return Response{Error: err.Error()}
	}
	if req.DisablePA {
		ifc.Flags |= iface.FlagDisablePA
	}
	if req.ULADefaultRouter {
		ifc.Flags |= iface.FlagULADefaultRouter
	}
	if len(req.Prefix) > 0 {
		dps, err := decodePrefixSpecs(req.Prefix)
		if err != nil {
			return Response{Error: err.Error()}
		}
		if err := s.registry.SetDelegatedPrefixes(req.IfName, dps); err != nil {
			return Response{Error: err.Error()}
		}
	}
	return Response{}
}

func (s *Server) ifDown(req Request) Response {
	if req.IfName == "" {
		return Response{Error: "ifdown: missing ifname"}
	}
	if err := s.registry.Destroy(req.IfName); err != nil {
		return Response{Error: err.Error()}
	}
	return Response{}
}

func (s *Server) enableUplink(req Request) Response {
	if req.IfName == "" {
		return Response{Error: "missing ifname"}
	}
	ifc, err := s.registry.Get(req.IfName)
	if err != nil {
		return Response{Error: err.Error()}
	}
	ifc.Uplink.IPv4Source = req.IPv4Source
	ifc.Uplink.DNS = req.DNS
	if len(req.Prefix) > 0 {
		dps, err := decodePrefixSpecs(req.Prefix)
		if err != nil {
			return Response{Error: err.Error()}
		}
		if err := s.registry.SetDelegatedPrefixes(req.IfName, dps); err != nil {
			return Response{Error: err.Error()}
		}
	}
	return Response{}
}

func (s *Server) disableUplink(req Request) Response {
	if req.IfName == "" {
		return Response{Error: "missing ifname"}
	}
	if err := s.registry.ClearUplink(req.IfName); err != nil {
		return Response{Error: err.Error()}
	}
	return Response{}
}

func decodePrefixSpecs(specs []PrefixSpec) ([]iface.DelegatedPrefix, error) {
	out := make([]iface.DelegatedPrefix, 0, len(specs))
	for _, sp := range specs {
		p, err := prefix.Parse(sp.Address)
		if err != nil {
			return nil, err
		}
		dp := iface.DelegatedPrefix{Prefix: p, Preferred: sp.Preferred, Valid: sp.Valid, Class: classString(sp.Class)}
		if sp.Excluded != "" {
			ex, err := prefix.Parse(sp.Excluded)
			if err != nil {
				return nil, err
			}
			dp.Excluded = &ex
		}
		out = append(out, dp)
	}
	return out, nil
}

func classString(c uint32) string {
	if c == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(c), 10)
}
