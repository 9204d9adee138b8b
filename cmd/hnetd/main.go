// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// hnetd is the daemon entrypoint: it wires the event loop, the node/TLV
// view, the interface registry, prefix assignment and routing election
// together. Flooding/Trickle transport is out of scope (SPEC_FULL.md
// §11): the dncp.Fake in-memory view stands in for whatever transport a
// deployment supplies, exactly as it does in this repo's tests.
package main

import (
	"context"
	"flag"
	"io"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dtaht/hnetd/config"
	"github.com/dtaht/hnetd/dncp"
	"github.com/dtaht/hnetd/eventloop"
	"github.com/dtaht/hnetd/iface"
	"github.com/dtaht/hnetd/ipc"
	"github.com/dtaht/hnetd/logger"
	"github.com/dtaht/hnetd/pa"
	"github.com/dtaht/hnetd/routing"
	"github.com/dtaht/hnetd/store"
)

// defaultLinkPlen is used when an interface has no configured IPv6
// plen yet, matching spec.md's default per-link assignment width.
const defaultLinkPlen = 64

var log = logger.GetLogger("hnetd")

var logLevels = map[string]func(*logrus.Logger){
	"none":    func(l *logrus.Logger) { l.SetOutput(io.Discard) },
	"debug":   func(l *logrus.Logger) { l.SetLevel(logrus.DebugLevel) },
	"info":    func(l *logrus.Logger) { l.SetLevel(logrus.InfoLevel) },
	"warning": func(l *logrus.Logger) { l.SetLevel(logrus.WarnLevel) },
	"error":   func(l *logrus.Logger) { l.SetLevel(logrus.ErrorLevel) },
}

func main() {
	flagConfig := flag.String("conf", "", "configuration file to load instead of the default search path")
	flagLogLevel := flag.String("loglevel", "info", "log level: none, debug, info, warning, error")
	flag.Parse()

	if set, ok := logLevels[*flagLogLevel]; ok {
		set(log.Logger)
	}

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		log.WithError(err).Warn("no configuration file found, running with defaults")
		cfg = config.New()
	}

	var rid dncp.RID
	copy(rid[:], []byte(cfg.RouterID))

	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	view := dncp.NewFake(dncp.NodeID(rid), rid)

	sink := iface.NewBARTRouteSink()
	registry := iface.NewRegistry(sink)

	ulaStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open ULA store")
	}
	defer ulaStore.Close()

	paStore := pa.NewStore(loop)
	paStore.SetRID(rid)
	paStore.SetFloodingDelay(cfg.FloodingDelay)

	core := pa.NewCore(paStore, nil, 128)
	reactor := pa.NewReactor(paStore, core, view, view, registryLinks{registry}, loop)
	paStore.Subscribe(reactor)

	localCfg := pa.DefaultLocalConfig()
	localCfg.UseULA = cfg.PALocal.UseULA
	localCfg.UseRandomULA = cfg.PALocal.UseRandomULA
	localCfg.RandomULAPlen = cfg.PALocal.RandomULAPlen
	localCfg.UseIPv4 = cfg.PALocal.UseIPv4
	local := pa.NewLocal(paStore, localCfg, ulaStore)
	scheduleLocal(loop, local)

	pdCfg := pa.DefaultPDConfig()
	pdCfg.MinLen = cfg.PAPD.MinLen
	pdCfg.MinRatioExp = cfg.PAPD.MinRatioExp
	pa.NewPD(paStore, pdCfg, loop)

	backend := routing.NewBackend(cfg.Routing.Script, view, log)
	if err := backend.Enumerate(); err != nil {
		log.WithError(err).Warn("routing backend enumerate failed")
	}
	scheduleRouting(loop, view, backend, registry)

	ipcSrv, err := ipc.Listen(cfg.IPC.SocketPath, registry, loop, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start IPC listener")
	}
	defer ipcSrv.Close()

	if err := cfg.WatchReload(func(next *config.Config) {
		log.Info("configuration reloaded")
		paStore.SetFloodingDelay(next.FloodingDelay)
	}); err != nil {
		log.WithError(err).Warn("config reload watch not started")
	}

	log.Info("hnetd started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

// localMinInterval is spec.md §4.5's floor on pa.Local re-runs: a Run
// must never be scheduled sooner than this after the previous one.
const localMinInterval = 5 * time.Millisecond

// scheduleLocal drives pa.Local's own timer loop through the event
// loop instead of a blocking sleep, rearming itself after every Run.
func scheduleLocal(loop *eventloop.Loop, local *pa.Local) {
	var tick func()
	tick = func() {
		now := time.Now()
		next := local.Run(now)
		delay := time.Until(next)
		if delay < localMinInterval {
			delay = localMinInterval
		}
		loop.RunAfter(delay, tick)
	}
	loop.RunSoon(tick)
}

// scheduleRouting re-elects a routing protocol and recomputes the BFS
// fallback on a fixed interval, standing in for dncp's
// tlv-change-triggered hncp_routing_callback (flooding is out of scope
// here, so there is no change notification to hook).
func scheduleRouting(loop *eventloop.Loop, view dncp.View, backend *routing.Backend, registry *iface.Registry) {
	resolver := registryResolver{registry}
	var tick func()
	tick = func() {
		proto := routing.Elect(view)
		if err := backend.SetActive(proto); err != nil {
			log.WithError(err).Warn("routing: failed to switch active protocol")
		}
		if proto == routing.NoProtocol {
			routing.RunBFS(view, resolver, registry)
		}
		loop.RunAfter(5*time.Second, tick)
	}
	loop.RunSoon(tick)
}

// registryLinks adapts iface.Registry to pa.LinkSource, so pa.Reactor
// can drive Core's selection cycle over every locally registered link
// without the pa package depending on iface. Externally-managed
// (uplink) and PA-disabled interfaces never get a CP of their own.
type registryLinks struct {
	registry *iface.Registry
}

func (r registryLinks) Links() []pa.Link {
	ifs := r.registry.All()
	out := make([]pa.Link, 0, len(ifs))
	for _, ifc := range ifs {
		if ifc.Flags.Has(iface.FlagExternal) || ifc.Flags.Has(iface.FlagDisablePA) {
			continue
		}
		plen := ifc.IP6Plen
		if plen == 0 {
			plen = defaultLinkPlen
		}
		out = append(out, pa.Link{LinkID: ifc.LinkID.Bits, Plen: plen})
	}
	return out
}

// registryResolver adapts iface.Registry to routing.NeighborResolver.
// This repo carries no neighbor-discovery or link-layer address state
// of its own (flooding/Trickle transport is out of scope, SPEC_FULL.md
// §11), so LastAddress and DirectNeighbor always report "unknown" and
// RunBFS correctly treats every such edge as unusable.
type registryResolver struct {
	registry *iface.Registry
}

func (r registryResolver) LinkByID(linkID uint32) (string, bool) {
	for _, ifc := range r.registry.All() {
		if ifc.LinkID.Bits == linkID {
			return ifc.IfName, true
		}
	}
	return "", false
}

func (r registryResolver) LastAddress(linkID, neighborLinkID uint32) (netip.Addr, bool) {
	return netip.Addr{}, false
}

func (r registryResolver) HasIPv4Address(ifname string) bool {
	ifc, err := r.registry.Get(ifname)
	if err != nil {
		return false
	}
	return ifc.IP4Plen > 0 || ifc.Uplink.IPv4Source != ""
}

func (r registryResolver) IsAdhoc(ifname string) bool {
	ifc, err := r.registry.Get(ifname)
	if err != nil {
		return false
	}
	return ifc.Flags.Has(iface.FlagAdhoc)
}

func (r registryResolver) DirectNeighbor(ifname string, rid dncp.RID, linkID uint32) bool {
	return false
}
