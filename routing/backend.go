// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package routing

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dtaht/hnetd/dncp"
)

// Backend drives an external routing-protocol script, the way the
// original implementation forks a helper for enumerate/enable/disable/
// reconfigure. The script's argv is: script action protocol_id iface...
type Backend struct {
	mu     sync.Mutex
	script string
	log    *logrus.Entry
	pub    dncp.Publisher
	active uint8
	ifaces []string
	tlvs   [MaxProtocol]*dncp.Handle
}

// NewBackend constructs a Backend around the given script path. An
// empty script disables every operation, matching the original's
// "!bfs->script" no-op guard.
func NewBackend(script string, pub dncp.Publisher, log *logrus.Entry) *Backend {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Backend{script: script, pub: pub, log: log, active: NoProtocol}
}

// run execs the backend script with the given action, the currently
// active protocol id, and the tracked interface list, optionally
// capturing stdout.
func (b *Backend) run(action string, captureStdout bool) (string, error) {
	if b.script == "" {
		return "", nil
	}
	args := append([]string{action, fmt.Sprintf("%d", b.active)}, b.ifaces...)
	cmd := exec.Command(b.script, args...)
	if !captureStdout {
		return "", cmd.Run()
	}
	out, err := cmd.Output()
	return string(out), err
}

// Enumerate runs the "enumerate" action and publishes a routing-protocol
// TLV for every "<proto> <preference>" line the script prints, the same
// format hncp_routing_create parses from its pipe.
func (b *Backend) Enumerate() error {
	out, err := b.run("enumerate", true)
	if err != nil {
		return fmt.Errorf("routing: enumerate backend: %w", err)
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var proto, preference uint
		if _, err := fmt.Sscanf(scanner.Text(), "%d %d", &proto, &preference); err != nil {
			continue
		}
		if proto >= uint(MaxProtocol) || preference >= 256 || b.tlvs[proto] != nil {
			continue
		}
		a := dncp.EncodeRoutingProtocol(dncp.RoutingProtocol{Protocol: uint8(proto), Preference: uint8(preference)})
		h := b.pub.Publish(a)
		b.tlvs[proto] = &h
	}
	return scanner.Err()
}

// SetActive switches the backend from its previously active protocol
// to newProto, disabling the old one and enabling the new one, mirroring
// the disable-then-enable sequencing in hncp_routing_run.
func (b *Backend) SetActive(newProto uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if newProto == b.active {
		return nil
	}
	if b.active != NoProtocol {
		if _, err := b.run("disable", false); err != nil {
			b.log.WithError(err).Warn("routing: disable backend failed")
		}
	}
	b.active = newProto
	if newProto != NoProtocol {
		if _, err := b.run("enable", false); err != nil {
			return fmt.Errorf("routing: enable backend: %w", err)
		}
	}
	return nil
}

// Reconfigure re-invokes the backend with the current interface set,
// called whenever an interface is added to or removed from routing.
func (b *Backend) Reconfigure() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.run("reconfigure", false)
	return err
}

// SetInterfaces replaces the tracked interface list wholesale.
func (b *Backend) SetInterfaces(ifaces []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ifaces = append([]string(nil), ifaces...)
}

// Active returns the currently active protocol id.
func (b *Backend) Active() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}
