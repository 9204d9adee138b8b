// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/dncp"
)

func TestLocalGeneratesULAWhenHighestRID(t *testing.T) {
	s := NewStore(noopScheduler{})
	var rid dncp.RID
	rid[0] = 0xff
	s.SetRID(rid)
	s.SetFloodingDelay(0)

	cfg := DefaultLocalConfig()
	cfg.UseIPv4 = false
	l := NewLocal(s, cfg, nil)

	now := time.Unix(1_700_000_000, 0)
	l.Run(now)
	// create_start armed, not yet past 2x flooding delay (zero) so it
	// fires on the very next call.
	l.Run(now)

	found := false
	for _, h := range s.AllDPs() {
		dp, _ := s.DP(h)
		if dp.Local {
			found = true
		}
	}
	assert.True(t, found, "a local ULA DP must have been created")
}

func TestLocalTerminatesWhenStatusDrops(t *testing.T) {
	s := NewStore(noopScheduler{})
	s.SetFloodingDelay(0)
	cfg := DefaultLocalConfig()
	cfg.UseIPv4 = false
	cfg.UseULA = false
	l := NewLocal(s, cfg, nil)

	now := time.Unix(1_700_000_000, 0)
	l.Run(now)
	assert.False(t, l.ulaElem.haveLDP)
}

func TestLocalDoesNotCreateWithoutHighestRID(t *testing.T) {
	s := NewStore(noopScheduler{})
	var lowRID dncp.RID
	lowRID[0] = 0x01
	s.SetRID(lowRID)
	s.SetFloodingDelay(0)

	// A remote AP from a higher RID blocks local creation.
	s.AddAP(AP{RID: dncp.RID{0xff}})

	cfg := DefaultLocalConfig()
	cfg.UseIPv4 = false
	l := NewLocal(s, cfg, nil)

	now := time.Unix(1_700_000_000, 0)
	l.Run(now)
	l.Run(now)
	assert.False(t, l.ulaElem.haveLDP)
}

func TestElementsAreIndependentlyInitialized(t *testing.T) {
	s := NewStore(noopScheduler{})
	cfg := DefaultLocalConfig()
	l := NewLocal(s, cfg, nil)
	require.False(t, l.ulaElem.haveLDP)
	require.False(t, l.ipv4Elem.haveLDP)
	assert.True(t, l.ulaElem.timeout.IsZero())
	assert.True(t, l.ipv4Elem.timeout.IsZero())
}
