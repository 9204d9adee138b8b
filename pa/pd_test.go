// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package pa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/prefix"
)

func TestPDReservesWithinBounds(t *testing.T) {
	s := NewStore(noopScheduler{})
	dpPrefix, _ := prefix.Parse("2001:db8::/48")
	s.AddDP(DP{Prefix: dpPrefix})

	pd := NewPD(s, DefaultPDConfig(), nil)
	var notified int
	h := pd.RequestLease(NewLeaseID(), 64, 64, func(LeaseHandle) { notified++ })

	cpds := s.CPDsForLease(h)
	require.Len(t, cpds, 1)
	cpd, _ := s.CPD(cpds[0])
	cp, ok := s.CP(cpd.CP)
	require.True(t, ok)
	assert.EqualValues(t, 64, cp.Prefix.Plen)
	assert.True(t, prefix.Contains(dpPrefix, cp.Prefix))
	assert.Equal(t, 1, notified)
}

func TestPDSkipsDPWhenLengthExceedsMax(t *testing.T) {
	s := NewStore(noopScheduler{})
	dpPrefix, _ := prefix.Parse("2001:db8::/60") // plen+min_ratio_exp(3) = 63 > max 60
	s.AddDP(DP{Prefix: dpPrefix})

	pd := NewPD(s, DefaultPDConfig(), nil)
	h := pd.RequestLease(NewLeaseID(), 62, 60, nil)
	assert.Empty(t, s.CPDsForLease(h))
}

func TestPDAvoidsCollidingCP(t *testing.T) {
	s := NewStore(noopScheduler{})
	dpPrefix, _ := prefix.Parse("2001:db8::/48")
	dp := s.AddDP(DP{Prefix: dpPrefix})

	leaseID := "fixed-lease"
	anchor, err := prefix.PseudoRandom(pdSeed(leaseID, dpPrefix), 0, dpPrefix, 64)
	require.NoError(t, err)
	s.AddCP(CP{DP: dp, Prefix: anchor})

	pd := NewPD(s, DefaultPDConfig(), nil)
	h := pd.RequestLease(leaseID, 64, 64, nil)
	cpds := s.CPDsForLease(h)
	require.Len(t, cpds, 1)
	cpd, _ := s.CPD(cpds[0])
	cp, _ := s.CP(cpd.CP)
	assert.False(t, prefix.Equal(cp.Prefix, anchor))
}

func TestEndLeaseRemovesCPDs(t *testing.T) {
	s := NewStore(noopScheduler{})
	dpPrefix, _ := prefix.Parse("2001:db8::/48")
	s.AddDP(DP{Prefix: dpPrefix})

	pd := NewPD(s, DefaultPDConfig(), nil)
	h := pd.RequestLease(NewLeaseID(), 64, 64, nil)
	require.NotEmpty(t, s.CPDsForLease(h))

	pd.EndLease(h)
	assert.Empty(t, s.CPDsForLease(h))
}
