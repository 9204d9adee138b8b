// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package prefix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrintRoundTrip(t *testing.T) {
	// S1
	p, err := Parse("ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff/67")
	require.NoError(t, err)
	assert.EqualValues(t, 67, p.Plen)
	assert.Equal(t, "ffff:ffff:ffff:ffff:e000::/67", String(p, true))
	assert.Equal(t, "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff/67", String(p, false))
}

func TestParseIPv4(t *testing.T) {
	// S2
	p, err := Parse("10.0.0.0/8")
	require.NoError(t, err)
	assert.EqualValues(t, 104, p.Plen)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff, 10, 0, 0, 0}, p.Addr[:])

	p2, err := Parse("192.168.0.1")
	require.NoError(t, err)
	assert.EqualValues(t, 128, p2.Plen)
	assert.True(t, IsIPv4(p2))
}

func TestIncrementWrap(t *testing.T) {
	// S3
	start, err := Parse("10::/16")
	require.NoError(t, err)

	one, wrapped, err := Increment(start, 12)
	require.NoError(t, err)
	assert.False(t, wrapped)
	assert.Equal(t, "11::/16", String(one, true))

	// Invariant 8: applying increment 2^(plen-protected) times returns to
	// start and reports wrap exactly once.
	cur := start
	wraps := 0
	for i := 0; i < 16; i++ {
		var w bool
		cur, w, err = Increment(cur, 12)
		require.NoError(t, err)
		if w {
			wraps++
		}
	}
	assert.Equal(t, 1, wraps)
	assert.True(t, Equal(cur, start))
}

func TestIncrementErrors(t *testing.T) {
	p := Prefix{Plen: 10}
	_, _, err := Increment(p, 10)
	assert.Error(t, err)

	wide := Prefix{Plen: 128}
	_, _, err = Increment(wide, 90) // 38 bit counter, too wide
	assert.Error(t, err)
}

func TestContainsImpliesCmpLE(t *testing.T) {
	// Invariant 6
	outer, _ := Parse("2001:db8::/32")
	inner, _ := Parse("2001:db8:1::/48")
	require.True(t, Contains(outer, inner))
	assert.LessOrEqual(t, Compare(outer, inner), 0)
}

func TestCompareOrdering(t *testing.T) {
	short, _ := Parse("2001:db8::/32")
	long, _ := Parse("2001:db8::/48")
	assert.Equal(t, 1, Compare(short, long)) // longer plen is smaller
	assert.Equal(t, -1, Compare(long, short))

	a, _ := Parse("2001:db8::/48")
	b, _ := Parse("2001:db8:1::/48")
	assert.Equal(t, -1, Compare(a, b))
}

func TestRandomAndPseudoRandom(t *testing.T) {
	parent := ULA
	r1, err := Random(parent, 48)
	require.NoError(t, err)
	assert.EqualValues(t, 48, r1.Plen)
	assert.True(t, Contains(parent, r1))

	pr1, err := PseudoRandom([]byte("link-0"), 0, parent, 48)
	require.NoError(t, err)
	pr2, err := PseudoRandom([]byte("link-0"), 0, parent, 48)
	require.NoError(t, err)
	assert.True(t, Equal(pr1, pr2), "same seed/counter must produce same prefix")

	pr3, err := PseudoRandom([]byte("link-1"), 0, parent, 48)
	require.NoError(t, err)
	assert.False(t, Equal(pr1, pr3))
}

func TestRandomTooShort(t *testing.T) {
	parent := Prefix{Plen: 48}
	_, err := Random(parent, 32)
	assert.ErrorIs(t, err, ErrTooShort)
}

func TestLast(t *testing.T) {
	p, _ := Parse("10::/16")
	last, err := Last(p, 12)
	require.NoError(t, err)
	assert.Equal(t, "1f::/16", String(last, true))
}
