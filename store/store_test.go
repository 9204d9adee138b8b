// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/prefix"
)

func TestULAStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hnetd.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get()
	assert.False(t, ok)

	p, _ := prefix.Parse("fd00:1234::/48")
	s.Save(p)

	got, ok := s.Get()
	require.True(t, ok)
	assert.True(t, prefix.Equal(p, got))
}

func TestULAStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hnetd.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	p1, _ := prefix.Parse("fd00:1::/48")
	p2, _ := prefix.Parse("fd00:2::/48")
	s.Save(p1)
	s.Save(p2)

	got, ok := s.Get()
	require.True(t, ok)
	assert.True(t, prefix.Equal(p2, got))
}
