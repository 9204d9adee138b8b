// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, 4*time.Second, c.FloodingDelay)
	assert.True(t, c.PALocal.UseULA)
	assert.EqualValues(t, 48, c.PALocal.RandomULAPlen)
	assert.EqualValues(t, 62, c.PAPD.MinLen)
	assert.Equal(t, "/var/run/hnetd.sock", c.IPC.SocketPath)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hnetd.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
router_id: "0102030405060708"
flooding_delay: 10s
pa_pd:
  min_len: 60
routing:
  script: /usr/local/bin/hnet-routing
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0102030405060708", c.RouterID)
	assert.Equal(t, 10*time.Second, c.FloodingDelay)
	assert.EqualValues(t, 60, c.PAPD.MinLen)
	assert.Equal(t, "/usr/local/bin/hnet-routing", c.Routing.Script)
	// Fields not present in the file keep New()'s defaults.
	assert.True(t, c.PALocal.UseULA)
}

func TestWatchReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hnetd.yml")
	require.NoError(t, os.WriteFile(path, []byte("flooding_delay: 4s\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	changed := make(chan *Config, 1)
	require.NoError(t, c.WatchReload(func(next *Config) { changed <- next }))

	require.NoError(t, os.WriteFile(path, []byte("flooding_delay: 8s\n"), 0o644))

	select {
	case next := <-changed:
		assert.Equal(t, 8*time.Second, next.FloodingDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
