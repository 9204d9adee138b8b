// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtaht/hnetd/dncp"
)

// writeScript creates an executable shell script in t.TempDir() that
// runs body under /bin/sh.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestBackendEnumeratePublishesTLVs(t *testing.T) {
	script := writeScript(t, `
if [ "$1" = "enumerate" ]; then
	echo "3 10"
	echo "5 20"
fi
`)
	f := dncp.NewFake(dncp.NodeID{1}, dncp.RID{1})
	b := NewBackend(script, f, nil)

	require.NoError(t, b.Enumerate())

	node := f.LocalNode()
	rps := node.TLVsOfType(dncp.TypeRoutingProtocol)
	require.Len(t, rps, 2)
}

func TestBackendNoScriptIsNoop(t *testing.T) {
	f := dncp.NewFake(dncp.NodeID{1}, dncp.RID{1})
	b := NewBackend("", f, nil)
	assert.NoError(t, b.Enumerate())
	assert.NoError(t, b.SetActive(3))
	assert.Equal(t, uint8(3), b.Active())
}
