// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package eventloop

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSoonFiresInOrder(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var order []int
	done := make(chan struct{})
	l.RunSoon(func() { order = append(order, 1) })
	l.RunSoon(func() { order = append(order, 2) })
	l.RunSoon(func() { order = append(order, 3); close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RunSoon callbacks")
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestRunAfterRespectsDelay(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.RunAfter(50*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delayed callback")
	}
}

func TestRunAfterCancelablePreventsFire(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := false
	h := l.RunAfterCancelable(30*time.Millisecond, func() { fired = true })
	h.Cancel()

	done := make(chan struct{})
	l.RunAfter(60*time.Millisecond, func() { close(done) })
	<-done
	assert.False(t, fired)
}

func TestRegisterUnixgramDeliversDatagrams(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	dir := t.TempDir()
	addr := &net.UnixAddr{Name: dir + "/test.sock", Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	require.NoError(t, err)
	defer conn.Close()

	received := make(chan string, 1)
	l.RegisterUnixgram(conn, func(d Datagram) { received <- string(d.Data) })

	client, err := net.DialUnix("unixgram", nil, addr)
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "hello", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}
