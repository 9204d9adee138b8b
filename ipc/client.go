// Copyright 2018-present the CoreDHCP Authors. All rights reserved
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Client talks to a Server over its SOCK_DGRAM socket. It binds its own
// ephemeral client socket so the server can reply, matching ipc_client's
// per-process "hnetd-client<pid>.sock" scheme in the server socket's
// directory ("/var/run/hnetd-client<pid>.sock" for the default path).
type Client struct {
	conn       *net.UnixConn
	serverAddr *net.UnixAddr
	clientPath string
	timeout    time.Duration
}

// Dial connects to the server socket at path, binding an ephemeral
// unixgram client socket for replies.
func Dial(path string) (*Client, error) {
	serverAddr := &net.UnixAddr{Name: path, Net: "unixgram"}
	clientPath := filepath.Join(filepath.Dir(path), fmt.Sprintf("hnetd-client%d.sock", os.Getpid()))
	_ = os.Remove(clientPath)
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: clientPath, Net: "unixgram"})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, serverAddr: serverAddr, clientPath: clientPath, timeout: 2 * time.Second}, nil
}

// Close releases the client socket and removes its backing file.
func (c *Client) Close() error {
	err := c.conn.Close()
	_ = os.Remove(c.clientPath)
	return err
}

// Send marshals req, sends it, and waits for a Response.
func (c *Client) Send(req Request) (Response, error) {
	out, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	return c.sendRaw(out)
}

// SendJSON forwards a raw JSON-encoded request datagram and returns the
// raw JSON response bytes, the bridge the original's ipc_client()
// provides for third-party DHCP client integrations that only know how
// to emit JSON (ipc.c:110).
func (c *Client) SendJSON(raw []byte) ([]byte, error) {
	if _, err := c.conn.WriteTo(raw, c.serverAddr); err != nil {
		return nil, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	buf := make([]byte, 128*1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *Client) sendRaw(out []byte) (Response, error) {
	respBytes, err := c.SendJSON(out)
	if err != nil {
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
