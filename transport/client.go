// Package transport owns the UDP sockets this pipeline sends and
// receives collectd packets over: a per-destination client connection
// cache on the sending side, and a receive loop on the server side.
package transport

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Client is a reusable UDP socket to one collectd destination. It is
// fork-aware: if the process pid changes (a fork happened since the
// socket was opened), the next Send re-dials rather than sharing the
// parent's file descriptor, mirroring ClientConnection._check_connect
// in the original implementation.
type Client struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
	pid  int
}

var (
	clientsMu sync.Mutex
	clients   = map[string]*Client{}
)

// ClientForAddr returns the process-wide Client for addr ("host:port"),
// creating it on first use.
func ClientForAddr(addr string) *Client {
	clientsMu.Lock()
	defer clientsMu.Unlock()
	c, ok := clients[addr]
	if !ok {
		c = &Client{addr: addr}
		clients[addr] = c
	}
	return c
}

func (c *Client) checkConnect() error {
	pid := unix.Getpid()
	if c.conn != nil && c.pid == pid {
		return nil
	}
	if c.conn != nil {
		c.conn.Close()
	}
	conn, err := net.Dial("udp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.pid = pid
	return nil
}

// Send writes message to the destination, reconnecting first if
// needed (first use, or pid changed since the socket was opened).
func (c *Client) Send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkConnect(); err != nil {
		return err
	}
	_, err := c.conn.Write(message)
	return err
}

// Close releases the underlying socket, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
