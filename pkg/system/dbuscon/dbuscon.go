// Package dbuscon holds the shared system bus connection of the tracker
package dbuscon

import (
	"errors"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "client is not connected"
}

func (e *NotConnectedError) Is(target error) bool {
	_, ok := target.(*NotConnectedError)
	return ok
}

// ErrStillConnected is returned by Reconnect on a healthy connection
var ErrStillConnected = errors.New("connection is active and working, not reconnecting")

// Dialer opens a bus connection
type Dialer func() (*dbus.Conn, error)

// Client guards one bus connection, a nil *Client behaves like a disconnected one
type Client struct {
	mu   sync.Mutex
	conn *dbus.Conn
	dial Dialer
}

// NewClient returns a client for the system bus
func NewClient() *Client {
	return NewClientWithDialer(func() (*dbus.Conn, error) {
		return dbus.ConnectSystemBus()
	})
}

func NewClientWithDialer(dial Dialer) *Client {
	return &Client{dial: dial}
}

func (c *Client) Connect() error {
	if c == nil {
		return &NotConnectedError{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		log.Error("Failed to connect to system bus", zap.Error(err))
		return err
	}

	c.conn = conn
	return nil
}

// Reconnect re-establishes the connection if its down
func (c *Client) Reconnect() error {
	if _, ok := c.Connected(); ok {
		return ErrStillConnected
	}

	if err := c.Close(); err != nil {
		log.Debug("closing stale bus connection failed", zap.Error(err))
	}

	return c.Connect()
}

// Connected returns whether the bus connection is established or not
func (c *Client) Connected() (*dbus.Conn, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn, c.conn != nil && c.conn.Connected()
}

// Conn returns the live connection or a NotConnectedError
func (c *Client) Conn() (*dbus.Conn, error) {
	conn, ok := c.Connected()
	if !ok {
		return nil, &NotConnectedError{}
	}

	return conn, nil
}

func (c *Client) Close() (err error) {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err = c.conn.Close()
	c.conn = nil
	return
}
