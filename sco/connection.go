// Package sco sets up synchronous (SCO and eSCO) links over an established
// BR/EDR ACL link. The controller handles one synchronous connection setup
// at a time, so a Manager queues its requests and runs them one by one.
package sco

import (
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
)

// Connection is an established SCO or eSCO link.
type Connection struct {
	link   *hci.Connection
	params cmd.SynchronousConnectionParameters

	onPeerDisconnect func(reason hci.ErrCommand)
	onClosed         func(c *Connection)
}

func newConnection(link *hci.Connection, params cmd.SynchronousConnectionParameters, onClosed func(c *Connection)) *Connection {
	c := &Connection{link: link, params: params, onClosed: onClosed}
	link.SetPeerDisconnectCallback(func(_ *hci.Connection, reason hci.ErrCommand) {
		c.closed()
		if f := c.onPeerDisconnect; f != nil {
			f(reason)
		}
	})
	return c
}

func (c *Connection) Handle() uint16         { return c.link.Handle() }
func (c *Connection) LinkType() hci.LinkType { return c.link.LinkType() }
func (c *Connection) IsOpen() bool           { return c.link.IsOpen() }

// Parameters the link was negotiated with.
func (c *Connection) Parameters() cmd.SynchronousConnectionParameters {
	return c.params
}

// SetPeerDisconnectCallback registers f to run when the link is torn down
// by the peer or the controller.
func (c *Connection) SetPeerDisconnectCallback(f func(reason hci.ErrCommand)) {
	c.onPeerDisconnect = f
}

// Close disconnects the link.
func (c *Connection) Close() {
	c.onPeerDisconnect = nil
	c.link.Close()
	c.closed()
}

func (c *Connection) closed() {
	if f := c.onClosed; f != nil {
		c.onClosed = nil
		f(c)
	}
}
