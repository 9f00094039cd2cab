package gap

import (
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
)

// LowEnergyConnection is an established LE link to a cached peer. It holds
// the peer's connection token until closed.
type LowEnergyConnection struct {
	peerID bthost.PeerID
	link   *hci.Connection
	token  *ConnectionToken

	interrogated     bool
	onInterrogated   []func()
	onPeerDisconnect func(reason hci.ErrCommand)
}

func newLowEnergyConnection(peerID bthost.PeerID, link *hci.Connection, token *ConnectionToken) *LowEnergyConnection {
	c := &LowEnergyConnection{peerID: peerID, link: link, token: token}
	link.SetPeerDisconnectCallback(func(_ *hci.Connection, reason hci.ErrCommand) {
		c.token.Release()
		if f := c.onPeerDisconnect; f != nil {
			f(reason)
		}
	})
	return c
}

func (c *LowEnergyConnection) PeerID() bthost.PeerID { return c.peerID }
func (c *LowEnergyConnection) Link() *hci.Connection { return c.link }
func (c *LowEnergyConnection) Handle() uint16        { return c.link.Handle() }

// SetPeerDisconnectCallback registers f to run when the remote side or the
// controller ends the link.
func (c *LowEnergyConnection) SetPeerDisconnectCallback(f func(reason hci.ErrCommand)) {
	c.onPeerDisconnect = f
}

// OnInterrogationComplete marks the connection ready and runs the callbacks
// queued with WhenInterrogated.
func (c *LowEnergyConnection) OnInterrogationComplete() {
	if c.interrogated {
		return
	}
	c.interrogated = true
	queued := c.onInterrogated
	c.onInterrogated = nil
	for _, f := range queued {
		f()
	}
}

// WhenInterrogated runs f once interrogation has completed.
func (c *LowEnergyConnection) WhenInterrogated(f func()) {
	if c.interrogated {
		f()
		return
	}
	c.onInterrogated = append(c.onInterrogated, f)
}

// Disconnect terminates the link with reason. The peer disconnect callback
// does not run.
func (c *LowEnergyConnection) Disconnect(reason hci.ErrCommand) {
	c.onPeerDisconnect = nil
	c.link.Disconnect(reason)
	c.token.Release()
}

// Close releases the connection, disconnecting the link if it is open.
func (c *LowEnergyConnection) Close() {
	c.onPeerDisconnect = nil
	c.onInterrogated = nil
	c.link.Close()
	c.token.Release()
}
