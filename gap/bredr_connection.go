package gap

import (
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/sco"
)

// L2capChannel is a dynamic channel opened on an ACL link.
type L2capChannel interface {
	PSM() uint16
	Close()
}

// L2CAP is the channel manager the BR/EDR links are registered with.
type L2CAP interface {
	AddACLConnection(handle uint16, role hci.Role)
	RemoveACLConnection(handle uint16)

	// OpenChannel calls cb with the channel, or nil if it could not be opened.
	OpenChannel(handle uint16, psm uint16, cb func(ch L2capChannel))
}

type pendingChannel struct {
	psm uint16
	cb  func(ch L2capChannel)
}

// BrEdrConnection is an interrogated ACL link to a peer. Channel requests
// made before Start wait for it.
type BrEdrConnection struct {
	peerID  bthost.PeerID
	link    *hci.Connection
	token   *ConnectionToken
	pairing *PairingState
	sco     *sco.Manager
	l2cap   L2CAP

	started bool
	closed  bool
	pending []pendingChannel

	logger bthost.Logger
}

func newBrEdrConnection(peer *Peer, link *hci.Connection, cache *PeerCache, ch hci.CommandChannel, l2cap L2CAP) (*BrEdrConnection, error) {
	logger := bthost.ComponentLogger("gap-bredr").ChildLogger(map[string]interface{}{
		"peer":   peer.ID().String(),
		"handle": link.Handle(),
	})
	scoMgr, err := sco.NewManager(link.Handle(), link.LocalAddress(), link.PeerAddress(), ch, sco.OptLogger(logger))
	if err != nil {
		return nil, err
	}
	c := &BrEdrConnection{
		peerID:  peer.ID(),
		link:    link,
		token:   peer.MutBrEdr().RegisterConnection(),
		pairing: newPairingState(peer.ID(), link, cache, ch, logger),
		sco:     scoMgr,
		l2cap:   l2cap,
		logger:  logger,
	}
	if l2cap != nil {
		l2cap.AddACLConnection(link.Handle(), link.Role())
	}
	return c, nil
}

func (c *BrEdrConnection) PeerID() bthost.PeerID             { return c.peerID }
func (c *BrEdrConnection) Link() *hci.Connection             { return c.link }
func (c *BrEdrConnection) Handle() uint16                    { return c.link.Handle() }
func (c *BrEdrConnection) Pairing() *PairingState            { return c.pairing }
func (c *BrEdrConnection) Started() bool                     { return c.started }
func (c *BrEdrConnection) PeerAddress() bthost.DeviceAddress { return c.link.PeerAddress() }

// Start opens the channels requested so far. It must be called once.
func (c *BrEdrConnection) Start() {
	if c.started {
		panic("BrEdrConnection started twice")
	}
	c.started = true
	pending := c.pending
	c.pending = nil
	for _, p := range pending {
		c.openChannel(p.psm, p.cb)
	}
}

// OpenL2capChannel opens a channel to psm. Before Start the request is
// queued; after Close cb receives nil.
func (c *BrEdrConnection) OpenL2capChannel(psm uint16, cb func(ch L2capChannel)) {
	if c.closed {
		cb(nil)
		return
	}
	if !c.started {
		c.logger.Debugf("queueing channel to psm 0x%04x until the link is ready", psm)
		c.pending = append(c.pending, pendingChannel{psm: psm, cb: cb})
		return
	}
	c.openChannel(psm, cb)
}

func (c *BrEdrConnection) openChannel(psm uint16, cb func(ch L2capChannel)) {
	if c.l2cap == nil {
		cb(nil)
		return
	}
	c.l2cap.OpenChannel(c.link.Handle(), psm, cb)
}

// OpenScoConnection sets up a synchronous link with params.
func (c *BrEdrConnection) OpenScoConnection(params cmd.SynchronousConnectionParameters, cb sco.ConnectionCallback) *sco.RequestHandle {
	return c.sco.OpenConnection(params, cb)
}

// AcceptScoConnection waits for the peer to set up a synchronous link.
func (c *BrEdrConnection) AcceptScoConnection(params []cmd.SynchronousConnectionParameters, cb sco.ConnectionCallback) *sco.RequestHandle {
	return c.sco.AcceptConnection(params, cb)
}

// Close tears down everything layered on the link and releases the peer's
// connection state. The ACL link itself is left to the caller.
func (c *BrEdrConnection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.sco.Close()
	c.pairing.Close()
	pending := c.pending
	c.pending = nil
	for _, p := range pending {
		p.cb(nil)
	}
	if c.l2cap != nil {
		c.l2cap.RemoveACLConnection(c.link.Handle())
	}
	c.token.Release()
}
