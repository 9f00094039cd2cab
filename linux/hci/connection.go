package hci

import (
	"fmt"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
)

// LEConnectionParameters are the parameters in effect on an LE link.
type LEConnectionParameters struct {
	Interval           uint16 // N * 1.25 msec
	Latency            uint16
	SupervisionTimeout uint16 // N * 10 msec
}

// LEPreferredConnectionParameters bound the parameters negotiated for an LE link.
type LEPreferredConnectionParameters struct {
	IntervalMin        uint16
	IntervalMax        uint16
	Latency            uint16
	SupervisionTimeout uint16
}

type connState int

const (
	connOpen connState = iota
	connWaitingForDisconnect
	connClosed
)

// Connection is a logical link identified by its connection handle. It
// owns its Disconnection Complete subscription until closed.
type Connection struct {
	handle   uint16
	linkType LinkType
	role     Role
	local    bthost.DeviceAddress
	peer     bthost.DeviceAddress
	params   LEConnectionParameters

	ch        CommandChannel
	handlerID EventHandlerID
	state     connState

	onPeerDisconnect func(c *Connection, reason ErrCommand)
	logger           bthost.Logger
}

// NewConnection wraps an established link.
func NewConnection(ch CommandChannel, handle uint16, t LinkType, role Role, local, peer bthost.DeviceAddress) *Connection {
	c := &Connection{
		handle:   handle,
		linkType: t,
		role:     role,
		local:    local,
		peer:     peer,
		ch:       ch,
		logger: bthost.ComponentLogger("hci-conn").ChildLogger(map[string]interface{}{
			"handle": fmt.Sprintf("0x%04x", handle),
		}),
	}
	c.handlerID = ch.AddEventHandler(DisconnectionCompleteCode, c.handleDisconnectionComplete)
	return c
}

func (c *Connection) Handle() uint16                     { return c.handle }
func (c *Connection) LinkType() LinkType                 { return c.linkType }
func (c *Connection) Role() Role                         { return c.role }
func (c *Connection) LocalAddress() bthost.DeviceAddress { return c.local }
func (c *Connection) PeerAddress() bthost.DeviceAddress  { return c.peer }
func (c *Connection) LEParameters() LEConnectionParameters {
	return c.params
}

// SetLEParameters records the parameters reported by the controller.
func (c *Connection) SetLEParameters(p LEConnectionParameters) {
	c.params = p
}

// IsOpen reports whether neither side has started tearing the link down.
func (c *Connection) IsOpen() bool {
	return c.state == connOpen
}

// SetPeerDisconnectCallback registers f to run when the link goes down for
// any reason other than a local Disconnect.
func (c *Connection) SetPeerDisconnectCallback(f func(c *Connection, reason ErrCommand)) {
	c.onPeerDisconnect = f
}

// Disconnect asks the controller to terminate the link. The peer disconnect
// callback is not invoked for a locally initiated disconnect.
func (c *Connection) Disconnect(reason ErrCommand) {
	if c.state != connOpen {
		return
	}
	c.state = connWaitingForDisconnect
	c.logger.Infof("disconnecting: %v", reason)

	c.ch.SendCommand(&cmd.Disconnect{ConnectionHandle: c.handle, Reason: uint8(reason)},
		func(_ TransactionID, e *Event) {
			if err := e.Err(); err != nil {
				c.logger.Warnf("disconnect command failed: %v", err)
			}
		}, CommandStatusCode)
}

// Close disconnects the link if it is still open and drops the
// subscription. No callbacks run after Close.
func (c *Connection) Close() {
	if c.state == connOpen {
		c.Disconnect(ErrRemoteUser)
	}
	c.release()
}

func (c *Connection) release() {
	if c.handlerID != 0 {
		c.ch.RemoveEventHandler(c.handlerID)
		c.handlerID = 0
	}
	c.onPeerDisconnect = nil
	c.state = connClosed
}

func (c *Connection) handleDisconnectionComplete(e *Event) {
	p := evt.DisconnectionComplete(e.Params)
	h, err := p.ConnectionHandleWErr()
	if err != nil || h != c.handle {
		return
	}
	if err := e.Err(); err != nil {
		c.logger.Warnf("disconnection complete with error: %v", err)
		return
	}
	reason, _ := p.ReasonWErr()

	local := c.state == connWaitingForDisconnect
	f := c.onPeerDisconnect
	c.release()

	c.logger.Infof("disconnected (reason: %v, local: %v)", ErrCommand(reason), local)
	if !local && f != nil {
		f(c, ErrCommand(reason))
	}
}

// LEAddressType converts a DeviceAddress type to the HCI LE address type.
func LEAddressType(a bthost.DeviceAddress) uint8 {
	if a.Type == bthost.AddressLEPublic {
		return AddressTypePublic
	}
	return AddressTypeRandom
}

// DeviceAddressFromLE converts an HCI LE address type and value.
func DeviceAddressFromLE(t uint8, v [6]byte) bthost.DeviceAddress {
	switch t {
	case AddressTypePublic, AddressTypePublicIdentity:
		return bthost.DeviceAddress{Type: bthost.AddressLEPublic, Value: v}
	case 0xFF:
		return bthost.DeviceAddress{Type: bthost.AddressLEAnonymous, Value: v}
	}
	return bthost.DeviceAddress{Type: bthost.AddressLERandom, Value: v}
}
