package hci

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
)

// LocalAddressDelegate supplies the local address used when initiating LE
// procedures.
type LocalAddressDelegate interface {
	EnsureLocalAddress(cb func(addr bthost.DeviceAddress))
}

// LEConnectResultCallback receives the outcome of CreateConnection. conn is
// nil unless err is nil.
type LEConnectResultCallback func(err error, conn *Connection)

// IncomingLEConnectionDelegate receives links not initiated through the connector.
type IncomingLEConnectionDelegate func(conn *Connection)

type pendingLERequest struct {
	peer     bthost.DeviceAddress
	local    bthost.DeviceAddress
	cb       LEConnectResultCallback
	sent     bool
	canceled bool
	timedOut bool
	timeout  dispatch.Task
}

// LowEnergyConnector runs the HCI LE Create Connection procedure. At most
// one request is outstanding at a time.
type LowEnergyConnector struct {
	ch         CommandChannel
	d          dispatch.Dispatcher
	addrs      LocalAddressDelegate
	onIncoming IncomingLEConnectionDelegate

	pending  *pendingLERequest
	handlers []EventHandlerID
	logger   bthost.Logger
}

// NewLowEnergyConnector subscribes to LE connection events on ch.
func NewLowEnergyConnector(ch CommandChannel, d dispatch.Dispatcher, addrs LocalAddressDelegate,
	incoming IncomingLEConnectionDelegate) *LowEnergyConnector {
	c := &LowEnergyConnector{
		ch:         ch,
		d:          d,
		addrs:      addrs,
		onIncoming: incoming,
		logger:     bthost.ComponentLogger("hci-le-connector"),
	}
	c.handlers = append(c.handlers,
		ch.AddEventHandler(LEConnectionCompleteCode, c.handleLEConnectionComplete),
		ch.AddEventHandler(LEEnhancedConnectionCompleteCode, c.handleLEEnhancedConnectionComplete),
	)
	return c
}

// Close drops the event subscriptions. A pending request is canceled.
func (c *LowEnergyConnector) Close() {
	c.Cancel()
	for _, id := range c.handlers {
		c.ch.RemoveEventHandler(id)
	}
	c.handlers = nil
}

// RequestPending reports whether a CreateConnection is outstanding.
func (c *LowEnergyConnector) RequestPending() bool {
	return c.pending != nil
}

// CreateConnection starts connecting to peer. It returns false if a request
// is already pending. cb runs exactly once.
func (c *LowEnergyConnector) CreateConnection(useAcceptList bool, peer bthost.DeviceAddress,
	scanInterval, scanWindow uint16, params LEPreferredConnectionParameters,
	cb LEConnectResultCallback, timeout time.Duration) bool {
	if c.pending != nil {
		c.logger.Warn("create connection: request already pending")
		return false
	}

	req := &pendingLERequest{peer: peer, cb: cb}
	c.pending = req

	c.addrs.EnsureLocalAddress(func(local bthost.DeviceAddress) {
		if c.pending != req {
			return
		}
		if req.canceled {
			c.d.Post(func() { c.finish(req, bthost.ErrCanceled, nil) })
			return
		}
		req.local = local
		c.sendCreateConnection(req, useAcceptList, scanInterval, scanWindow, params, timeout)
	})
	return true
}

func (c *LowEnergyConnector) sendCreateConnection(req *pendingLERequest, useAcceptList bool,
	scanInterval, scanWindow uint16, params LEPreferredConnectionParameters, timeout time.Duration) {
	own := uint8(AddressTypePublic)
	if req.local.Type == bthost.AddressLERandom {
		own = AddressTypeRandom
	}
	p := CreateConnectionParams(useAcceptList, req.peer, own, scanInterval, scanWindow, params)
	if err := ValidateConnParams(p); err != nil {
		c.d.Post(func() { c.finish(req, errors.Wrap(bthost.ErrInvalidParameters, err.Error()), nil) })
		return
	}

	req.sent = true
	c.ch.SendCommand(&p, func(_ TransactionID, e *Event) {
		if err := e.Err(); err != nil {
			c.logger.Warnf("LE create connection failed: %v", err)
			c.finish(req, err, nil)
		}
	}, CommandStatusCode)

	req.timeout = c.d.PostAfter(timeout, func() {
		if c.pending != req {
			return
		}
		c.logger.Infof("LE create connection to %v timed out", req.peer)
		req.timedOut = true
		c.Cancel()
	})
}

// Cancel aborts the pending request. The result callback still runs, with
// ErrCanceled or ErrTimedOut, once the controller confirms.
func (c *LowEnergyConnector) Cancel() {
	req := c.pending
	if req == nil || req.canceled {
		return
	}
	req.canceled = true
	if !req.sent {
		// The address callback has not fired yet; it reports the cancel.
		return
	}

	c.logger.Info("canceling LE create connection")
	c.ch.SendCommand(&cmd.LECreateConnectionCancel{}, func(_ TransactionID, e *Event) {
		err := e.Err()
		switch {
		case err == nil:
		case IsStatus(err, ErrDisallowed):
			// The link is being established; the complete event follows.
			c.logger.Debug("LE create connection cancel disallowed, connection completing")
		default:
			c.logger.Warnf("LE create connection cancel failed: %v", err)
		}
	}, CommandCompleteCode)
}

func (c *LowEnergyConnector) finish(req *pendingLERequest, err error, conn *Connection) {
	if c.pending != req {
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.pending = nil
	if req.timeout != nil {
		req.timeout.Cancel()
	}
	if req.cb != nil {
		req.cb(err, conn)
	}
}

type leConnectionComplete struct {
	handle   uint16
	role     Role
	peer     bthost.DeviceAddress
	localRPA [6]byte
	params   LEConnectionParameters
}

func (c *LowEnergyConnector) handleLEConnectionComplete(e *Event) {
	p := evt.LEConnectionComplete(e.Params)
	h, err := p.ConnectionHandleWErr()
	role, err2 := p.RoleWErr()
	at, err3 := p.PeerAddressTypeWErr()
	addr, err4 := p.PeerAddressWErr()
	if err := firstErr(err, err2, err3, err4); err != nil && e.Err() == nil {
		c.logger.Errorf("malformed LE connection complete: %v", err)
		return
	}
	interval, _ := p.ConnIntervalWErr()
	latency, _ := p.ConnLatencyWErr()
	sto, _ := p.SupervisionTimeoutWErr()

	c.onConnectionComplete(e.Err(), leConnectionComplete{
		handle: h,
		role:   Role(role),
		peer:   DeviceAddressFromLE(at, addr),
		params: LEConnectionParameters{Interval: interval, Latency: latency, SupervisionTimeout: sto},
	})
}

func (c *LowEnergyConnector) handleLEEnhancedConnectionComplete(e *Event) {
	p := evt.LEEnhancedConnectionComplete(e.Params)
	h, err := p.ConnectionHandleWErr()
	role, err2 := p.RoleWErr()
	at, err3 := p.PeerAddressTypeWErr()
	addr, err4 := p.PeerAddressWErr()
	if err := firstErr(err, err2, err3, err4); err != nil && e.Err() == nil {
		c.logger.Errorf("malformed LE enhanced connection complete: %v", err)
		return
	}
	rpa, _ := p.LocalResolvablePrivateAddressWErr()
	interval, _ := p.ConnIntervalWErr()
	latency, _ := p.ConnLatencyWErr()
	sto, _ := p.SupervisionTimeoutWErr()

	c.onConnectionComplete(e.Err(), leConnectionComplete{
		handle:   h,
		role:     Role(role),
		peer:     DeviceAddressFromLE(at, addr),
		localRPA: rpa,
		params:   LEConnectionParameters{Interval: interval, Latency: latency, SupervisionTimeout: sto},
	})
}

func (c *LowEnergyConnector) onConnectionComplete(status error, cc leConnectionComplete) {
	req := c.pending
	matches := req != nil && req.sent && cc.role == RoleCentral

	if status != nil {
		if !matches {
			c.logger.Warnf("LE connection complete with error and no matching request: %v", status)
			return
		}
		err := status
		switch {
		case req.timedOut:
			err = bthost.ErrTimedOut
		case req.canceled && IsStatus(status, ErrConnID):
			err = bthost.ErrCanceled
		}
		c.finish(req, err, nil)
		return
	}

	if !matches {
		local := bthost.DeviceAddress{}
		if req != nil {
			local = req.local
		}
		conn := NewConnection(c.ch, cc.handle, LinkLE, cc.role, local, cc.peer)
		conn.SetLEParameters(cc.params)
		if c.onIncoming == nil {
			c.logger.Warnf("no delegate for incoming LE connection 0x%04x, disconnecting", cc.handle)
			conn.Close()
			return
		}
		c.onIncoming(conn)
		return
	}

	local := req.local
	if cc.localRPA != ([6]byte{}) {
		local = bthost.DeviceAddress{Type: bthost.AddressLERandom, Value: cc.localRPA}
	}
	conn := NewConnection(c.ch, cc.handle, LinkLE, cc.role, local, cc.peer)
	conn.SetLEParameters(cc.params)

	if req.canceled {
		// Canceled too late; the link exists but nobody wants it.
		conn.Close()
		err := bthost.ErrCanceled
		if req.timedOut {
			err = bthost.ErrTimedOut
		}
		c.finish(req, err, nil)
		return
	}
	c.finish(req, nil, conn)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
