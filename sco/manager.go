package sco

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
	"github.com/rigado/bthost/metrics"
)

// Option configures a Manager.
type Option func(*Manager) error

// OptLogger replaces the manager logger.
func OptLogger(l bthost.Logger) Option {
	return func(m *Manager) error {
		m.logger = l
		return nil
	}
}

// ConnectionCallback receives the outcome of a request. conn is nil unless
// err is nil.
type ConnectionCallback func(err error, conn *Connection)

type request struct {
	id        uint64
	initiator bool
	params    []cmd.SynchronousConnectionParameters
	index     int
	cb        ConnectionCallback

	// started is set once the setup command is sent or, for a responder,
	// once the peer's connection request arrived.
	started bool
}

func (r *request) current() cmd.SynchronousConnectionParameters {
	return r.params[r.index]
}

// RequestHandle identifies a queued request. Releasing it cancels the
// request if it has not started yet.
type RequestHandle struct {
	m  *Manager
	id uint64
}

// Release cancels the request unless the controller is already working on
// it. Releasing twice has no effect.
func (h *RequestHandle) Release() {
	if h == nil || h.m == nil {
		return
	}
	h.m.cancelIfNotStarted(h.id)
	h.m = nil
}

// Manager owns the synchronous links of one ACL link. One request runs at a
// time and at most one waits behind it; a newer request replaces the
// waiting one.
type Manager struct {
	ch        hci.CommandChannel
	aclHandle uint16
	local     bthost.DeviceAddress
	peer      bthost.DeviceAddress

	inProgress *request
	queued     *request
	conns      map[*Connection]struct{}
	nextID     uint64

	handlers []hci.EventHandlerID
	logger   bthost.Logger
}

// NewManager creates the manager of the ACL link aclHandle to peer.
func NewManager(aclHandle uint16, local, peer bthost.DeviceAddress, ch hci.CommandChannel, opts ...Option) (*Manager, error) {
	m := &Manager{
		ch:        ch,
		aclHandle: aclHandle,
		local:     local,
		peer:      peer,
		conns:     map[*Connection]struct{}{},
		logger: bthost.ComponentLogger("sco").ChildLogger(map[string]interface{}{
			"peer": peer.String(),
		}),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.handlers = append(m.handlers,
		ch.AddEventHandler(hci.ConnectionRequestCode, m.handleConnectionRequest),
		ch.AddEventHandler(hci.SynchronousConnectionCompleteCode, m.handleSynchronousConnectionComplete),
	)
	return m, nil
}

// OpenConnection sets up a link to the peer with params.
func (m *Manager) OpenConnection(params cmd.SynchronousConnectionParameters, cb ConnectionCallback) *RequestHandle {
	return m.queueRequest(true, []cmd.SynchronousConnectionParameters{params}, cb)
}

// AcceptConnection waits for the peer to request a link and accepts it
// with the first entry of params that supports the requested link type.
// If the setup fails the next entry is offered to the next request.
func (m *Manager) AcceptConnection(params []cmd.SynchronousConnectionParameters, cb ConnectionCallback) *RequestHandle {
	if len(params) == 0 {
		cb(errors.Wrap(bthost.ErrInvalidParameters, "no parameters"), nil)
		return &RequestHandle{}
	}
	return m.queueRequest(false, params, cb)
}

// Close disconnects every link and cancels every request.
func (m *Manager) Close() {
	for _, id := range m.handlers {
		m.ch.RemoveEventHandler(id)
	}
	m.handlers = nil

	if r := m.inProgress; r != nil {
		m.inProgress = nil
		m.resolve(r, bthost.ErrCanceled, nil)
	}
	if r := m.queued; r != nil {
		m.queued = nil
		m.resolve(r, bthost.ErrCanceled, nil)
	}
	for c := range m.conns {
		c.Close()
	}
}

func (m *Manager) queueRequest(initiator bool, params []cmd.SynchronousConnectionParameters, cb ConnectionCallback) *RequestHandle {
	m.nextID++
	r := &request{id: m.nextID, initiator: initiator, params: params, cb: cb}

	// A responder that has not heard from the peer yet gives way to the
	// new request.
	if p := m.inProgress; p != nil && !p.initiator && !p.started {
		m.logger.Debugf("request %d replaces idle accept request %d", r.id, p.id)
		m.inProgress = nil
		m.resolve(p, bthost.ErrCanceled, nil)
	}
	if q := m.queued; q != nil {
		m.logger.Debugf("request %d replaces queued request %d", r.id, q.id)
		m.queued = nil
		m.resolve(q, bthost.ErrCanceled, nil)
	}
	m.queued = r

	m.tryNext()
	return &RequestHandle{m: m, id: r.id}
}

func (m *Manager) tryNext() {
	if m.inProgress != nil || m.queued == nil {
		return
	}
	r := m.queued
	m.queued = nil
	m.inProgress = r

	if !r.initiator {
		m.logger.Debugf("request %d waiting for the peer", r.id)
		return
	}

	r.started = true
	m.logger.Infof("request %d: setting up synchronous connection", r.id)
	m.ch.SendCommand(&cmd.EnhancedSetupSynchronousConnection{
		ConnectionHandle: m.aclHandle,
		Parameters:       r.current(),
	}, hci.StatusCallback(func(err error) {
		if err != nil && m.inProgress == r {
			m.fail(errors.Wrap(err, "enhanced setup synchronous connection"))
		}
	}), hci.CommandStatusCode)
}

func (m *Manager) cancelIfNotStarted(id uint64) {
	if r := m.inProgress; r != nil && r.id == id {
		if r.started {
			return
		}
		m.inProgress = nil
		m.resolve(r, bthost.ErrCanceled, nil)
		m.tryNext()
		return
	}
	if r := m.queued; r != nil && r.id == id {
		m.queued = nil
		m.resolve(r, bthost.ErrCanceled, nil)
	}
}

func (m *Manager) resolve(r *request, err error, conn *Connection) {
	metrics.ScoRequestResults.WithLabelValues(metrics.ResultOf(err)).Inc()
	if err != nil {
		m.logger.Infof("request %d failed: %v", r.id, err)
	}
	cb := r.cb
	r.cb = nil
	if cb != nil {
		cb(err, conn)
	}
}

// fail ends the request in progress and starts the next one.
func (m *Manager) fail(err error) {
	r := m.inProgress
	m.inProgress = nil
	m.resolve(r, err, nil)
	m.tryNext()
}

func (m *Manager) reject(addr [6]byte, reason hci.ErrCommand) {
	m.ch.SendCommand(&cmd.RejectSynchronousConnectionRequest{BDADDR: addr, Reason: uint8(reason)},
		hci.StatusCallback(func(err error) {
			if err != nil {
				m.logger.Warnf("reject synchronous connection request: %v", err)
			}
		}), hci.CommandStatusCode)
}

func supports(p cmd.SynchronousConnectionParameters, t hci.LinkType) bool {
	if t == hci.LinkSCO {
		return p.SupportsSCO()
	}
	return p.SupportsESCO()
}

func (m *Manager) handleConnectionRequest(e *hci.Event) {
	p := evt.ConnectionRequest(e.Params)
	addr, err := p.BDADDRWErr()
	if err != nil {
		m.logger.Errorf("malformed connection request: %v", err)
		return
	}
	lt, err := p.LinkTypeWErr()
	if err != nil {
		m.logger.Errorf("malformed connection request: %v", err)
		return
	}
	linkType := hci.LinkType(lt)
	if addr != m.peer.Value || (linkType != hci.LinkSCO && linkType != hci.LinkESCO) {
		return
	}

	r := m.inProgress
	if r == nil || r.initiator {
		m.logger.Infof("rejecting unexpected %v request", linkType)
		m.reject(addr, hci.ErrBDADDR)
		return
	}

	r.started = true
	for ; r.index < len(r.params); r.index++ {
		if supports(r.current(), linkType) {
			break
		}
	}
	if r.index == len(r.params) {
		// Keep the last entry for the failure report that follows.
		r.index = len(r.params) - 1
		m.logger.Infof("no parameters support %v, rejecting", linkType)
		m.reject(addr, hci.ErrLimitedResource)
		return
	}

	m.logger.Infof("accepting %v request", linkType)
	m.ch.SendCommand(&cmd.EnhancedAcceptSynchronousConnectionRequest{
		BDADDR:     addr,
		Parameters: r.current(),
	}, hci.StatusCallback(func(err error) {
		if err != nil && m.inProgress == r {
			m.fail(errors.Wrap(err, "enhanced accept synchronous connection request"))
		}
	}), hci.CommandStatusCode)
}

func (m *Manager) handleSynchronousConnectionComplete(e *hci.Event) {
	p := evt.SynchronousConnectionComplete(e.Params)
	addr, err := p.BDADDRWErr()
	if err != nil {
		m.logger.Errorf("malformed synchronous connection complete: %v", err)
		return
	}
	if addr != m.peer.Value {
		return
	}
	handle, _ := p.ConnectionHandleWErr()
	lt, _ := p.LinkTypeWErr()
	linkType := hci.LinkType(lt)

	r := m.inProgress
	if r == nil {
		m.logger.Warnf("synchronous connection complete without a request")
		if e.Err() == nil {
			hci.NewConnection(m.ch, handle, linkType, hci.RoleCentral, m.local, m.peer).Close()
		}
		return
	}

	if err := e.Err(); err != nil {
		// A responder may offer its remaining parameters to the next
		// request from the peer.
		if !r.initiator && r.index+1 < len(r.params) {
			m.logger.Infof("accept failed (%v), waiting with next parameters", err)
			r.index++
			r.started = false
			return
		}
		m.fail(errors.Wrap(err, "synchronous connection"))
		return
	}

	role := hci.RoleCentral
	if !r.initiator {
		role = hci.RolePeripheral
	}
	link := hci.NewConnection(m.ch, handle, linkType, role, m.local, m.peer)
	if linkType != hci.LinkSCO && linkType != hci.LinkESCO {
		link.Close()
		m.fail(errors.Wrapf(bthost.ErrFailed, "unexpected link type %v", linkType))
		return
	}

	conn := newConnection(link, r.current(), func(c *Connection) { delete(m.conns, c) })
	m.conns[conn] = struct{}{}
	m.inProgress = nil
	m.logger.Infof("%v link 0x%04x established", linkType, handle)
	m.resolve(r, nil, conn)
	m.tryNext()
}
