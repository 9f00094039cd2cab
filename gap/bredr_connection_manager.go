package gap

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
	"github.com/rigado/bthost/metrics"
)

// Create Connection packet types: DM1, DH1, DM3, DH3, DM5, DH5
// [Vol 4, Part E, 7.1.5].
const createConnectionPacketTypes = 0xCC18

// Page scan settings used while connectable: R1 interval and window,
// interlaced scan.
const (
	pageScanInterval   = 0x0800 // 1.28 s
	pageScanWindow     = 0x0011 // 10.625 ms
	pageScanInterlaced = 0x01
	scanEnablePage     = 0x02
)

// BrEdrConnectionResultCallback receives the outcome of Connect.
type BrEdrConnectionResultCallback = ConnectionResultCallback[*BrEdrConnection]

// BrEdrConnectionRequest is a ConnectionRequest producing a BrEdrConnection.
type BrEdrConnectionRequest = ConnectionRequest[*BrEdrConnection]

// ServiceRecord holds the attributes of one SDP service record by id.
type ServiceRecord map[uint16][]byte

// ServiceDiscoverer queries the SDP server of a connected peer.
type ServiceDiscoverer interface {
	Search(handle uint16, service uuid.UUID, attributes []uint16, cb func(err error, records []ServiceRecord))
}

// SearchID identifies a search added with AddServiceSearch.
type SearchID int

// ServiceSearchCallback receives each record found on a peer.
type ServiceSearchCallback func(peerID bthost.PeerID, record ServiceRecord)

type serviceSearch struct {
	service    uuid.UUID
	attributes []uint16
	cb         ServiceSearchCallback
}

// BrEdrOption configures a BrEdrConnectionManager.
type BrEdrOption func(*BrEdrConnectionManager) error

// OptBrEdrLogger replaces the manager logger.
func OptBrEdrLogger(l bthost.Logger) BrEdrOption {
	return func(m *BrEdrConnectionManager) error {
		m.logger = l
		return nil
	}
}

// OptL2CAP registers connected links with l.
func OptL2CAP(l L2CAP) BrEdrOption {
	return func(m *BrEdrConnectionManager) error {
		m.l2cap = l
		return nil
	}
}

// OptServiceDiscoverer runs the registered service searches with sdp.
func OptServiceDiscoverer(sdp ServiceDiscoverer) BrEdrOption {
	return func(m *BrEdrConnectionManager) error {
		m.sdp = sdp
		return nil
	}
}

// BrEdrConnectionManager creates and accepts ACL links, interrogates the
// peers and hands out BrEdrConnections. One Create Connection is
// outstanding at a time; requests for other peers wait their turn.
type BrEdrConnectionManager struct {
	d     dispatch.Dispatcher
	ch    hci.CommandChannel
	cache *PeerCache
	local bthost.DeviceAddress

	interrogator *BrEdrInterrogator
	l2cap        L2CAP
	sdp          ServiceDiscoverer

	requests map[bthost.DeviceAddress]*BrEdrConnectionRequest
	queue    []bthost.DeviceAddress

	// pending has the outstanding Create Connection.
	pending         *BrEdrConnectionRequest
	pendingTimeout  dispatch.Task
	pendingTimedOut bool

	// canceledForIncoming holds peers whose Create Connection we canceled
	// to accept theirs. The failed completion of ours is dropped.
	canceledForIncoming map[bthost.DeviceAddress]bool

	connections map[uint16]*BrEdrConnection
	denied      map[bthost.DeviceAddress]time.Time

	searches   map[SearchID]serviceSearch
	nextSearch SearchID

	connectable bool
	handlers    []hci.EventHandlerID
	logger      bthost.Logger
}

func NewBrEdrConnectionManager(cache *PeerCache, local bthost.DeviceAddress, ch hci.CommandChannel,
	d dispatch.Dispatcher, opts ...BrEdrOption) (*BrEdrConnectionManager, error) {
	m := &BrEdrConnectionManager{
		d:                   d,
		ch:                  ch,
		cache:               cache,
		local:               local,
		interrogator:        NewBrEdrInterrogator(cache, ch, d),
		requests:            map[bthost.DeviceAddress]*BrEdrConnectionRequest{},
		canceledForIncoming: map[bthost.DeviceAddress]bool{},
		connections:         map[uint16]*BrEdrConnection{},
		denied:              map[bthost.DeviceAddress]time.Time{},
		searches:            map[SearchID]serviceSearch{},
		logger:              bthost.ComponentLogger("gap-bredr"),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	for code, h := range map[hci.EventCode]hci.EventHandler{
		hci.ConnectionRequestCode:       m.handleConnectionRequest,
		hci.ConnectionCompleteCode:      m.handleConnectionComplete,
		hci.LinkKeyRequestCode:          m.handleLinkKeyRequest,
		hci.LinkKeyNotificationCode:     m.handleLinkKeyNotification,
		hci.IOCapabilityRequestCode:     m.handleIOCapabilityRequest,
		hci.UserConfirmationRequestCode: m.handleUserConfirmationRequest,
		hci.SimplePairingCompleteCode:   m.handleSimplePairingComplete,
		hci.AuthenticationCompleteCode:  m.handleAuthenticationComplete,
		hci.EncryptionChangeCode:        m.handleEncryptionChange,
	} {
		m.handlers = append(m.handlers, ch.AddEventHandler(code, h))
	}
	return m, nil
}

// Connectable reports the last page scan setting applied.
func (m *BrEdrConnectionManager) Connectable() bool {
	return m.connectable
}

// SetConnectable turns page scan on or off. cb may be nil.
func (m *BrEdrConnectionManager) SetConnectable(connectable bool, cb func(err error)) {
	done := func(err error) {
		if err == nil {
			m.connectable = connectable
		} else {
			m.logger.Warnf("set connectable %v: %v", connectable, err)
		}
		if cb != nil {
			cb(err)
		}
	}

	if !connectable {
		m.writeScanEnable(0x00, done)
		return
	}
	m.ch.SendCommand(&cmd.WritePageScanActivity{PageScanInterval: pageScanInterval, PageScanWindow: pageScanWindow},
		hci.StatusCallback(func(err error) {
			if err != nil {
				done(errors.Wrap(err, "write page scan activity"))
				return
			}
			m.ch.SendCommand(&cmd.WritePageScanType{PageScanType: pageScanInterlaced},
				hci.StatusCallback(func(err error) {
					if err != nil {
						done(errors.Wrap(err, "write page scan type"))
						return
					}
					m.writeScanEnable(scanEnablePage, done)
				}), hci.CommandCompleteCode)
		}), hci.CommandCompleteCode)
}

func (m *BrEdrConnectionManager) writeScanEnable(v uint8, cb func(err error)) {
	m.ch.SendCommand(&cmd.WriteScanEnable{ScanEnable: v}, hci.StatusCallback(func(err error) {
		cb(errors.Wrap(err, "write scan enable"))
	}), hci.CommandCompleteCode)
}

// Connect creates an ACL link to peerID, or joins the attempt already
// running. It returns false if the peer is unknown or not a BR/EDR peer.
func (m *BrEdrConnectionManager) Connect(peerID bthost.PeerID, cb BrEdrConnectionResultCallback) bool {
	p := m.cache.FindByID(peerID)
	if p == nil || p.bredr == nil {
		m.logger.Warnf("connect: %v is not a known BR/EDR peer", peerID)
		return false
	}
	addr := brEdrAddress(p)

	if conn := m.connectionTo(addr); conn != nil && conn.Started() {
		m.d.Post(func() { cb(nil, conn) })
		return true
	}
	if req, ok := m.requests[addr]; ok {
		m.logger.Debugf("connect: joining request to %v", p)
		req.AddCallback(cb)
		return true
	}

	token := p.MutBrEdr().RegisterInitializingConnection()
	m.requests[addr] = NewConnectionRequest(peerID, addr, token, cb)
	m.queue = append(m.queue, addr)
	m.tryCreateNext()
	return true
}

// Disconnect closes the link to peerID and refuses its incoming
// connections for LocalDisconnectCooldown.
func (m *BrEdrConnectionManager) Disconnect(peerID bthost.PeerID, reason hci.ErrCommand) bool {
	var conn *BrEdrConnection
	for _, c := range m.connections {
		if c.PeerID() == peerID {
			conn = c
			break
		}
	}
	if conn == nil {
		m.logger.Debugf("disconnect: no link to %v", peerID)
		return true
	}

	addr := conn.PeerAddress()
	m.logger.Infof("disconnecting %v (%v)", peerID, reason)
	m.denied[addr] = m.d.Now().Add(LocalDisconnectCooldown)
	m.removeConnection(conn, errors.Wrap(bthost.ErrCanceled, "disconnected"))
	conn.Link().Disconnect(reason)
	return true
}

// AddServiceSearch runs a search for service on every peer that connects
// from now on.
func (m *BrEdrConnectionManager) AddServiceSearch(service uuid.UUID, attributes []uint16, cb ServiceSearchCallback) SearchID {
	m.nextSearch++
	m.searches[m.nextSearch] = serviceSearch{service: service, attributes: attributes, cb: cb}
	return m.nextSearch
}

func (m *BrEdrConnectionManager) RemoveServiceSearch(id SearchID) bool {
	if _, ok := m.searches[id]; !ok {
		return false
	}
	delete(m.searches, id)
	return true
}

// Close cancels every request and closes every link.
func (m *BrEdrConnectionManager) Close() {
	for _, id := range m.handlers {
		m.ch.RemoveEventHandler(id)
	}
	m.handlers = nil
	m.cancelPendingTimeout()
	m.pending = nil
	m.queue = nil

	for _, conn := range m.connections {
		delete(m.connections, conn.Handle())
		conn.Close()
		conn.Link().Close()
	}
	m.interrogator.Close()
	for addr, req := range m.requests {
		delete(m.requests, addr)
		m.report(req, bthost.ErrCanceled)
		req.Close()
	}
}

func brEdrAddress(p *Peer) bthost.DeviceAddress {
	addr := p.Address()
	if addr.IsLowEnergy() {
		return addr.Alias()
	}
	return addr
}

func (m *BrEdrConnectionManager) connectionTo(addr bthost.DeviceAddress) *BrEdrConnection {
	for _, c := range m.connections {
		if c.PeerAddress() == addr {
			return c
		}
	}
	return nil
}

func (m *BrEdrConnectionManager) tryCreateNext() {
	for m.pending == nil && len(m.queue) > 0 {
		addr := m.queue[0]
		m.queue = m.queue[1:]
		req, ok := m.requests[addr]
		if !ok || req.Incoming() {
			continue
		}
		m.pending = req
		m.createConnection(req)
	}
}

func (m *BrEdrConnectionManager) createConnection(req *BrEdrConnectionRequest) {
	c := &cmd.CreateConnection{
		BDADDR:                 req.Address().Value,
		PacketType:             createConnectionPacketTypes,
		PageScanRepetitionMode: defaultPageScanRepetitionMode,
		AllowRoleSwitch:        0x01,
	}
	if p := m.cache.FindByID(req.PeerID()); p != nil && p.bredr != nil {
		if psrm, ok := p.bredr.PageScanRepetitionMode(); ok {
			c.PageScanRepetitionMode = psrm
		}
		if offset, ok := p.bredr.ClockOffset(); ok {
			c.ClockOffset = offset | clockOffsetValid
		}
	}

	req.RecordCreateConnectionAttempt(m.d.Now())
	m.pendingTimedOut = false
	m.logger.Infof("creating connection to %v", req.Address())
	m.ch.SendCommand(c, hci.StatusCallback(func(err error) {
		if err != nil && m.pending == req {
			m.cancelPendingTimeout()
			m.pending = nil
			m.resolve(req, errors.Wrap(err, "create connection"), nil)
			m.tryCreateNext()
		}
	}), hci.CommandStatusCode)

	m.cancelPendingTimeout()
	m.pendingTimeout = m.d.PostAfter(BrEdrCreateConnectionTimeout, func() {
		m.pendingTimeout = nil
		if m.pending != req {
			return
		}
		m.logger.Infof("create connection to %v timed out, canceling", req.Address())
		m.pendingTimedOut = true
		m.ch.SendCommand(&cmd.CreateConnectionCancel{BDADDR: req.Address().Value},
			hci.StatusCallback(func(err error) {
				if err != nil {
					m.logger.Warnf("create connection cancel: %v", err)
				}
			}), hci.CommandCompleteCode)
	})
}

func (m *BrEdrConnectionManager) cancelPendingTimeout() {
	if m.pendingTimeout != nil {
		m.pendingTimeout.Cancel()
		m.pendingTimeout = nil
	}
}

func (m *BrEdrConnectionManager) report(req *BrEdrConnectionRequest, err error) {
	if req.Resolved() {
		return
	}
	metrics.BrEdrConnectionResults.WithLabelValues(metrics.ResultOf(err)).Inc()
}

func (m *BrEdrConnectionManager) resolve(req *BrEdrConnectionRequest, err error, conn *BrEdrConnection) {
	if m.requests[req.Address()] == req {
		delete(m.requests, req.Address())
	}
	if err != nil {
		m.logger.Infof("connection to %v failed: %v", req.Address(), err)
	}
	m.report(req, err)
	req.NotifyCallbacks(err, conn)
}

func (m *BrEdrConnectionManager) reject(addr [6]byte, reason hci.ErrCommand) {
	m.ch.SendCommand(&cmd.RejectConnectionRequest{BDADDR: addr, Reason: uint8(reason)},
		hci.StatusCallback(func(err error) {
			if err != nil {
				m.logger.Warnf("reject connection request: %v", err)
			}
		}), hci.CommandStatusCode)
}

func (m *BrEdrConnectionManager) handleConnectionRequest(e *hci.Event) {
	p := evt.ConnectionRequest(e.Params)
	raw, err := p.BDADDRWErr()
	if err != nil {
		m.logger.Errorf("malformed connection request: %v", err)
		return
	}
	cod, _ := p.ClassOfDeviceWErr()
	lt, _ := p.LinkTypeWErr()
	if hci.LinkType(lt) != hci.LinkACL {
		// Synchronous links are answered by the SCO manager of the link.
		return
	}
	addr := bthost.DeviceAddress{Type: bthost.AddressBREDR, Value: raw}

	if until, ok := m.denied[addr]; ok {
		if m.d.Now().Before(until) {
			m.logger.Infof("rejecting %v, disconnected recently", addr)
			m.reject(raw, hci.ErrBDADDR)
			return
		}
		delete(m.denied, addr)
	}
	if m.connectionTo(addr) != nil {
		m.logger.Infof("rejecting %v, already connected", addr)
		m.reject(raw, hci.ErrBDADDR)
		return
	}

	peer := m.cache.FindByAddress(addr)
	if peer == nil {
		peer = m.cache.NewPeer(addr, true)
	}
	peer.MutBrEdr().SetDeviceClass(cod)

	req, ok := m.requests[addr]
	switch {
	case ok && req.Incoming():
		m.logger.Infof("rejecting duplicate request from %v", addr)
		m.reject(raw, hci.ErrBDADDR)
		return
	case ok && m.pending == req:
		// Both sides are paging each other. Take theirs.
		m.logger.Infof("canceling create connection to %v in favor of its request", addr)
		m.cancelPendingTimeout()
		m.pending = nil
		m.canceledForIncoming[addr] = true
		m.ch.SendCommand(&cmd.CreateConnectionCancel{BDADDR: raw}, nil, hci.CommandCompleteCode)
	case !ok:
		req = NewConnectionRequest[*BrEdrConnection](peer.ID(), addr, peer.MutBrEdr().RegisterInitializingConnection(), nil)
		m.requests[addr] = req
	}
	req.BeginIncoming()

	m.logger.Infof("accepting connection from %v", addr)
	m.ch.SendCommand(&cmd.AcceptConnectionRequest{BDADDR: raw, Role: uint8(hci.RolePeripheral)},
		hci.StatusCallback(func(err error) {
			if err != nil && m.requests[addr] == req {
				m.resolve(req, errors.Wrap(err, "accept connection request"), nil)
				m.tryCreateNext()
			}
		}), hci.CommandStatusCode)
	m.tryCreateNext()
}

func (m *BrEdrConnectionManager) handleConnectionComplete(e *hci.Event) {
	p := evt.ConnectionComplete(e.Params)
	raw, err := p.BDADDRWErr()
	if err != nil {
		m.logger.Errorf("malformed connection complete: %v", err)
		return
	}
	lt, _ := p.LinkTypeWErr()
	if hci.LinkType(lt) != hci.LinkACL {
		return
	}
	handle, _ := p.ConnectionHandleWErr()
	addr := bthost.DeviceAddress{Type: bthost.AddressBREDR, Value: raw}
	status := e.Err()

	if status != nil && m.canceledForIncoming[addr] {
		delete(m.canceledForIncoming, addr)
		m.logger.Debugf("canceled create connection to %v completed: %v", addr, status)
		return
	}

	req := m.requests[addr]
	outbound := req != nil && m.pending == req
	if outbound {
		m.cancelPendingTimeout()
		m.pending = nil
	}

	if status != nil {
		switch {
		case req == nil:
			m.logger.Infof("connection to %v failed: %v", addr, status)
		case outbound && !m.pendingTimedOut && req.ShouldRetry(status, m.d.Now()):
			m.logger.Infof("page timeout for %v, retrying", addr)
			metrics.BrEdrPageTimeoutRetries.Inc()
			m.pending = req
			m.createConnection(req)
			return
		case outbound && m.pendingTimedOut:
			m.resolve(req, errors.Wrapf(bthost.ErrTimedOut, "create connection: %v", status), nil)
		default:
			m.resolve(req, errors.Wrap(status, "connection complete"), nil)
		}
		m.tryCreateNext()
		return
	}

	role := hci.RolePeripheral
	if outbound {
		role = hci.RoleCentral
	}
	link := hci.NewConnection(m.ch, handle, hci.LinkACL, role, m.local, addr)
	m.initializeConnection(req, link)
	m.tryCreateNext()
}

func (m *BrEdrConnectionManager) initializeConnection(req *BrEdrConnectionRequest, link *hci.Connection) {
	addr := link.PeerAddress()
	peer := m.cache.FindByAddress(addr)
	if peer == nil {
		peer = m.cache.NewPeer(addr, true)
	}
	if req != nil {
		req.CompleteIncoming()
	}

	conn, err := newBrEdrConnection(peer, link, m.cache, m.ch, m.l2cap)
	if err != nil {
		link.Close()
		if req != nil {
			m.resolve(req, err, nil)
		}
		return
	}
	m.connections[link.Handle()] = conn
	link.SetPeerDisconnectCallback(func(_ *hci.Connection, reason hci.ErrCommand) {
		m.logger.Infof("%v disconnected (%v)", addr, reason)
		m.removeConnection(conn, errors.Wrapf(bthost.ErrLinkDisconnected, "%v", reason))
	})

	m.logger.Infof("connected to %v (handle 0x%04x, %v)", peer, link.Handle(), link.Role())
	m.interrogator.Start(peer.ID(), link.Handle(), func(err error) {
		m.onInterrogationComplete(conn, err)
	})
}

func (m *BrEdrConnectionManager) onInterrogationComplete(conn *BrEdrConnection, err error) {
	if m.connections[conn.Handle()] != conn {
		return
	}
	req := m.requests[conn.PeerAddress()]
	if err != nil {
		m.removeConnection(conn, errors.Wrap(err, "interrogation"))
		conn.Link().Close()
		return
	}

	conn.Start()
	if req != nil {
		m.resolve(req, nil, conn)
	}
	m.startServiceSearches(conn)
}

// removeConnection forgets conn and fails the request waiting on it.
func (m *BrEdrConnectionManager) removeConnection(conn *BrEdrConnection, err error) {
	if m.connections[conn.Handle()] != conn {
		return
	}
	delete(m.connections, conn.Handle())
	if !conn.Started() {
		m.interrogator.Cancel(conn.PeerID())
		if req := m.requests[conn.PeerAddress()]; req != nil {
			m.resolve(req, err, nil)
		}
	}
	conn.Close()
}

func (m *BrEdrConnectionManager) startServiceSearches(conn *BrEdrConnection) {
	if m.sdp == nil || len(m.searches) == 0 {
		return
	}
	for id, s := range m.searches {
		id, s := id, s
		m.sdp.Search(conn.Handle(), s.service, s.attributes, func(err error, records []ServiceRecord) {
			if err != nil {
				m.logger.Infof("service search %d on %v failed: %v", id, conn.PeerID(), err)
				return
			}
			if m.connections[conn.Handle()] != conn {
				return
			}
			if len(records) > 0 {
				if p := m.cache.FindByID(conn.PeerID()); p != nil {
					p.MutBrEdr().AddService(s.service)
				}
			}
			if _, ok := m.searches[id]; !ok {
				return
			}
			for _, r := range records {
				s.cb(conn.PeerID(), r)
			}
		})
	}
}

func (m *BrEdrConnectionManager) connectionByHandle(e *hci.Event) *BrEdrConnection {
	handle, ok := e.Handle()
	if !ok {
		return nil
	}
	return m.connections[handle]
}

func (m *BrEdrConnectionManager) connectionByAddress(raw [6]byte, err error) *BrEdrConnection {
	if err != nil {
		m.logger.Errorf("malformed pairing event: %v", err)
		return nil
	}
	return m.connectionTo(bthost.DeviceAddress{Type: bthost.AddressBREDR, Value: raw})
}

func (m *BrEdrConnectionManager) handleLinkKeyRequest(e *hci.Event) {
	raw, err := evt.LinkKeyRequest(e.Params).BDADDRWErr()
	conn := m.connectionByAddress(raw, err)
	if conn == nil {
		if err == nil {
			m.ch.SendCommand(&cmd.LinkKeyRequestNegativeReply{BDADDR: raw}, nil, hci.CommandCompleteCode)
		}
		return
	}
	conn.Pairing().OnLinkKeyRequest()
}

func (m *BrEdrConnectionManager) handleLinkKeyNotification(e *hci.Event) {
	p := evt.LinkKeyNotification(e.Params)
	raw, err := p.BDADDRWErr()
	conn := m.connectionByAddress(raw, err)
	if conn == nil {
		return
	}
	key, err := p.LinkKeyWErr()
	if err != nil {
		m.logger.Errorf("malformed link key notification: %v", err)
		return
	}
	keyType, _ := p.KeyTypeWErr()
	conn.Pairing().OnLinkKeyNotification(key, keyType)
}

func (m *BrEdrConnectionManager) handleIOCapabilityRequest(e *hci.Event) {
	if conn := m.connectionByAddress(evt.IOCapabilityRequest(e.Params).BDADDRWErr()); conn != nil {
		conn.Pairing().OnIOCapabilityRequest()
	}
}

func (m *BrEdrConnectionManager) handleUserConfirmationRequest(e *hci.Event) {
	p := evt.UserConfirmationRequest(e.Params)
	if conn := m.connectionByAddress(p.BDADDRWErr()); conn != nil {
		value, _ := p.NumericValueWErr()
		conn.Pairing().OnUserConfirmationRequest(value)
	}
}

func (m *BrEdrConnectionManager) handleSimplePairingComplete(e *hci.Event) {
	if conn := m.connectionByAddress(evt.SimplePairingComplete(e.Params).BDADDRWErr()); conn != nil {
		conn.Pairing().OnSimplePairingComplete(e.Err())
	}
}

func (m *BrEdrConnectionManager) handleAuthenticationComplete(e *hci.Event) {
	if conn := m.connectionByHandle(e); conn != nil {
		conn.Pairing().OnAuthenticationComplete(e.Err())
	}
}

func (m *BrEdrConnectionManager) handleEncryptionChange(e *hci.Event) {
	if conn := m.connectionByHandle(e); conn != nil {
		enabled, _ := evt.EncryptionChange(e.Params).EncryptionEnabledWErr()
		conn.Pairing().OnEncryptionChange(e.Err(), enabled != 0)
	}
}
