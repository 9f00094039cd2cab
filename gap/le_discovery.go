package gap

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
)

// [Vol 4, Part E, 7.7.65.2]
const (
	advInd        = 0x00 // Connectable undirected advertising (ADV_IND).
	advDirectInd  = 0x01 // Connectable directed advertising (ADV_DIRECT_IND).
	advScanInd    = 0x02 // Scannable undirected advertising (ADV_SCAN_IND).
	advNonconnInd = 0x03 // Non connectable undirected advertising (ADV_NONCONN_IND).
	advScanRsp    = 0x04 // Scan Response (SCAN_RSP).
)

// Default discovery scan timing, N * 0.625 msec.
const (
	LEScanSlowInterval = 0x0800
	LEScanSlowWindow   = 0x0012
)

// DiscoveryFilter narrows the results delivered to a session. The zero
// value matches every peer.
type DiscoveryFilter struct {
	Connectable bool
	PeerID      bthost.PeerID
}

// Matches reports whether p passes the filter.
func (f *DiscoveryFilter) Matches(p *Peer) bool {
	if f.Connectable && !p.Connectable() {
		return false
	}
	if f.PeerID.IsValid() && f.PeerID != p.ID() {
		return false
	}
	return true
}

// LowEnergyDiscoverySession delivers peers found while scanning.
type LowEnergyDiscoverySession interface {
	Filter() *DiscoveryFilter
	SetResultCallback(f func(p *Peer))
	SetErrorCallback(f func())
	Stop()
	Alive() bool
}

// PauseToken keeps discovery paused until released.
type PauseToken interface {
	Release()
}

// LowEnergyDiscoveryManager is the scanning service the LE connector
// consumes. StartDiscovery calls cb with nil if scanning could not start.
type LowEnergyDiscoveryManager interface {
	StartDiscovery(active bool, cb func(s LowEnergyDiscoverySession))
	PauseDiscovery() PauseToken
}

type discoverySession struct {
	m        *LowEnergyDiscovery
	active   bool
	filter   DiscoveryFilter
	onResult func(p *Peer)
	onError  func()
	alive    bool
}

func (s *discoverySession) Filter() *DiscoveryFilter          { return &s.filter }
func (s *discoverySession) SetResultCallback(f func(p *Peer)) { s.onResult = f }
func (s *discoverySession) SetErrorCallback(f func())         { s.onError = f }
func (s *discoverySession) Alive() bool                       { return s.alive }

func (s *discoverySession) Stop() {
	if !s.alive {
		return
	}
	s.alive = false
	s.m.removeSession(s)
}

type pendingDiscovery struct {
	active bool
	cb     func(s LowEnergyDiscoverySession)
}

type scanState int

const (
	scanIdle scanState = iota
	scanStarting
	scanRunning
	scanStopping
)

// LowEnergyDiscovery drives LE scanning for any number of sessions and
// feeds advertising reports into the peer cache. Scanning runs while at
// least one session is alive and no pause token is held.
type LowEnergyDiscovery struct {
	d     dispatch.Dispatcher
	ch    hci.CommandChannel
	cache *PeerCache
	addrs hci.LocalAddressDelegate

	state      scanState
	scanActive bool
	sessions   []*discoverySession
	pending    []pendingDiscovery
	paused     int

	// last advertising payload per address, combined with scan responses
	advCache *lru.Cache

	handler hci.EventHandlerID
	logger  bthost.Logger
}

// advCacheSize bounds the advertising payloads kept for pairing with scan
// responses. Advertisers rotating private addresses would grow it otherwise.
const advCacheSize = 256

func newAdvCache() *lru.Cache {
	c, err := lru.New(advCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}

// NewLowEnergyDiscovery subscribes to LE advertising reports on ch. addrs
// picks the own address type used while scanning.
func NewLowEnergyDiscovery(cache *PeerCache, addrs hci.LocalAddressDelegate,
	ch hci.CommandChannel, d dispatch.Dispatcher) *LowEnergyDiscovery {
	m := &LowEnergyDiscovery{
		d:        d,
		ch:       ch,
		cache:    cache,
		addrs:    addrs,
		advCache: newAdvCache(),
		logger:   bthost.ComponentLogger("gap-le-discovery"),
	}
	m.handler = ch.AddEventHandler(hci.LEAdvertisingReportCode, m.handleAdvertisingReport)
	return m
}

// Scanning reports whether the controller is scanning.
func (m *LowEnergyDiscovery) Scanning() bool {
	return m.state == scanRunning
}

// Paused reports whether a pause token is outstanding.
func (m *LowEnergyDiscovery) Paused() bool {
	return m.paused > 0
}

func (m *LowEnergyDiscovery) StartDiscovery(active bool, cb func(s LowEnergyDiscoverySession)) {
	if m.state == scanRunning && m.paused == 0 && (m.scanActive || !active) {
		cb(m.addSession(active))
		return
	}
	m.pending = append(m.pending, pendingDiscovery{active: active, cb: cb})
	m.update()
}

type discoveryPause struct {
	m        *LowEnergyDiscovery
	released bool
}

func (p *discoveryPause) Release() {
	if p.released {
		return
	}
	p.released = true
	p.m.paused--
	p.m.logger.Debugf("discovery pause released (%d outstanding)", p.m.paused)
	p.m.update()
}

func (m *LowEnergyDiscovery) PauseDiscovery() PauseToken {
	m.paused++
	m.logger.Debugf("discovery paused (%d outstanding)", m.paused)
	m.update()
	return &discoveryPause{m: m}
}

// Close stops scanning and ends every session.
func (m *LowEnergyDiscovery) Close() {
	m.ch.RemoveEventHandler(m.handler)
	for _, s := range m.sessions {
		s.alive = false
	}
	m.sessions = nil
	pending := m.pending
	m.pending = nil
	for _, p := range pending {
		p.cb(nil)
	}
	if m.state == scanRunning {
		m.setScanEnable(false, func(error) {})
	}
	m.state = scanIdle
}

func (m *LowEnergyDiscovery) addSession(active bool) *discoverySession {
	s := &discoverySession{m: m, active: active, alive: true}
	m.sessions = append(m.sessions, s)
	return s
}

func (m *LowEnergyDiscovery) removeSession(s *discoverySession) {
	for i, x := range m.sessions {
		if x == s {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}
	m.update()
}

func (m *LowEnergyDiscovery) wantsActive() bool {
	for _, s := range m.sessions {
		if s.active {
			return true
		}
	}
	for _, p := range m.pending {
		if p.active {
			return true
		}
	}
	return false
}

// update moves the controller towards the scan state the sessions need.
// Nothing is sent while a scan command is in flight; its completion calls
// update again.
func (m *LowEnergyDiscovery) update() {
	if m.state == scanStarting || m.state == scanStopping {
		return
	}
	wanted := m.paused == 0 && (len(m.sessions) > 0 || len(m.pending) > 0)

	switch {
	case m.state == scanIdle && wanted:
		m.startScan(m.wantsActive())
	case m.state == scanRunning && !wanted:
		m.stopScan()
	case m.state == scanRunning && m.wantsActive() && !m.scanActive:
		m.stopScan()
	case m.state == scanRunning && len(m.pending) > 0:
		m.resolvePending()
	}
}

func (m *LowEnergyDiscovery) startScan(active bool) {
	m.state = scanStarting
	m.addrs.EnsureLocalAddress(func(local bthost.DeviceAddress) {
		p := hci.DefaultScanParams(active, LEScanSlowInterval, LEScanSlowWindow)
		p.OwnAddressType = hci.LEAddressType(local)
		if local.Type == bthost.AddressBREDR {
			p.OwnAddressType = hci.AddressTypePublic
		}
		if err := hci.ValidateScanParams(p); err != nil {
			m.scanFailed(err)
			return
		}

		m.logger.Infof("starting %s scan", scanTypeName(active))
		m.ch.SendCommand(&p, hci.StatusCallback(func(err error) {
			if err != nil {
				m.scanFailed(err)
				return
			}
			m.setScanEnable(true, func(err error) {
				if err != nil {
					m.scanFailed(err)
					return
				}
				m.state = scanRunning
				m.scanActive = active
				m.update()
			})
		}), hci.CommandCompleteCode)
	})
}

func (m *LowEnergyDiscovery) stopScan() {
	m.state = scanStopping
	m.logger.Info("stopping scan")
	m.setScanEnable(false, func(err error) {
		if err != nil {
			m.logger.Warnf("disable scan: %v", err)
		}
		m.state = scanIdle
		m.advCache.Purge()
		m.update()
	})
}

func (m *LowEnergyDiscovery) setScanEnable(enable bool, cb func(err error)) {
	c := &cmd.LESetScanEnable{}
	if enable {
		c.LEScanEnable = 1
	}
	m.ch.SendCommand(c, hci.StatusCallback(cb), hci.CommandCompleteCode)
}

func (m *LowEnergyDiscovery) scanFailed(err error) {
	m.logger.Errorf("start scan: %v", err)
	m.state = scanIdle

	pending := m.pending
	m.pending = nil
	sessions := m.sessions
	m.sessions = nil
	for _, p := range pending {
		p.cb(nil)
	}
	for _, s := range sessions {
		s.alive = false
		if s.onError != nil {
			s.onError()
		}
	}
}

func (m *LowEnergyDiscovery) resolvePending() {
	pending := m.pending
	m.pending = nil
	for _, p := range pending {
		p.cb(m.addSession(p.active))
	}
}

func scanTypeName(active bool) string {
	if active {
		return "active"
	}
	return "passive"
}

func (m *LowEnergyDiscovery) handleAdvertisingReport(e *hci.Event) {
	if m.state != scanRunning {
		return
	}
	r := evt.LEAdvertisingReport(e.Params)
	n, err := r.NumReportsWErr()
	if err != nil {
		m.logger.Errorf("malformed advertising report: %v", err)
		return
	}
	for i := 0; i < int(n); i++ {
		et, err := r.EventTypeWErr(i)
		if err != nil {
			m.logger.Errorf("advertising report %d: %v", i, err)
			return
		}
		at, err := r.AddressTypeWErr(i)
		if err != nil {
			m.logger.Errorf("advertising report %d: %v", i, err)
			return
		}
		a, err := r.AddressWErr(i)
		if err != nil {
			m.logger.Errorf("advertising report %d: %v", i, err)
			return
		}
		data, err := r.DataWErr(i)
		if err != nil {
			m.logger.Errorf("advertising report %d: %v", i, err)
			return
		}
		rssi, err := r.RSSIWErr(i)
		if err != nil {
			m.logger.Errorf("advertising report %d: %v", i, err)
			return
		}
		m.onReport(et, hci.DeviceAddressFromLE(at, a), data, rssi)
	}
}

func (m *LowEnergyDiscovery) onReport(eventType uint8, addr bthost.DeviceAddress, data []byte, rssi int8) {
	connectable := eventType == advInd || eventType == advDirectInd

	payload := append([]byte(nil), data...)
	if eventType == advScanRsp {
		var adv []byte
		if v, ok := m.advCache.Get(addr); ok {
			adv = v.([]byte)
		}
		payload = append(append([]byte(nil), adv...), data...)
	} else {
		m.advCache.Add(addr, payload)
	}

	p := m.cache.FindByAddress(addr)
	if p == nil {
		if eventType == advScanRsp {
			// Only seen as a scan response; wait for the advertisement.
			return
		}
		if p = m.cache.NewPeer(addr, connectable); p == nil {
			return
		}
	}
	if connectable && !p.Connectable() {
		p.SetConnectable(true)
	}
	p.MutLE().SetAdvertisingData(rssi, payload, m.d.Now())

	for _, s := range append([]*discoverySession(nil), m.sessions...) {
		if s.alive && s.onResult != nil && s.filter.Matches(p) {
			s.onResult(p)
		}
	}
}
