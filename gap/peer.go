package gap

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/parser"
	"github.com/rigado/bthost/sm"
)

// Technology is the set of transports a peer has been seen on.
type Technology int

const (
	TechnologyLowEnergy Technology = iota
	TechnologyClassic
	TechnologyDualMode
)

func (t Technology) String() string {
	switch t {
	case TechnologyLowEnergy:
		return "le"
	case TechnologyClassic:
		return "classic"
	}
	return "dual-mode"
}

// NameSource ranks where a peer name came from. A name is only replaced by
// one from a source ranked at least as high.
type NameSource int

const (
	NameSourceUnknown NameSource = iota
	NameSourceAdvertisingDataShortened
	NameSourceAdvertisingDataComplete
	NameSourceInquiryResultComplete
	NameSourceNameDiscoveryProcedure
	NameSourceGenericAccessService
)

// RSSIInvalid is reported until a signal strength has been observed.
const RSSIInvalid int8 = 127

// Version is the remote LMP/LL version information.
type Version struct {
	Version      uint8
	Manufacturer uint16
	Subversion   uint16
}

// maxFeaturePage is the highest LMP feature page the host reads.
const maxFeaturePage = 2

// FeaturePages holds LMP feature pages 0 through 2.
type FeaturePages struct {
	pages    [maxFeaturePage + 1]uint64
	known    [maxFeaturePage + 1]bool
	lastPage uint8
}

// SetPage records the feature bits of page. Pages above 2 are ignored.
func (f *FeaturePages) SetPage(page uint8, bits uint64) {
	if page > maxFeaturePage {
		return
	}
	f.pages[page] = bits
	f.known[page] = true
}

func (f FeaturePages) Page(page uint8) (uint64, bool) {
	if page > maxFeaturePage {
		return 0, false
	}
	return f.pages[page], f.known[page]
}

func (f FeaturePages) HasPage(page uint8) bool {
	_, ok := f.Page(page)
	return ok
}

// HasBit reports whether bit is set on a known page.
func (f FeaturePages) HasBit(page uint8, bit uint) bool {
	bits, ok := f.Page(page)
	return ok && bits&(1<<bit) != 0
}

// SetLastPageNumber records the maximum page reported by the peer, capped at 2.
func (f *FeaturePages) SetLastPageNumber(n uint8) {
	if n > maxFeaturePage {
		n = maxFeaturePage
	}
	f.lastPage = n
}

func (f FeaturePages) LastPageNumber() uint8 {
	return f.lastPage
}

type token struct {
	release func()
}

// Release drops the claim. Calling it more than once has no effect.
func (t *token) Release() {
	if t == nil || t.release == nil {
		return
	}
	f := t.release
	t.release = nil
	f()
}

// InitializingConnectionToken keeps a transport in the Initializing state
// until released.
type InitializingConnectionToken struct{ token }

// ConnectionToken keeps a transport in the Connected state until released.
type ConnectionToken struct{ token }

type connectionCounts struct {
	initializing int
	connected    int
}

func (c connectionCounts) state() ConnectionState {
	switch {
	case c.connected > 0:
		return Connected
	case c.initializing > 0:
		return Initializing
	}
	return NotConnected
}

type peerHooks struct {
	updated  func(p *Peer)
	dualMode func(p *Peer)
}

type peerName struct {
	value  string
	source NameSource
}

// Peer is a remote device known to the PeerCache. Peers are owned by the
// cache; other components keep the PeerID and look the peer up again.
type Peer struct {
	id            bthost.PeerID
	address       bthost.DeviceAddress
	identityKnown bool
	temporary     bool
	technology    Technology
	connectable   bool
	name          *peerName
	version       *Version
	features      FeaturePages
	rssi          int8
	lastUpdated   time.Time

	le    *LowEnergyData
	bredr *BrEdrData

	hooks  peerHooks
	now    func() time.Time
	logger bthost.Logger
}

func newPeer(id bthost.PeerID, addr bthost.DeviceAddress, connectable bool, hooks peerHooks, now func() time.Time) *Peer {
	p := &Peer{
		id:            id,
		address:       addr,
		identityKnown: addr.IsPublic() || addr.IsStaticRandom(),
		temporary:     true,
		connectable:   connectable,
		rssi:          RSSIInvalid,
		hooks:         hooks,
		now:           now,
		lastUpdated:   now(),
		logger:        bthost.ComponentLogger("gap-peer").ChildLogger(map[string]interface{}{"peer": id.String()}),
	}
	if addr.IsBrEdr() {
		p.technology = TechnologyClassic
		p.bredr = newBrEdrData(p)
	} else {
		p.technology = TechnologyLowEnergy
		p.le = newLowEnergyData(p)
	}
	return p
}

func (p *Peer) String() string {
	return fmt.Sprintf("%v (%v)", p.id, p.address)
}

func (p *Peer) ID() bthost.PeerID             { return p.id }
func (p *Peer) Address() bthost.DeviceAddress { return p.address }
func (p *Peer) IdentityKnown() bool           { return p.identityKnown }
func (p *Peer) Technology() Technology        { return p.technology }
func (p *Peer) Connectable() bool             { return p.connectable }
func (p *Peer) RSSI() int8                    { return p.rssi }
func (p *Peer) LastUpdated() time.Time        { return p.lastUpdated }
func (p *Peer) Features() FeaturePages        { return p.features }
func (p *Peer) LE() *LowEnergyData            { return p.le }
func (p *Peer) BrEdr() *BrEdrData             { return p.bredr }

// Name returns the best name seen so far.
func (p *Peer) Name() (string, bool) {
	if p.name == nil {
		return "", false
	}
	return p.name.value, true
}

// NameSource returns where the current name came from.
func (p *Peer) NameSource() NameSource {
	if p.name == nil {
		return NameSourceUnknown
	}
	return p.name.source
}

// RegisterName replaces the name unless the current one came from a higher
// ranked source. It reports whether the name changed.
func (p *Peer) RegisterName(name string, source NameSource) bool {
	if !p.registerName(name, source) {
		return false
	}
	p.notify()
	return true
}

func (p *Peer) registerName(name string, source NameSource) bool {
	if p.name != nil && (source < p.name.source || *p.name == (peerName{name, source})) {
		return false
	}
	p.name = &peerName{value: name, source: source}
	return true
}

func (p *Peer) Version() (Version, bool) {
	if p.version == nil {
		return Version{}, false
	}
	return *p.version, true
}

func (p *Peer) SetVersion(v Version) {
	p.version = &v
	p.notify()
}

func (p *Peer) SetFeaturePage(page uint8, bits uint64) {
	p.features.SetPage(page, bits)
	p.notify()
}

func (p *Peer) SetLastPageNumber(n uint8) {
	p.features.SetLastPageNumber(n)
}

func (p *Peer) SetConnectable(connectable bool) {
	if p.connectable == connectable {
		return
	}
	p.connectable = connectable
	p.notify()
}

func (p *Peer) SetRSSI(rssi int8) {
	p.rssi = rssi
	p.notify()
}

// MutLE returns the LE record, creating it if needed. A classic peer becomes
// dual-mode.
func (p *Peer) MutLE() *LowEnergyData {
	if p.le == nil {
		p.le = newLowEnergyData(p)
		p.becomeDualMode()
	}
	return p.le
}

// MutBrEdr returns the BR/EDR record, creating it if needed. An LE peer
// becomes dual-mode.
func (p *Peer) MutBrEdr() *BrEdrData {
	if p.bredr == nil {
		p.bredr = newBrEdrData(p)
		p.becomeDualMode()
	}
	return p.bredr
}

func (p *Peer) becomeDualMode() {
	if p.technology == TechnologyDualMode {
		return
	}
	p.technology = TechnologyDualMode
	p.logger.Infof("became dual-mode")
	if p.hooks.dualMode != nil {
		p.hooks.dualMode(p)
	}
	p.notify()
}

// Bonded reports whether a bond exists on either transport.
func (p *Peer) Bonded() bool {
	return (p.le != nil && p.le.Bonded()) || (p.bredr != nil && p.bredr.Bonded())
}

// Connected reports whether either transport is initializing or connected.
func (p *Peer) Connected() bool {
	return (p.le != nil && p.le.ConnectionState() != NotConnected) ||
		(p.bredr != nil && p.bredr.ConnectionState() != NotConnected)
}

// Temporary peers have never been connected or bonded, or were
// disconnected while unbonded with no known LE identity. The cache expires
// them after CacheTimeout without updates.
func (p *Peer) Temporary() bool {
	return p.temporary
}

// makeNonTemporary is called when a transport starts connecting or a bond
// is stored.
func (p *Peer) makeNonTemporary() {
	if !p.temporary {
		return
	}
	p.temporary = false
	p.logger.Debugf("no longer temporary")
}

// onDisconnected makes the peer temporary again unless something still
// identifies it across connections.
func (p *Peer) onDisconnected() {
	if p.Connected() || p.Bonded() {
		return
	}
	if p.le != nil && p.identityKnown {
		return
	}
	p.temporary = true
}

// onBondsCleared makes a disconnected peer temporary again.
func (p *Peer) onBondsCleared() {
	if p.Connected() || p.Bonded() {
		return
	}
	p.temporary = true
}

func (p *Peer) setIdentity(addr bthost.DeviceAddress) {
	p.address = addr
	p.identityKnown = true
}

func (p *Peer) notify() {
	p.lastUpdated = p.now()
	if p.hooks.updated != nil {
		p.hooks.updated(p)
	}
}

func (p *Peer) register(c *connectionCounts, connected bool) func() {
	prev := c.state()
	if connected {
		c.connected++
	} else {
		c.initializing++
	}
	p.connectionStateChanged(prev, c.state())

	return func() {
		prev := c.state()
		if connected {
			c.connected--
		} else {
			c.initializing--
		}
		p.connectionStateChanged(prev, c.state())
	}
}

func (p *Peer) connectionStateChanged(prev, cur ConnectionState) {
	if prev == cur {
		return
	}
	p.logger.Debugf("connection state %v -> %v", prev, cur)
	if cur != NotConnected {
		p.makeNonTemporary()
	} else {
		p.onDisconnected()
	}
	p.notify()
}

// AutoConnectBehavior controls background reconnection to a bonded LE peer.
type AutoConnectBehavior int

const (
	AutoConnectAlways AutoConnectBehavior = iota
	AutoConnectSkipUntilNextConnection
)

// LowEnergyData is the LE part of a peer.
type LowEnergyData struct {
	peer   *Peer
	counts connectionCounts

	advData   []byte
	parsedAdv *parser.Data
	advTime   time.Time

	preferredParams *hci.LEPreferredConnectionParameters
	connParams      *hci.LEConnectionParameters
	features        *uint64
	bond            *sm.PairingData
	autoConnect     AutoConnectBehavior
	services        map[uuid.UUID]struct{}
}

func newLowEnergyData(p *Peer) *LowEnergyData {
	return &LowEnergyData{peer: p, services: map[uuid.UUID]struct{}{}}
}

func (l *LowEnergyData) ConnectionState() ConnectionState {
	return l.counts.state()
}

func (l *LowEnergyData) Connected() bool {
	return l.ConnectionState() == Connected
}

// RegisterInitializingConnection marks the LE transport as initializing
// until the token is released.
func (l *LowEnergyData) RegisterInitializingConnection() *InitializingConnectionToken {
	return &InitializingConnectionToken{token{release: l.peer.register(&l.counts, false)}}
}

// RegisterConnection marks the LE transport as connected until the token is
// released.
func (l *LowEnergyData) RegisterConnection() *ConnectionToken {
	return &ConnectionToken{token{release: l.peer.register(&l.counts, true)}}
}

// SetAdvertisingData caches data and updates the peer name, services and
// RSSI from it. Malformed data is kept but not parsed.
func (l *LowEnergyData) SetAdvertisingData(rssi int8, data []byte, t time.Time) {
	l.advData = append([]byte(nil), data...)
	l.advTime = t
	l.peer.rssi = rssi

	parsed, err := parser.Parse(data)
	if err != nil {
		l.peer.logger.Debugf("malformed advertising data: %v", err)
		l.parsedAdv = nil
	} else {
		l.parsedAdv = parsed
		applyParsedData(l.peer, parsed, NameSourceAdvertisingDataComplete, l.services)
	}
	l.peer.notify()
}

func applyParsedData(p *Peer, d *parser.Data, complete NameSource, services map[uuid.UUID]struct{}) {
	if d.LocalName != "" {
		if d.NameComplete {
			p.registerName(d.LocalName, complete)
		} else {
			p.registerName(d.LocalName, NameSourceAdvertisingDataShortened)
		}
	}
	for _, u := range d.Services {
		services[u] = struct{}{}
	}
}

func (l *LowEnergyData) AdvertisingData() []byte             { return l.advData }
func (l *LowEnergyData) ParsedAdvertisingData() *parser.Data { return l.parsedAdv }
func (l *LowEnergyData) AdvertisingDataTimestamp() time.Time { return l.advTime }

func (l *LowEnergyData) Features() (uint64, bool) {
	if l.features == nil {
		return 0, false
	}
	return *l.features, true
}

func (l *LowEnergyData) SetFeatures(f uint64) {
	l.features = &f
	l.peer.notify()
}

func (l *LowEnergyData) PreferredConnectionParameters() (hci.LEPreferredConnectionParameters, bool) {
	if l.preferredParams == nil {
		return hci.LEPreferredConnectionParameters{}, false
	}
	return *l.preferredParams, true
}

func (l *LowEnergyData) SetPreferredConnectionParameters(p hci.LEPreferredConnectionParameters) {
	l.preferredParams = &p
}

func (l *LowEnergyData) ConnectionParameters() (hci.LEConnectionParameters, bool) {
	if l.connParams == nil {
		return hci.LEConnectionParameters{}, false
	}
	return *l.connParams, true
}

func (l *LowEnergyData) SetConnectionParameters(p hci.LEConnectionParameters) {
	l.connParams = &p
}

func (l *LowEnergyData) Bonded() bool {
	return l.bond != nil
}

// BondData returns the stored pairing data, or nil.
func (l *LowEnergyData) BondData() *sm.PairingData {
	return l.bond
}

func (l *LowEnergyData) setBondData(d sm.PairingData) {
	l.bond = &d
	l.peer.makeNonTemporary()
}

// ClearBondData forgets the LE keys.
func (l *LowEnergyData) ClearBondData() {
	if l.bond == nil {
		return
	}
	l.bond = nil
	l.peer.onBondsCleared()
	l.peer.notify()
}

// ShouldAutoConnect reports whether background reconnection is allowed.
func (l *LowEnergyData) ShouldAutoConnect() bool {
	return l.Bonded() && l.autoConnect == AutoConnectAlways
}

func (l *LowEnergyData) AutoConnectBehavior() AutoConnectBehavior {
	return l.autoConnect
}

func (l *LowEnergyData) setAutoConnectBehavior(b AutoConnectBehavior) {
	l.autoConnect = b
}

func (l *LowEnergyData) AddService(u uuid.UUID) {
	if _, ok := l.services[u]; ok {
		return
	}
	l.services[u] = struct{}{}
	l.peer.notify()
}

// Services returns the service UUIDs seen in advertising data and discovery.
func (l *LowEnergyData) Services() []uuid.UUID {
	return sortedUUIDs(l.services)
}

// BrEdrData is the BR/EDR part of a peer.
type BrEdrData struct {
	peer   *Peer
	counts connectionCounts

	deviceClass            *uint32
	pageScanRepetitionMode *uint8
	clockOffset            *uint16
	eir                    []byte
	services               map[uuid.UUID]struct{}
	linkKey                *sm.LTK
}

func newBrEdrData(p *Peer) *BrEdrData {
	return &BrEdrData{peer: p, services: map[uuid.UUID]struct{}{}}
}

func (b *BrEdrData) ConnectionState() ConnectionState {
	return b.counts.state()
}

func (b *BrEdrData) Connected() bool {
	return b.ConnectionState() == Connected
}

func (b *BrEdrData) RegisterInitializingConnection() *InitializingConnectionToken {
	return &InitializingConnectionToken{token{release: b.peer.register(&b.counts, false)}}
}

func (b *BrEdrData) RegisterConnection() *ConnectionToken {
	return &ConnectionToken{token{release: b.peer.register(&b.counts, true)}}
}

// SetInquiryData records an inquiry result. eir may be empty.
func (b *BrEdrData) SetInquiryData(psrm uint8, cod [3]byte, clockOffset uint16, rssi int8, eir []byte) {
	b.pageScanRepetitionMode = &psrm
	class := uint32(cod[0]) | uint32(cod[1])<<8 | uint32(cod[2])<<16
	b.deviceClass = &class
	offset := clockOffset & 0x7FFF
	b.clockOffset = &offset
	b.peer.rssi = rssi

	if len(eir) > 0 {
		b.eir = append([]byte(nil), eir...)
		parsed, err := parser.Parse(eir)
		if err != nil {
			b.peer.logger.Debugf("malformed extended inquiry response: %v", err)
		} else {
			applyParsedData(b.peer, parsed, NameSourceInquiryResultComplete, b.services)
		}
	}
	b.peer.notify()
}

// SetDeviceClass records the 24-bit class of device.
func (b *BrEdrData) SetDeviceClass(cod [3]byte) {
	class := uint32(cod[0]) | uint32(cod[1])<<8 | uint32(cod[2])<<16
	b.deviceClass = &class
	b.peer.notify()
}

func (b *BrEdrData) DeviceClass() (uint32, bool) {
	if b.deviceClass == nil {
		return 0, false
	}
	return *b.deviceClass, true
}

func (b *BrEdrData) PageScanRepetitionMode() (uint8, bool) {
	if b.pageScanRepetitionMode == nil {
		return 0, false
	}
	return *b.pageScanRepetitionMode, true
}

// ClockOffset returns bits 14-0 of the peer clock offset.
func (b *BrEdrData) ClockOffset() (uint16, bool) {
	if b.clockOffset == nil {
		return 0, false
	}
	return *b.clockOffset, true
}

func (b *BrEdrData) ExtendedInquiryResponse() []byte {
	return b.eir
}

func (b *BrEdrData) AddService(u uuid.UUID) {
	if _, ok := b.services[u]; ok {
		return
	}
	b.services[u] = struct{}{}
	b.peer.notify()
}

func (b *BrEdrData) Services() []uuid.UUID {
	return sortedUUIDs(b.services)
}

func (b *BrEdrData) Bonded() bool {
	return b.linkKey != nil
}

// LinkKey returns the stored link key, or nil.
func (b *BrEdrData) LinkKey() *sm.LTK {
	return b.linkKey
}

func (b *BrEdrData) setBondData(key sm.LTK) {
	b.linkKey = &key
	b.peer.makeNonTemporary()
}

// ClearBondData forgets the link key.
func (b *BrEdrData) ClearBondData() {
	if b.linkKey == nil {
		return
	}
	b.linkKey = nil
	b.peer.onBondsCleared()
	b.peer.notify()
}

func sortedUUIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
