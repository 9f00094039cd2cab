package gap

import (
	"sort"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/metrics"
	"github.com/rigado/bthost/sm"
)

// PeerCacheOption configures a PeerCache.
type PeerCacheOption func(*PeerCache) error

// OptPeerCacheLogger replaces the cache logger.
func OptPeerCacheLogger(l bthost.Logger) PeerCacheOption {
	return func(c *PeerCache) error {
		c.logger = l
		return nil
	}
}

// OptPeerIDGenerator replaces the random PeerID source.
func OptPeerIDGenerator(f func() bthost.PeerID) PeerCacheOption {
	return func(c *PeerCache) error {
		c.newID = f
		return nil
	}
}

// ListenerID identifies a callback added with AddPeerUpdatedCallback.
type ListenerID int

type updatedListener struct {
	id ListenerID
	fn func(p *Peer)
}

type cachedPeer struct {
	peer   *Peer
	expiry dispatch.Task
}

// PeerCache owns every known Peer, indexes them by address, and expires
// temporary peers after CacheTimeout without updates.
type PeerCache struct {
	d      dispatch.Dispatcher
	peers  map[bthost.PeerID]*cachedPeer
	byAddr map[bthost.DeviceAddress]bthost.PeerID
	irl    *IdentityResolvingList
	newID  func() bthost.PeerID

	nextListener ListenerID
	listeners    []updatedListener
	onBonded     func(p *Peer)
	onRemoved    func(id bthost.PeerID)

	logger bthost.Logger
}

func NewPeerCache(d dispatch.Dispatcher, opts ...PeerCacheOption) (*PeerCache, error) {
	c := &PeerCache{
		d:      d,
		peers:  map[bthost.PeerID]*cachedPeer{},
		byAddr: map[bthost.DeviceAddress]bthost.PeerID{},
		irl:    NewIdentityResolvingList(),
		newID:  bthost.RandomPeerID,
		logger: bthost.ComponentLogger("gap-peer-cache"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewPeer creates a temporary peer for addr. It returns nil if addr already
// belongs to a cached peer.
func (c *PeerCache) NewPeer(addr bthost.DeviceAddress, connectable bool) *Peer {
	if c.FindByAddress(addr) != nil {
		return nil
	}
	p := newPeer(c.uniqueID(), addr, connectable, c.hooks(), c.d.Now)
	c.insert(p)
	c.logger.Debugf("new peer %v", p)
	c.onPeerUpdated(p)
	return p
}

// AddBondedPeer restores a bonded peer. It fails if the keys do not match
// the address transport, the address is not an identity address, or the id
// or address is already cached.
func (c *PeerCache) AddBondedPeer(bd BondingData) bool {
	addr := bd.Address
	switch {
	case !bd.Identifier.IsValid():
		c.logger.Warnf("bonded peer has invalid id")
		return false
	case c.peers[bd.Identifier] != nil:
		c.logger.Warnf("bonded peer %v already cached", bd.Identifier)
		return false
	case c.FindByAddress(addr) != nil:
		c.logger.Warnf("bonded peer address %v already cached", addr)
		return false
	case !bd.leBond() && !bd.brEdrBond():
		c.logger.Warnf("bonded peer %v has no keys", bd.Identifier)
		return false
	case addr.IsLowEnergy() && !bd.leBond():
		c.logger.Warnf("bonded peer %v: LE address without LTK or CSRK", bd.Identifier)
		return false
	case addr.IsBrEdr() && !bd.brEdrBond():
		c.logger.Warnf("bonded peer %v: BR/EDR address without link key", bd.Identifier)
		return false
	case addr.Type == bthost.AddressLERandom && !addr.IsStaticRandom(),
		addr.Type == bthost.AddressLEAnonymous:
		c.logger.Warnf("bonded peer %v: %v is not an identity address", bd.Identifier, addr)
		return false
	case bd.brEdrBond() && !addr.IsPublic():
		c.logger.Warnf("bonded peer %v: link key needs a public address", bd.Identifier)
		return false
	}

	// Hooks are attached after the keys are in place so that restoring
	// neither notifies nor schedules expiry.
	p := newPeer(bd.Identifier, addr, true, peerHooks{}, c.d.Now)
	p.identityKnown = true
	if bd.Name != "" {
		p.registerName(bd.Name, NameSourceUnknown)
	}
	if bd.leBond() {
		data := bd.LEPairingData
		if data.IdentityAddress == nil {
			// A dual-mode bond keyed by its BR/EDR address is identified
			// over LE by the public alias.
			identity := addr
			if addr.IsBrEdr() {
				identity = addr.Alias()
			}
			data.IdentityAddress = &identity
		}
		p.MutLE().setBondData(data)
		if data.IRK != nil {
			c.irl.Add(addr, data.IRK.Value)
		}
	}
	if bd.brEdrBond() {
		br := p.MutBrEdr()
		br.setBondData(*bd.BrEdrLinkKey)
		for _, u := range bd.BrEdrServices {
			br.services[u] = struct{}{}
		}
	}
	p.hooks = c.hooks()
	c.insert(p)
	if p.technology == TechnologyDualMode {
		c.onDualMode(p)
	}
	c.logger.Infof("restored bonded peer %v", p)
	return true
}

// StoreLowEnergyBond records the result of LE pairing with peer id.
func (c *PeerCache) StoreLowEnergyBond(id bthost.PeerID, data sm.PairingData) bool {
	p := c.FindByID(id)
	if p == nil {
		c.logger.Warnf("store LE bond: peer %v not found", id)
		return false
	}
	if !data.HasEncryptionKey() {
		c.logger.Warnf("store LE bond: %v: no LTK or CSRK", p)
		return false
	}

	if data.IdentityAddress != nil {
		identity := *data.IdentityAddress
		if other, ok := c.byAddr[identity]; ok && other != id {
			c.logger.Warnf("store LE bond: %v: identity %v belongs to %v", p, identity, other)
			return false
		}
		c.byAddr[identity] = id
		p.setIdentity(identity)
		if p.technology == TechnologyDualMode {
			c.onDualMode(p)
		}
	}

	if data.IRK != nil {
		if p.identityKnown {
			c.irl.Add(p.address, data.IRK.Value)
		} else {
			c.logger.Warnf("store LE bond: %v: IRK without identity address", p)
		}
	}

	if data.CrossTransportKey == nil && p.technology == TechnologyDualMode && !p.bredr.Bonded() {
		if ltk := pairingLTK(data); ltk != nil && ltk.Security.SecureConnections {
			if key, err := sm.DeriveCrossTransportKey(*ltk); err == nil {
				data.CrossTransportKey = key
			} else {
				c.logger.Warnf("store LE bond: %v: cross transport derivation failed: %v", p, err)
			}
		}
	}
	if data.CrossTransportKey != nil && p.address.IsPublic() {
		p.MutBrEdr().setBondData(*data.CrossTransportKey)
	}

	p.MutLE().setBondData(data)
	c.logger.Infof("stored LE bond for %v", p)

	if p.identityKnown {
		c.notifyBonded(p)
	} else {
		c.logger.Infof("%v bonded with unknown identity", p)
	}
	p.notify()
	return true
}

func pairingLTK(d sm.PairingData) *sm.LTK {
	if d.PeerLTK != nil {
		return d.PeerLTK
	}
	return d.LocalLTK
}

// StoreBrEdrBond records a link key for the peer at addr.
func (c *PeerCache) StoreBrEdrBond(addr bthost.DeviceAddress, key sm.LTK) bool {
	p := c.FindByAddress(addr)
	if p == nil {
		c.logger.Warnf("store BR/EDR bond: no peer for %v", addr)
		return false
	}
	p.MutBrEdr().setBondData(key)
	c.logger.Infof("stored BR/EDR bond for %v (%v)", p, key.Security)
	c.notifyBonded(p)
	p.notify()
	return true
}

// ForgetPeer clears the bonds of peer id on both transports. A
// disconnected peer becomes temporary again.
func (c *PeerCache) ForgetPeer(id bthost.PeerID) bool {
	p := c.FindByID(id)
	if p == nil {
		return false
	}
	if p.le != nil {
		p.le.bond = nil
		p.le.autoConnect = AutoConnectAlways
	}
	if p.bredr != nil {
		p.bredr.linkKey = nil
	}
	c.irl.Remove(p.address)
	p.onBondsCleared()
	c.logger.Infof("forgot bonds of %v", p)
	p.notify()
	return true
}

// FindByID returns the peer or nil.
func (c *PeerCache) FindByID(id bthost.PeerID) *Peer {
	if cp := c.peers[id]; cp != nil {
		return cp.peer
	}
	return nil
}

// FindByAddress resolves addr through the identity resolving list when it
// is an RPA, then looks up the address itself, then its BR/EDR or LE public
// alias.
func (c *PeerCache) FindByAddress(addr bthost.DeviceAddress) *Peer {
	if identity, ok := c.irl.Resolve(addr); ok {
		if p := c.findExact(identity); p != nil {
			return p
		}
	}
	if p := c.findExact(addr); p != nil {
		return p
	}
	if alias := addr.Alias(); alias != addr {
		return c.findExact(alias)
	}
	return nil
}

func (c *PeerCache) findExact(addr bthost.DeviceAddress) *Peer {
	id, ok := c.byAddr[addr]
	if !ok {
		return nil
	}
	return c.FindByID(id)
}

// RemoveDisconnectedPeer removes peer id. Unknown ids succeed; peers
// connecting or connected on any transport are kept and false is returned.
func (c *PeerCache) RemoveDisconnectedPeer(id bthost.PeerID) bool {
	cp := c.peers[id]
	if cp == nil {
		return true
	}
	if cp.peer.Connected() {
		return false
	}
	c.remove(cp, "disconnected")
	return true
}

// ForEach calls f for every peer in PeerID order.
func (c *PeerCache) ForEach(f func(p *Peer)) {
	ids := make([]bthost.PeerID, 0, len(c.peers))
	for id := range c.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if cp := c.peers[id]; cp != nil {
			f(cp.peer)
		}
	}
}

func (c *PeerCache) Count() int {
	return len(c.peers)
}

// BondingDataFor returns the persistable bond of peer id.
func (c *PeerCache) BondingDataFor(id bthost.PeerID) (BondingData, bool) {
	p := c.FindByID(id)
	if p == nil || !p.Bonded() {
		return BondingData{}, false
	}
	bd := BondingData{Identifier: id, Address: p.address}
	bd.Name, _ = p.Name()
	if p.le != nil && p.le.bond != nil {
		bd.LEPairingData = *p.le.bond
	}
	if p.bredr != nil {
		if p.bredr.linkKey != nil {
			key := *p.bredr.linkKey
			bd.BrEdrLinkKey = &key
		}
		bd.BrEdrServices = p.bredr.Services()
	}
	// Restoring needs an address on the transport of the keys.
	switch {
	case p.address.IsLowEnergy() && !bd.leBond():
		bd.Address = p.address.Alias()
	case p.address.IsBrEdr() && bd.leBond():
		bd.Address = p.address.Alias()
	}
	return bd, true
}

// SetAutoConnectBehaviorForIntentionalDisconnect stops background
// reconnection to peer id until it connects again.
func (c *PeerCache) SetAutoConnectBehaviorForIntentionalDisconnect(id bthost.PeerID) bool {
	p := c.FindByID(id)
	if p == nil {
		return false
	}
	p.MutLE().setAutoConnectBehavior(AutoConnectSkipUntilNextConnection)
	return true
}

// SetAutoConnectBehaviorForSuccessfulConnection re-enables background
// reconnection to peer id.
func (c *PeerCache) SetAutoConnectBehaviorForSuccessfulConnection(id bthost.PeerID) bool {
	p := c.FindByID(id)
	if p == nil {
		return false
	}
	p.MutLE().setAutoConnectBehavior(AutoConnectAlways)
	return true
}

// AddPeerUpdatedCallback registers f to run synchronously whenever a peer
// is created or changes.
func (c *PeerCache) AddPeerUpdatedCallback(f func(p *Peer)) ListenerID {
	c.nextListener++
	c.listeners = append(c.listeners, updatedListener{id: c.nextListener, fn: f})
	return c.nextListener
}

func (c *PeerCache) RemovePeerUpdatedCallback(id ListenerID) bool {
	for i, l := range c.listeners {
		if l.id == id {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// SetPeerBondedCallback registers f to run when a bond is stored for a peer
// with a known identity.
func (c *PeerCache) SetPeerBondedCallback(f func(p *Peer)) {
	c.onBonded = f
}

// SetPeerRemovedCallback registers f to run after a peer leaves the cache.
func (c *PeerCache) SetPeerRemovedCallback(f func(id bthost.PeerID)) {
	c.onRemoved = f
}

func (c *PeerCache) hooks() peerHooks {
	return peerHooks{updated: c.onPeerUpdated, dualMode: c.onDualMode}
}

func (c *PeerCache) uniqueID() bthost.PeerID {
	for {
		id := c.newID()
		if _, ok := c.peers[id]; !ok && id.IsValid() {
			return id
		}
	}
}

func (c *PeerCache) insert(p *Peer) {
	c.peers[p.id] = &cachedPeer{peer: p}
	c.byAddr[p.address] = p.id
	metrics.PeersAdded.Inc()
	metrics.Peers.Set(float64(len(c.peers)))
}

func (c *PeerCache) remove(cp *cachedPeer, reason string) {
	p := cp.peer
	if cp.expiry != nil {
		cp.expiry.Cancel()
		cp.expiry = nil
	}
	for addr, id := range c.byAddr {
		if id == p.id {
			delete(c.byAddr, addr)
		}
	}
	c.irl.Remove(p.address)
	delete(c.peers, p.id)

	// Late updates from tokens still held elsewhere go nowhere.
	p.hooks = peerHooks{}

	metrics.PeersRemoved.WithLabelValues(reason).Inc()
	metrics.Peers.Set(float64(len(c.peers)))
	c.logger.Debugf("removed peer %v (%v)", p, reason)
	if c.onRemoved != nil {
		c.onRemoved(p.id)
	}
}

func (c *PeerCache) onPeerUpdated(p *Peer) {
	cp := c.peers[p.id]
	if cp == nil || cp.peer != p {
		return
	}
	c.updateExpiry(cp)

	listeners := append([]updatedListener(nil), c.listeners...)
	for _, l := range listeners {
		l.fn(p)
	}
}

func (c *PeerCache) onDualMode(p *Peer) {
	if !p.address.IsPublic() {
		return
	}
	alias := p.address.Alias()
	if other, ok := c.byAddr[alias]; ok && other != p.id {
		c.logger.Warnf("%v: alias %v already belongs to %v", p, alias, other)
		return
	}
	c.byAddr[alias] = p.id
}

func (c *PeerCache) notifyBonded(p *Peer) {
	if c.onBonded != nil {
		c.onBonded(p)
	}
}

func (c *PeerCache) updateExpiry(cp *cachedPeer) {
	if cp.expiry != nil {
		cp.expiry.Cancel()
		cp.expiry = nil
	}
	if !cp.peer.Temporary() {
		return
	}
	id := cp.peer.id
	cp.expiry = c.d.PostAfter(CacheTimeout, func() {
		cur := c.peers[id]
		if cur != cp || !cp.peer.Temporary() {
			return
		}
		cp.expiry = nil
		c.remove(cp, "expired")
	})
}
