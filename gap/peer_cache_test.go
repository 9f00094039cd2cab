package gap

import (
	"testing"
	"time"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/sm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testAddrBrEdr    = bthost.MustParseDeviceAddress(bthost.AddressBREDR, "00:11:22:33:44:55")
	testAddrLEPublic = bthost.MustParseDeviceAddress(bthost.AddressLEPublic, "00:11:22:33:44:55")
	testAddrStatic   = bthost.MustParseDeviceAddress(bthost.AddressLERandom, "C6:55:44:33:22:11")
	testAddrRPA      = bthost.MustParseDeviceAddress(bthost.AddressLERandom, "4A:55:44:33:22:11")
	testAddrOther    = bthost.MustParseDeviceAddress(bthost.AddressLEPublic, "00:00:00:00:00:02")

	testIRK = [16]byte{0x9B, 0x7D, 0x39, 0x0A, 0xA6, 0x10, 0x10, 0x34, 0x05, 0xAD, 0xC8, 0x57, 0xA3, 0x34, 0x02, 0xEC}
)

func testLTK(secureConnections bool) *sm.LTK {
	return &sm.LTK{
		Key: sm.Key{
			Security: sm.SecurityProperties{
				Encrypted:         true,
				Authenticated:     true,
				SecureConnections: secureConnections,
				EncKeySize:        16,
			},
			Value: [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		},
		EDiv: 0x1234,
		Rand: 0x0102030405060708,
	}
}

func sequentialIDs() func() bthost.PeerID {
	next := bthost.PeerID(0)
	return func() bthost.PeerID {
		next++
		return next
	}
}

func newTestCache(t *testing.T) (*PeerCache, *dispatchtest.Loop) {
	loop := dispatchtest.NewLoop()
	c, err := NewPeerCache(loop, OptPeerIDGenerator(sequentialIDs()))
	require.NoError(t, err)
	return c, loop
}

func TestNewPeer(t *testing.T) {
	c, _ := newTestCache(t)

	var updated []bthost.PeerID
	c.AddPeerUpdatedCallback(func(p *Peer) { updated = append(updated, p.ID()) })

	p := c.NewPeer(testAddrLEPublic, true)
	require.NotNil(t, p)
	assert.True(t, p.Temporary())
	assert.True(t, p.IdentityKnown())
	assert.Equal(t, TechnologyLowEnergy, p.Technology())
	assert.Equal(t, []bthost.PeerID{p.ID()}, updated)
	assert.Equal(t, p, c.FindByID(p.ID()))
	assert.Equal(t, p, c.FindByAddress(testAddrLEPublic))
	assert.Equal(t, 1, c.Count())

	assert.Nil(t, c.NewPeer(testAddrLEPublic, true), "duplicate address")
	assert.Nil(t, c.NewPeer(testAddrBrEdr, true), "alias of an existing address")
}

func TestNewPeerIdentityUnknownForRPA(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrRPA, true)
	require.NotNil(t, p)
	assert.False(t, p.IdentityKnown())
}

func TestTemporaryPeerExpires(t *testing.T) {
	c, loop := newTestCache(t)

	var removed []bthost.PeerID
	c.SetPeerRemovedCallback(func(id bthost.PeerID) { removed = append(removed, id) })

	p := c.NewPeer(testAddrLEPublic, true)
	loop.RunFor(CacheTimeout - time.Second)
	require.NotNil(t, c.FindByID(p.ID()))

	loop.RunFor(time.Second)
	assert.Nil(t, c.FindByID(p.ID()))
	assert.Nil(t, c.FindByAddress(testAddrLEPublic))
	assert.Equal(t, []bthost.PeerID{p.ID()}, removed)
}

func TestUpdateReschedulesExpiry(t *testing.T) {
	c, loop := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)

	loop.RunFor(CacheTimeout - time.Second)
	p.SetRSSI(-40)
	loop.RunFor(CacheTimeout - time.Second)
	require.NotNil(t, c.FindByID(p.ID()))

	loop.RunFor(time.Second)
	assert.Nil(t, c.FindByID(p.ID()))
}

func TestConnectionTokensKeepPeer(t *testing.T) {
	c, loop := newTestCache(t)
	p := c.NewPeer(testAddrRPA, true)

	init := p.LE().RegisterInitializingConnection()
	assert.Equal(t, Initializing, p.LE().ConnectionState())
	assert.False(t, p.Temporary())

	conn := p.LE().RegisterConnection()
	assert.Equal(t, Connected, p.LE().ConnectionState())
	init.Release()
	assert.Equal(t, Connected, p.LE().ConnectionState())

	assert.False(t, c.RemoveDisconnectedPeer(p.ID()))
	loop.RunFor(2 * CacheTimeout)
	require.NotNil(t, c.FindByID(p.ID()))

	// The identity behind the RPA is unknown, so nothing ties the next
	// connection to this peer.
	conn.Release()
	conn.Release()
	assert.Equal(t, NotConnected, p.LE().ConnectionState())
	assert.True(t, p.Temporary())

	loop.RunFor(CacheTimeout)
	assert.Nil(t, c.FindByID(p.ID()))
}

func TestDisconnectedPeerWithIdentityStays(t *testing.T) {
	for _, addr := range []bthost.DeviceAddress{testAddrLEPublic, testAddrStatic} {
		c, loop := newTestCache(t)
		p := c.NewPeer(addr, true)
		require.True(t, p.IdentityKnown())

		conn := p.LE().RegisterConnection()
		conn.Release()
		assert.False(t, p.Bonded(), "%v", addr)
		assert.False(t, p.Temporary(), "%v", addr)

		loop.RunFor(2 * CacheTimeout)
		assert.NotNil(t, c.FindByID(p.ID()), "%v", addr)
	}
}

func TestFailedConnectionAttemptLeavesIdentityPeer(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)

	p.LE().RegisterInitializingConnection().Release()
	assert.False(t, p.Temporary())

	// Forgetting a peer that was never bonded makes it temporary again.
	require.True(t, c.ForgetPeer(p.ID()))
	assert.True(t, p.Temporary())
}

func TestClassicPeerTemporaryAfterDisconnect(t *testing.T) {
	c, loop := newTestCache(t)
	p := c.NewPeer(testAddrBrEdr, true)

	conn := p.BrEdr().RegisterConnection()
	assert.False(t, p.Temporary())
	conn.Release()
	assert.True(t, p.Temporary())

	loop.RunFor(CacheTimeout)
	assert.Nil(t, c.FindByID(p.ID()))
}

func TestForgetConnectedPeerStaysUntilDisconnect(t *testing.T) {
	c, loop := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)
	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false)}))

	conn := p.LE().RegisterConnection()
	require.True(t, c.ForgetPeer(p.ID()))
	assert.False(t, p.Bonded())
	assert.False(t, p.Temporary())

	// The public identity keeps the peer after the link goes away.
	conn.Release()
	assert.False(t, p.Temporary())
	loop.RunFor(2 * CacheTimeout)
	assert.NotNil(t, c.FindByID(p.ID()))
}

func TestRemoveDisconnectedPeer(t *testing.T) {
	c, _ := newTestCache(t)
	assert.True(t, c.RemoveDisconnectedPeer(bthost.PeerID(42)))

	p := c.NewPeer(testAddrBrEdr, true)
	p.MutLE()
	assert.True(t, c.RemoveDisconnectedPeer(p.ID()))
	assert.Nil(t, c.FindByAddress(testAddrBrEdr))
	assert.Nil(t, c.FindByAddress(testAddrLEPublic))
	assert.Equal(t, 0, c.Count())
}

func TestDualModeAlias(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrBrEdr, true)
	require.NotNil(t, p)

	// The alias resolves even before the peer has been seen over LE.
	assert.Equal(t, p, c.FindByAddress(testAddrLEPublic))

	p.MutLE()
	assert.Equal(t, TechnologyDualMode, p.Technology())
	assert.Equal(t, p, c.FindByAddress(testAddrLEPublic))
	assert.Equal(t, p, c.FindByAddress(testAddrBrEdr))
}

func TestStoreLowEnergyBond(t *testing.T) {
	c, loop := newTestCache(t)

	var bonded []bthost.PeerID
	c.SetPeerBondedCallback(func(p *Peer) { bonded = append(bonded, p.ID()) })

	assert.False(t, c.StoreLowEnergyBond(bthost.PeerID(42), sm.PairingData{PeerLTK: testLTK(false)}))

	p := c.NewPeer(testAddrLEPublic, true)
	assert.False(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{}), "no LTK or CSRK")
	assert.False(t, p.Bonded())

	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false)}))
	assert.True(t, p.Bonded())
	assert.False(t, p.Temporary())
	assert.Equal(t, []bthost.PeerID{p.ID()}, bonded)

	loop.RunFor(2 * CacheTimeout)
	require.NotNil(t, c.FindByID(p.ID()))

	require.True(t, c.ForgetPeer(p.ID()))
	assert.False(t, p.Bonded())
	assert.True(t, p.Temporary())
	loop.RunFor(CacheTimeout)
	assert.Nil(t, c.FindByID(p.ID()))
}

func TestStoreLowEnergyBondCSRKOnly(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)
	assert.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{CSRK: &sm.Key{Value: testIRK}}))
	assert.True(t, p.LE().Bonded())
}

func TestStoreLowEnergyBondUnknownIdentity(t *testing.T) {
	c, _ := newTestCache(t)
	bonded := 0
	c.SetPeerBondedCallback(func(*Peer) { bonded++ })

	p := c.NewPeer(testAddrRPA, true)
	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false)}))
	assert.True(t, p.Bonded())
	assert.Equal(t, 0, bonded)
}

func TestStoreLowEnergyBondIdentityCollision(t *testing.T) {
	c, _ := newTestCache(t)
	other := c.NewPeer(testAddrStatic, true)
	p := c.NewPeer(testAddrRPA, true)

	identity := testAddrStatic
	ok := c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false), IdentityAddress: &identity})
	assert.False(t, ok)
	assert.False(t, p.Bonded())
	assert.Equal(t, other, c.FindByAddress(testAddrStatic))
}

func TestStoreLowEnergyBondResolvesRPA(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrRPA, true)

	identity := testAddrStatic
	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{
		PeerLTK:         testLTK(false),
		IRK:             &sm.Key{Value: testIRK},
		IdentityAddress: &identity,
	}))
	assert.True(t, p.IdentityKnown())
	assert.Equal(t, testAddrStatic, p.Address())
	assert.Equal(t, p, c.FindByAddress(testAddrStatic))

	rpa, err := sm.GenerateRPA(testIRK)
	require.NoError(t, err)
	assert.Equal(t, p, c.FindByAddress(rpa))

	require.True(t, c.ForgetPeer(p.ID()))
	assert.Nil(t, c.FindByAddress(rpa))
}

func TestStoreLowEnergyBondDerivesLinkKey(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrBrEdr, true)
	p.MutLE()

	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(true)}))
	key := p.BrEdr().LinkKey()
	require.NotNil(t, key)
	assert.True(t, key.Security.SecureConnections)
	assert.NotEqual(t, testLTK(true).Value, key.Value)
	assert.NotNil(t, p.LE().BondData().CrossTransportKey)
}

func TestStoreLowEnergyBondNoDerivationWithoutSecureConnections(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrBrEdr, true)
	p.MutLE()

	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false)}))
	assert.Nil(t, p.BrEdr().LinkKey())
}

func TestStoreBrEdrBond(t *testing.T) {
	c, _ := newTestCache(t)
	bonded := 0
	c.SetPeerBondedCallback(func(*Peer) { bonded++ })

	assert.False(t, c.StoreBrEdrBond(testAddrBrEdr, *testLTK(false)))

	p := c.NewPeer(testAddrBrEdr, true)
	require.True(t, c.StoreBrEdrBond(testAddrBrEdr, *testLTK(false)))
	assert.True(t, p.BrEdr().Bonded())
	assert.Equal(t, testLTK(false).Value, p.BrEdr().LinkKey().Value)
	assert.Equal(t, 1, bonded)
}

func TestAddBondedPeerValidation(t *testing.T) {
	c, _ := newTestCache(t)
	rpa := testAddrRPA

	cases := []struct {
		name string
		bd   BondingData
	}{
		{"invalid id", BondingData{Address: testAddrLEPublic, LEPairingData: sm.PairingData{PeerLTK: testLTK(false)}}},
		{"no keys", BondingData{Identifier: 1, Address: testAddrLEPublic}},
		{"LE address with link key only", BondingData{Identifier: 1, Address: testAddrLEPublic, BrEdrLinkKey: testLTK(false)}},
		{"BR/EDR address with LE keys only", BondingData{Identifier: 1, Address: testAddrBrEdr, LEPairingData: sm.PairingData{PeerLTK: testLTK(false)}}},
		{"BR/EDR address without link key", BondingData{Identifier: 1, Address: testAddrBrEdr, LEPairingData: sm.PairingData{IdentityAddress: &rpa}}},
		{"RPA", BondingData{Identifier: 1, Address: testAddrRPA, LEPairingData: sm.PairingData{PeerLTK: testLTK(false)}}},
		{"link key with random address", BondingData{Identifier: 1, Address: testAddrStatic,
			LEPairingData: sm.PairingData{PeerLTK: testLTK(false)}, BrEdrLinkKey: testLTK(false)}},
	}
	for _, tc := range cases {
		assert.False(t, c.AddBondedPeer(tc.bd), tc.name)
	}
	assert.Equal(t, 0, c.Count())
}

func TestAddBondedPeerRoundTrip(t *testing.T) {
	c, loop := newTestCache(t)

	identity := testAddrLEPublic
	bd := BondingData{
		Identifier: bthost.PeerID(0xABCD),
		Address:    testAddrLEPublic,
		Name:       "speaker",
		LEPairingData: sm.PairingData{
			IdentityAddress: &identity,
			PeerLTK:         testLTK(true),
			LocalLTK:        testLTK(false),
			IRK:             &sm.Key{Value: testIRK},
			CSRK:            &sm.Key{Value: [16]byte{0xCC}},
		},
		BrEdrLinkKey:  testLTK(true),
		BrEdrServices: nil,
	}
	require.True(t, c.AddBondedPeer(bd))
	assert.False(t, c.AddBondedPeer(bd), "duplicate")

	p := c.FindByID(bd.Identifier)
	require.NotNil(t, p)
	assert.True(t, p.Bonded())
	assert.True(t, p.IdentityKnown())
	assert.False(t, p.Temporary())
	assert.Equal(t, TechnologyDualMode, p.Technology())
	assert.Equal(t, *bd.LEPairingData.PeerLTK, *p.LE().BondData().PeerLTK)
	assert.Equal(t, *bd.LEPairingData.CSRK, *p.LE().BondData().CSRK)
	assert.Equal(t, *bd.BrEdrLinkKey, *p.BrEdr().LinkKey())
	name, ok := p.Name()
	assert.True(t, ok)
	assert.Equal(t, "speaker", name)

	assert.Equal(t, p, c.FindByAddress(testAddrBrEdr))
	rpa, err := sm.GenerateRPA(testIRK)
	require.NoError(t, err)
	assert.Equal(t, p, c.FindByAddress(rpa))
	assert.Equal(t, 0, loop.PendingCount(), "bonded peers never expire")

	out, ok := c.BondingDataFor(bd.Identifier)
	require.True(t, ok)
	assert.Equal(t, bd.Identifier, out.Identifier)
	assert.Equal(t, bd.Address, out.Address)
	assert.Equal(t, bd.Name, out.Name)
	assert.Equal(t, bd.LEPairingData, out.LEPairingData)
	assert.Equal(t, *bd.BrEdrLinkKey, *out.BrEdrLinkKey)
}

func TestBondingDataForClassicBondOfLEPeer(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)
	require.True(t, c.StoreBrEdrBond(testAddrBrEdr, *testLTK(false)))

	bd, ok := c.BondingDataFor(p.ID())
	require.True(t, ok)
	assert.Equal(t, testAddrBrEdr, bd.Address)

	c2, _ := newTestCache(t)
	assert.True(t, c2.AddBondedPeer(bd))
}

func TestBondingDataForUnbonded(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrOther, true)
	_, ok := c.BondingDataFor(p.ID())
	assert.False(t, ok)
}

func TestAutoConnectBehavior(t *testing.T) {
	c, _ := newTestCache(t)
	p := c.NewPeer(testAddrLEPublic, true)
	require.True(t, c.StoreLowEnergyBond(p.ID(), sm.PairingData{PeerLTK: testLTK(false)}))
	assert.True(t, p.LE().ShouldAutoConnect())

	require.True(t, c.SetAutoConnectBehaviorForIntentionalDisconnect(p.ID()))
	assert.False(t, p.LE().ShouldAutoConnect())

	require.True(t, c.SetAutoConnectBehaviorForSuccessfulConnection(p.ID()))
	assert.True(t, p.LE().ShouldAutoConnect())

	assert.False(t, c.SetAutoConnectBehaviorForIntentionalDisconnect(bthost.PeerID(99)))
}

func TestRemovePeerUpdatedCallback(t *testing.T) {
	c, _ := newTestCache(t)
	calls := 0
	id := c.AddPeerUpdatedCallback(func(*Peer) { calls++ })
	c.NewPeer(testAddrLEPublic, true)
	require.True(t, c.RemovePeerUpdatedCallback(id))
	assert.False(t, c.RemovePeerUpdatedCallback(id))
	c.NewPeer(testAddrOther, true)
	assert.Equal(t, 1, calls)
}

func TestForEach(t *testing.T) {
	c, _ := newTestCache(t)
	c.NewPeer(testAddrOther, true)
	c.NewPeer(testAddrBrEdr, true)

	var ids []bthost.PeerID
	c.ForEach(func(p *Peer) { ids = append(ids, p.ID()) })
	assert.Equal(t, []bthost.PeerID{1, 2}, ids)
}

func TestAddBondedPeerDualModeByBrEdrAddress(t *testing.T) {
	c, loop := newTestCache(t)

	bd := BondingData{
		Identifier: bthost.PeerID(0x77),
		Address:    testAddrBrEdr,
		LEPairingData: sm.PairingData{
			PeerLTK: testLTK(true),
			IRK:     &sm.Key{Value: testIRK},
		},
		BrEdrLinkKey: testLTK(true),
	}
	require.True(t, c.AddBondedPeer(bd))

	p := c.FindByID(bd.Identifier)
	require.NotNil(t, p)
	assert.Equal(t, TechnologyDualMode, p.Technology())
	assert.True(t, p.LE().Bonded())
	assert.True(t, p.BrEdr().Bonded())
	assert.False(t, p.Temporary())
	require.NotNil(t, p.LE().BondData().IdentityAddress)
	assert.Equal(t, testAddrLEPublic, *p.LE().BondData().IdentityAddress)

	assert.Equal(t, p, c.FindByAddress(testAddrBrEdr))
	assert.Equal(t, p, c.FindByAddress(testAddrLEPublic))
	rpa, err := sm.GenerateRPA(testIRK)
	require.NoError(t, err)
	assert.Equal(t, p, c.FindByAddress(rpa))
	assert.Equal(t, 0, loop.PendingCount())

	require.True(t, c.ForgetPeer(p.ID()))
	assert.Nil(t, c.FindByAddress(rpa))
}
