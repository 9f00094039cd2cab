package gap

import (
	"testing"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/hcitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	opScanParams = (&cmd.LESetScanParameters{}).OpCode()
	opScanEnable = (&cmd.LESetScanEnable{}).OpCode()

	// flags, complete local name "belt"
	testAdvData = []byte{0x02, 0x01, 0x06, 0x05, 0x09, 'b', 'e', 'l', 't'}
)

func advertisingReport(eventType uint8, addr bthost.DeviceAddress, data []byte, rssi int8) []byte {
	return hcitest.Join(
		[]byte{0x01, eventType, hci.LEAddressType(addr)},
		addr.Value[:],
		[]byte{uint8(len(data))},
		data,
		[]byte{uint8(rssi)},
	)
}

type discoveryFixture struct {
	cache *PeerCache
	loop  *dispatchtest.Loop
	ch    *hcitest.FakeChannel
	addrs *LowEnergyAddressManager
	m     *LowEnergyDiscovery
}

func newDiscoveryFixture(t *testing.T) *discoveryFixture {
	cache, loop := newTestCache(t)
	ch := hcitest.New()
	addrs := NewLowEnergyAddressManager(testLocalPublic, func() bool { return true }, ch, loop)
	return &discoveryFixture{
		cache: cache,
		loop:  loop,
		ch:    ch,
		addrs: addrs,
		m:     NewLowEnergyDiscovery(cache, addrs, ch, loop),
	}
}

// completeScanStart answers the scan parameter and enable commands.
func (f *discoveryFixture) completeScanStart(t *testing.T) {
	tx := f.ch.Pending(opScanParams)
	require.NotNil(t, tx)
	f.ch.CommandComplete(tx, 0x00)
	tx = f.ch.Pending(opScanEnable)
	require.NotNil(t, tx)
	require.EqualValues(t, 1, tx.Command.(*cmd.LESetScanEnable).LEScanEnable)
	f.ch.CommandComplete(tx, 0x00)
}

func (f *discoveryFixture) completeScanStop(t *testing.T) {
	tx := f.ch.Pending(opScanEnable)
	require.NotNil(t, tx)
	require.EqualValues(t, 0, tx.Command.(*cmd.LESetScanEnable).LEScanEnable)
	f.ch.CommandComplete(tx, 0x00)
}

func (f *discoveryFixture) start(t *testing.T, active bool) LowEnergyDiscoverySession {
	var s LowEnergyDiscoverySession
	f.m.StartDiscovery(active, func(ls LowEnergyDiscoverySession) { s = ls })
	if !f.m.Scanning() {
		f.completeScanStart(t)
	}
	require.NotNil(t, s)
	return s
}

func TestDiscoveryCreatesPeers(t *testing.T) {
	f := newDiscoveryFixture(t)
	s := f.start(t, false)
	assert.True(t, f.m.Scanning())

	params := f.ch.Find(opScanParams)[0].Command.(*cmd.LESetScanParameters)
	assert.EqualValues(t, hci.LEScanTypePassive, params.LEScanType)
	assert.EqualValues(t, hci.AddressTypePublic, params.OwnAddressType)

	var found []*Peer
	s.SetResultCallback(func(p *Peer) { found = append(found, p) })
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrLEPublic, testAdvData, -50)...)

	require.Len(t, found, 1)
	p := found[0]
	assert.Equal(t, p, f.cache.FindByAddress(testAddrLEPublic))
	assert.True(t, p.Connectable())
	assert.EqualValues(t, -50, p.RSSI())
	name, ok := p.Name()
	assert.True(t, ok)
	assert.Equal(t, "belt", name)
	assert.Equal(t, testAdvData, p.LE().AdvertisingData())

	// A second report updates the same peer.
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrLEPublic, testAdvData, -60)...)
	require.Len(t, found, 2)
	assert.Equal(t, p, found[1])
	assert.Equal(t, 1, f.cache.Count())
}

func TestDiscoveryFilter(t *testing.T) {
	f := newDiscoveryFixture(t)
	target := f.cache.NewPeer(testAddrStatic, false)
	s := f.start(t, false)
	s.Filter().PeerID = target.ID()
	s.Filter().Connectable = true

	var found []*Peer
	s.SetResultCallback(func(p *Peer) { found = append(found, p) })

	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrLEPublic, nil, -50)...)
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advNonconnInd, testAddrStatic, nil, -50)...)
	assert.Empty(t, found)

	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrStatic, nil, -50)...)
	require.Len(t, found, 1)
	assert.Equal(t, target, found[0])
}

func TestDiscoveryScanResponse(t *testing.T) {
	f := newDiscoveryFixture(t)
	f.start(t, true)

	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advScanRsp, testAddrOther, testAdvData[3:], -50)...)
	assert.Nil(t, f.cache.FindByAddress(testAddrOther), "scan response alone")

	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrOther, testAdvData[:3], -50)...)
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advScanRsp, testAddrOther, testAdvData[3:], -50)...)
	p := f.cache.FindByAddress(testAddrOther)
	require.NotNil(t, p)
	assert.Equal(t, testAdvData, p.LE().AdvertisingData())
}

func TestDiscoveryAdvertisingCacheBounded(t *testing.T) {
	f := newDiscoveryFixture(t)
	f.start(t, true)

	var last bthost.DeviceAddress
	for i := 0; i < advCacheSize+10; i++ {
		last = bthost.DeviceAddress{Type: bthost.AddressLEPublic, Value: [6]byte{uint8(i), uint8(i >> 8), 0x30, 0x20, 0x10, 0x00}}
		f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, last, testAdvData[:3], -60)...)
	}
	assert.Equal(t, advCacheSize, f.m.advCache.Len())

	// The newest advertiser still pairs with its scan response.
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advScanRsp, last, testAdvData[3:], -60)...)
	p := f.cache.FindByAddress(last)
	require.NotNil(t, p)
	assert.Equal(t, testAdvData, p.LE().AdvertisingData())
}

func TestDiscoveryStopsWithLastSession(t *testing.T) {
	f := newDiscoveryFixture(t)
	a := f.start(t, false)
	b := f.start(t, false)
	assert.Len(t, f.ch.Find(opScanParams), 1, "second session reuses the scan")

	a.Stop()
	assert.False(t, a.Alive())
	assert.Nil(t, f.ch.Pending(opScanEnable))

	b.Stop()
	f.completeScanStop(t)
	assert.False(t, f.m.Scanning())
}

func TestDiscoveryActiveRestartsPassiveScan(t *testing.T) {
	f := newDiscoveryFixture(t)
	f.start(t, false)

	var s LowEnergyDiscoverySession
	f.m.StartDiscovery(true, func(ls LowEnergyDiscoverySession) { s = ls })
	assert.Nil(t, s)
	f.completeScanStop(t)
	f.completeScanStart(t)
	require.NotNil(t, s)

	params := f.ch.Find(opScanParams)
	require.Len(t, params, 2)
	assert.EqualValues(t, hci.LEScanTypeActive, params[1].Command.(*cmd.LESetScanParameters).LEScanType)
}

func TestDiscoveryPause(t *testing.T) {
	f := newDiscoveryFixture(t)
	s := f.start(t, false)

	pause := f.m.PauseDiscovery()
	assert.True(t, f.m.Paused())
	f.completeScanStop(t)
	assert.False(t, f.m.Scanning())
	assert.True(t, s.Alive())

	// Sessions requested while paused wait for the pause to end.
	var late LowEnergyDiscoverySession
	f.m.StartDiscovery(false, func(ls LowEnergyDiscoverySession) { late = ls })
	assert.Nil(t, late)
	assert.Nil(t, f.ch.Pending(opScanParams))

	pause.Release()
	pause.Release()
	assert.False(t, f.m.Paused())
	f.completeScanStart(t)
	assert.True(t, f.m.Scanning())
	assert.NotNil(t, late)
}

func TestDiscoveryStartFailure(t *testing.T) {
	f := newDiscoveryFixture(t)

	called := false
	var s LowEnergyDiscoverySession
	f.m.StartDiscovery(false, func(ls LowEnergyDiscoverySession) {
		called = true
		s = ls
	})
	f.ch.CommandComplete(f.ch.Pending(opScanParams), uint8(hci.ErrDisallowed))

	assert.True(t, called)
	assert.Nil(t, s)
	assert.False(t, f.m.Scanning())
	assert.Nil(t, f.ch.Pending(opScanEnable))
}

func TestDiscoveryIgnoresReportsWhenIdle(t *testing.T) {
	f := newDiscoveryFixture(t)
	f.ch.Inject(hci.LEAdvertisingReportCode, advertisingReport(advInd, testAddrLEPublic, testAdvData, -50)...)
	assert.Equal(t, 0, f.cache.Count())
}
