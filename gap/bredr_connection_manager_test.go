package gap

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/hcitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	opCreateConnection       = (&cmd.CreateConnection{}).OpCode()
	opCreateConnectionCancel = (&cmd.CreateConnectionCancel{}).OpCode()
	opAcceptConnection       = (&cmd.AcceptConnectionRequest{}).OpCode()
	opRejectConnection       = (&cmd.RejectConnectionRequest{}).OpCode()
	opWritePageScanActivity  = (&cmd.WritePageScanActivity{}).OpCode()
	opWritePageScanType      = (&cmd.WritePageScanType{}).OpCode()
	opWriteScanEnable        = (&cmd.WriteScanEnable{}).OpCode()

	testLocalBrEdr  = bthost.MustParseDeviceAddress(bthost.AddressBREDR, "AA:BB:CC:DD:EE:FF")
	testAddrBrEdr2  = bthost.MustParseDeviceAddress(bthost.AddressBREDR, "00:00:00:00:00:03")
	testServiceUUID = uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb")
)

func connectionComplete(status hci.ErrCommand, handle uint16, addr bthost.DeviceAddress) []byte {
	return hcitest.Join([]byte{uint8(status)}, hcitest.Handle(handle), addr.Value[:], []byte{uint8(hci.LinkACL), 0x00})
}

func connectionRequest(addr bthost.DeviceAddress, t hci.LinkType) []byte {
	return hcitest.Join(addr.Value[:], []byte{0x0C, 0x01, 0x5A, uint8(t)})
}

type fakeChannel struct{ psm uint16 }

func (c *fakeChannel) PSM() uint16 { return c.psm }
func (c *fakeChannel) Close()      {}

type fakeL2CAP struct {
	links  map[uint16]hci.Role
	opened []uint16
}

func newFakeL2CAP() *fakeL2CAP {
	return &fakeL2CAP{links: map[uint16]hci.Role{}}
}

func (l *fakeL2CAP) AddACLConnection(handle uint16, role hci.Role) { l.links[handle] = role }
func (l *fakeL2CAP) RemoveACLConnection(handle uint16)             { delete(l.links, handle) }

func (l *fakeL2CAP) OpenChannel(handle uint16, psm uint16, cb func(ch L2capChannel)) {
	l.opened = append(l.opened, psm)
	cb(&fakeChannel{psm: psm})
}

type fakeSearch struct {
	handle     uint16
	service    uuid.UUID
	attributes []uint16
	cb         func(err error, records []ServiceRecord)
}

type fakeSDP struct {
	searches []fakeSearch
}

func (s *fakeSDP) Search(handle uint16, service uuid.UUID, attributes []uint16, cb func(err error, records []ServiceRecord)) {
	s.searches = append(s.searches, fakeSearch{handle, service, attributes, cb})
}

type connectResult struct {
	err  error
	conn *BrEdrConnection
}

type brEdrFixture struct {
	cache *PeerCache
	loop  *dispatchtest.Loop
	ch    *hcitest.FakeChannel
	l2cap *fakeL2CAP
	sdp   *fakeSDP
	m     *BrEdrConnectionManager
}

func newBrEdrFixture(t *testing.T) *brEdrFixture {
	cache, loop := newTestCache(t)
	f := &brEdrFixture{cache: cache, loop: loop, ch: hcitest.New(), l2cap: newFakeL2CAP(), sdp: &fakeSDP{}}
	m, err := NewBrEdrConnectionManager(cache, testLocalBrEdr, f.ch, loop, OptL2CAP(f.l2cap), OptServiceDiscoverer(f.sdp))
	require.NoError(t, err)
	f.m = m
	return f
}

func (f *brEdrFixture) connect(t *testing.T, p *Peer) *[]connectResult {
	var results []connectResult
	require.True(t, f.m.Connect(p.ID(), func(err error, conn *BrEdrConnection) {
		results = append(results, connectResult{err, conn})
	}))
	return &results
}

// interrogate answers every interrogation command still pending.
func (f *brEdrFixture) interrogate(t *testing.T, addr bthost.DeviceAddress) {
	if tx := f.ch.Pending(opRemoteName); tx != nil {
		f.ch.Complete(tx, remoteNameComplete(addr, "Sapphire")...)
	}
	tx := f.ch.Pending(opRemoteVersion)
	require.NotNil(t, tx)
	f.ch.Complete(tx, versionComplete()...)
	if tx := f.ch.Pending(opRemoteFeatures); tx != nil {
		f.ch.Complete(tx, featuresComplete(false)...)
	}
}

// establish runs an outbound connection to p through to the callback.
func (f *brEdrFixture) establish(t *testing.T, p *Peer) *BrEdrConnection {
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, p.Address())...)
	f.interrogate(t, p.Address())
	require.Len(t, *results, 1)
	require.NoError(t, (*results)[0].err)
	return (*results)[0].conn
}

func TestBrEdrConnect(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	p.MutBrEdr().SetInquiryData(0x02, [3]byte{}, 0x0123, -40, nil)

	results := f.connect(t, p)
	assert.Equal(t, Initializing, p.BrEdr().ConnectionState())

	tx := f.ch.Pending(opCreateConnection)
	require.NotNil(t, tx)
	cc := tx.Command.(*cmd.CreateConnection)
	assert.Equal(t, testAddrBrEdr.Value, cc.BDADDR)
	assert.EqualValues(t, 0xCC18, cc.PacketType)
	assert.EqualValues(t, 0x02, cc.PageScanRepetitionMode)
	assert.EqualValues(t, 0x8123, cc.ClockOffset)
	assert.EqualValues(t, 0x01, cc.AllowRoleSwitch)
	f.ch.Status(tx, 0x00)

	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)
	assert.Empty(t, *results, "interrogation still running")
	assert.Equal(t, Connected, p.BrEdr().ConnectionState())
	assert.Equal(t, hci.RoleCentral, f.l2cap.links[testHandle])

	f.interrogate(t, testAddrBrEdr)
	require.Len(t, *results, 1)
	require.NoError(t, (*results)[0].err)
	conn := (*results)[0].conn
	require.NotNil(t, conn)
	assert.True(t, conn.Started())
	assert.Equal(t, p.ID(), conn.PeerID())
	assert.EqualValues(t, testHandle, conn.Handle())
	assert.Equal(t, hci.RoleCentral, conn.Link().Role())
	assert.Equal(t, Connected, p.BrEdr().ConnectionState())
	assert.False(t, p.Temporary())

	// Connecting again reuses the link.
	again := f.connect(t, p)
	f.loop.RunUntilIdle()
	require.Len(t, *again, 1)
	assert.Equal(t, conn, (*again)[0].conn)
	assert.Len(t, f.ch.Find(opCreateConnection), 1)
}

func TestBrEdrConnectJoinsRequest(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	a := f.connect(t, p)
	b := f.connect(t, p)
	assert.Len(t, f.ch.Find(opCreateConnection), 1)

	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)
	f.interrogate(t, testAddrBrEdr)
	require.Len(t, *a, 1)
	require.Len(t, *b, 1)
	assert.Equal(t, (*a)[0].conn, (*b)[0].conn)
}

func TestBrEdrConnectQueuesOtherPeers(t *testing.T) {
	f := newBrEdrFixture(t)
	p1 := f.cache.NewPeer(testAddrBrEdr, true)
	p2 := f.cache.NewPeer(testAddrBrEdr2, true)
	r1 := f.connect(t, p1)
	r2 := f.connect(t, p2)
	require.Len(t, f.ch.Find(opCreateConnection), 1)

	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrConnLimit, 0x0000, testAddrBrEdr)...)
	require.Len(t, *r1, 1)
	assert.True(t, hci.IsStatus((*r1)[0].err, hci.ErrConnLimit))
	assert.Equal(t, NotConnected, p1.BrEdr().ConnectionState())
	assert.True(t, p1.Temporary())

	creates := f.ch.Find(opCreateConnection)
	require.Len(t, creates, 2)
	assert.Equal(t, testAddrBrEdr2.Value, creates[1].Command.(*cmd.CreateConnection).BDADDR)
	assert.Empty(t, *r2)
}

func TestBrEdrConnectRetriesPageTimeout(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)

	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrPageTimeout, 0x0000, testAddrBrEdr)...)
	assert.Empty(t, *results)
	require.Len(t, f.ch.Find(opCreateConnection), 2)

	f.loop.RunFor(15 * time.Second)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrPageTimeout, 0x0000, testAddrBrEdr)...)
	assert.Empty(t, *results)
	require.Len(t, f.ch.Find(opCreateConnection), 3)

	// Past the retry window the request fails.
	f.loop.RunFor(16 * time.Second)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrPageTimeout, 0x0000, testAddrBrEdr)...)
	require.Len(t, *results, 1)
	assert.True(t, hci.IsStatus((*results)[0].err, hci.ErrPageTimeout))
	assert.Len(t, f.ch.Find(opCreateConnection), 3)
}

func TestBrEdrConnectOtherErrorsNotRetried(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrAuth, 0x0000, testAddrBrEdr)...)
	require.Len(t, *results, 1)
	assert.True(t, hci.IsStatus((*results)[0].err, hci.ErrAuth))
	assert.Len(t, f.ch.Find(opCreateConnection), 1)
}

func TestBrEdrConnectTimeout(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)

	f.loop.RunFor(BrEdrCreateConnectionTimeout)
	tx := f.ch.Pending(opCreateConnectionCancel)
	require.NotNil(t, tx)
	assert.Equal(t, testAddrBrEdr.Value, tx.Command.(*cmd.CreateConnectionCancel).BDADDR)
	f.ch.CommandComplete(tx, 0x00)
	assert.Empty(t, *results)

	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrConnID, 0x0000, testAddrBrEdr)...)
	require.Len(t, *results, 1)
	assert.True(t, bthost.IsTimedOut((*results)[0].err))
}

func TestBrEdrConnectCommandStatusError(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), uint8(hci.ErrDisallowed))
	require.Len(t, *results, 1)
	assert.True(t, hci.IsStatus((*results)[0].err, hci.ErrDisallowed))
	f.loop.RunFor(BrEdrCreateConnectionTimeout)
	assert.Nil(t, f.ch.Pending(opCreateConnectionCancel), "timeout canceled")
}

func TestBrEdrConnectRejectsUnknownPeers(t *testing.T) {
	f := newBrEdrFixture(t)
	le := f.cache.NewPeer(testAddrStatic, true)
	cb := func(error, *BrEdrConnection) { t.Fatal("unexpected callback") }
	assert.False(t, f.m.Connect(bthost.PeerID(999), cb))
	assert.False(t, f.m.Connect(le.ID(), cb))
	assert.Empty(t, f.ch.Sent())
}

func TestBrEdrConnectDualModePeer(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrLEPublic, true)
	p.MutBrEdr()
	f.connect(t, p)
	tx := f.ch.Pending(opCreateConnection)
	require.NotNil(t, tx)
	assert.Equal(t, testAddrLEPublic.Value, tx.Command.(*cmd.CreateConnection).BDADDR)
}

func TestBrEdrIncomingConnection(t *testing.T) {
	f := newBrEdrFixture(t)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)

	p := f.cache.FindByAddress(testAddrBrEdr)
	require.NotNil(t, p)
	class, ok := p.BrEdr().DeviceClass()
	assert.True(t, ok)
	assert.EqualValues(t, 0x5A010C, class)
	assert.Equal(t, Initializing, p.BrEdr().ConnectionState())

	tx := f.ch.Pending(opAcceptConnection)
	require.NotNil(t, tx)
	accept := tx.Command.(*cmd.AcceptConnectionRequest)
	assert.Equal(t, testAddrBrEdr.Value, accept.BDADDR)
	assert.EqualValues(t, hci.RolePeripheral, accept.Role)
	f.ch.Status(tx, 0x00)

	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)
	f.interrogate(t, testAddrBrEdr)
	assert.Equal(t, Connected, p.BrEdr().ConnectionState())
	assert.Equal(t, hci.RolePeripheral, f.l2cap.links[testHandle])

	results := f.connect(t, p)
	f.loop.RunUntilIdle()
	require.Len(t, *results, 1)
	require.NotNil(t, (*results)[0].conn)
	assert.Equal(t, hci.RolePeripheral, (*results)[0].conn.Link().Role())
	assert.Empty(t, f.ch.Find(opCreateConnection))

	// A second request from a connected peer is refused.
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	reject := f.ch.Pending(opRejectConnection)
	require.NotNil(t, reject)
	assert.EqualValues(t, hci.ErrBDADDR, reject.Command.(*cmd.RejectConnectionRequest).Reason)
}

func TestBrEdrIncomingDuplicateRequestRejected(t *testing.T) {
	f := newBrEdrFixture(t)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	assert.Len(t, f.ch.Find(opAcceptConnection), 1)
	assert.Len(t, f.ch.Find(opRejectConnection), 1)
}

func TestBrEdrIncomingConnectionJoinsCaller(t *testing.T) {
	f := newBrEdrFixture(t)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	p := f.cache.FindByAddress(testAddrBrEdr)
	results := f.connect(t, p)
	assert.Empty(t, f.ch.Find(opCreateConnection))

	f.ch.Status(f.ch.Pending(opAcceptConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)
	f.interrogate(t, testAddrBrEdr)
	require.Len(t, *results, 1)
	assert.NoError(t, (*results)[0].err)
}

func TestBrEdrIncomingCancelsOutbound(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)

	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	require.NotNil(t, f.ch.Pending(opCreateConnectionCancel))
	require.NotNil(t, f.ch.Pending(opAcceptConnection))
	f.ch.CommandComplete(f.ch.Pending(opCreateConnectionCancel), 0x00)
	f.ch.Status(f.ch.Pending(opAcceptConnection), 0x00)

	// Our canceled attempt fails first.
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(hci.ErrConnID, 0x0000, testAddrBrEdr)...)
	assert.Empty(t, *results)

	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)
	f.interrogate(t, testAddrBrEdr)
	require.Len(t, *results, 1)
	require.NoError(t, (*results)[0].err)
	assert.Equal(t, hci.RolePeripheral, (*results)[0].conn.Link().Role())

	// The create timeout no longer fires.
	f.loop.RunFor(BrEdrCreateConnectionTimeout)
	assert.Nil(t, f.ch.Pending(opCreateConnectionCancel))
}

func TestBrEdrIgnoresSynchronousRequests(t *testing.T) {
	f := newBrEdrFixture(t)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkESCO)...)
	assert.Empty(t, f.ch.Sent())
	assert.Nil(t, f.cache.FindByAddress(testAddrBrEdr))
}

func TestBrEdrDisconnect(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	conn := f.establish(t, p)

	require.True(t, f.m.Disconnect(p.ID(), hci.ErrRemoteUser))
	disc := f.ch.Pending(opDisconnect)
	require.NotNil(t, disc)
	assert.EqualValues(t, testHandle, disc.Command.(*cmd.Disconnect).ConnectionHandle)
	assert.EqualValues(t, hci.ErrRemoteUser, disc.Command.(*cmd.Disconnect).Reason)
	assert.Equal(t, NotConnected, p.BrEdr().ConnectionState())
	assert.Empty(t, f.l2cap.links)

	var ch L2capChannel = &fakeChannel{}
	conn.OpenL2capChannel(0x0001, func(c L2capChannel) { ch = c })
	assert.Nil(t, ch)

	// The peer may not come back right away.
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	assert.Len(t, f.ch.Find(opRejectConnection), 1)
	assert.Empty(t, f.ch.Find(opAcceptConnection))

	f.loop.RunFor(LocalDisconnectCooldown)
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	assert.Len(t, f.ch.Find(opAcceptConnection), 1)

	assert.True(t, f.m.Disconnect(bthost.PeerID(999), hci.ErrRemoteUser))
}

func TestBrEdrPeerDisconnect(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	f.establish(t, p)

	f.ch.Inject(hci.DisconnectionCompleteCode, disconnectionComplete(testHandle, hci.ErrRemoteUser)...)
	assert.Equal(t, NotConnected, p.BrEdr().ConnectionState())
	assert.Empty(t, f.ch.Find(opDisconnect))

	// No cooldown for peers that left on their own.
	f.ch.Inject(hci.ConnectionRequestCode, connectionRequest(testAddrBrEdr, hci.LinkACL)...)
	assert.Len(t, f.ch.Find(opAcceptConnection), 1)
}

func TestBrEdrDisconnectDuringInterrogation(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)

	f.ch.Inject(hci.DisconnectionCompleteCode, disconnectionComplete(testHandle, hci.ErrConnTimeout)...)
	require.Len(t, *results, 1)
	assert.Equal(t, bthost.ErrLinkDisconnected, errors.Cause((*results)[0].err))
	assert.Equal(t, NotConnected, p.BrEdr().ConnectionState())

	f.loop.RunUntilIdle()
	f.interrogate(t, testAddrBrEdr)
	assert.Len(t, *results, 1)
}

func TestBrEdrInterrogationFailure(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	results := f.connect(t, p)
	f.ch.Status(f.ch.Pending(opCreateConnection), 0x00)
	f.ch.Inject(hci.ConnectionCompleteCode, connectionComplete(0x00, testHandle, testAddrBrEdr)...)

	f.ch.Status(f.ch.Pending(opRemoteVersion), uint8(hci.ErrDisallowed))
	require.Len(t, *results, 1)
	assert.True(t, hci.IsStatus((*results)[0].err, hci.ErrDisallowed))
	assert.NotNil(t, f.ch.Pending(opDisconnect))
	assert.Equal(t, NotConnected, p.BrEdr().ConnectionState())
}

func TestBrEdrConnectionQueuesChannelsUntilStart(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	link := hci.NewConnection(f.ch, testHandle, hci.LinkACL, hci.RoleCentral, testLocalBrEdr, testAddrBrEdr)
	conn, err := newBrEdrConnection(p, link, f.cache, f.ch, f.l2cap)
	require.NoError(t, err)

	var got []L2capChannel
	conn.OpenL2capChannel(0x0019, func(c L2capChannel) { got = append(got, c) })
	assert.Empty(t, got)
	assert.Empty(t, f.l2cap.opened)

	conn.Start()
	require.Len(t, got, 1)
	assert.EqualValues(t, 0x0019, got[0].PSM())
	assert.Equal(t, []uint16{0x0019}, f.l2cap.opened)

	conn.OpenL2capChannel(0x0017, func(c L2capChannel) { got = append(got, c) })
	require.Len(t, got, 2)
	assert.Panics(t, conn.Start)
}

func TestBrEdrConnectionCloseFailsQueuedChannels(t *testing.T) {
	f := newBrEdrFixture(t)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	link := hci.NewConnection(f.ch, testHandle, hci.LinkACL, hci.RoleCentral, testLocalBrEdr, testAddrBrEdr)
	conn, err := newBrEdrConnection(p, link, f.cache, f.ch, f.l2cap)
	require.NoError(t, err)
	assert.Equal(t, Connected, p.BrEdr().ConnectionState())

	called := false
	conn.OpenL2capChannel(0x0019, func(c L2capChannel) {
		called = true
		assert.Nil(t, c)
	})
	conn.Close()
	conn.Close()
	assert.True(t, called)
	assert.Empty(t, f.l2cap.opened)
	assert.Equal(t, NotConnected, p.BrEdr().ConnectionState())
}

func TestBrEdrServiceSearch(t *testing.T) {
	f := newBrEdrFixture(t)
	var found []ServiceRecord
	id := f.m.AddServiceSearch(testServiceUUID, []uint16{0x0001, 0x0004}, func(peerID bthost.PeerID, r ServiceRecord) {
		found = append(found, r)
	})
	p := f.cache.NewPeer(testAddrBrEdr, true)
	f.establish(t, p)

	require.Len(t, f.sdp.searches, 1)
	s := f.sdp.searches[0]
	assert.EqualValues(t, testHandle, s.handle)
	assert.Equal(t, testServiceUUID, s.service)
	assert.Equal(t, []uint16{0x0001, 0x0004}, s.attributes)

	record := ServiceRecord{0x0001: {0x35, 0x03, 0x19, 0x11, 0x0B}}
	s.cb(nil, []ServiceRecord{record})
	require.Len(t, found, 1)
	assert.Equal(t, record, found[0])
	assert.Equal(t, []uuid.UUID{testServiceUUID}, p.BrEdr().Services())

	assert.True(t, f.m.RemoveServiceSearch(id))
	assert.False(t, f.m.RemoveServiceSearch(id))
	s.cb(nil, []ServiceRecord{record})
	assert.Len(t, found, 1)
}

func TestBrEdrNoSearchesWithoutRegistrations(t *testing.T) {
	f := newBrEdrFixture(t)
	f.establish(t, f.cache.NewPeer(testAddrBrEdr, true))
	assert.Empty(t, f.sdp.searches)
}

func TestBrEdrSetConnectable(t *testing.T) {
	f := newBrEdrFixture(t)
	var errs []error
	f.m.SetConnectable(true, func(err error) { errs = append(errs, err) })

	tx := f.ch.Pending(opWritePageScanActivity)
	require.NotNil(t, tx)
	assert.EqualValues(t, 0x0800, tx.Command.(*cmd.WritePageScanActivity).PageScanInterval)
	f.ch.CommandComplete(tx, 0x00)
	tx = f.ch.Pending(opWritePageScanType)
	require.NotNil(t, tx)
	assert.EqualValues(t, 0x01, tx.Command.(*cmd.WritePageScanType).PageScanType)
	f.ch.CommandComplete(tx, 0x00)
	tx = f.ch.Pending(opWriteScanEnable)
	require.NotNil(t, tx)
	assert.EqualValues(t, 0x02, tx.Command.(*cmd.WriteScanEnable).ScanEnable)
	f.ch.CommandComplete(tx, 0x00)
	assert.Equal(t, []error{nil}, errs)
	assert.True(t, f.m.Connectable())

	f.m.SetConnectable(false, func(err error) { errs = append(errs, err) })
	tx = f.ch.Pending(opWriteScanEnable)
	require.NotNil(t, tx)
	assert.EqualValues(t, 0x00, tx.Command.(*cmd.WriteScanEnable).ScanEnable)
	f.ch.CommandComplete(tx, 0x00)
	assert.False(t, f.m.Connectable())
}

func TestBrEdrSetConnectableFailure(t *testing.T) {
	f := newBrEdrFixture(t)
	var got error
	f.m.SetConnectable(true, func(err error) { got = err })
	f.ch.CommandComplete(f.ch.Pending(opWritePageScanActivity), uint8(hci.ErrDisallowed))
	assert.True(t, hci.IsStatus(got, hci.ErrDisallowed))
	assert.Nil(t, f.ch.Pending(opWritePageScanType))
	assert.False(t, f.m.Connectable())
}

func TestBrEdrClose(t *testing.T) {
	f := newBrEdrFixture(t)
	p1 := f.cache.NewPeer(testAddrBrEdr, true)
	p2 := f.cache.NewPeer(testAddrBrEdr2, true)
	f.establish(t, p1)
	results := f.connect(t, p2)

	f.m.Close()
	require.Len(t, *results, 1)
	assert.Equal(t, bthost.ErrCanceled, (*results)[0].err)
	assert.Len(t, f.ch.Find(opDisconnect), 1)
	assert.Equal(t, NotConnected, p1.BrEdr().ConnectionState())
	assert.Equal(t, NotConnected, p2.BrEdr().ConnectionState())
	assert.Zero(t, f.ch.HandlerCount(hci.ConnectionCompleteCode))
	assert.Zero(t, f.ch.HandlerCount(hci.ConnectionRequestCode))
}
