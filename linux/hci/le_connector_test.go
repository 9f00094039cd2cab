package hci_test

import (
	"testing"
	"time"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/hcitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPeer  = bthost.MustParseDeviceAddress(bthost.AddressLEPublic, "00:00:00:00:00:01")
	testLocal = bthost.MustParseDeviceAddress(bthost.AddressLERandom, "C0:11:22:33:44:55")
)

type fixedAddress struct {
	addr  bthost.DeviceAddress
	calls int
}

func (f *fixedAddress) EnsureLocalAddress(cb func(bthost.DeviceAddress)) {
	f.calls++
	cb(f.addr)
}

var defaultParams = hci.LEPreferredConnectionParameters{
	IntervalMin:        0x0018,
	IntervalMax:        0x0028,
	SupervisionTimeout: 0x01F4,
}

func leConnectionComplete(status uint8, handle uint16, role hci.Role, peer bthost.DeviceAddress) []byte {
	return hcitest.Join(
		[]byte{status},
		hcitest.Handle(handle),
		[]byte{uint8(role), hci.LEAddressType(peer)},
		peer.Value[:],
		[]byte{0x18, 0x00, 0x00, 0x00, 0xF4, 0x01, 0x00},
	)
}

type connectorFixture struct {
	loop     *dispatchtest.Loop
	ch       *hcitest.FakeChannel
	conn     *hci.LowEnergyConnector
	incoming []*hci.Connection

	results []error
	conns   []*hci.Connection
}

func newConnectorFixture() *connectorFixture {
	f := &connectorFixture{loop: dispatchtest.NewLoop(), ch: hcitest.New()}
	f.conn = hci.NewLowEnergyConnector(f.ch, f.loop, &fixedAddress{addr: testLocal}, func(c *hci.Connection) {
		f.incoming = append(f.incoming, c)
	})
	return f
}

func (f *connectorFixture) connect(timeout time.Duration) bool {
	return f.conn.CreateConnection(false, testPeer, 0x0060, 0x0030, defaultParams, func(err error, c *hci.Connection) {
		f.results = append(f.results, err)
		f.conns = append(f.conns, c)
	}, timeout)
}

func TestLowEnergyConnectorSuccess(t *testing.T) {
	f := newConnectorFixture()
	require.True(t, f.connect(20*time.Second))
	assert.True(t, f.conn.RequestPending())
	assert.False(t, f.connect(20*time.Second), "second request while pending")

	tx := f.ch.Pending(0x200D)
	require.NotNil(t, tx)
	cc := tx.Command.(*cmd.LECreateConnection)
	assert.Equal(t, testPeer.Value, cc.PeerAddress)
	assert.EqualValues(t, hci.AddressTypeRandom, cc.OwnAddressType)
	f.ch.Status(tx, 0x00)

	f.ch.Inject(hci.LEConnectionCompleteCode, leConnectionComplete(0x00, 0x0040, hci.RoleCentral, testPeer)...)
	require.Len(t, f.results, 1)
	assert.NoError(t, f.results[0])
	require.NotNil(t, f.conns[0])
	assert.EqualValues(t, 0x0040, f.conns[0].Handle())
	assert.Equal(t, testLocal, f.conns[0].LocalAddress())
	assert.EqualValues(t, 0x0018, f.conns[0].LEParameters().Interval)
	assert.False(t, f.conn.RequestPending())

	// The timeout no longer fires.
	f.loop.RunFor(30 * time.Second)
	assert.Nil(t, f.ch.Pending(0x200E))
	assert.Len(t, f.results, 1)
}

func TestLowEnergyConnectorCommandStatusError(t *testing.T) {
	f := newConnectorFixture()
	require.True(t, f.connect(20*time.Second))
	f.ch.Status(f.ch.Pending(0x200D), uint8(hci.ErrDisallowed))

	require.Len(t, f.results, 1)
	assert.True(t, hci.IsStatus(f.results[0], hci.ErrDisallowed))
	assert.False(t, f.conn.RequestPending())
}

func TestLowEnergyConnectorTimeout(t *testing.T) {
	f := newConnectorFixture()
	require.True(t, f.connect(20*time.Second))
	f.ch.Status(f.ch.Pending(0x200D), 0x00)

	f.loop.RunFor(20 * time.Second)
	cancel := f.ch.Pending(0x200E)
	require.NotNil(t, cancel)
	f.ch.CommandComplete(cancel, 0x00)
	assert.Empty(t, f.results)

	f.ch.Inject(hci.LEConnectionCompleteCode,
		leConnectionComplete(uint8(hci.ErrConnID), 0x0000, hci.RoleCentral, testPeer)...)
	require.Len(t, f.results, 1)
	assert.Equal(t, bthost.ErrTimedOut, f.results[0])
}

func TestLowEnergyConnectorCancel(t *testing.T) {
	f := newConnectorFixture()
	require.True(t, f.connect(20*time.Second))
	f.ch.Status(f.ch.Pending(0x200D), 0x00)

	f.conn.Cancel()
	f.conn.Cancel()
	require.Len(t, f.ch.Find(0x200E), 1)
	f.ch.CommandComplete(f.ch.Pending(0x200E), 0x00)
	f.ch.Inject(hci.LEConnectionCompleteCode,
		leConnectionComplete(uint8(hci.ErrConnID), 0x0000, hci.RoleCentral, testPeer)...)

	require.Len(t, f.results, 1)
	assert.True(t, bthost.IsCanceled(f.results[0]))
}

func TestLowEnergyConnectorCancelLosesRace(t *testing.T) {
	f := newConnectorFixture()
	require.True(t, f.connect(20*time.Second))
	f.ch.Status(f.ch.Pending(0x200D), 0x00)

	f.conn.Cancel()
	f.ch.CommandComplete(f.ch.Pending(0x200E), uint8(hci.ErrDisallowed))
	f.ch.Inject(hci.LEConnectionCompleteCode, leConnectionComplete(0x00, 0x0041, hci.RoleCentral, testPeer)...)

	require.Len(t, f.results, 1)
	assert.True(t, bthost.IsCanceled(f.results[0]))
	assert.Nil(t, f.conns[0])

	disc := f.ch.Pending(0x0406)
	require.NotNil(t, disc, "link disconnected")
	assert.EqualValues(t, 0x0041, disc.Command.(*cmd.Disconnect).ConnectionHandle)
}

func TestLowEnergyConnectorIncoming(t *testing.T) {
	f := newConnectorFixture()
	f.ch.Inject(hci.LEConnectionCompleteCode, leConnectionComplete(0x00, 0x0042, hci.RolePeripheral, testPeer)...)

	require.Len(t, f.incoming, 1)
	assert.Equal(t, testPeer, f.incoming[0].PeerAddress())
	assert.Equal(t, hci.RolePeripheral, f.incoming[0].Role())
	assert.Empty(t, f.results)
}

func TestLowEnergyConnectorClose(t *testing.T) {
	f := newConnectorFixture()
	f.conn.Close()
	assert.Zero(t, f.ch.HandlerCount(hci.LEConnectionCompleteCode))
	assert.Zero(t, f.ch.HandlerCount(hci.LEEnhancedConnectionCompleteCode))
}
