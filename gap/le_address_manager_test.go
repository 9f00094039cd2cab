package gap

import (
	"testing"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/hcitest"
	"github.com/rigado/bthost/sm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLocalPublic = bthost.MustParseDeviceAddress(bthost.AddressLEPublic, "AA:BB:CC:DD:EE:FF")
	opSetRandomAddr = (&cmd.LESetRandomAddress{}).OpCode()
)

type addressManagerFixture struct {
	m         *LowEnergyAddressManager
	ch        *hcitest.FakeChannel
	loop      *dispatchtest.Loop
	canUpdate bool
}

func newAddressManagerFixture() *addressManagerFixture {
	f := &addressManagerFixture{ch: hcitest.New(), loop: dispatchtest.NewLoop(), canUpdate: true}
	f.m = NewLowEnergyAddressManager(testLocalPublic, func() bool { return f.canUpdate }, f.ch, f.loop)
	return f
}

func (f *addressManagerFixture) ensure() *[]bthost.DeviceAddress {
	var got []bthost.DeviceAddress
	f.m.EnsureLocalAddress(func(a bthost.DeviceAddress) { got = append(got, a) })
	return &got
}

func TestAddressManagerPublicWithoutPrivacy(t *testing.T) {
	f := newAddressManagerFixture()
	got := f.ensure()
	assert.Equal(t, []bthost.DeviceAddress{testLocalPublic}, *got)
	assert.Empty(t, f.ch.Sent())
}

func TestAddressManagerNonResolvable(t *testing.T) {
	f := newAddressManagerFixture()
	f.m.EnablePrivacy(true)

	first := f.ensure()
	second := f.ensure()
	require.Len(t, f.ch.Find(opSetRandomAddr), 1)
	assert.Empty(t, *first)

	tx := f.ch.Pending(opSetRandomAddr)
	f.ch.CommandComplete(tx, 0x00)

	require.Len(t, *first, 1)
	require.Len(t, *second, 1)
	addr := (*first)[0]
	assert.Equal(t, addr, (*second)[0])
	assert.True(t, addr.IsNonResolvablePrivate())
	assert.Equal(t, tx.Command.(*cmd.LESetRandomAddress).RandomAddress, addr.Value)

	// Reused until it expires.
	third := f.ensure()
	assert.Equal(t, []bthost.DeviceAddress{addr}, *third)
	assert.Len(t, f.ch.Sent(), 1)

	f.loop.RunFor(PrivateAddressTimeout)
	f.ensure()
	assert.Len(t, f.ch.Find(opSetRandomAddr), 2)
}

func TestAddressManagerResolvable(t *testing.T) {
	f := newAddressManagerFixture()
	f.m.EnablePrivacy(true)
	f.m.SetIRK(testIRK)

	got := f.ensure()
	f.ch.CommandComplete(f.ch.Pending(opSetRandomAddr), 0x00)
	require.Len(t, *got, 1)
	assert.True(t, (*got)[0].IsResolvablePrivate())
	assert.True(t, sm.IrkCanResolveRpa(testIRK, (*got)[0]))
	assert.Equal(t, (*got)[0], f.m.CurrentAddress())
}

func TestAddressManagerCannotUpdate(t *testing.T) {
	f := newAddressManagerFixture()
	f.m.EnablePrivacy(true)
	f.canUpdate = false

	got := f.ensure()
	assert.Equal(t, []bthost.DeviceAddress{testLocalPublic}, *got)
	assert.Empty(t, f.ch.Sent())
}

func TestAddressManagerCommandFailure(t *testing.T) {
	f := newAddressManagerFixture()
	f.m.EnablePrivacy(true)

	got := f.ensure()
	f.ch.CommandComplete(f.ch.Pending(opSetRandomAddr), 0x0C)
	assert.Equal(t, []bthost.DeviceAddress{testLocalPublic}, *got)

	// The next call tries again.
	f.ensure()
	assert.Len(t, f.ch.Find(opSetRandomAddr), 2)
}

func TestAddressManagerDisablePrivacy(t *testing.T) {
	f := newAddressManagerFixture()
	f.m.EnablePrivacy(true)
	f.ensure()
	f.ch.CommandComplete(f.ch.Pending(opSetRandomAddr), 0x00)
	require.NotEqual(t, testLocalPublic, f.m.CurrentAddress())

	f.m.EnablePrivacy(false)
	assert.Equal(t, testLocalPublic, f.m.CurrentAddress())
	assert.Equal(t, 0, f.loop.PendingCount())
}
