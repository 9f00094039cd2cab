package gap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch/dispatchtest"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/hcitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHandle = 0x0001

var (
	opRemoteName       = (&cmd.RemoteNameRequest{}).OpCode()
	opRemoteVersion    = (&cmd.ReadRemoteVersionInformation{}).OpCode()
	opRemoteFeatures   = (&cmd.ReadRemoteSupportedFeatures{}).OpCode()
	opExtendedFeatures = (&cmd.ReadRemoteExtendedFeatures{}).OpCode()
	opLERemoteFeatures = (&cmd.LEReadRemoteFeatures{}).OpCode()
)

type interrogationResults []error

func (r *interrogationResults) cb(err error) {
	*r = append(*r, err)
}

func remoteNameComplete(addr bthost.DeviceAddress, name string) []byte {
	return hcitest.Join([]byte{0x00}, addr.Value[:], []byte(name), []byte{0x00})
}

func versionComplete() []byte {
	return hcitest.Join([]byte{0x00}, hcitest.Handle(testHandle), []byte{0x09, 0x0F, 0x00, 0x34, 0x12})
}

func featuresComplete(extended bool) []byte {
	last := byte(0x00)
	if extended {
		last = 0x80
	}
	return hcitest.Join([]byte{0x00}, hcitest.Handle(testHandle), []byte{0xFF, 0, 0, 0, 0, 0, 0, last})
}

func extendedFeaturesComplete(page, max uint8) []byte {
	return hcitest.Join([]byte{0x00}, hcitest.Handle(testHandle), []byte{page, max, 0x01, 0, 0, 0, 0, 0, 0, 0})
}

type interrogatorFixture struct {
	cache *PeerCache
	loop  *dispatchtest.Loop
	ch    *hcitest.FakeChannel
}

func newInterrogatorFixture(t *testing.T) *interrogatorFixture {
	cache, loop := newTestCache(t)
	return &interrogatorFixture{cache: cache, loop: loop, ch: hcitest.New()}
}

func TestBrEdrInterrogatorReadsEverything(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	p.MutBrEdr().SetInquiryData(0x02, [3]byte{0x04, 0x04, 0x24}, 0x0123, -40, nil)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	require.Len(t, f.ch.Sent(), 3)

	name := f.ch.Pending(opRemoteName)
	require.NotNil(t, name)
	rn := name.Command.(*cmd.RemoteNameRequest)
	assert.Equal(t, uint8(0x02), rn.PageScanRepetitionMode)
	assert.Equal(t, uint16(0x8123), rn.ClockOffset)
	assert.Equal(t, []int{inquiryOpcode}, name.Exclusions)

	f.ch.Complete(name, remoteNameComplete(testAddrBrEdr, "Sapphire")...)
	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	assert.Empty(t, results)

	f.ch.Complete(f.ch.Pending(opRemoteFeatures), featuresComplete(true)...)
	require.NotNil(t, f.ch.Pending(opExtendedFeatures))
	f.ch.Complete(f.ch.Pending(opExtendedFeatures), extendedFeaturesComplete(1, 2)...)
	require.NotNil(t, f.ch.Pending(opExtendedFeatures))
	assert.Equal(t, uint8(2), f.ch.Pending(opExtendedFeatures).Command.(*cmd.ReadRemoteExtendedFeatures).PageNumber)
	f.ch.Complete(f.ch.Pending(opExtendedFeatures), extendedFeaturesComplete(2, 2)...)

	require.Equal(t, interrogationResults{nil}, results)
	n, ok := p.Name()
	assert.True(t, ok)
	assert.Equal(t, "Sapphire", n)
	assert.Equal(t, NameSourceNameDiscoveryProcedure, p.NameSource())
	v, ok := p.Version()
	assert.True(t, ok)
	assert.Equal(t, Version{Version: 0x09, Manufacturer: 0x000F, Subversion: 0x1234}, v)
	assert.True(t, p.Features().HasPage(0))
	assert.True(t, p.Features().HasPage(1))
	assert.True(t, p.Features().HasPage(2))
}

func TestBrEdrInterrogatorDefaultPageScanMode(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)

	it.Start(p.ID(), testHandle, func(error) {})
	rn := f.ch.Pending(opRemoteName).Command.(*cmd.RemoteNameRequest)
	assert.Equal(t, uint8(0x01), rn.PageScanRepetitionMode)
	assert.Equal(t, uint16(0), rn.ClockOffset)
}

func TestBrEdrInterrogatorExtendedPagesCapped(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	p.RegisterName("known", NameSourceInquiryResultComplete)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	f.ch.Complete(f.ch.Pending(opRemoteFeatures), featuresComplete(true)...)
	f.ch.Complete(f.ch.Pending(opExtendedFeatures), extendedFeaturesComplete(1, 5)...)
	f.ch.Complete(f.ch.Pending(opExtendedFeatures), extendedFeaturesComplete(2, 5)...)

	assert.Len(t, f.ch.Find(opExtendedFeatures), 2)
	assert.Empty(t, f.ch.Find(opRemoteName))
	assert.Equal(t, interrogationResults{nil}, results)
	assert.Equal(t, uint8(2), p.Features().LastPageNumber())
}

func TestBrEdrInterrogatorNoExtendedFeatures(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	p.RegisterName("known", NameSourceInquiryResultComplete)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	f.ch.Complete(f.ch.Pending(opRemoteFeatures), featuresComplete(false)...)
	assert.Empty(t, results)
	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)

	assert.Equal(t, interrogationResults{nil}, results)
	assert.Empty(t, f.ch.Find(opExtendedFeatures))
}

func TestBrEdrInterrogatorReinterrogationReadsVersionOnly(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)
	p.RegisterName("known", NameSourceInquiryResultComplete)
	p.SetFeaturePage(0, 0xFF)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	require.Len(t, f.ch.Sent(), 1)
	assert.Equal(t, opRemoteVersion, f.ch.Last().Opcode())

	f.ch.Complete(f.ch.Last(), versionComplete()...)
	assert.Equal(t, interrogationResults{nil}, results)
}

func TestInterrogatorCommandStatusError(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	f.ch.Status(f.ch.Pending(opRemoteName), uint8(hci.ErrDisallowed))
	require.Len(t, results, 1)
	assert.Equal(t, hci.ErrDisallowed, errors.Cause(results[0]))

	// Later completions are dropped.
	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	f.ch.Complete(f.ch.Pending(opRemoteFeatures), featuresComplete(false)...)
	assert.Len(t, results, 1)
	_, ok := p.Version()
	assert.False(t, ok)
}

func TestInterrogatorCompletionError(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrLEPublic, true)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	f.ch.Complete(f.ch.Pending(opRemoteVersion), hcitest.Join([]byte{uint8(hci.ErrAuth)}, hcitest.Handle(testHandle))...)

	require.Len(t, results, 1)
	assert.Equal(t, hci.ErrAuth, errors.Cause(results[0]))
}

func TestInterrogatorCancel(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewBrEdrInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrBrEdr, true)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	it.Cancel(p.ID())
	assert.Empty(t, results)

	f.loop.RunUntilIdle()
	require.Len(t, results, 1)
	assert.True(t, bthost.IsCanceled(results[0]))

	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	assert.Len(t, results, 1)

	// A new interrogation may start once the old one is canceled.
	assert.NotPanics(t, func() { it.Start(p.ID(), testHandle, results.cb) })
}

func TestInterrogatorCancelUnknownPeer(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	it.Cancel(42)
	assert.Equal(t, 0, f.loop.PendingCount())
}

func TestInterrogatorClose(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	a := f.cache.NewPeer(testAddrLEPublic, true)
	b := f.cache.NewPeer(testAddrStatic, true)

	var results interrogationResults
	it.Start(a.ID(), testHandle, results.cb)
	it.Start(b.ID(), testHandle+1, results.cb)
	it.Close()

	require.Len(t, results, 2)
	for _, err := range results {
		assert.True(t, bthost.IsCanceled(err))
	}
}

func TestInterrogatorDoubleStartPanics(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrLEPublic, true)

	it.Start(p.ID(), testHandle, func(error) {})
	assert.Panics(t, func() { it.Start(p.ID(), testHandle, func(error) {}) })
}

func TestInterrogatorUnknownPeer(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)

	var results interrogationResults
	it.Start(99, testHandle, results.cb)
	require.Len(t, results, 1)
	assert.Equal(t, bthost.ErrNotFound, errors.Cause(results[0]))
	assert.Empty(t, f.ch.Sent())
}

func TestInterrogatorPeerRemovedMidFlight(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrLEPublic, true)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	require.True(t, f.cache.RemoveDisconnectedPeer(p.ID()))

	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	require.Len(t, results, 1)
	assert.Equal(t, bthost.ErrNotFound, errors.Cause(results[0]))
}

func TestLowEnergyInterrogator(t *testing.T) {
	f := newInterrogatorFixture(t)
	it := NewLowEnergyInterrogator(f.cache, f.ch, f.loop)
	p := f.cache.NewPeer(testAddrLEPublic, true)

	var results interrogationResults
	it.Start(p.ID(), testHandle, results.cb)
	require.Len(t, f.ch.Sent(), 2)
	f.ch.Complete(f.ch.Pending(opRemoteVersion), versionComplete()...)
	f.ch.Complete(f.ch.Pending(opLERemoteFeatures),
		hcitest.Join([]byte{0x00}, hcitest.Handle(testHandle), []byte{0x01, 0, 0, 0, 0, 0, 0, 0})...)

	assert.Equal(t, interrogationResults{nil}, results)
	features, ok := p.LE().Features()
	assert.True(t, ok)
	assert.Equal(t, uint64(0x01), features)

	// Features are not read twice.
	f.ch.Reset()
	it.Start(p.ID(), testHandle, results.cb)
	require.Len(t, f.ch.Sent(), 1)
	assert.Equal(t, opRemoteVersion, f.ch.Last().Opcode())
}
