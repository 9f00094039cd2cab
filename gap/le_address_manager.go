package gap

import (
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/sm"
)

// LowEnergyAddressManager picks the local address for LE procedures. With
// privacy disabled it is the public identity address. Otherwise it is a
// random address, resolvable when a local IRK is set, renewed after
// PrivateAddressTimeout.
type LowEnergyAddressManager struct {
	d         dispatch.Dispatcher
	ch        hci.CommandChannel
	public    bthost.DeviceAddress
	canUpdate func() bool

	privacy      bool
	irk          *[16]byte
	random       *bthost.DeviceAddress
	needsRefresh bool
	refresh      dispatch.Task
	pending      []func(bthost.DeviceAddress)

	logger bthost.Logger
}

// NewLowEnergyAddressManager creates a manager for the controller public
// address. canUpdate reports whether the random address may be changed,
// which the controller forbids while scanning, initiating or advertising.
func NewLowEnergyAddressManager(public bthost.DeviceAddress, canUpdate func() bool,
	ch hci.CommandChannel, d dispatch.Dispatcher) *LowEnergyAddressManager {
	return &LowEnergyAddressManager{
		d:         d,
		ch:        ch,
		public:    public,
		canUpdate: canUpdate,
		logger:    bthost.ComponentLogger("gap-le-address"),
	}
}

func (m *LowEnergyAddressManager) IdentityAddress() bthost.DeviceAddress {
	return m.public
}

func (m *LowEnergyAddressManager) PrivacyEnabled() bool {
	return m.privacy
}

// CurrentAddress returns the address in use without generating one.
func (m *LowEnergyAddressManager) CurrentAddress() bthost.DeviceAddress {
	if m.privacy && m.random != nil {
		return *m.random
	}
	return m.public
}

// EnablePrivacy switches between private and public addressing. A new
// private address is generated on the next EnsureLocalAddress.
func (m *LowEnergyAddressManager) EnablePrivacy(enabled bool) {
	if enabled == m.privacy {
		return
	}
	m.privacy = enabled
	m.logger.Infof("privacy enabled: %v", enabled)
	if enabled {
		m.needsRefresh = true
		return
	}
	m.cancelRefresh()
	m.random = nil
	m.needsRefresh = false
}

// SetIRK sets the local identity resolving key. Private addresses become
// resolvable.
func (m *LowEnergyAddressManager) SetIRK(irk [16]byte) {
	if m.irk != nil && *m.irk == irk {
		return
	}
	m.irk = &irk
	m.needsRefresh = true
}

// ClearIRK falls back to non-resolvable private addresses.
func (m *LowEnergyAddressManager) ClearIRK() {
	if m.irk == nil {
		return
	}
	m.irk = nil
	m.needsRefresh = true
}

// EnsureLocalAddress calls cb with the address to use. When a new private
// address is due and the controller allows it, the address is programmed
// first. Calls made meanwhile wait for the same update.
func (m *LowEnergyAddressManager) EnsureLocalAddress(cb func(addr bthost.DeviceAddress)) {
	if !m.privacy || (m.random != nil && !m.needsRefresh) {
		cb(m.CurrentAddress())
		return
	}
	if !m.canUpdate() {
		cb(m.CurrentAddress())
		return
	}

	m.pending = append(m.pending, cb)
	if len(m.pending) > 1 {
		return
	}

	var addr bthost.DeviceAddress
	var err error
	if m.irk != nil {
		addr, err = sm.GenerateRPA(*m.irk)
	} else {
		addr, err = sm.GenerateNRPA()
	}
	if err != nil {
		m.logger.Errorf("generate private address: %v", err)
		m.resolvePending()
		return
	}

	m.ch.SendCommand(&cmd.LESetRandomAddress{RandomAddress: addr.Value}, hci.StatusCallback(func(err error) {
		if err != nil {
			m.logger.Errorf("set random address: %v", err)
		} else if m.privacy {
			m.logger.Debugf("random address now %v", addr)
			m.random = &addr
			m.needsRefresh = false
			m.scheduleRefresh()
		}
		m.resolvePending()
	}), hci.CommandCompleteCode)
}

func (m *LowEnergyAddressManager) resolvePending() {
	pending := m.pending
	m.pending = nil
	addr := m.CurrentAddress()
	for _, cb := range pending {
		cb(addr)
	}
}

func (m *LowEnergyAddressManager) scheduleRefresh() {
	m.cancelRefresh()
	m.refresh = m.d.PostAfter(PrivateAddressTimeout, func() {
		m.refresh = nil
		m.needsRefresh = true
	})
}

func (m *LowEnergyAddressManager) cancelRefresh() {
	if m.refresh != nil {
		m.refresh.Cancel()
		m.refresh = nil
	}
}
