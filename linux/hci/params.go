package hci

import (
	"fmt"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci/cmd"
)

const (
	LEScanIntervalMin = 0x0004
	LEScanIntervalMax = 0x4000
	LEScanWindowMin   = 0x0004
	LEScanWindowMax   = 0x4000

	ConnIntervalMin = 0x0006
	ConnIntervalMax = 0x0c80
	ConnLatencyMin  = 0x0000
	ConnLatencyMax  = 0x01f3

	SupervisionTimeoutMin = 0x000a
	SupervisionTimeoutMax = 0x0c80

	CELengthMin = 0x0000
	CELengthMax = 0xffff
)

// DefaultScanParams returns passive scanning parameters using the given
// interval and window.
func DefaultScanParams(active bool, interval, window uint16) cmd.LESetScanParameters {
	p := cmd.LESetScanParameters{
		LEScanType:           LEScanTypePassive,
		LEScanInterval:       interval, // 0x0004 - 0x4000; N * 0.625msec
		LEScanWindow:         window,   // 0x0004 - 0x4000; N * 0.625msec
		OwnAddressType:       AddressTypePublic,
		ScanningFilterPolicy: FilterPolicyAcceptAll,
	}
	if active {
		p.LEScanType = LEScanTypeActive
	}
	return p
}

// CreateConnectionParams builds an LE Create Connection command.
func CreateConnectionParams(useAcceptList bool, peer bthost.DeviceAddress, ownAddressType uint8,
	scanInterval, scanWindow uint16, cp LEPreferredConnectionParameters) cmd.LECreateConnection {
	p := cmd.LECreateConnection{
		LEScanInterval:        scanInterval, // 0x0004 - 0x4000; N * 0.625 msec
		LEScanWindow:          scanWindow,   // 0x0004 - 0x4000; N * 0.625 msec
		InitiatorFilterPolicy: FilterPolicyAcceptAll,
		PeerAddressType:       LEAddressType(peer),
		PeerAddress:           peer.Value,
		OwnAddressType:        ownAddressType,
		ConnIntervalMin:       cp.IntervalMin,        // 0x0006 - 0x0C80; N * 1.25 msec
		ConnIntervalMax:       cp.IntervalMax,        // 0x0006 - 0x0C80; N * 1.25 msec
		ConnLatency:           cp.Latency,            // 0x0000 - 0x01F3
		SupervisionTimeout:    cp.SupervisionTimeout, // 0x000A - 0x0C80; N * 10 msec
		MinimumCELength:       0x0000,
		MaximumCELength:       0x0000,
	}
	if useAcceptList {
		p.InitiatorFilterPolicy = FilterPolicyAcceptWhitelist
	}
	return p
}

func ValidateScanParams(p cmd.LESetScanParameters) error {
	switch {
	case p.LEScanType != LEScanTypeActive && p.LEScanType != LEScanTypePassive:
		return fmt.Errorf("invalid LEScanType %v", p.LEScanType)

	case p.LEScanInterval < LEScanIntervalMin || p.LEScanInterval > LEScanIntervalMax:
		return fmt.Errorf("invalid LEScanInterval %v", p.LEScanInterval)

	case p.LEScanWindow < LEScanWindowMin || p.LEScanWindow > LEScanWindowMax:
		return fmt.Errorf("invalid LEScanWindow %v", p.LEScanWindow)

	case p.LEScanWindow > p.LEScanInterval:
		return fmt.Errorf("LEScanWindow %v > LEScanInterval %v", p.LEScanWindow, p.LEScanInterval)

	case p.OwnAddressType != AddressTypePublic && p.OwnAddressType != AddressTypeRandom:
		// this probably is filled later
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.ScanningFilterPolicy != FilterPolicyAcceptAll && p.ScanningFilterPolicy != FilterPolicyAcceptWhitelist:
		return fmt.Errorf("invalid ScanningFilterPolicy %v", p.ScanningFilterPolicy)
	}

	return nil
}

func ValidateConnParams(p cmd.LECreateConnection) error {

	/* The Supervision_Timeout in milliseconds shall be larger than
	(1 + Conn_Latency) * Conn_Interval_Max * 2, where Conn_Interval_Max is
	given in milliseconds.
	*/
	minStoMs := (1 + float64(p.ConnLatency)) * (float64(p.ConnIntervalMax) * 1.25) * 2
	stoMs := float64(p.SupervisionTimeout) * 10

	//note: cannot calculate valid connSlaveLatency range since we do not have connInterval

	switch {
	case p.LEScanInterval < LEScanIntervalMin || p.LEScanInterval > LEScanIntervalMax:
		return fmt.Errorf("invalid LEScanInterval %v", p.LEScanInterval)

	case p.LEScanWindow < LEScanWindowMin || p.LEScanWindow > LEScanWindowMax:
		return fmt.Errorf("invalid LEScanWindow %v", p.LEScanWindow)

	case p.LEScanWindow > p.LEScanInterval:
		return fmt.Errorf("LEScanWindow %v > LEScanInterval %v", p.LEScanWindow, p.LEScanInterval)

	case p.InitiatorFilterPolicy != FilterPolicyAcceptAll && p.InitiatorFilterPolicy != FilterPolicyAcceptWhitelist:
		return fmt.Errorf("invalid InitiatorFilterPolicy %v", p.InitiatorFilterPolicy)

	case p.OwnAddressType != AddressTypePublic && p.OwnAddressType != AddressTypeRandom:
		// this probably is filled later
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.PeerAddressType != AddressTypePublic && p.PeerAddressType != AddressTypeRandom:
		// this probably is filled later along with peer addr
		return fmt.Errorf("invalid PeerAddressType %v", p.PeerAddressType)

	case p.ConnIntervalMax < ConnIntervalMin || p.ConnIntervalMax > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMax %v", p.ConnIntervalMax)

	case p.ConnIntervalMin < ConnIntervalMin || p.ConnIntervalMin > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMin %v", p.ConnIntervalMin)

	case p.ConnIntervalMin > p.ConnIntervalMax:
		return fmt.Errorf("ConnIntervalMin %v > ConnIntervalMax %v", p.ConnIntervalMin, p.ConnIntervalMax)

	case p.ConnLatency < ConnLatencyMin || p.ConnLatency > ConnLatencyMax:
		return fmt.Errorf("invalid ConnLatency %v", p.ConnLatency)

	case p.SupervisionTimeout < SupervisionTimeoutMin || p.SupervisionTimeout > SupervisionTimeoutMax:
		return fmt.Errorf("invalid SupervisionTimeout %v", p.SupervisionTimeout)

	case stoMs < minStoMs:
		return fmt.Errorf("invalid SupervisionTimeout %v (too small)", p.SupervisionTimeout)

	case p.MinimumCELength < CELengthMin || p.MinimumCELength > CELengthMax:
		return fmt.Errorf("invalid MinimumCELength %v", p.MinimumCELength)

	case p.MaximumCELength < CELengthMin || p.MaximumCELength > CELengthMax:
		return fmt.Errorf("invalid MaximumCELength %v", p.MaximumCELength)

	case p.MinimumCELength > p.MaximumCELength:
		return fmt.Errorf("MinimumCELength %v > MaximumCELength %v", p.MinimumCELength, p.MaximumCELength)

	}

	return nil
}
