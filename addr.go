package bthost

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AddressType identifies the transport and kind of a DeviceAddress.
type AddressType uint8

const (
	AddressBREDR AddressType = iota
	AddressLEPublic
	AddressLERandom
	AddressLEAnonymous
)

func (t AddressType) String() string {
	switch t {
	case AddressBREDR:
		return "br/edr"
	case AddressLEPublic:
		return "le-public"
	case AddressLERandom:
		return "le-random"
	case AddressLEAnonymous:
		return "le-anonymous"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// DeviceAddress is a 48-bit Bluetooth device address tagged with its type.
// Value is stored least significant octet first, as carried in HCI packets.
type DeviceAddress struct {
	Type  AddressType
	Value [6]byte
}

// ParseDeviceAddress parses "aa:bb:cc:dd:ee:ff" (most significant octet first).
func ParseDeviceAddress(t AddressType, s string) (DeviceAddress, error) {
	hexStr := strings.Replace(strings.ToLower(s), ":", "", -1)
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return DeviceAddress{}, errors.Wrapf(err, "decode address %q", s)
	}
	if len(b) != 6 {
		return DeviceAddress{}, fmt.Errorf("invalid address length %d for %q", len(b), s)
	}

	a := DeviceAddress{Type: t}
	for i := 0; i < 6; i++ {
		a.Value[i] = b[5-i]
	}
	return a, nil
}

// MustParseDeviceAddress is like ParseDeviceAddress but panics on error.
func MustParseDeviceAddress(t AddressType, s string) DeviceAddress {
	a, err := ParseDeviceAddress(t, s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a DeviceAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x (%v)",
		a.Value[5], a.Value[4], a.Value[3], a.Value[2], a.Value[1], a.Value[0], a.Type)
}

// Bytes returns the address octets most significant first.
func (a DeviceAddress) Bytes() []byte {
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = a.Value[5-i]
	}
	return out
}

func (a DeviceAddress) IsBrEdr() bool {
	return a.Type == AddressBREDR
}

func (a DeviceAddress) IsLowEnergy() bool {
	return a.Type == AddressLEPublic || a.Type == AddressLERandom || a.Type == AddressLEAnonymous
}

func (a DeviceAddress) IsPublic() bool {
	return a.Type == AddressBREDR || a.Type == AddressLEPublic
}

// The two most significant bits of a random address select its subtype.
const (
	randomSubtypeMask   = 0xC0
	randomNonResolvable = 0x00
	randomResolvable    = 0x40
	randomStatic        = 0xC0
)

func (a DeviceAddress) IsResolvablePrivate() bool {
	return a.Type == AddressLERandom && a.Value[5]&randomSubtypeMask == randomResolvable
}

func (a DeviceAddress) IsNonResolvablePrivate() bool {
	return a.Type == AddressLERandom && a.Value[5]&randomSubtypeMask == randomNonResolvable
}

func (a DeviceAddress) IsStaticRandom() bool {
	return a.Type == AddressLERandom && a.Value[5]&randomSubtypeMask == randomStatic
}

// Alias returns the address a dual-mode device uses on its other transport.
// BR/EDR and LE public addresses share the same 48-bit value; every other
// address is its own alias.
func (a DeviceAddress) Alias() DeviceAddress {
	switch a.Type {
	case AddressBREDR:
		return DeviceAddress{Type: AddressLEPublic, Value: a.Value}
	case AddressLEPublic:
		return DeviceAddress{Type: AddressBREDR, Value: a.Value}
	}
	return a
}
