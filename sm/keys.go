// Package sm holds the Security Manager key material shared by the LE and
// BR/EDR transports and the address cryptography built on it. The pairing
// protocol itself lives elsewhere.
package sm

import (
	"fmt"

	"github.com/rigado/bthost"
)

// SecurityLevel orders the protection offered by a key.
type SecurityLevel int

const (
	LevelNoSecurity SecurityLevel = iota
	LevelEncrypted
	LevelAuthenticated
	LevelSecureAuthenticated
)

func (l SecurityLevel) String() string {
	switch l {
	case LevelNoSecurity:
		return "no security"
	case LevelEncrypted:
		return "encrypted"
	case LevelAuthenticated:
		return "authenticated"
	case LevelSecureAuthenticated:
		return "secure authenticated"
	}
	return fmt.Sprintf("SecurityLevel(%d)", int(l))
}

// MaxEncryptionKeySize is the largest encryption key size in octets.
const MaxEncryptionKeySize = 16

// SecurityProperties describe how a key was generated.
type SecurityProperties struct {
	Encrypted         bool
	Authenticated     bool
	SecureConnections bool
	EncKeySize        int
}

// Level returns the security level the properties provide.
func (p SecurityProperties) Level() SecurityLevel {
	switch {
	case !p.Encrypted:
		return LevelNoSecurity
	case !p.Authenticated:
		return LevelEncrypted
	case p.SecureConnections:
		return LevelSecureAuthenticated
	default:
		return LevelAuthenticated
	}
}

func (p SecurityProperties) String() string {
	return fmt.Sprintf("%v (sc: %v, key size: %d)", p.Level(), p.SecureConnections, p.EncKeySize)
}

// SecurityPropertiesFromLinkKeyType maps an HCI link key type to the
// properties of the key. ok is false for debug and unknown key types.
func SecurityPropertiesFromLinkKeyType(keyType uint8) (props SecurityProperties, ok bool) {
	props = SecurityProperties{Encrypted: true, EncKeySize: MaxEncryptionKeySize}
	switch keyType {
	case 0x00, 0x01, 0x02: // combination, local unit, remote unit
	case 0x04: // unauthenticated P-192
	case 0x05: // authenticated P-192
		props.Authenticated = true
	case 0x07: // unauthenticated P-256
		props.SecureConnections = true
	case 0x08: // authenticated P-256
		props.Authenticated = true
		props.SecureConnections = true
	default:
		return SecurityProperties{}, false
	}
	return props, true
}

// Key is a 128 bit key stored least significant octet first.
type Key struct {
	Security SecurityProperties
	Value    [16]byte
}

func (k Key) String() string {
	// never log key material
	return fmt.Sprintf("Key(%v)", k.Security)
}

// LTK is a long term key with its LE identifying information. For
// BR/EDR link keys EDiv and Rand are zero.
type LTK struct {
	Key
	EDiv uint16
	Rand uint64
}

// PairingData is the outcome of pairing with a peer. Nil fields were not
// distributed.
type PairingData struct {
	IdentityAddress *bthost.DeviceAddress

	PeerLTK  *LTK
	LocalLTK *LTK
	IRK      *Key
	CSRK     *Key

	// CrossTransportKey is a BR/EDR link key derived during LE pairing.
	CrossTransportKey *LTK
}

// HasEncryptionKey reports whether the data carries an LTK or CSRK, the
// minimum for an LE bond.
func (p PairingData) HasEncryptionKey() bool {
	return p.PeerLTK != nil || p.LocalLTK != nil || p.CSRK != nil
}
