package sm

import (
	"crypto/aes"
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/sliceops"
)

// Values are kept least significant octet first, as they appear in HCI and
// SMP packets. The AES primitives take most significant first, so inputs and
// outputs are swapped around them.

// Key identifiers and salt for cross-transport key derivation
// [Vol 3, Part H, 2.4.2.5].
var (
	keyIDTmp1 = [4]byte{'1', 'p', 'm', 't'} // 0x746D7031
	keyIDLebr = [4]byte{'r', 'b', 'e', 'l'} // 0x6C656272
	saltTmp1  = [16]byte{'1', 'p', 'm', 't'}
)

// random is the entropy source, replaced in tests.
var random io.Reader = rand.Reader

func aes128(key, msg []byte) ([]byte, error) {
	c, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	c.Encrypt(out, sliceops.SwapBuf(msg))
	return sliceops.SwapBuf(out), nil
}

func aesCMAC(key, msg []byte) ([]byte, error) {
	c, err := aes.NewCipher(sliceops.SwapBuf(key))
	if err != nil {
		return nil, err
	}
	mac, err := cmac.New(c)
	if err != nil {
		return nil, err
	}
	mac.Write(sliceops.SwapBuf(msg))
	return sliceops.SwapBuf(mac.Sum(nil)), nil
}

// Ah is the random address hash function [Vol 3, Part H, 2.2.2].
func Ah(irk [16]byte, r [3]byte) [3]byte {
	var rp [16]byte
	copy(rp[:3], r[:])
	out, err := aes128(irk[:], rp[:])
	if err != nil {
		// unreachable, the key is always 16 octets
		panic(err)
	}
	var hash [3]byte
	copy(hash[:], out[:3])
	return hash
}

// IrkCanResolveRpa reports whether rpa was generated from irk.
func IrkCanResolveRpa(irk [16]byte, rpa bthost.DeviceAddress) bool {
	if !rpa.IsResolvablePrivate() {
		return false
	}
	var hash, prand [3]byte
	copy(hash[:], rpa.Value[:3])
	copy(prand[:], rpa.Value[3:])
	return Ah(irk, prand) == hash
}

func randomBytes(b []byte) error {
	_, err := io.ReadFull(random, b)
	return errors.Wrap(err, "can't read random")
}

// randomPart returns a 24 bit random value whose two most significant bits
// are set to topBits, with the remaining bits neither all zero nor all one.
func randomPart(topBits byte) ([3]byte, error) {
	var p [3]byte
	for {
		if err := randomBytes(p[:]); err != nil {
			return p, err
		}
		p[2] = p[2]&0x3F | topBits
		rest := [3]byte{p[0], p[1], p[2] & 0x3F}
		if rest != ([3]byte{}) && rest != ([3]byte{0xFF, 0xFF, 0x3F}) {
			return p, nil
		}
	}
}

// GenerateRPA returns a new resolvable private address for irk.
func GenerateRPA(irk [16]byte) (bthost.DeviceAddress, error) {
	prand, err := randomPart(0x40)
	if err != nil {
		return bthost.DeviceAddress{}, err
	}
	hash := Ah(irk, prand)

	a := bthost.DeviceAddress{Type: bthost.AddressLERandom}
	copy(a.Value[:3], hash[:])
	copy(a.Value[3:], prand[:])
	return a, nil
}

// GenerateNRPA returns a new non-resolvable private address.
func GenerateNRPA() (bthost.DeviceAddress, error) {
	a := bthost.DeviceAddress{Type: bthost.AddressLERandom}
	for {
		if err := randomBytes(a.Value[:]); err != nil {
			return a, err
		}
		a.Value[5] &= 0x3F
		rest := a.Value
		if rest != ([6]byte{}) && rest != ([6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x3F}) {
			return a, nil
		}
	}
}

// GenerateStaticRandom returns a new static random address.
func GenerateStaticRandom() (bthost.DeviceAddress, error) {
	a := bthost.DeviceAddress{Type: bthost.AddressLERandom}
	for {
		if err := randomBytes(a.Value[:]); err != nil {
			return a, err
		}
		a.Value[5] |= 0xC0
		if a.Value != ([6]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}) && a.Value != ([6]byte{0, 0, 0, 0, 0, 0xC0}) {
			return a, nil
		}
	}
}

// GenerateRandomKey returns 16 random octets.
func GenerateRandomKey() ([16]byte, error) {
	var k [16]byte
	err := randomBytes(k[:])
	return k, err
}

// RandomUint64 returns a random 64 bit value, for use as an LE Rand.
func RandomUint64() (uint64, error) {
	var b [8]byte
	if err := randomBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// H6 is the link key conversion function h6 [Vol 3, Part H, 2.2.10].
func H6(w [16]byte, keyID [4]byte) ([16]byte, error) {
	var out [16]byte
	mac, err := aesCMAC(w[:], keyID[:])
	if err != nil {
		return out, err
	}
	copy(out[:], mac)
	return out, nil
}

// H7 is the link key conversion function h7 [Vol 3, Part H, 2.2.11].
func H7(salt, w [16]byte) ([16]byte, error) {
	var out [16]byte
	mac, err := aesCMAC(salt[:], w[:])
	if err != nil {
		return out, err
	}
	copy(out[:], mac)
	return out, nil
}

// LeLtkToBrEdrLinkKey derives a BR/EDR link key from a Secure Connections
// LE LTK. useH7 selects h7 for the intermediate key, which both sides must
// support (CT2).
func LeLtkToBrEdrLinkKey(ltk [16]byte, useH7 bool) ([16]byte, error) {
	var ilk [16]byte
	var err error
	if useH7 {
		ilk, err = H7(saltTmp1, ltk)
	} else {
		ilk, err = H6(ltk, keyIDTmp1)
	}
	if err != nil {
		return ilk, errors.Wrap(err, "can't derive intermediate key")
	}
	return H6(ilk, keyIDLebr)
}

// DeriveCrossTransportKey converts an LE LTK to a BR/EDR link key with the
// same security properties. It fails for keys not generated with Secure
// Connections.
func DeriveCrossTransportKey(ltk LTK) (*LTK, error) {
	if !ltk.Security.SecureConnections {
		return nil, errors.New("cross transport key derivation needs a secure connections key")
	}
	v, err := LeLtkToBrEdrLinkKey(ltk.Value, true)
	if err != nil {
		return nil, err
	}
	return &LTK{Key: Key{Security: ltk.Security, Value: v}}, nil
}
