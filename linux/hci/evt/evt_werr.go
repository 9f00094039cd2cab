package evt

import (
	"encoding/binary"
	"fmt"
)

func (e ConnectionComplete) StatusWErr() (uint8, error) { return getByte(e, 0, 0xff) }
func (e ConnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e ConnectionComplete) BDADDRWErr() ([6]byte, error) { return getAddr(e, 3) }
func (e ConnectionComplete) LinkTypeWErr() (uint8, error) { return getByte(e, 9, 0xff) }

func (e ConnectionRequest) BDADDRWErr() ([6]byte, error) { return getAddr(e, 0) }
func (e ConnectionRequest) ClassOfDeviceWErr() ([3]byte, error) {
	b, err := getBytes(e, 6, 3)
	out := [3]byte{}
	copy(out[:], b)
	return out, err
}
func (e ConnectionRequest) LinkTypeWErr() (uint8, error) { return getByte(e, 9, 0xff) }

func (e DisconnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e DisconnectionComplete) ReasonWErr() (uint8, error) { return getByte(e, 3, 0xff) }

func (e AuthenticationComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}

func (e RemoteNameRequestComplete) BDADDRWErr() ([6]byte, error) { return getAddr(e, 1) }

func (e EncryptionChange) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e EncryptionChange) EncryptionEnabledWErr() (uint8, error) { return getByte(e, 3, 0) }

func (e ReadRemoteSupportedFeaturesComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e ReadRemoteSupportedFeaturesComplete) LMPFeaturesWErr() (uint64, error) {
	return getUint64LE(e, 3, 0)
}

func (e ReadRemoteVersionInformationComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e ReadRemoteVersionInformationComplete) VersionWErr() (uint8, error) {
	return getByte(e, 3, 0)
}
func (e ReadRemoteVersionInformationComplete) ManufacturerNameWErr() (uint16, error) {
	return getUint16LE(e, 4, 0)
}
func (e ReadRemoteVersionInformationComplete) SubversionWErr() (uint16, error) {
	return getUint16LE(e, 6, 0)
}

func (e ReadRemoteExtendedFeaturesComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e ReadRemoteExtendedFeaturesComplete) PageNumberWErr() (uint8, error) {
	return getByte(e, 3, 0)
}
func (e ReadRemoteExtendedFeaturesComplete) MaxPageNumberWErr() (uint8, error) {
	return getByte(e, 4, 0)
}
func (e ReadRemoteExtendedFeaturesComplete) ExtendedLMPFeaturesWErr() (uint64, error) {
	return getUint64LE(e, 5, 0)
}

func (e LinkKeyRequest) BDADDRWErr() ([6]byte, error) { return getAddr(e, 0) }

func (e LinkKeyNotification) BDADDRWErr() ([6]byte, error) { return getAddr(e, 0) }
func (e LinkKeyNotification) LinkKeyWErr() ([16]byte, error) {
	b, err := getBytes(e, 6, 16)
	out := [16]byte{}
	copy(out[:], b)
	return out, err
}
func (e LinkKeyNotification) KeyTypeWErr() (uint8, error) { return getByte(e, 22, 0xff) }

func (e IOCapabilityRequest) BDADDRWErr() ([6]byte, error) { return getAddr(e, 0) }

func (e UserConfirmationRequest) BDADDRWErr() ([6]byte, error) { return getAddr(e, 0) }
func (e UserConfirmationRequest) NumericValueWErr() (uint32, error) {
	b, err := getBytes(e, 6, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (e SimplePairingComplete) BDADDRWErr() ([6]byte, error) { return getAddr(e, 1) }

func (e SynchronousConnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e SynchronousConnectionComplete) BDADDRWErr() ([6]byte, error) { return getAddr(e, 3) }
func (e SynchronousConnectionComplete) LinkTypeWErr() (uint8, error) { return getByte(e, 9, 0xff) }

func (e ExtendedInquiryResult) BDADDRWErr() ([6]byte, error) { return getAddr(e, 1) }
func (e ExtendedInquiryResult) PageScanRepetitionModeWErr() (uint8, error) {
	return getByte(e, 7, 0)
}
func (e ExtendedInquiryResult) ClassOfDeviceWErr() ([3]byte, error) {
	b, err := getBytes(e, 9, 3)
	out := [3]byte{}
	copy(out[:], b)
	return out, err
}
func (e ExtendedInquiryResult) ClockOffsetWErr() (uint16, error) { return getUint16LE(e, 12, 0) }
func (e ExtendedInquiryResult) RSSIWErr() (int8, error) {
	v, err := getByte(e, 14, 0x7f)
	return int8(v), err
}

func (e LEConnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e LEConnectionComplete) RoleWErr() (uint8, error)            { return getByte(e, 3, 0xff) }
func (e LEConnectionComplete) PeerAddressTypeWErr() (uint8, error) { return getByte(e, 4, 0xff) }
func (e LEConnectionComplete) PeerAddressWErr() ([6]byte, error)   { return getAddr(e, 5) }
func (e LEConnectionComplete) ConnIntervalWErr() (uint16, error)   { return getUint16LE(e, 11, 0) }
func (e LEConnectionComplete) ConnLatencyWErr() (uint16, error)    { return getUint16LE(e, 13, 0) }
func (e LEConnectionComplete) SupervisionTimeoutWErr() (uint16, error) {
	return getUint16LE(e, 15, 0)
}

// Enhanced Connection Complete carries the local and peer RPAs between the
// peer address and the connection interval.
func (e LEEnhancedConnectionComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e LEEnhancedConnectionComplete) RoleWErr() (uint8, error) { return getByte(e, 3, 0xff) }
func (e LEEnhancedConnectionComplete) PeerAddressTypeWErr() (uint8, error) {
	return getByte(e, 4, 0xff)
}
func (e LEEnhancedConnectionComplete) PeerAddressWErr() ([6]byte, error) { return getAddr(e, 5) }
func (e LEEnhancedConnectionComplete) LocalResolvablePrivateAddressWErr() ([6]byte, error) {
	return getAddr(e, 11)
}
func (e LEEnhancedConnectionComplete) ConnIntervalWErr() (uint16, error) {
	return getUint16LE(e, 23, 0)
}
func (e LEEnhancedConnectionComplete) ConnLatencyWErr() (uint16, error) {
	return getUint16LE(e, 25, 0)
}
func (e LEEnhancedConnectionComplete) SupervisionTimeoutWErr() (uint16, error) {
	return getUint16LE(e, 27, 0)
}

func (e LEReadRemoteFeaturesComplete) ConnectionHandleWErr() (uint16, error) {
	return getUint16LE(e, 1, 0xffff)
}
func (e LEReadRemoteFeaturesComplete) LEFeaturesWErr() (uint64, error) {
	return getUint64LE(e, 3, 0)
}

func (e LEAdvertisingReport) NumReportsWErr() (uint8, error) {
	return getByte(e, 0, 0)
}

func (e LEAdvertisingReport) EventTypeWErr(i int) (uint8, error) {
	return getByte(e, 1+i, 0xff)
}

func (e LEAdvertisingReport) AddressTypeWErr(i int) (uint8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}
	return getByte(e, 1+int(nr)+i, 0xff)
}

func (e LEAdvertisingReport) AddressWErr(i int) ([6]byte, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return [6]byte{}, err
	}
	return getAddr(e, 1+int(nr)*2+6*i)
}

func (e LEAdvertisingReport) LengthDataWErr(i int) (uint8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}
	return getByte(e, 1+int(nr)*8+i, 0)
}

func (e LEAdvertisingReport) DataWErr(i int) ([]byte, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return nil, err
	}

	l := 0
	for j := 0; j < i; j++ {
		ll, err := e.LengthDataWErr(j)
		if err != nil {
			return nil, err
		}
		l += int(ll)
	}

	ll, err := e.LengthDataWErr(i)
	if err != nil {
		return nil, err
	}
	if ll == 0 {
		return []byte{}, nil
	}
	return getBytes(e, 1+int(nr)*9+l, int(ll))
}

func (e LEAdvertisingReport) RSSIWErr(i int) (int8, error) {
	nr, err := e.NumReportsWErr()
	if err != nil {
		return 0, err
	}

	l := 0
	for j := 0; j < int(nr); j++ {
		ll, err := e.LengthDataWErr(j)
		if err != nil {
			return 0, err
		}
		l += int(ll)
	}

	rssi, err := getByte(e, 1+int(nr)*9+l+i, 0)
	return int8(rssi), err
}

// get or default
func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

// get or default
func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getUint64LE(b []byte, i int, def uint64) (uint64, error) {
	bb, err := getBytes(b, i, 8)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint64(bb), nil
}

func getAddr(b []byte, i int) ([6]byte, error) {
	out := [6]byte{}
	bb, err := getBytes(b, i, 6)
	if err != nil {
		return out, err
	}
	copy(out[:], bb)
	return out, nil
}

func getBytes(bytes []byte, start int, count int) ([]byte, error) {
	if bytes == nil || start >= len(bytes) {
		return nil, fmt.Errorf("index error: start %d, len %d", start, len(bytes))
	}

	if count < 0 {
		return bytes[start:], nil
	}

	end := start + count
	if end > len(bytes) {
		return nil, fmt.Errorf("index error: end %d, len %d", end, len(bytes))
	}

	return bytes[start:end], nil
}
