// Package evt decodes HCI event parameters. Each type wraps the parameter
// bytes of one event, status first; LE Meta types exclude the subevent
// octet. Accessors ending in WErr report truncated packets instead of
// returning garbage.
package evt

// CommandComplete is the raw Command Complete event [Vol 4, Part E, 7.7.14].
type CommandComplete []byte

// CommandStatus is the raw Command Status event [Vol 4, Part E, 7.7.15].
type CommandStatus []byte

type ConnectionComplete []byte
type ConnectionRequest []byte
type DisconnectionComplete []byte
type AuthenticationComplete []byte
type RemoteNameRequestComplete []byte
type EncryptionChange []byte
type ReadRemoteSupportedFeaturesComplete []byte
type ReadRemoteVersionInformationComplete []byte
type ReadRemoteExtendedFeaturesComplete []byte
type LinkKeyRequest []byte
type LinkKeyNotification []byte
type IOCapabilityRequest []byte
type UserConfirmationRequest []byte
type SimplePairingComplete []byte
type SynchronousConnectionComplete []byte
type ExtendedInquiryResult []byte
type LEConnectionComplete []byte
type LEEnhancedConnectionComplete []byte
type LEReadRemoteFeaturesComplete []byte
type LEAdvertisingReport []byte

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := getByte(e, 0, 0)
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := getBytes(e, 3, -1)
	return v
}

func (e CommandStatus) Valid() bool {
	return len(e) == 4
}

func (e CommandStatus) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e CommandStatus) NumHCICommandPackets() uint8 {
	v, _ := getByte(e, 1, 0)
	return v
}

func (e CommandStatus) CommandOpcode() uint16 {
	v, _ := getUint16LE(e, 2, 0xffff)
	return v
}

// RemoteName returns the name up to its NUL terminator.
func (e RemoteNameRequestComplete) RemoteName() string {
	b, err := getBytes(e, 7, -1)
	if err != nil {
		return ""
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Per [Vol 4, Part E, 7.7.38] the reserved octet follows the page scan
// repetition mode in Extended Inquiry Result.
func (e ExtendedInquiryResult) ExtendedInquiryResponse() []byte {
	v, _ := getBytes(e, 15, -1)
	return v
}
