package hci

// HCI Packet types
const (
	PktTypeCommand uint8 = 0x01
	PktTypeACLData uint8 = 0x02
	PktTypeSCOData uint8 = 0x03
	PktTypeEvent   uint8 = 0x04
	PktTypeVendor  uint8 = 0xFF
)

// Role of the local device on a link.
type Role uint8

const (
	RoleCentral    Role = 0x00
	RolePeripheral Role = 0x01
)

func (r Role) String() string {
	if r == RoleCentral {
		return "central"
	}
	return "peripheral"
}

// LinkType of a logical link [Vol 4, Part E, 7.7.3]. LinkLE is host-defined.
type LinkType uint8

const (
	LinkSCO  LinkType = 0x00
	LinkACL  LinkType = 0x01
	LinkESCO LinkType = 0x02
	LinkLE   LinkType = 0x80
)

func (t LinkType) String() string {
	switch t {
	case LinkSCO:
		return "SCO"
	case LinkACL:
		return "ACL"
	case LinkESCO:
		return "eSCO"
	case LinkLE:
		return "LE"
	}
	return "unknown"
}

// EventCode identifies an HCI event. Values above 0xFF address an LE Meta
// subevent; see LEMetaEventCode.
type EventCode uint16

// Event codes [Vol 4, Part E, 7.7]
const (
	InquiryCompleteCode                      EventCode = 0x01
	InquiryResultCode                        EventCode = 0x02
	ConnectionCompleteCode                   EventCode = 0x03
	ConnectionRequestCode                    EventCode = 0x04
	DisconnectionCompleteCode                EventCode = 0x05
	AuthenticationCompleteCode               EventCode = 0x06
	RemoteNameRequestCompleteCode            EventCode = 0x07
	EncryptionChangeCode                     EventCode = 0x08
	ReadRemoteSupportedFeaturesCompleteCode  EventCode = 0x0B
	ReadRemoteVersionInformationCompleteCode EventCode = 0x0C
	CommandCompleteCode                      EventCode = 0x0E
	CommandStatusCode                        EventCode = 0x0F
	HardwareErrorCode                        EventCode = 0x10
	RoleChangeCode                           EventCode = 0x12
	NumberOfCompletedPacketsCode             EventCode = 0x13
	PINCodeRequestCode                       EventCode = 0x16
	LinkKeyRequestCode                       EventCode = 0x17
	LinkKeyNotificationCode                  EventCode = 0x18
	InquiryResultWithRSSICode                EventCode = 0x22
	ReadRemoteExtendedFeaturesCompleteCode   EventCode = 0x23
	SynchronousConnectionCompleteCode        EventCode = 0x2C
	ExtendedInquiryResultCode                EventCode = 0x2F
	IOCapabilityRequestCode                  EventCode = 0x31
	IOCapabilityResponseCode                 EventCode = 0x32
	UserConfirmationRequestCode              EventCode = 0x33
	SimplePairingCompleteCode                EventCode = 0x36
	LEMetaCode                               EventCode = 0x3E
	VendorCode                               EventCode = 0xFF
)

// LE Meta subevent codes [Vol 4, Part E, 7.7.65]
const (
	LEConnectionCompleteSubCode         uint8 = 0x01
	LEAdvertisingReportSubCode          uint8 = 0x02
	LEConnectionUpdateCompleteSubCode   uint8 = 0x03
	LEReadRemoteFeaturesCompleteSubCode uint8 = 0x04
	LELongTermKeyRequestSubCode         uint8 = 0x05
	LEEnhancedConnectionCompleteSubCode uint8 = 0x0A
)

// LEMetaEventCode addresses one LE Meta subevent as an EventCode.
func LEMetaEventCode(sub uint8) EventCode {
	return EventCode(LEMetaCode)<<8 | EventCode(sub)
}

// IsLEMeta reports whether c addresses an LE Meta subevent.
func (c EventCode) IsLEMeta() bool {
	return c > 0xFF
}

// Convenience codes for the LE subevents used by this package.
var (
	LEConnectionCompleteCode         = LEMetaEventCode(LEConnectionCompleteSubCode)
	LEEnhancedConnectionCompleteCode = LEMetaEventCode(LEEnhancedConnectionCompleteSubCode)
	LEAdvertisingReportCode          = LEMetaEventCode(LEAdvertisingReportSubCode)
	LEReadRemoteFeaturesCompleteCode = LEMetaEventCode(LEReadRemoteFeaturesCompleteSubCode)
)

// LE address types as carried in HCI commands and events.
const (
	AddressTypePublic           = 0x00
	AddressTypeRandom           = 0x01
	AddressTypePublicIdentity   = 0x02
	AddressTypeRandomIdentity   = 0x03
	FilterPolicyAcceptAll       = 0x00
	FilterPolicyAcceptWhitelist = 0x01
	LEScanTypePassive           = 0x00
	LEScanTypeActive            = 0x01
)

// Reasons for Disconnect accepted by the controller.
const (
	DisconnectReasonAuthFailure      = ErrAuth
	DisconnectReasonRemoteUser       = ErrRemoteUser
	DisconnectReasonUnsupportedLMP   = ErrUnsupportedLMP
	DisconnectReasonUnacceptableConn = ErrConnParams
)

// LMP feature bits used by the host, as (page, bit) pairs [Vol 2, Part C, 3.3].
const (
	LMPFeatureExtendedFeaturesPage    = 0
	LMPFeatureExtendedFeaturesBit     = 63
	LMPFeatureSecureSimplePairingPage = 1
	LMPFeatureSecureSimplePairingBit  = 0
	LMPFeatureSecureConnectionsPage   = 2
	LMPFeatureSecureConnectionsBit    = 8
)
