package gap

import (
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/sm"
)

// Secure Simple Pairing values sent in IO Capability Request Reply
// [Vol 4, Part E, 7.1.29]. The host has no display or keyboard, so every
// pairing uses Just Works.
const (
	ioCapabilityNoInputNoOutput    = 0x03
	authRequirementsGeneralBonding = 0x04
)

// PairingResultCallback receives the security of the link once pairing and
// encryption finish, or the error that ended them.
type PairingResultCallback func(err error, props sm.SecurityProperties)

type pairingStep int

const (
	pairingIdle pairingStep = iota
	pairingWaitLinkKeyRequest
	pairingSimplePairing
	pairingWaitAuthComplete
	pairingWaitEncryption
)

func (s pairingStep) String() string {
	switch s {
	case pairingIdle:
		return "idle"
	case pairingWaitLinkKeyRequest:
		return "wait link key request"
	case pairingSimplePairing:
		return "simple pairing"
	case pairingWaitAuthComplete:
		return "wait authentication complete"
	}
	return "wait encryption"
}

// PairingState answers the authentication events of one BR/EDR link and
// runs pairing initiated locally. It is fed by the BrEdrConnectionManager,
// which routes the controller's events by address or handle.
type PairingState struct {
	peerID bthost.PeerID
	link   *hci.Connection
	ch     hci.CommandChannel
	cache  *PeerCache

	step      pairingStep
	initiator bool
	callbacks []PairingResultCallback

	// props is the security of the key in use; it becomes the link
	// security when encryption is enabled.
	props     sm.SecurityProperties
	security  sm.SecurityProperties
	encrypted bool

	logger bthost.Logger
}

func newPairingState(peerID bthost.PeerID, link *hci.Connection, cache *PeerCache, ch hci.CommandChannel, logger bthost.Logger) *PairingState {
	return &PairingState{
		peerID: peerID,
		link:   link,
		ch:     ch,
		cache:  cache,
		logger: logger,
	}
}

// Security of the link, valid once it is encrypted.
func (s *PairingState) Security() sm.SecurityProperties { return s.security }
func (s *PairingState) Encrypted() bool                 { return s.encrypted }
func (s *PairingState) InProgress() bool                { return s.step != pairingIdle }

// InitiatePairing authenticates and encrypts the link. Callers arriving
// while pairing runs wait for the same result. An already encrypted link
// reports its security right away.
func (s *PairingState) InitiatePairing(cb PairingResultCallback) {
	if s.step == pairingIdle && s.encrypted {
		cb(nil, s.security)
		return
	}
	s.callbacks = append(s.callbacks, cb)
	if s.step != pairingIdle {
		return
	}

	s.initiator = true
	s.step = pairingWaitLinkKeyRequest
	s.logger.Infof("initiating pairing")
	s.ch.SendCommand(&cmd.AuthenticationRequested{ConnectionHandle: s.link.Handle()},
		hci.StatusCallback(func(err error) {
			if err != nil {
				s.fail(errors.Wrap(err, "authentication requested"))
			}
		}), hci.CommandStatusCode)
}

// OnLinkKeyRequest answers with the stored link key of the peer if there is
// one. Otherwise the controller falls back to pairing.
func (s *PairingState) OnLinkKeyRequest() {
	if s.step == pairingIdle {
		// The peer started authentication.
		s.initiator = false
		s.step = pairingWaitLinkKeyRequest
	}
	addr := s.link.PeerAddress().Value

	var key *sm.LTK
	if p := s.cache.FindByID(s.peerID); p != nil && p.bredr != nil {
		key = p.bredr.LinkKey()
	}
	if key == nil {
		s.logger.Debugf("no link key, pairing")
		s.step = pairingSimplePairing
		s.ch.SendCommand(&cmd.LinkKeyRequestNegativeReply{BDADDR: addr},
			hci.StatusCallback(s.logCommandError("link key request negative reply")), hci.CommandCompleteCode)
		return
	}

	s.props = key.Security
	s.step = pairingWaitAuthComplete
	s.ch.SendCommand(&cmd.LinkKeyRequestReply{BDADDR: addr, LinkKey: key.Value},
		hci.StatusCallback(s.logCommandError("link key request reply")), hci.CommandCompleteCode)
}

// OnIOCapabilityRequest replies that the host has no input or output.
func (s *PairingState) OnIOCapabilityRequest() {
	if s.step == pairingIdle {
		s.initiator = false
	}
	s.step = pairingSimplePairing
	s.ch.SendCommand(&cmd.IOCapabilityRequestReply{
		BDADDR:                     s.link.PeerAddress().Value,
		IOCapability:               ioCapabilityNoInputNoOutput,
		OOBDataPresent:             0x00,
		AuthenticationRequirements: authRequirementsGeneralBonding,
	}, hci.StatusCallback(s.logCommandError("io capability request reply")), hci.CommandCompleteCode)
}

// OnUserConfirmationRequest confirms the Just Works numeric comparison.
func (s *PairingState) OnUserConfirmationRequest(value uint32) {
	if s.step != pairingSimplePairing {
		s.logger.Warnf("unexpected user confirmation request in state %v", s.step)
		s.ch.SendCommand(&cmd.UserConfirmationRequestNegativeReply{BDADDR: s.link.PeerAddress().Value},
			hci.StatusCallback(s.logCommandError("user confirmation request negative reply")), hci.CommandCompleteCode)
		return
	}
	s.logger.Debugf("confirming pairing (%06d)", value)
	s.ch.SendCommand(&cmd.UserConfirmationRequestReply{BDADDR: s.link.PeerAddress().Value},
		hci.StatusCallback(s.logCommandError("user confirmation request reply")), hci.CommandCompleteCode)
}

// OnSimplePairingComplete ends pairing early if it failed.
func (s *PairingState) OnSimplePairingComplete(status error) {
	if status != nil {
		s.fail(errors.Wrap(status, "simple pairing"))
	}
}

// OnLinkKeyNotification stores the key created by pairing as a bond.
func (s *PairingState) OnLinkKeyNotification(key [16]byte, keyType uint8) {
	props, ok := sm.SecurityPropertiesFromLinkKeyType(keyType)
	if !ok {
		s.logger.Warnf("ignoring link key of type 0x%02x", keyType)
		s.fail(errors.Wrapf(bthost.ErrNotSupported, "link key type 0x%02x", keyType))
		return
	}
	s.props = props
	if s.step == pairingSimplePairing {
		s.step = pairingWaitAuthComplete
	}
	if !s.cache.StoreBrEdrBond(s.link.PeerAddress(), sm.LTK{Key: sm.Key{Security: props, Value: key}}) {
		s.logger.Errorf("could not store link key")
	}
}

// OnAuthenticationComplete enables encryption after a successful
// authentication this side asked for.
func (s *PairingState) OnAuthenticationComplete(status error) {
	if status != nil {
		s.fail(errors.Wrap(status, "authentication"))
		return
	}
	s.step = pairingWaitEncryption
	if !s.initiator {
		// The peer enables encryption.
		return
	}
	s.ch.SendCommand(&cmd.SetConnectionEncryption{ConnectionHandle: s.link.Handle(), EncryptionEnable: 0x01},
		hci.StatusCallback(func(err error) {
			if err != nil {
				s.fail(errors.Wrap(err, "set connection encryption"))
			}
		}), hci.CommandStatusCode)
}

// OnEncryptionChange completes pairing.
func (s *PairingState) OnEncryptionChange(status error, enabled bool) {
	if status != nil {
		s.encrypted = false
		s.fail(errors.Wrap(status, "encryption change"))
		return
	}
	s.encrypted = enabled
	if !enabled {
		s.logger.Infof("encryption disabled")
		s.security = sm.SecurityProperties{}
		s.fail(errors.Wrap(bthost.ErrFailed, "encryption disabled"))
		return
	}
	s.security = s.props
	s.logger.Infof("link encrypted: %v", s.security)
	s.finish(nil)
}

// Close fails any pending pairing with bthost.ErrLinkDisconnected.
func (s *PairingState) Close() {
	if s.step != pairingIdle || len(s.callbacks) > 0 {
		s.fail(bthost.ErrLinkDisconnected)
	}
}

func (s *PairingState) fail(err error) {
	if s.step == pairingIdle && len(s.callbacks) == 0 {
		return
	}
	s.logger.Infof("pairing failed: %v", err)
	s.finish(err)
}

func (s *PairingState) finish(err error) {
	s.step = pairingIdle
	s.initiator = false
	var props sm.SecurityProperties
	if err == nil {
		props = s.security
	}
	callbacks := s.callbacks
	s.callbacks = nil
	for _, cb := range callbacks {
		cb(err, props)
	}
}

func (s *PairingState) logCommandError(what string) func(err error) {
	return func(err error) {
		if err != nil {
			s.logger.Warnf("%s: %v", what, err)
		}
	}
}
