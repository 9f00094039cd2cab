package gap

import (
	"github.com/google/uuid"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/sm"
)

// BondingData is everything needed to restore a bonded peer without
// rediscovering it. Address is the identity address on the transport the
// LE keys belong to, or the BR/EDR address for a classic-only bond.
type BondingData struct {
	Identifier    bthost.PeerID
	Address       bthost.DeviceAddress
	Name          string
	LEPairingData sm.PairingData
	BrEdrLinkKey  *sm.LTK
	BrEdrServices []uuid.UUID
}

// leBond reports whether the data carries the minimum LE keys.
func (d BondingData) leBond() bool {
	return d.LEPairingData.HasEncryptionKey()
}

func (d BondingData) brEdrBond() bool {
	return d.BrEdrLinkKey != nil
}
