package gap

import (
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
	"github.com/rigado/bthost/metrics"
)

// Page scan repetition mode assumed for peers never seen in an inquiry.
const defaultPageScanRepetitionMode = 0x01 // R1

// clockOffsetValid marks the clock offset of Create Connection and Remote
// Name Request as valid.
const clockOffsetValid = 0x8000

var inquiryOpcode = (&cmd.Inquiry{}).OpCode()

// BrEdrInterrogator reads the name, version and LMP features of a newly
// connected BR/EDR peer.
type BrEdrInterrogator struct {
	interrogator
}

func NewBrEdrInterrogator(cache *PeerCache, ch hci.CommandChannel, d dispatch.Dispatcher) *BrEdrInterrogator {
	b := &BrEdrInterrogator{interrogator: newInterrogator(metrics.TransportBrEdr, cache, ch, d)}
	b.queue = b.queueCommands
	return b
}

func (b *BrEdrInterrogator) queueCommands(i *interrogation, p *Peer) {
	if _, ok := p.Name(); !ok {
		b.readRemoteName(i, p)
	}
	b.readRemoteVersion(i)

	switch {
	case !p.features.HasPage(0):
		b.readRemoteFeatures(i)
	case p.features.HasBit(hci.LMPFeatureExtendedFeaturesPage, hci.LMPFeatureExtendedFeaturesBit):
		b.readExtendedFeaturesFrom(i, p, 1)
	}
}

func (b *BrEdrInterrogator) readRemoteName(i *interrogation, p *Peer) {
	c := &cmd.RemoteNameRequest{
		BDADDR:                 p.address.Value,
		PageScanRepetitionMode: defaultPageScanRepetitionMode,
	}
	if br := p.bredr; br != nil {
		if psrm, ok := br.PageScanRepetitionMode(); ok {
			c.PageScanRepetitionMode = psrm
		}
		if offset, ok := br.ClockOffset(); ok {
			c.ClockOffset = offset | clockOffsetValid
		}
	}

	// Remote Name Request cannot run alongside an inquiry.
	b.send(i, c, hci.RemoteNameRequestCompleteCode, func(e *hci.Event, p *Peer) error {
		name := evt.RemoteNameRequestComplete(e.Params).RemoteName()
		p.RegisterName(name, NameSourceNameDiscoveryProcedure)
		return nil
	}, inquiryOpcode)
}

func (b *BrEdrInterrogator) readRemoteVersion(i *interrogation) {
	b.send(i, &cmd.ReadRemoteVersionInformation{ConnectionHandle: i.handle},
		hci.ReadRemoteVersionInformationCompleteCode, setVersionFromEvent)
}

func setVersionFromEvent(e *hci.Event, p *Peer) error {
	r := evt.ReadRemoteVersionInformationComplete(e.Params)
	version, err := r.VersionWErr()
	if err != nil {
		return err
	}
	manufacturer, err := r.ManufacturerNameWErr()
	if err != nil {
		return err
	}
	subversion, err := r.SubversionWErr()
	if err != nil {
		return err
	}
	p.SetVersion(Version{Version: version, Manufacturer: manufacturer, Subversion: subversion})
	return nil
}

func (b *BrEdrInterrogator) readRemoteFeatures(i *interrogation) {
	b.send(i, &cmd.ReadRemoteSupportedFeatures{ConnectionHandle: i.handle},
		hci.ReadRemoteSupportedFeaturesCompleteCode, func(e *hci.Event, p *Peer) error {
			bits, err := evt.ReadRemoteSupportedFeaturesComplete(e.Params).LMPFeaturesWErr()
			if err != nil {
				return err
			}
			p.SetFeaturePage(0, bits)
			if p.features.HasBit(hci.LMPFeatureExtendedFeaturesPage, hci.LMPFeatureExtendedFeaturesBit) {
				b.readExtendedFeaturesFrom(i, p, 1)
			}
			return nil
		})
}

// readExtendedFeaturesFrom reads the first unknown page in [page, last].
// Page 1 is read when the last page number is not yet known.
func (b *BrEdrInterrogator) readExtendedFeaturesFrom(i *interrogation, p *Peer, page uint8) {
	for ; page <= maxFeaturePage; page++ {
		if page > 1 && page > p.features.LastPageNumber() {
			return
		}
		if !p.features.HasPage(page) {
			b.readExtendedFeatures(i, page)
			return
		}
	}
}

func (b *BrEdrInterrogator) readExtendedFeatures(i *interrogation, page uint8) {
	b.send(i, &cmd.ReadRemoteExtendedFeatures{ConnectionHandle: i.handle, PageNumber: page},
		hci.ReadRemoteExtendedFeaturesCompleteCode, func(e *hci.Event, p *Peer) error {
			r := evt.ReadRemoteExtendedFeaturesComplete(e.Params)
			n, err := r.PageNumberWErr()
			if err != nil {
				return err
			}
			max, err := r.MaxPageNumberWErr()
			if err != nil {
				return err
			}
			bits, err := r.ExtendedLMPFeaturesWErr()
			if err != nil {
				return err
			}
			p.SetLastPageNumber(max)
			p.SetFeaturePage(n, bits)
			if n < max {
				b.readExtendedFeaturesFrom(i, p, n+1)
			}
			return nil
		})
}
