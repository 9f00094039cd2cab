package gap

import (
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/linux/hci/cmd"
	"github.com/rigado/bthost/linux/hci/evt"
	"github.com/rigado/bthost/metrics"
)

// LowEnergyInterrogator reads the version and LE features of a newly
// connected LE peer.
type LowEnergyInterrogator struct {
	interrogator
}

func NewLowEnergyInterrogator(cache *PeerCache, ch hci.CommandChannel, d dispatch.Dispatcher) *LowEnergyInterrogator {
	l := &LowEnergyInterrogator{interrogator: newInterrogator(metrics.TransportLE, cache, ch, d)}
	l.queue = l.queueCommands
	return l
}

func (l *LowEnergyInterrogator) queueCommands(i *interrogation, p *Peer) {
	l.send(i, &cmd.ReadRemoteVersionInformation{ConnectionHandle: i.handle},
		hci.ReadRemoteVersionInformationCompleteCode, setVersionFromEvent)

	if p.le != nil {
		if _, ok := p.le.Features(); ok {
			return
		}
	}
	l.send(i, &cmd.LEReadRemoteFeatures{ConnectionHandle: i.handle},
		hci.LEReadRemoteFeaturesCompleteCode, func(e *hci.Event, p *Peer) error {
			bits, err := evt.LEReadRemoteFeaturesComplete(e.Params).LEFeaturesWErr()
			if err != nil {
				return err
			}
			p.MutLE().SetFeatures(bits)
			return nil
		})
}
