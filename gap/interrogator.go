package gap

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/metrics"
)

// InterrogationResultCallback receives the outcome of an interrogation: nil,
// the HCI status of the first failed step, or bthost.ErrCanceled.
type InterrogationResultCallback func(err error)

type interrogation struct {
	peerID   bthost.PeerID
	handle   uint16
	cb       InterrogationResultCallback
	refs     int
	done     bool
	canceled bool
}

func (i *interrogation) active() bool {
	return !i.done
}

// interrogator holds the transport independent part of interrogation: one
// session per peer, kept alive by its outstanding commands.
type interrogator struct {
	d         dispatch.Dispatcher
	ch        hci.CommandChannel
	cache     *PeerCache
	transport string
	pending   map[bthost.PeerID]*interrogation
	logger    bthost.Logger

	// queue issues the commands needed for p.
	queue func(i *interrogation, p *Peer)
}

func newInterrogator(transport string, cache *PeerCache, ch hci.CommandChannel, d dispatch.Dispatcher) interrogator {
	return interrogator{
		d:         d,
		ch:        ch,
		cache:     cache,
		transport: transport,
		pending:   map[bthost.PeerID]*interrogation{},
		logger:    bthost.ComponentLogger("gap-interrogator").ChildLogger(map[string]interface{}{"transport": transport}),
	}
}

// Start reads whatever is still unknown about the peer connected on
// handle. Only one interrogation per peer may run at a time; starting a
// second one panics.
func (it *interrogator) Start(peerID bthost.PeerID, handle uint16, cb InterrogationResultCallback) {
	if _, ok := it.pending[peerID]; ok {
		panic(fmt.Sprintf("interrogation of peer %v already in progress", peerID))
	}
	i := &interrogation{peerID: peerID, handle: handle, cb: cb}
	it.pending[peerID] = i
	it.logger.Debugf("interrogating peer %v (handle 0x%04x)", peerID, handle)

	p := it.cache.FindByID(peerID)
	if p == nil {
		it.finish(i, errors.Wrapf(bthost.ErrNotFound, "peer %v", peerID))
		return
	}

	// Hold a reference while queueing so that commands completing
	// synchronously cannot end the session early.
	i.refs++
	it.queue(i, p)
	it.release(i)
}

// Cancel ends the interrogation of peerID with bthost.ErrCanceled. The
// result is delivered from the dispatcher so that completions already
// queued there are still handled first.
func (it *interrogator) Cancel(peerID bthost.PeerID) {
	i, ok := it.pending[peerID]
	if !ok {
		return
	}
	delete(it.pending, peerID)
	i.canceled = true
	it.logger.Debugf("canceling interrogation of peer %v", peerID)
	it.d.Post(func() {
		it.finish(i, bthost.ErrCanceled)
	})
}

// Close cancels every interrogation in progress.
func (it *interrogator) Close() {
	for _, i := range it.pending {
		i.canceled = true
		it.finish(i, bthost.ErrCanceled)
	}
}

func (it *interrogator) finish(i *interrogation, err error) {
	if i.done {
		return
	}
	i.done = true
	if it.pending[i.peerID] == i {
		delete(it.pending, i.peerID)
	}
	metrics.InterrogationResults.WithLabelValues(it.transport, metrics.ResultOf(err)).Inc()
	if err != nil {
		it.logger.Infof("interrogation of peer %v failed: %v", i.peerID, err)
	} else {
		it.logger.Debugf("interrogation of peer %v complete", i.peerID)
	}
	i.cb(err)
}

func (it *interrogator) release(i *interrogation) {
	i.refs--
	if i.refs > 0 || i.done {
		return
	}
	if i.canceled {
		it.finish(i, bthost.ErrCanceled)
		return
	}
	it.finish(i, nil)
}

// send issues c on behalf of i and passes its completion event to
// onComplete if the session is still active and the peer still cached.
func (it *interrogator) send(i *interrogation, c hci.Command, complete hci.EventCode,
	onComplete func(e *hci.Event, p *Peer) error, exclusions ...int) {
	i.refs++
	it.ch.SendExclusiveCommand(c, func(_ hci.TransactionID, e *hci.Event) {
		if e.Code == hci.CommandStatusCode {
			if err := e.Err(); err != nil {
				it.fail(i, errors.Wrapf(err, "%v", c))
				it.release(i)
			}
			return
		}

		defer it.release(i)
		if !i.active() {
			return
		}
		if err := e.Err(); err != nil {
			it.fail(i, errors.Wrapf(err, "%v", c))
			return
		}
		p := it.cache.FindByID(i.peerID)
		if p == nil {
			it.fail(i, errors.Wrapf(bthost.ErrNotFound, "peer %v left the cache", i.peerID))
			return
		}
		if err := onComplete(e, p); err != nil {
			it.fail(i, errors.Wrapf(err, "%v", c))
		}
	}, complete, exclusions...)
}

func (it *interrogator) fail(i *interrogation, err error) {
	if !i.active() {
		return
	}
	it.finish(i, err)
}
