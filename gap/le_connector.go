package gap

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/dispatch"
	"github.com/rigado/bthost/linux/hci"
	"github.com/rigado/bthost/metrics"
)

// LowEnergyConnectorResultCallback receives the outcome of a connector.
// conn is nil unless err is nil.
type LowEnergyConnectorResultCallback func(err error, conn *LowEnergyConnection)

// LowEnergyConnectionOptions tune an outbound connection.
type LowEnergyConnectionOptions struct {
	// AutoConnect skips the discovery scan, for bonded peers reconnecting
	// in the background.
	AutoConnect bool
}

// leConnectorState is one state of a LowEnergyConnector. Each state
// carries the resources it owns.
type leConnectorState interface {
	String() string
}

type leIdle struct{}

type leStartingScanning struct{}

type leScanning struct {
	session LowEnergyDiscoverySession
	timeout dispatch.Task
}

type leConnecting struct {
	pause PauseToken
}

type leInterrogating struct{}

type leAwaitingConnFailedDisconnect struct{}

type lePauseBeforeRetry struct {
	retry dispatch.Task
}

type leComplete struct{}

type leFailed struct{}

func (leIdle) String() string                         { return "idle" }
func (leStartingScanning) String() string             { return "starting scanning" }
func (*leScanning) String() string                    { return "scanning" }
func (*leConnecting) String() string                  { return "connecting" }
func (leInterrogating) String() string                { return "interrogating" }
func (leAwaitingConnFailedDisconnect) String() string { return "awaiting disconnect" }
func (*lePauseBeforeRetry) String() string            { return "pause before retry" }
func (leComplete) String() string                     { return "complete" }
func (leFailed) String() string                       { return "failed" }

// LowEnergyConnector establishes and interrogates one LE connection. It is
// single use: the result callback runs exactly once.
type LowEnergyConnector struct {
	peerID   bthost.PeerID
	outbound bool
	opts     LowEnergyConnectionOptions

	d            dispatch.Dispatcher
	cache        *PeerCache
	hciConnector *hci.LowEnergyConnector
	discovery    LowEnergyDiscoveryManager
	interrogator *LowEnergyInterrogator

	state     leConnectorState
	attempt   int
	initToken *InitializingConnectionToken
	conn      *LowEnergyConnection
	cb        LowEnergyConnectorResultCallback

	logger bthost.Logger
}

func newLowEnergyConnector(peerID bthost.PeerID, outbound bool, cache *PeerCache, interrogator *LowEnergyInterrogator,
	d dispatch.Dispatcher, cb LowEnergyConnectorResultCallback) *LowEnergyConnector {
	return &LowEnergyConnector{
		peerID:       peerID,
		outbound:     outbound,
		d:            d,
		cache:        cache,
		interrogator: interrogator,
		state:        leIdle{},
		cb:           cb,
		logger: bthost.ComponentLogger("gap-le-connector").ChildLogger(map[string]interface{}{
			"peer":     peerID,
			"outbound": outbound,
		}),
	}
}

// NewOutboundLowEnergyConnector starts connecting to a cached peer. Unless
// opts.AutoConnect is set, the peer must first be seen advertising.
func NewOutboundLowEnergyConnector(peerID bthost.PeerID, opts LowEnergyConnectionOptions,
	hciConnector *hci.LowEnergyConnector, discovery LowEnergyDiscoveryManager, interrogator *LowEnergyInterrogator,
	cache *PeerCache, d dispatch.Dispatcher, cb LowEnergyConnectorResultCallback) *LowEnergyConnector {
	c := newLowEnergyConnector(peerID, true, cache, interrogator, d, cb)
	c.opts = opts
	c.hciConnector = hciConnector
	c.discovery = discovery

	p := cache.FindByID(peerID)
	if p == nil {
		c.failLater(errors.Wrapf(bthost.ErrNotFound, "peer %v", peerID))
		return c
	}
	c.initToken = p.MutLE().RegisterInitializingConnection()

	if opts.AutoConnect {
		c.startConnecting()
	} else {
		c.startScanning()
	}
	return c
}

// NewInboundLowEnergyConnector interrogates a link the peer initiated.
// Inbound connections are never retried.
func NewInboundLowEnergyConnector(peerID bthost.PeerID, link *hci.Connection, interrogator *LowEnergyInterrogator,
	cache *PeerCache, d dispatch.Dispatcher, cb LowEnergyConnectorResultCallback) *LowEnergyConnector {
	c := newLowEnergyConnector(peerID, false, cache, interrogator, d, cb)

	p := cache.FindByID(peerID)
	if p == nil {
		link.Close()
		c.failLater(errors.Wrapf(bthost.ErrNotFound, "peer %v", peerID))
		return c
	}
	c.initToken = p.MutLE().RegisterInitializingConnection()
	c.initializeConnection(link)
	return c
}

// PeerID of the peer being connected.
func (c *LowEnergyConnector) PeerID() bthost.PeerID {
	return c.peerID
}

// State names the current state, for logs and tests.
func (c *LowEnergyConnector) State() string {
	return c.state.String()
}

// Attempt is the zero based connection attempt in progress.
func (c *LowEnergyConnector) Attempt() int {
	return c.attempt
}

func (c *LowEnergyConnector) terminal() bool {
	switch c.state.(type) {
	case leComplete, leFailed:
		return true
	}
	return false
}

func (c *LowEnergyConnector) setState(s leConnectorState) {
	c.logger.Debugf("%v -> %v", c.state, s)
	c.state = s
}

// Cancel aborts the connector. Depending on the state the result is
// delivered now or once the pending HCI procedure acknowledges the cancel.
// Canceling a finished connector does nothing.
func (c *LowEnergyConnector) Cancel() {
	switch st := c.state.(type) {
	case leIdle:
		panic("LE connector canceled before it started")
	case leComplete, leFailed:
		return
	case *leConnecting:
		c.logger.Info("canceling create connection")
		c.hciConnector.Cancel()
	case leInterrogating:
		c.logger.Info("canceling interrogation")
		c.interrogator.Cancel(c.peerID)
	default:
		c.logger.Infof("canceled while %v", st)
		c.fail(bthost.ErrCanceled)
	}
}

// Close ends the connector at once. A connector that has not finished
// reports bthost.ErrCanceled.
func (c *LowEnergyConnector) Close() {
	if c.terminal() {
		return
	}
	switch c.state.(type) {
	case *leConnecting:
		c.hciConnector.Cancel()
	case leInterrogating:
		c.interrogator.Cancel(c.peerID)
	}
	c.fail(bthost.ErrCanceled)
}

func (c *LowEnergyConnector) startScanning() {
	c.setState(leStartingScanning{})
	c.discovery.StartDiscovery(false, func(s LowEnergyDiscoverySession) {
		if _, ok := c.state.(leStartingScanning); !ok {
			if s != nil {
				s.Stop()
			}
			return
		}
		if s == nil {
			c.fail(errors.Wrap(bthost.ErrFailed, "start discovery"))
			return
		}

		s.Filter().PeerID = c.peerID
		s.Filter().Connectable = true
		st := &leScanning{session: s}
		st.timeout = c.d.PostAfter(LEGeneralCEPScanTimeout, func() {
			if c.state != leConnectorState(st) {
				return
			}
			c.logger.Info("peer not seen advertising before scan timeout")
			c.fail(errors.Wrap(bthost.ErrTimedOut, "scan"))
		})
		s.SetResultCallback(func(p *Peer) {
			if c.state != leConnectorState(st) {
				return
			}
			c.logger.Debug("peer found, connecting")
			st.timeout.Cancel()
			s.Stop()
			c.startConnecting()
		})
		s.SetErrorCallback(func() {
			if c.state != leConnectorState(st) {
				return
			}
			st.timeout.Cancel()
			c.fail(errors.Wrap(bthost.ErrFailed, "discovery session ended"))
		})
		c.setState(st)
	})
}

func (c *LowEnergyConnector) startConnecting() {
	p := c.cache.FindByID(c.peerID)
	if p == nil {
		c.fail(errors.Wrapf(bthost.ErrNotFound, "peer %v", c.peerID))
		return
	}

	st := &leConnecting{pause: c.discovery.PauseDiscovery()}
	c.setState(st)
	metrics.LEConnectionAttempts.Inc()
	c.logger.Infof("creating connection to %v (attempt %d)", p.Address(), c.attempt+1)

	ok := c.hciConnector.CreateConnection(false, p.Address(), LEScanFastInterval, LEScanFastWindow,
		InitialConnectionParameters, func(err error, link *hci.Connection) {
			c.onCreateConnectionResult(st, err, link)
		}, LECreateConnectionTimeout)
	if !ok {
		c.fail(errors.Wrap(bthost.ErrInProgress, "create connection"))
	}
}

func (c *LowEnergyConnector) onCreateConnectionResult(st *leConnecting, err error, link *hci.Connection) {
	if c.state != leConnectorState(st) {
		if link != nil {
			link.Close()
		}
		return
	}
	st.pause.Release()
	if err != nil {
		c.fail(errors.Wrap(err, "create connection"))
		return
	}
	c.initializeConnection(link)
}

// initializeConnection takes ownership of link and interrogates the peer.
// A successful Connection Complete can be followed right away by a link
// layer failure, so success is only reported after interrogation.
func (c *LowEnergyConnector) initializeConnection(link *hci.Connection) {
	p := c.cache.FindByID(c.peerID)
	if p == nil {
		link.Close()
		c.fail(errors.Wrapf(bthost.ErrNotFound, "peer %v", c.peerID))
		return
	}
	le := p.MutLE()
	le.SetConnectionParameters(link.LEParameters())

	c.conn = newLowEnergyConnection(c.peerID, link, le.RegisterConnection())
	c.conn.SetPeerDisconnectCallback(c.onPeerDisconnect)
	c.setState(leInterrogating{})
	c.interrogator.Start(c.peerID, link.Handle(), c.onInterrogationComplete)
}

func (c *LowEnergyConnector) onInterrogationComplete(err error) {
	if _, ok := c.state.(leInterrogating); !ok {
		return
	}
	if err != nil {
		if c.shouldRetry(err) {
			c.logger.Infof("connection failed to be established, waiting for disconnect: %v", err)
			c.setState(leAwaitingConnFailedDisconnect{})
			if !c.conn.Link().IsOpen() {
				c.scheduleRetry()
			}
			return
		}
		c.fail(errors.Wrap(err, "interrogation"))
		return
	}

	conn := c.conn
	c.conn = nil
	conn.SetPeerDisconnectCallback(nil)
	conn.OnInterrogationComplete()
	c.cache.SetAutoConnectBehaviorForSuccessfulConnection(c.peerID)
	c.finish(nil, conn)
}

func (c *LowEnergyConnector) onPeerDisconnect(reason hci.ErrCommand) {
	switch c.state.(type) {
	case leInterrogating:
		c.interrogator.Cancel(c.peerID)
		if c.shouldRetry(reason) {
			c.logger.Infof("disconnected during interrogation: %v", reason)
			c.scheduleRetry()
			return
		}
		c.fail(errors.Wrap(reason, "link lost during interrogation"))
	case leAwaitingConnFailedDisconnect:
		c.scheduleRetry()
	}
}

func (c *LowEnergyConnector) shouldRetry(err error) bool {
	return c.outbound && hci.IsStatus(err, hci.ErrEstablished) && c.attempt+1 < MaxConnectionAttempts
}

func (c *LowEnergyConnector) scheduleRetry() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.attempt++
	delay := RetryExponentialBackoffBase << uint(c.attempt)
	metrics.LEConnectionRetries.Inc()
	c.logger.Infof("retrying connection in %v", delay)

	st := &lePauseBeforeRetry{}
	st.retry = c.d.PostAfter(delay, func() {
		if c.state != leConnectorState(st) {
			return
		}
		c.startConnecting()
	})
	c.setState(st)
}

// releaseState frees whatever the current state owns.
func (c *LowEnergyConnector) releaseState() {
	switch st := c.state.(type) {
	case *leScanning:
		st.timeout.Cancel()
		st.session.Stop()
	case *leConnecting:
		st.pause.Release()
	case *lePauseBeforeRetry:
		st.retry.Cancel()
	}
}

func (c *LowEnergyConnector) fail(err error) {
	if c.terminal() {
		return
	}
	c.releaseState()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.logger.Infof("connection failed: %v", err)
	c.finish(err, nil)
}

// failLater reports err from the dispatcher so that constructors never
// call back before returning.
func (c *LowEnergyConnector) failLater(err error) {
	c.setState(leFailed{})
	c.d.Post(func() {
		c.report(err, nil)
	})
}

func (c *LowEnergyConnector) finish(err error, conn *LowEnergyConnection) {
	if err != nil {
		c.setState(leFailed{})
	} else {
		c.setState(leComplete{})
	}
	c.initToken.Release()
	c.report(err, conn)
}

func (c *LowEnergyConnector) report(err error, conn *LowEnergyConnection) {
	metrics.LEConnectionResults.WithLabelValues(metrics.ResultOf(err)).Inc()
	cb := c.cb
	c.cb = nil
	if cb == nil {
		panic(fmt.Sprintf("LE connector for peer %v reported twice", c.peerID))
	}
	cb(err, conn)
}
