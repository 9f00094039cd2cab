package gap

import (
	"time"

	"github.com/rigado/bthost"
	"github.com/rigado/bthost/linux/hci"
)

// ConnectionResultCallback receives the outcome of a connection request.
type ConnectionResultCallback[T any] func(err error, conn T)

// ConnectionRequest gathers every caller waiting on one connection attempt
// to a peer. While it is open the peer stays Initializing on the
// transport that issued the token.
type ConnectionRequest[T any] struct {
	peerID    bthost.PeerID
	addr      bthost.DeviceAddress
	callbacks []ConnectionResultCallback[T]
	token     *InitializingConnectionToken

	firstCreateConn time.Time
	incoming        bool
	resolved        bool
}

// NewConnectionRequest creates a request holding token. cb may be nil for
// requests started by the peer.
func NewConnectionRequest[T any](peerID bthost.PeerID, addr bthost.DeviceAddress,
	token *InitializingConnectionToken, cb ConnectionResultCallback[T]) *ConnectionRequest[T] {
	r := &ConnectionRequest[T]{peerID: peerID, addr: addr, token: token}
	if cb != nil {
		r.callbacks = append(r.callbacks, cb)
	}
	return r
}

func (r *ConnectionRequest[T]) PeerID() bthost.PeerID         { return r.peerID }
func (r *ConnectionRequest[T]) Address() bthost.DeviceAddress { return r.addr }
func (r *ConnectionRequest[T]) Incoming() bool                { return r.incoming }
func (r *ConnectionRequest[T]) Resolved() bool                { return r.resolved }

// AddCallback attaches another caller to the same attempt.
func (r *ConnectionRequest[T]) AddCallback(cb ConnectionResultCallback[T]) {
	r.callbacks = append(r.callbacks, cb)
}

// HasCallbacks reports whether any caller waits on the request.
func (r *ConnectionRequest[T]) HasCallbacks() bool {
	return len(r.callbacks) > 0
}

// BeginIncoming marks that the peer is connecting to us for this request.
func (r *ConnectionRequest[T]) BeginIncoming()    { r.incoming = true }
func (r *ConnectionRequest[T]) CompleteIncoming() { r.incoming = false }

// RecordCreateConnectionAttempt notes an HCI Create Connection. Only the
// first attempt's time is kept.
func (r *ConnectionRequest[T]) RecordCreateConnectionAttempt(now time.Time) {
	if r.firstCreateConn.IsZero() {
		r.firstCreateConn = now
	}
}

// ShouldRetry reports whether err is a page timeout still inside the retry
// window opened by the first attempt.
func (r *ConnectionRequest[T]) ShouldRetry(err error, now time.Time) bool {
	if !hci.IsStatus(err, hci.ErrPageTimeout) || r.firstCreateConn.IsZero() {
		return false
	}
	return now.Sub(r.firstCreateConn) < RetryWindowAfterFirstCreateConn
}

// NotifyCallbacks resolves the request once. The initializing token is
// released before the callbacks run.
func (r *ConnectionRequest[T]) NotifyCallbacks(err error, conn T) {
	if r.resolved {
		return
	}
	r.resolved = true
	r.token.Release()
	callbacks := r.callbacks
	r.callbacks = nil
	for _, cb := range callbacks {
		cb(err, conn)
	}
}

// Close resolves a still open request with bthost.ErrCanceled.
func (r *ConnectionRequest[T]) Close() {
	var zero T
	r.NotifyCallbacks(bthost.ErrCanceled, zero)
}
