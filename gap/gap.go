// Package gap implements the Generic Access Profile layer of the host:
// the peer cache, connection establishment over LE and BR/EDR, interrogation
// of newly connected peers, SCO setup per ACL link, and local address
// privacy. Every type in this package runs on a single dispatch.Dispatcher
// and is not safe for use from other goroutines.
package gap

import (
	"time"

	"github.com/rigado/bthost/linux/hci"
)

// Policy timers. They are variables so that tools and tests can shorten them.
var (
	// CacheTimeout is how long a temporary peer stays cached after its last update.
	CacheTimeout = 60 * time.Second

	// LEGeneralCEPScanTimeout bounds the scan that precedes an outbound LE connection.
	LEGeneralCEPScanTimeout = 10 * time.Second

	// LECreateConnectionTimeout bounds one HCI LE Create Connection procedure.
	LECreateConnectionTimeout = 20 * time.Second

	// MaxConnectionAttempts is the number of LE connection attempts made when
	// the link keeps failing to be established.
	MaxConnectionAttempts = 3

	// RetryExponentialBackoffBase is doubled for each LE retry: 2s, 4s, ...
	RetryExponentialBackoffBase = time.Second

	// BrEdrCreateConnectionTimeout bounds one HCI Create Connection.
	BrEdrCreateConnectionTimeout = 20 * time.Second

	// RetryWindowAfterFirstCreateConn is how long page timeouts are retried.
	RetryWindowAfterFirstCreateConn = 30 * time.Second

	// LocalDisconnectCooldown is how long incoming BR/EDR connections from a
	// peer are refused after we disconnected it.
	LocalDisconnectCooldown = 30 * time.Second

	// PrivateAddressTimeout is the lifetime of a local private address.
	PrivateAddressTimeout = 15 * time.Minute
)

// Scan parameters used while an LE connection is being created.
const (
	LEScanFastInterval = 0x0060 // 60 ms
	LEScanFastWindow   = 0x0030 // 30 ms
)

// InitialConnectionParameters favor a short connection interval so that
// interrogation and bonding finish quickly.
var InitialConnectionParameters = hci.LEPreferredConnectionParameters{
	IntervalMin:        0x0018, // 30 ms
	IntervalMax:        0x0028, // 50 ms
	Latency:            0,
	SupervisionTimeout: 0x01F4, // 5 s
}

// ConnectionState of a peer on one transport.
type ConnectionState int

const (
	NotConnected ConnectionState = iota
	Initializing
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Connected:
		return "connected"
	}
	return "not connected"
}
