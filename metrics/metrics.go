// Package metrics holds the Prometheus collectors updated by the GAP layer.
// They register with the default registry; cmd/gapctl serves them.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rigado/bthost"
)

// Result labels.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
	ResultTimedOut = "timed_out"
)

// ResultOf maps the outcome of an operation to a result label.
func ResultOf(err error) string {
	switch errors.Cause(err) {
	case nil:
		return ResultSuccess
	case bthost.ErrCanceled:
		return ResultCanceled
	case bthost.ErrTimedOut:
		return ResultTimedOut
	}
	return ResultFailure
}

// Transport labels.
const (
	TransportLE    = "le"
	TransportBrEdr = "bredr"
)

// LEConnectionAttempts counts HCI LE Create Connection procedures started by connectors.
var LEConnectionAttempts = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "bthost_le_connection_attempts_total",
		Help: "Total number of LE create connection attempts",
	},
)

// LEConnectionRetries counts attempts repeated after a connection failed to be established.
var LEConnectionRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "bthost_le_connection_retries_total",
		Help: "Total number of LE connection retries",
	},
)

// LEConnectionResults counts terminal LE connector outcomes.
var LEConnectionResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bthost_le_connection_results_total",
		Help: "Total number of LE connection results",
	},
	[]string{"result"},
)

// BrEdrPageTimeoutRetries counts Create Connection attempts repeated after a page timeout.
var BrEdrPageTimeoutRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "bthost_bredr_page_timeout_retries_total",
		Help: "Total number of BR/EDR create connection retries after page timeout",
	},
)

// BrEdrConnectionResults counts resolved BR/EDR connection requests.
var BrEdrConnectionResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bthost_bredr_connection_results_total",
		Help: "Total number of BR/EDR connection request results",
	},
	[]string{"result"},
)

// InterrogationResults counts completed interrogations.
var InterrogationResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bthost_interrogation_results_total",
		Help: "Total number of interrogation results",
	},
	[]string{"transport", "result"},
)

// ScoRequestResults counts resolved SCO connection requests.
var ScoRequestResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bthost_sco_request_results_total",
		Help: "Total number of SCO connection request results",
	},
	[]string{"result"},
)

// PeersAdded counts peers inserted into the peer cache.
var PeersAdded = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "bthost_peer_cache_insertions_total",
		Help: "Total number of peers added to the peer cache",
	},
)

// PeersRemoved counts peers removed from the peer cache.
var PeersRemoved = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bthost_peer_cache_removals_total",
		Help: "Total number of peers removed from the peer cache",
	},
	[]string{"reason"},
)

// Peers is the number of peers currently cached.
var Peers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "bthost_peer_cache_peers",
		Help: "Number of peers in the peer cache",
	},
)
