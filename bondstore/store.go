// Package bondstore persists the bonds of a PeerCache between runs.
package bondstore

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/gap"
)

// Store saves and restores bonding data, keyed by peer identifier.
type Store interface {
	// Save replaces any bond stored for bd.Identifier.
	Save(bd gap.BondingData) error
	Load() ([]gap.BondingData, error)
	// Delete removes the bond of id. Deleting an unknown id is not an error.
	Delete(id bthost.PeerID) error
	Close() error
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// key is the 16 hex digit form of id.
func key(id bthost.PeerID) string {
	return id.String()
}

func validate(bd gap.BondingData) error {
	if !bd.Identifier.IsValid() {
		return errors.Wrap(bthost.ErrInvalidParameters, "bond without peer identifier")
	}
	return nil
}

// Restore adds every bond in s to cache. Bonds the cache refuses are
// skipped and counted.
func Restore(s Store, cache *gap.PeerCache) (restored, skipped int, err error) {
	bonds, err := s.Load()
	if err != nil {
		return 0, 0, err
	}
	for _, bd := range bonds {
		if cache.AddBondedPeer(bd) {
			restored++
		} else {
			skipped++
		}
	}
	return restored, skipped, nil
}

// Persist saves the bond of every peer the cache reports as newly bonded.
// It replaces any bonded callback set on cache.
func Persist(s Store, cache *gap.PeerCache) {
	logger := bthost.ComponentLogger("bondstore")
	cache.SetPeerBondedCallback(func(p *gap.Peer) {
		bd, ok := cache.BondingDataFor(p.ID())
		if !ok {
			return
		}
		if err := s.Save(bd); err != nil {
			logger.Errorf("saving bond of %v: %v", p.ID(), err)
			return
		}
		logger.Debugf("saved bond of %v", p.ID())
	})
}
