package bthost

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
)

// PeerID uniquely identifies a remote device for the lifetime of its cache entry.
type PeerID uint64

// InvalidPeerID is never assigned to a peer.
const InvalidPeerID PeerID = 0

func (id PeerID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

func (id PeerID) IsValid() bool {
	return id != InvalidPeerID
}

// ParsePeerID parses the hexadecimal form produced by String.
func ParsePeerID(s string) (PeerID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return InvalidPeerID, err
	}
	return PeerID(v), nil
}

// RandomPeerID returns a random, valid PeerID.
func RandomPeerID() PeerID {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err)
		}
		if id := PeerID(binary.LittleEndian.Uint64(b[:])); id.IsValid() {
			return id
		}
	}
}
