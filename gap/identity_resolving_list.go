package gap

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/rigado/bthost"
	"github.com/rigado/bthost/sm"
)

// resolvedCacheSize bounds the memo of RPAs already matched to an identity.
const resolvedCacheSize = 64

// IdentityResolvingList maps resolvable private addresses to the identity
// addresses whose IRK generated them.
type IdentityResolvingList struct {
	irks     map[bthost.DeviceAddress][16]byte
	resolved *lru.Cache
}

func NewIdentityResolvingList() *IdentityResolvingList {
	c, err := lru.New(resolvedCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &IdentityResolvingList{
		irks:     map[bthost.DeviceAddress][16]byte{},
		resolved: c,
	}
}

// Add associates irk with identity, replacing any previous IRK.
func (l *IdentityResolvingList) Add(identity bthost.DeviceAddress, irk [16]byte) {
	if old, ok := l.irks[identity]; ok && old != irk {
		l.resolved.Purge()
	}
	l.irks[identity] = irk
}

// Remove drops the IRK of identity.
func (l *IdentityResolvingList) Remove(identity bthost.DeviceAddress) {
	if _, ok := l.irks[identity]; !ok {
		return
	}
	delete(l.irks, identity)
	l.resolved.Purge()
}

// Resolve returns the identity address for rpa. Only resolvable private
// addresses are tried.
func (l *IdentityResolvingList) Resolve(rpa bthost.DeviceAddress) (bthost.DeviceAddress, bool) {
	if !rpa.IsResolvablePrivate() {
		return bthost.DeviceAddress{}, false
	}
	if v, ok := l.resolved.Get(rpa); ok {
		return v.(bthost.DeviceAddress), true
	}
	for identity, irk := range l.irks {
		if sm.IrkCanResolveRpa(irk, rpa) {
			l.resolved.Add(rpa, identity)
			return identity, true
		}
	}
	return bthost.DeviceAddress{}, false
}

// Len returns the number of registered IRKs.
func (l *IdentityResolvingList) Len() int {
	return len(l.irks)
}
