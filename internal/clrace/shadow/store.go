package shadow

import (
	log "github.com/sirupsen/logrus"

	"github.com/kolkov/clracer/internal/clrace/device"
)

// Key identifies one live region: a memory object plus the buffer id
// decoded from the access address.
type Key struct {
	Mem    device.Memory
	Buffer uint64
}

// Store maps every live non-private allocation to its shadow Region.
//
// The store is not safe for concurrent use; the interpreter delivers events
// single-threaded. Were that ever parallelized, the Region is the natural
// unit of locking, since bytes of different regions never interact.
type Store struct {
	regions map[Key]*Region
}

// NewStore creates an empty shadow store.
func NewStore() *Store {
	return &Store{regions: make(map[Key]*Region)}
}

// Create inserts a fresh all-initial region for the allocation at address.
// Private-space allocations are ignored. A duplicate key is a contract
// violation by the interpreter: the old region is overwritten, with a note
// at debug level.
func (s *Store) Create(mem device.Memory, address, size uint64) {
	if mem.AddressSpace() == device.SpacePrivate {
		return
	}

	key := Key{Mem: mem, Buffer: device.BufferOf(address)}
	if _, exists := s.regions[key]; exists {
		log.Debugf("shadow: duplicate allocation of %s buffer %d, overwriting",
			key.Mem.AddressSpace().Name(), key.Buffer)
	}

	s.regions[key] = NewRegion(mem, key.Buffer, size)
}

// Destroy releases the region for the allocation at address. A no-op for
// private space and for unknown keys (noted at debug level).
func (s *Store) Destroy(mem device.Memory, address uint64) {
	if mem.AddressSpace() == device.SpacePrivate {
		return
	}

	key := Key{Mem: mem, Buffer: device.BufferOf(address)}
	if _, exists := s.regions[key]; !exists {
		log.Debugf("shadow: deallocation of unknown %s buffer %d",
			key.Mem.AddressSpace().Name(), key.Buffer)

		return
	}

	delete(s.regions, key)
}

// Lookup resolves an access address to its region and the decoded base
// offset. The third result is false when no allocation event was seen for
// the address.
func (s *Store) Lookup(mem device.Memory, address uint64) (*Region, uint64, bool) {
	key := Key{Mem: mem, Buffer: device.BufferOf(address)}

	region, ok := s.regions[key]
	if !ok {
		return nil, 0, false
	}

	return region, device.OffsetOf(address), true
}

// Len returns the number of live regions.
func (s *Store) Len() int {
	return len(s.regions)
}

// ForEach calls fn for every live region, in no particular order.
func (s *Store) ForEach(fn func(*Region)) {
	for _, region := range s.regions {
		fn(region)
	}
}
