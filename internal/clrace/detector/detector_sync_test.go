package detector

import (
	"testing"

	"github.com/kolkov/clracer/internal/clrace/device"
)

// localFixture extends the base fixture with an 8-byte local buffer in
// each group's local memory.
type localFixture struct {
	*fixture
	localBase [2]uint64
}

func newLocalFixture(t *testing.T) *localFixture {
	t.Helper()

	lf := &localFixture{fixture: newFixture(t, DefaultOptions())}

	for g, wg := range lf.groups {
		sim := wg.LocalMem.(*device.SimMemory)
		lf.localBase[g] = sim.Allocate(8)
		lf.det.MemoryAllocated(sim, lf.localBase[g], 8)
	}

	return lf
}

func (lf *localFixture) localStore(index, offset uint64, data ...byte) {
	wg := lf.groups[index/2]
	addr := lf.localBase[index/2] + offset

	lf.det.MemoryStore(wg.LocalMem, lf.item(index), addr, data)
	wg.LocalMem.(*device.SimMemory).Store(addr, data)
}

func (lf *localFixture) localLoad(index, offset, size uint64) {
	wg := lf.groups[index/2]
	lf.det.MemoryLoad(wg.LocalMem, lf.item(index), lf.localBase[index/2]+offset, size)
}

// TestLocalBarrierEnablesReuse: a local fence lets the group's items hand
// a local byte from one to another without racing.
func TestLocalBarrierEnablesReuse(t *testing.T) {
	lf := newLocalFixture(t)

	lf.localStore(0, 0, 0xAA)
	lf.det.WorkGroupBarrier(lf.groups[0], device.LocalMemFence)
	lf.localLoad(1, 0, 1)

	lf.wantRaces(0)
}

// TestLocalAccessWithoutBarrierRaces: the same hand-off without the fence
// is a race.
func TestLocalAccessWithoutBarrierRaces(t *testing.T) {
	lf := newLocalFixture(t)

	lf.localStore(0, 0, 0xAA)
	lf.localLoad(1, 0, 1)

	lf.wantRaces(1)
}

// TestLocalBarrierIsPerGroup: another group's fence must not reset this
// group's local shadow state.
func TestLocalBarrierIsPerGroup(t *testing.T) {
	lf := newLocalFixture(t)

	lf.localStore(0, 0, 0xAA)
	lf.det.WorkGroupBarrier(lf.groups[1], device.LocalMemFence)
	lf.localLoad(1, 0, 1)

	lf.wantRaces(1)
}

// TestBarrierWithBothFences: both fences compose in one barrier call.
func TestBarrierWithBothFences(t *testing.T) {
	lf := newLocalFixture(t)

	lf.localStore(0, 0, 0xAA)
	lf.store(0, 0, 0x01)

	lf.det.WorkGroupBarrier(lf.groups[0], device.LocalMemFence|device.GlobalMemFence)

	// Local byte fully reset; global byte readable only within the group.
	lf.localLoad(1, 0, 1)
	lf.load(1, 0, 1)

	lf.wantRaces(0)
}

// TestGlobalFenceKeepsIntraGroupReads: after a global fence, items of the
// storing group may read the byte (the group attribution matches).
func TestGlobalFenceKeepsIntraGroupReads(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0x01)
	f.det.WorkGroupBarrier(f.groups[0], device.GlobalMemFence)
	f.load(1, 0, 1)

	f.wantRaces(0)
}

// TestGlobalFenceReenablesAtomics: the fence restores atomic
// compatibility even over bytes previously stored non-atomically. This is
// the preserved quirk of the reference behavior: a stricter model would
// keep the byte atomic-hostile for other groups.
func TestGlobalFenceReenablesAtomics(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0x01)
	f.det.WorkGroupBarrier(f.groups[0], device.GlobalMemFence)
	f.atomic(2, 0, 1)

	f.wantRaces(0)
}

// TestKernelEndResetsGlobal: a new launch starts with clean global shadow
// state; accesses from different launches never race.
func TestKernelEndResetsGlobal(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0xAA)
	f.det.KernelEnd(f.inv)

	f.det.KernelBegin(f.inv)
	f.store(2, 0, 0xBB)

	f.wantRaces(0)
}

// TestKernelEndIdempotent: kernel end on an already-clean space changes
// nothing and a subsequent launch still works.
func TestKernelEndIdempotent(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.det.KernelEnd(f.inv)

	f.det.KernelBegin(f.inv)
	f.det.KernelEnd(f.inv)

	f.det.KernelBegin(f.inv)
	f.store(0, 0, 0xAA)
	f.load(1, 0, 1)

	f.wantRaces(1)
}

// TestDeallocatedRegionForgotten: deallocation drops the shadow region, so
// a reallocation at the same buffer starts fresh.
func TestDeallocatedRegionForgotten(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0xAA)

	f.det.MemoryDeallocated(f.mem, f.base)
	f.det.MemoryAllocated(f.mem, f.base, 16)

	f.store(2, 0, 0xBB)

	f.wantRaces(0)
}
