package detector

import (
	"testing"

	"github.com/kolkov/clracer/internal/clrace/device"
	"github.com/kolkov/clracer/internal/clrace/message"
)

// fixture reconstructs the reference setup used throughout these tests: a
// kernel with global size 4 and local size 2 (two groups of two items) and
// one 16-byte global buffer.
type fixture struct {
	t    *testing.T
	det  *Detector
	sink *message.Collector

	mem    *device.SimMemory
	base   uint64
	groups [2]*device.WorkGroup
	inv    *device.KernelInvocation
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{
		t:    t,
		sink: &message.Collector{},
		mem:  device.NewSimMemory(device.SpaceGlobal),
		inv: &device.KernelInvocation{
			Name:       "test_kernel",
			GlobalSize: device.Size3{X: 4, Y: 1, Z: 1},
			LocalSize:  device.Size3{X: 2, Y: 1, Z: 1},
		},
	}

	for g := range f.groups {
		f.groups[g] = &device.WorkGroup{
			Index:    uint64(g),
			LocalMem: device.NewSimMemory(device.SpaceLocal),
		}
	}

	f.det = New(f.sink, opts)
	f.base = f.mem.Allocate(16)
	f.det.MemoryAllocated(f.mem, f.base, 16)
	f.det.KernelBegin(f.inv)

	return f
}

// item builds the work-item descriptor for a linearized global index.
func (f *fixture) item(index uint64) *device.WorkItem {
	return &device.WorkItem{
		GlobalIndex: index,
		Group:       f.groups[index/2],
	}
}

// store notifies the detector and then commits the bytes, the order the
// interpreter uses.
func (f *fixture) store(index, offset uint64, data ...byte) {
	addr := f.base + offset
	f.det.MemoryStore(f.mem, f.item(index), addr, data)
	f.mem.Store(addr, data)
}

func (f *fixture) load(index, offset, size uint64) {
	f.det.MemoryLoad(f.mem, f.item(index), f.base+offset, size)
}

func (f *fixture) atomic(index, offset, size uint64) {
	f.det.MemoryAtomic(f.mem, f.item(index), device.AtomicAdd, f.base+offset, size)
}

func (f *fixture) races() []message.Diagnostic {
	return f.sink.Races()
}

func (f *fixture) wantRaces(n int) []message.Diagnostic {
	f.t.Helper()

	races := f.races()
	if len(races) != n {
		f.t.Fatalf("got %d race diagnostics, want %d: %+v", len(races), n, races)
	}

	return races
}

// TestStoreStoreAcrossGroups: two work-items in different groups store
// different values to the same global byte.
func TestStoreStoreAcrossGroups(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0xAA)
	f.store(2, 0, 0xBB)

	races := f.wantRaces(1)
	d := races[0]

	if d.Kind != message.WriteWriteRace {
		t.Errorf("Kind = %v, want Write-write", d.Kind)
	}

	if d.Address != f.base {
		t.Errorf("Address = %#x, want %#x", d.Address, f.base)
	}

	if got := d.First.String(); got != "Global(2,0,0) Local(0,0,0) Group(1,0,0)" {
		t.Errorf("First entity = %q", got)
	}

	if got := d.Second.String(); got != "Global(0,0,0) Local(0,0,0) Group(0,0,0)" {
		t.Errorf("Second entity = %q", got)
	}

	if d.Kernel != "test_kernel" {
		t.Errorf("Kernel = %q", d.Kernel)
	}
}

// TestStoreLoadSameGroup: a store and a load by neighboring items of one
// group, with no barrier between them.
func TestStoreLoadSameGroup(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 4, 0x55)
	f.load(1, 4, 1)

	races := f.wantRaces(1)
	d := races[0]

	if d.Kind != message.ReadWriteRace {
		t.Errorf("Kind = %v, want Read-write", d.Kind)
	}

	if got := d.Second.String(); got != "Global(0,0,0) Local(0,0,0) Group(0,0,0)" {
		t.Errorf("Second entity = %q", got)
	}
}

// TestGlobalFenceDoesNotLicenseOtherGroups: a global fence in the storing
// group must not make the byte readable by a group that has not reached
// any synchronization with it.
func TestGlobalFenceDoesNotLicenseOtherGroups(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 8, 0x01)
	f.det.WorkGroupBarrier(f.groups[0], device.GlobalMemFence)
	f.load(2, 8, 1)

	races := f.wantRaces(1)
	d := races[0]

	if d.Kind != message.ReadWriteRace {
		t.Errorf("Kind = %v, want Read-write", d.Kind)
	}

	// The fence dropped the work-item attribution; the group survives.
	if got := d.Second.String(); got != "Group(0,0,0)" {
		t.Errorf("Second entity = %q, want Group(0,0,0)", got)
	}
}

// TestAtomicsCompatible: atomic accesses never race with each other, same
// group or not.
func TestAtomicsCompatible(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.atomic(0, 12, 4)
	f.atomic(1, 12, 4)
	f.atomic(2, 12, 4)

	f.wantRaces(0)
}

// TestAtomicThenStore: a non-atomic store over a byte previously accessed
// atomically by another item is a race, classified atomic-vs-non-atomic.
func TestAtomicThenStore(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.atomic(0, 12, 4)
	f.mem.Store(f.base+12, []byte{0x01, 0x00, 0x00, 0x00}) // committed add result

	f.store(2, 12, 0x00)

	races := f.wantRaces(1)

	if races[0].Kind != message.ReadWriteRace {
		t.Errorf("Kind = %v, want Read-write", races[0].Kind)
	}

	if got := races[0].Second.String(); got != "Global(0,0,0) Local(0,0,0) Group(0,0,0)" {
		t.Errorf("Second entity = %q", got)
	}

	// The racing access is the store, not the atomic.
	if races[0].AtomicOp != "" {
		t.Errorf("AtomicOp = %q, want empty for a store-side report", races[0].AtomicOp)
	}
}

// TestStoreThenAtomic: the mirror ordering, detected on the atomic side,
// which carries the opcode into the diagnostic.
func TestStoreThenAtomic(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 12, 0x01)
	f.atomic(2, 12, 4)

	races := f.wantRaces(1)

	if races[0].Kind != message.ReadWriteRace {
		t.Errorf("Kind = %v, want Read-write", races[0].Kind)
	}

	if races[0].AtomicOp != "add" {
		t.Errorf("AtomicOp = %q, want add", races[0].AtomicOp)
	}
}

// TestAtomicSameItemExempt: a work-item may mix atomics with its own
// earlier non-atomic accesses.
func TestAtomicSameItemExempt(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 12, 0x01)
	f.atomic(0, 12, 4)

	f.wantRaces(0)
}

// TestUniformWriteFilter: identical simultaneous stores are benign with
// the filter on and racing with it off.
func TestUniformWriteFilter(t *testing.T) {
	t.Run("filter on", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())
		f.mem.Store(f.base, []byte{0x07}) // prior content

		f.store(0, 0, 0x07)
		f.store(2, 0, 0x07)

		f.wantRaces(0)
	})

	t.Run("filter off", func(t *testing.T) {
		f := newFixture(t, Options{AllowUniformWrites: false})
		f.mem.Store(f.base, []byte{0x07})

		f.store(0, 0, 0x07)
		f.store(2, 0, 0x07)

		races := f.wantRaces(1)

		if races[0].Kind != message.WriteWriteRace {
			t.Errorf("Kind = %v, want Write-write", races[0].Kind)
		}
	})

	t.Run("differing value still races", func(t *testing.T) {
		f := newFixture(t, DefaultOptions())

		f.store(0, 0, 0x07)
		f.store(2, 0, 0x08)

		f.wantRaces(1)
	})
}

// TestSameItemStoreThenLoad: a work-item reading back its own store is
// never a race.
func TestSameItemStoreThenLoad(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0xAA)
	f.load(0, 0, 1)

	f.wantRaces(0)
}

// TestConcurrentReadsBenign: loads keep the byte readable, so any number
// of groups may read the same global byte.
func TestConcurrentReadsBenign(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.load(0, 0, 4)
	f.load(2, 0, 4)
	f.load(1, 0, 4)
	f.load(3, 0, 4)

	f.wantRaces(0)
}

// TestZeroSizeAccess: an empty access range mutates nothing.
func TestZeroSizeAccess(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.load(0, 0, 0)
	f.det.MemoryStore(f.mem, f.item(0), f.base, nil)

	// The byte is still fresh: a store by another group sees no conflict.
	f.store(2, 0, 0xAA)

	f.wantRaces(0)
}

// TestOneDiagnosticPerAccess: an access racing on every byte of its range
// reports only the first racing byte.
func TestOneDiagnosticPerAccess(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0x01, 0x02, 0x03, 0x04)
	f.store(2, 0, 0x11, 0x12, 0x13, 0x14)

	races := f.wantRaces(1)

	if races[0].Address != f.base {
		t.Errorf("Address = %#x, want first racing byte %#x", races[0].Address, f.base)
	}
}

// TestFullRegionAccess: an access spanning the whole region visits every
// byte (the last byte alone is enough to collide with).
func TestFullRegionAccess(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 15, 0xFF)

	data := make([]byte, 16)
	f.det.MemoryStore(f.mem, f.item(2), f.base, data)

	f.wantRaces(1)
}

// TestRepeatedRaceDeduplicated: re-running the same racing access does not
// spam the sink; the counter stays at one.
func TestRepeatedRaceDeduplicated(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 0, 0xAA)
	f.store(2, 0, 0xBB)
	f.store(2, 0, 0xCC)

	f.wantRaces(1)

	if got := f.det.RacesDetected(); got != 1 {
		t.Errorf("RacesDetected() = %d, want 1", got)
	}
}

// TestUniformAccessActors: work-group uniform accesses carry no work-item
// identity; the group itself is the entity on both sides of the check.
func TestUniformAccessActors(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.det.MemoryStoreUniform(f.mem, f.groups[0], f.base, []byte{0x01})
	f.mem.Store(f.base, []byte{0x01})

	// Same group reading its own uniform store: exempt.
	f.load(0, 0, 1)
	f.wantRaces(0)

	// Another group reading it: a race against the recorded group.
	f.load(2, 0, 1)

	races := f.wantRaces(1)

	if got := races[0].Second.String(); got != "Group(0,0,0)" {
		t.Errorf("Second entity = %q, want Group(0,0,0)", got)
	}
}

// TestPrivateSpaceIgnored: private events neither create shadow state nor
// report races.
func TestPrivateSpaceIgnored(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	priv := device.NewSimMemory(device.SpacePrivate)
	base := priv.Allocate(8)

	f.det.MemoryAllocated(priv, base, 8)
	f.det.MemoryStore(priv, f.item(0), base, []byte{1})
	f.det.MemoryStore(priv, f.item(2), base, []byte{2})
	f.det.MemoryDeallocated(priv, base)

	f.wantRaces(0)
}

// TestUnknownRegionGuarded: accesses to addresses with no allocation event
// are dropped, not crashed on.
func TestUnknownRegionGuarded(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	bogus := device.MakeAddress(99, 0)
	f.det.MemoryStore(f.mem, f.item(0), bogus, []byte{1})
	f.det.MemoryLoad(f.mem, f.item(2), bogus, 1)
	f.det.MemoryAtomic(f.mem, f.item(1), device.AtomicAdd, bogus, 4)

	f.wantRaces(0)
}

// TestAccessPastRegionTruncated: the range is clamped to the region, and
// the surviving prefix still participates in detection.
func TestAccessPastRegionTruncated(t *testing.T) {
	f := newFixture(t, DefaultOptions())

	f.store(0, 14, 0x01, 0x02, 0x03, 0x04) // bytes 14..17, clamped to 14..15
	f.store(2, 14, 0x11, 0x12, 0x13, 0x14)

	f.wantRaces(1)
}

// TestNoInvocationIgnored: memory events before kernelBegin are dropped.
func TestNoInvocationIgnored(t *testing.T) {
	sink := &message.Collector{}
	det := New(sink, DefaultOptions())

	mem := device.NewSimMemory(device.SpaceGlobal)
	base := mem.Allocate(8)
	det.MemoryAllocated(mem, base, 8)

	wi := &device.WorkItem{GlobalIndex: 0}
	det.MemoryStore(mem, wi, base, []byte{1})

	if len(sink.Races()) != 0 {
		t.Fatalf("got %d races before any invocation", len(sink.Races()))
	}
}

// TestOptionsFromEnv: presence of OCLGRIND_UNIFORM_WRITES disables the
// filter, any value included.
func TestOptionsFromEnv(t *testing.T) {
	if got := OptionsFromEnv(); !got.AllowUniformWrites {
		t.Skip("OCLGRIND_UNIFORM_WRITES set in the outer environment")
	}

	t.Setenv(UniformWritesEnv, "")

	if got := OptionsFromEnv(); got.AllowUniformWrites {
		t.Error("filter still enabled with OCLGRIND_UNIFORM_WRITES set")
	}
}
