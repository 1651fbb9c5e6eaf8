package detector

import (
	log "github.com/sirupsen/logrus"

	"github.com/kolkov/clracer/internal/clrace/device"
	"github.com/kolkov/clracer/internal/clrace/message"
	"github.com/kolkov/clracer/internal/clrace/shadow"
)

// Detector is the race-detection plugin. One instance observes one device;
// construct it once and feed it the interpreter's event stream.
//
// All methods assume single-threaded event delivery (see package doc).
type Detector struct {
	store *shadow.Store
	sink  message.Sink

	invocation *device.KernelInvocation

	allowUniformWrites bool

	races    int
	reported map[reportKey]struct{}
}

// New creates a detector that emits diagnostics into sink.
func New(sink message.Sink, opts Options) *Detector {
	if sink == nil {
		sink = message.LogSink{}
	}

	return &Detector{
		store:              shadow.NewStore(),
		sink:               sink,
		allowUniformWrites: opts.AllowUniformWrites,
		reported:           make(map[reportKey]struct{}),
	}
}

// NewFromEnv creates a detector configured from the process environment.
func NewFromEnv(sink message.Sink) *Detector {
	return New(sink, OptionsFromEnv())
}

// RacesDetected returns the number of unique race diagnostics emitted so
// far, across all kernel invocations.
func (d *Detector) RacesDetected() int {
	return d.races
}

// KernelBegin adopts inv as the current invocation. No shadow state is
// reset here; the previous KernelEnd already did that.
func (d *Detector) KernelBegin(inv *device.KernelInvocation) {
	d.invocation = inv
}

// KernelEnd fully synchronizes global memory, so that buffers surviving
// into the next launch carry no stale attribution, and drops the current
// invocation.
func (d *Detector) KernelEnd(*device.KernelInvocation) {
	d.synchronizeSpace(device.SpaceGlobal, false)

	d.invocation = nil
	d.reported = make(map[reportKey]struct{})
}

// MemoryAllocated creates the shadow region for a new allocation.
func (d *Detector) MemoryAllocated(mem device.Memory, address, size uint64) {
	d.store.Create(mem, address, size)
}

// MemoryDeallocated destroys the shadow region of a released allocation.
func (d *Detector) MemoryDeallocated(mem device.Memory, address uint64) {
	d.store.Destroy(mem, address)
}

// MemoryLoad records a non-atomic load by a specific work-item.
func (d *Detector) MemoryLoad(mem device.Memory, wi *device.WorkItem, address, size uint64) {
	d.registerAccess(mem, wi, wi.Group, address, size, nil)
}

// MemoryLoadUniform records a load attributed to a whole work-group, such
// as the read side of an async copy.
func (d *Detector) MemoryLoadUniform(mem device.Memory, wg *device.WorkGroup, address, size uint64) {
	d.registerAccess(mem, nil, wg, address, size, nil)
}

// MemoryStore records a non-atomic store by a specific work-item. The
// event carries the bytes being stored; the interpreter commits them to
// memory only after the notification, so the uniform-write filter sees the
// pre-store contents.
func (d *Detector) MemoryStore(mem device.Memory, wi *device.WorkItem, address uint64, data []byte) {
	d.registerAccess(mem, wi, wi.Group, address, uint64(len(data)), data)
}

// MemoryStoreUniform records a store attributed to a whole work-group.
func (d *Detector) MemoryStoreUniform(mem device.Memory, wg *device.WorkGroup, address uint64, data []byte) {
	d.registerAccess(mem, nil, wg, address, uint64(len(data)), data)
}

// registerAccess applies the load/store transition rules to every byte of
// the access range. At most one race diagnostic is emitted per call: the
// first racing byte wins, and later bytes keep updating state silently.
func (d *Detector) registerAccess(mem device.Memory, wi *device.WorkItem,
	wg *device.WorkGroup, address, size uint64, storeData []byte) {
	if d.invocation == nil || mem.AddressSpace() == device.SpacePrivate {
		return
	}

	region, base, size := d.lookupRange(mem, address, size)
	if region == nil {
		return
	}

	load := storeData == nil
	store := !load

	item := shadow.NoIndex
	if wi != nil {
		item = shadow.Index(wi.GlobalIndex)
	}

	group := shadow.NoIndex
	if wg != nil {
		group = shadow.Index(wg.Index)
	}

	// Pre-store contents of the access range, for the uniform-write filter.
	var current []byte
	if d.allowUniformWrites && store {
		current = mem.Pointer(address)
	}

	raced := false

	for off := uint64(0); off < size; off++ {
		sb := &region.Bytes[base+off]

		conflict := !sb.CanRead
		if store {
			conflict = !sb.CanWrite
		}

		// A store of the byte already in memory is benign.
		if store && current != nil && off < uint64(len(current)) {
			conflict = conflict && current[off] != storeData[off]
		}

		// An entity never races with itself: when the recorded actor was a
		// work-item, compare work-items, otherwise compare work-groups.
		sameEntity := sb.WorkGroup == group
		if sb.WasWorkItem {
			sameEntity = sb.WorkItem == item
		}

		if !raced && conflict && !sameEntity {
			// Write-write only when both sides stored. CanRead still set
			// (or this being a load) means one side was a read; CanAtomic
			// still set with a recorded work-item means the prior op was
			// an atomic, since every non-atomic update clears CanAtomic
			// and a synchronize clears WasWorkItem.
			kind := message.WriteWriteRace
			if load || sb.CanRead || (sb.CanAtomic && sb.WasWorkItem) {
				kind = message.ReadWriteRace
			}

			d.logRace(kind, region.Space, address+off, *sb, wi, wg, "")

			raced = true

			continue
		}

		// Only take over the recorded actor when this op is at least as
		// strong as the previous one: a store always, a load only while
		// the byte still permitted writes (no earlier load, store or atomic
		// since the last full synchronize).
		updateActor := store || sb.CanWrite

		sb.CanAtomic = false
		sb.CanRead = sb.CanRead && load
		sb.CanWrite = false

		if updateActor {
			sb.WorkGroup = group

			if wi != nil {
				sb.Instruction = wi.Location
				sb.WorkItem = item
				sb.WasWorkItem = true
			}
		}

		region.Touch(base + off)
	}
}

// MemoryAtomic records an atomic access by a work-item. Atomics are
// mutually compatible; only a byte previously touched non-atomically by a
// different work-item races.
func (d *Detector) MemoryAtomic(mem device.Memory, wi *device.WorkItem,
	op device.AtomicOp, address, size uint64) {
	if d.invocation == nil || mem.AddressSpace() == device.SpacePrivate {
		return
	}

	region, base, size := d.lookupRange(mem, address, size)
	if region == nil {
		return
	}

	item := shadow.Index(wi.GlobalIndex)
	raced := false

	for off := uint64(0); off < size; off++ {
		sb := &region.Bytes[base+off]

		// The same-entity check consults the recorded work-item only, even
		// when the prior actor was a work-group uniform access. Races whose
		// prior actor was a work-group may go unreported here.
		if !raced && !sb.CanAtomic && sb.WorkItem != item {
			d.logRace(message.ReadWriteRace, region.Space, address+off, *sb, wi, nil, op.String())

			raced = true
		}

		// Unlike a store, an atomic leaves CanAtomic set and never steals
		// attribution from an earlier work-item.
		sb.CanRead = false
		sb.CanWrite = false

		if !sb.WasWorkItem {
			sb.Instruction = wi.Location
			sb.WorkItem = item
			sb.WasWorkItem = true
		}

		region.Touch(base + off)
	}
}

// WorkGroupBarrier applies barrier semantics for one group: a local fence
// fully resets the group's local memory, a global fence applies the
// work-group-only reset to global memory (different groups must still not
// race on the same global byte).
func (d *Detector) WorkGroupBarrier(wg *device.WorkGroup, flags device.MemFenceFlags) {
	if flags&device.LocalMemFence != 0 && wg != nil && wg.LocalMem != nil {
		d.synchronizeMemory(wg.LocalMem, false)
	}

	if flags&device.GlobalMemFence != 0 {
		d.synchronizeSpace(device.SpaceGlobal, true)
	}
}

// synchronizeMemory sweeps every region of one memory object.
func (d *Detector) synchronizeMemory(mem device.Memory, workGroupOnly bool) {
	d.store.ForEach(func(r *shadow.Region) {
		if r.Mem == mem {
			r.Synchronize(workGroupOnly)
		}
	})
}

// synchronizeSpace sweeps every region of every memory object in a space.
func (d *Detector) synchronizeSpace(space device.AddressSpace, workGroupOnly bool) {
	d.store.ForEach(func(r *shadow.Region) {
		if r.Space == space {
			r.Synchronize(workGroupOnly)
		}
	})
}

// lookupRange resolves an access to its region and clamps the range to the
// region's bounds. Unknown regions and out-of-range spans are interpreter
// contract violations: noted at debug level, never fatal.
func (d *Detector) lookupRange(mem device.Memory, address, size uint64) (*shadow.Region, uint64, uint64) {
	region, base, ok := d.store.Lookup(mem, address)
	if !ok {
		log.Debugf("detector: access to unknown %s region at 0x%x",
			mem.AddressSpace().Name(), address)

		return nil, 0, 0
	}

	if base > region.Size() {
		log.Debugf("detector: access past %s buffer %d (offset %d, size %d)",
			region.Space.Name(), region.Buffer, base, region.Size())

		return nil, 0, 0
	}

	if base+size > region.Size() {
		log.Debugf("detector: access past %s buffer %d truncated (offset %d, size %d, buffer size %d)",
			region.Space.Name(), region.Buffer, base, size, region.Size())

		size = region.Size() - base
	}

	return region, base, size
}
