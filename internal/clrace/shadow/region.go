package shadow

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/kolkov/clracer/internal/clrace/device"
)

// ShadowByte is the per-byte access record.
//
// Invariants:
//   - WasWorkItem implies WorkItem is known.
//   - A byte with CanRead and CanWrite both false records at least one
//     writer in WorkItem/WorkGroup, enough to attribute a race.
type ShadowByte struct {
	// Instruction names the source position of the last recorded access.
	// Diagnostics only; empty when unknown.
	Instruction string

	// WorkItem is the last work-item that accessed this byte, if any.
	WorkItem OptIndex

	// WorkGroup is the last work-group that accessed this byte, if any.
	WorkGroup OptIndex

	// WasWorkItem reports whether WorkItem is the authoritative actor for
	// the same-entity comparison (false means compare work-groups).
	WasWorkItem bool

	// CanRead, CanWrite, CanAtomic record which access classes are still
	// permissible on this byte without racing.
	CanRead   bool
	CanWrite  bool
	CanAtomic bool
}

// InitialShadowByte is the state of a byte after allocation and after a
// full synchronize: no recorded actor, every access class permitted.
func InitialShadowByte() ShadowByte {
	return ShadowByte{
		CanRead:   true,
		CanWrite:  true,
		CanAtomic: true,
	}
}

// Region is the shadow of one live allocation: a byte-parallel array of
// ShadowByte records plus a set of the offsets whose state has diverged
// from the initial one. Synchronize sweeps only that set, so a barrier
// costs what the kernel actually touched rather than the allocation size.
type Region struct {
	// Mem is the memory object the allocation lives in.
	Mem device.Memory

	// Space is Mem's address space, cached for diagnostics and for
	// space-wide synchronization sweeps.
	Space device.AddressSpace

	// Buffer is the allocation's buffer id.
	Buffer uint64

	// Bytes holds one record per byte of the allocation.
	Bytes []ShadowByte

	touched *bitset.BitSet
}

// NewRegion creates an all-initial shadow region of the given size.
func NewRegion(mem device.Memory, buffer, size uint64) *Region {
	r := &Region{
		Mem:     mem,
		Space:   mem.AddressSpace(),
		Buffer:  buffer,
		Bytes:   make([]ShadowByte, size),
		touched: bitset.New(uint(size)),
	}

	for i := range r.Bytes {
		r.Bytes[i] = InitialShadowByte()
	}

	return r
}

// Size returns the allocation size in bytes.
func (r *Region) Size() uint64 {
	return uint64(len(r.Bytes))
}

// Touch marks a byte as diverged from the initial state. Callers must
// invoke it after every state update that is not a full reset.
func (r *Region) Touch(offset uint64) {
	r.touched.Set(uint(offset))
}

// Touched reports whether the byte at offset has been marked.
func (r *Region) Touched(offset uint64) bool {
	return r.touched.Test(uint(offset))
}

// Synchronize applies barrier semantics to every touched byte.
//
// Always: CanAtomic is re-enabled and the work-item attribution dropped.
// With workGroupOnly false the byte returns fully to the initial state and
// the touched set is cleared; with workGroupOnly true the work-group
// attribution and the read/write permissions survive, so distinct groups
// still cannot race on the same global byte across their own barriers.
//
// CanAtomic is re-enabled even on a work-group-only synchronize. That
// mirrors the behavior the conformance kernels expect, but it lets an
// atomic in one group slip past a prior non-atomic access in another after
// a global fence; a stricter rule would keep CanAtomic false here.
func (r *Region) Synchronize(workGroupOnly bool) {
	for i, ok := r.touched.NextSet(0); ok; i, ok = r.touched.NextSet(i + 1) {
		sb := &r.Bytes[i]
		sb.CanAtomic = true
		sb.WorkItem = NoIndex
		sb.WasWorkItem = false

		if !workGroupOnly {
			*sb = InitialShadowByte()
		}
	}

	if !workGroupOnly {
		r.touched.ClearAll()
	}
}
