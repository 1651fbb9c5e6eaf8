// Package detector implements the shadow-memory data-race detector for the
// simulated OpenCL device.
//
// The interpreter notifies the detector of every memory event (allocate,
// deallocate, load, store, atomic) and every synchronization event
// (work-group barrier, kernel begin/end). The detector keeps one ShadowByte
// per byte of every non-private allocation and reports a diagnostic when
// two concurrent entities touch the same byte in a way the memory model
// forbids.
//
// # Access tiers
//
// Accesses come in three tiers, and the per-byte state machine reconciles
// them:
//
//  1. work-item: a specific item accessed the byte non-atomically
//  2. work-group uniform: the access belongs to a whole group (async copies)
//  3. atomic: a work-item access under the atomic memory model
//
// A byte's CanRead/CanWrite/CanAtomic flags record which tiers may still
// touch it without racing; the recorded actor carries the same-entity
// exemption (an entity never races with itself).
//
// # Event delivery
//
// The interpreter drives a deterministic single-threaded simulation, so
// event handlers run to completion sequentially and the detector takes no
// locks. Correctness relies on the interpreter delivering each work-item's
// accesses contiguously with respect to its group's barriers; the detector
// does not verify that.
package detector
