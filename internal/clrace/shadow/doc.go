// Package shadow implements the detector's shadow memory: one ShadowByte of
// metadata per byte of every non-private allocation on the device.
//
// A Region mirrors one allocation (a byte-parallel slice of ShadowByte
// records sharing the allocation's lifetime) and the Store maps each live
// allocation, keyed by (memory object, buffer id), to its Region. Keying by
// memory object rather than by address space matters for local memory:
// every work-group owns a distinct local-memory object, and a barrier in
// one group must not disturb another group's shadow state.
//
// The package records and resets state; it decides nothing. The access and
// synchronization protocols that drive these records live in the detector
// package.
package shadow
