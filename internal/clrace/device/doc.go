// Package device models the slice of the simulated OpenCL device that the
// race detector observes: address spaces, the buffer/offset address encoding,
// kernel invocations, work-items, work-groups, and memory objects.
//
// The interpreter owns all of these; the detector only borrows them for the
// duration of a single event. Nothing in this package performs detection.
//
// # Address encoding
//
// Device addresses are opaque 64-bit values carrying a buffer id in the top
// bits and a byte offset in the bottom bits. The split is a compile-time
// constant shared with the interpreter and is part of the plugin ABI; see
// BufferOf and OffsetOf.
//
// # Work-item identity
//
// A work-item is identified by its 3-D global index linearized to a single
// integer (row-major: x fastest). Size3 provides the linearization and its
// inverse, which the reporter uses to turn a recorded index back into
// Global/Local/Group coordinates.
package device
