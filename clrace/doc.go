// Package clrace detects data races in simulated OpenCL kernel executions.
//
// The detector is a plugin to an OpenCL-style interpreter: the interpreter
// notifies it of every memory event (allocate, deallocate, load, store,
// atomic) and every synchronization event (work-group barrier, kernel
// begin/end). The detector keeps a byte-granular shadow state of every
// non-private memory region and emits a diagnostic whenever two concurrent
// entities access the same byte in a way the memory model forbids.
//
// # Quick Start
//
// Create a detector, then forward the interpreter's events:
//
//	sink := &clrace.Collector{}
//	d := clrace.NewFromEnv(sink)
//
//	d.KernelBegin(inv)
//	d.MemoryAllocated(globalMem, addr, 16)
//	d.MemoryStore(globalMem, workItem, addr, []byte{0xAA})
//	// ... more events ...
//	d.KernelEnd(inv)
//
//	for _, diag := range sink.Races() {
//		fmt.Println(diag.String())
//	}
//
// # What counts as a race
//
// Per byte, the detector tracks which access classes remain permissible:
//
//   - two non-atomic accesses conflict unless both are loads, or both
//     belong to the same entity;
//   - atomics are compatible with each other but race with non-atomic
//     accesses by other work-items;
//   - a store of the value already in memory is filtered as benign unless
//     the uniform-write filter is disabled (OCLGRIND_UNIFORM_WRITES).
//
// Work-group barriers re-enable intra-group reuse of local memory and
// reset atomic compatibility; a kernel end fully resets global memory so
// launches never race with each other.
//
// The detector never stops the program under test: each race becomes one
// error-severity Diagnostic on the configured Sink, deduplicated per race
// site, and execution continues.
//
// # Replaying recorded traces
//
// The clracer CLI replays YAML event traces through the detector:
//
//	$ clracer check trace.yaml
//
// See cmd/clracer and internal/clrace/trace for the trace schema.
package clrace
