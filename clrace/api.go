// Package clrace provides the public API of the OpenCL kernel data-race
// detector.
//
// See doc.go for detailed documentation and examples.
package clrace

import (
	"github.com/kolkov/clracer/internal/clrace/detector"
	"github.com/kolkov/clracer/internal/clrace/device"
	"github.com/kolkov/clracer/internal/clrace/message"
)

// Device-side descriptor types the embedding interpreter supplies with its
// events. Aliases of the internal types, so values are interchangeable.
type (
	// AddressSpace tags a memory object: private, local, global, constant.
	AddressSpace = device.AddressSpace

	// Memory is one memory object of the simulated device.
	Memory = device.Memory

	// SimMemory is the in-process Memory used by tests and the replayer.
	SimMemory = device.SimMemory

	// KernelInvocation describes one kernel launch.
	KernelInvocation = device.KernelInvocation

	// WorkGroup is one group of work-items sharing local memory.
	WorkGroup = device.WorkGroup

	// WorkItem is one lane of the kernel.
	WorkItem = device.WorkItem

	// Size3 is a 3-D extent or coordinate.
	Size3 = device.Size3

	// AtomicOp identifies an atomic operation.
	AtomicOp = device.AtomicOp

	// MemFenceFlags selects the spaces a barrier fences.
	MemFenceFlags = device.MemFenceFlags
)

// Address space values.
const (
	SpacePrivate  = device.SpacePrivate
	SpaceLocal    = device.SpaceLocal
	SpaceGlobal   = device.SpaceGlobal
	SpaceConstant = device.SpaceConstant
)

// Barrier fence flags.
const (
	LocalMemFence  = device.LocalMemFence
	GlobalMemFence = device.GlobalMemFence
)

// Diagnostic surface: what the detector emits and where it emits to.
type (
	// Diagnostic is one structured message from the detector.
	Diagnostic = message.Diagnostic

	// Severity grades a diagnostic; race reports are SeverityError.
	Severity = message.Severity

	// RaceKind classifies a race (read-write or write-write).
	RaceKind = message.RaceKind

	// Sink receives diagnostics.
	Sink = message.Sink

	// Collector is a Sink that retains everything it receives.
	Collector = message.Collector
)

// Severity and race-kind values.
const (
	SeverityError  = message.SeverityError
	ReadWriteRace  = message.ReadWriteRace
	WriteWriteRace = message.WriteWriteRace
)

// NewSimMemory creates an empty in-process memory object for the given
// space. Interpreters with their own memory model implement Memory instead.
func NewSimMemory(space AddressSpace) *SimMemory {
	return device.NewSimMemory(space)
}

// Detector is the race-detection plugin; feed it the interpreter's event
// stream. See the methods on detector.Detector for the event surface.
type Detector = detector.Detector

// Options carries the detector's single tunable, the uniform-write filter.
type Options = detector.Options

// New creates a detector emitting diagnostics into sink. A nil sink falls
// back to logging via logrus.
func New(sink Sink, opts Options) *Detector {
	return detector.New(sink, opts)
}

// NewFromEnv creates a detector configured from the process environment:
// setting OCLGRIND_UNIFORM_WRITES disables the uniform-write filter.
func NewFromEnv(sink Sink) *Detector {
	return detector.NewFromEnv(sink)
}

// DefaultOptions returns the built-in defaults (uniform-write filter on).
func DefaultOptions() Options {
	return detector.DefaultOptions()
}
