// Package message defines the diagnostics the detector emits and the sink
// they are pushed into.
//
// The detector never aborts the program under test: a data race becomes one
// Diagnostic sent to the configured Sink, and event processing continues.
package message

import (
	"fmt"
	"strings"

	"github.com/kolkov/clracer/internal/clrace/device"
)

// Severity grades a diagnostic. Race reports are always SeverityError; the
// detector emits no lower-severity diagnostics (interpreter-contract
// violations are logged through logrus instead).
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// RaceKind classifies a detected data race.
type RaceKind int

const (
	// ReadWriteRace is a read racing with a write (in either order), or an
	// atomic racing with a non-atomic access.
	ReadWriteRace RaceKind = iota

	// WriteWriteRace is two conflicting writes.
	WriteWriteRace
)

// String returns the report heading for the race kind.
func (k RaceKind) String() string {
	switch k {
	case ReadWriteRace:
		return "Read-write"
	case WriteWriteRace:
		return "Write-write"
	default:
		return "Unknown"
	}
}

// Entity identifies one side of a race: either a specific work-item (with
// its full coordinate triple), a whole work-group (uniform accesses such as
// async copies), or nothing at all when the shadow state recorded no actor.
type Entity struct {
	// Global, Local, Group are the work-item's coordinates. Only meaningful
	// when HasItem is set.
	Global, Local, Group device.Size3

	// HasItem marks a specific work-item.
	HasItem bool

	// HasGroup marks a work-group-uniform actor; Group holds its coordinate.
	HasGroup bool
}

// String renders the entity the way the report shows it:
//
//	Global(2,0,0) Local(0,0,0) Group(1,0,0)   specific work-item
//	Group(1,0,0)                              work-group uniform
//	(unknown)                                 no recorded actor
func (e Entity) String() string {
	switch {
	case e.HasItem:
		return fmt.Sprintf("Global%s Local%s Group%s", e.Global, e.Local, e.Group)
	case e.HasGroup:
		return fmt.Sprintf("Group%s", e.Group)
	default:
		return "(unknown)"
	}
}

// Diagnostic is one structured message from the detector. Race reports fill
// every field; internal-fault notes fill only Severity and Text.
type Diagnostic struct {
	Severity Severity

	// Kind is set for race reports.
	Kind RaceKind

	// Space and Address locate the racing byte.
	Space   device.AddressSpace
	Address uint64

	// Kernel is the current kernel invocation's identity.
	Kernel string

	// First is the entity performing the access that tripped the report,
	// FirstLocation its current source position (may be empty).
	First         Entity
	FirstLocation string

	// Second is the entity recorded in shadow state from the earlier
	// conflicting access, SecondLocation the access site it recorded.
	Second         Entity
	SecondLocation string

	// AtomicOp names the atomic operation for races detected on the
	// atomic side ("add", "cmpxchg", ...); empty for non-atomic accesses.
	AtomicOp string

	// Text carries free-form content for non-race diagnostics.
	Text string
}

// String renders the diagnostic in the device-diagnostic style:
//
//	Read-write data race at global memory address 0x1000000000004
//	  Kernel: vecadd
//	  First entity:  Global(0,0,0) Local(0,0,0) Group(0,0,0)
//	    at kernel.cl:12
//	  Second entity: Global(2,0,0) Local(0,0,0) Group(1,0,0)
//	    at kernel.cl:9
//
// Races detected on the atomic side carry the opcode in the heading:
// "... memory address 0xc (atomic add)".
func (d *Diagnostic) String() string {
	if d.Text != "" {
		return d.Text
	}

	var b strings.Builder

	fmt.Fprintf(&b, "%s data race at %s memory address 0x%x",
		d.Kind, d.Space.Name(), d.Address)

	if d.AtomicOp != "" {
		fmt.Fprintf(&b, " (atomic %s)", d.AtomicOp)
	}

	b.WriteByte('\n')
	fmt.Fprintf(&b, "  Kernel: %s\n", d.Kernel)
	fmt.Fprintf(&b, "  First entity:  %s\n", d.First)

	if d.FirstLocation != "" {
		fmt.Fprintf(&b, "    at %s\n", d.FirstLocation)
	}

	fmt.Fprintf(&b, "  Second entity: %s\n", d.Second)

	if d.SecondLocation != "" {
		fmt.Fprintf(&b, "    at %s\n", d.SecondLocation)
	}

	return b.String()
}
