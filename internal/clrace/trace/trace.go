// Package trace loads recorded kernel event traces and replays them
// through the detector.
//
// A trace is the serialized form of the event stream an interpreter would
// deliver live: kernel geometry, buffer allocations, then the ordered
// memory and barrier events. The replayer reconstructs the device-side
// descriptors, commits stores to a simulated memory after notifying the
// detector (the same order the interpreter uses, which is what makes the
// uniform-write filter observable), and reports how many races were found.
package trace

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kernel describes the traced kernel launch.
type Kernel struct {
	Name       string    `yaml:"name"`
	GlobalSize [3]uint64 `yaml:"global_size"`
	LocalSize  [3]uint64 `yaml:"local_size"`
}

// Buffer declares one allocation made before the kernel runs.
type Buffer struct {
	// Space is "global", "local" or "constant".
	Space string `yaml:"space"`

	// Size is the allocation size in bytes.
	Size uint64 `yaml:"size"`

	// Group selects which work-group's local memory a local buffer lives
	// in. Ignored for other spaces.
	Group uint64 `yaml:"group,omitempty"`

	// Init optionally pre-fills the buffer (hex bytes, repeated pattern
	// not supported; shorter than Size leaves the tail zeroed).
	Init string `yaml:"init,omitempty"`
}

// Event is one entry of the recorded stream. Op selects the shape:
//
//	load        work_item, buffer, offset, size
//	load-group  group, buffer, offset, size
//	store       work_item, buffer, offset, data
//	store-group group, buffer, offset, data
//	atomic      work_item, atomic, buffer, offset, size, data?
//	barrier     group, flags (subset of [local, global])
type Event struct {
	Op       string   `yaml:"op"`
	WorkItem *uint64  `yaml:"work_item,omitempty"`
	Group    *uint64  `yaml:"group,omitempty"`
	Buffer   int      `yaml:"buffer"`
	Offset   uint64   `yaml:"offset"`
	Size     uint64   `yaml:"size,omitempty"`
	Data     string   `yaml:"data,omitempty"`
	Atomic   string   `yaml:"atomic,omitempty"`
	Flags    []string `yaml:"flags,omitempty"`

	// Location optionally names the source position of the access, carried
	// into diagnostics.
	Location string `yaml:"location,omitempty"`
}

// Trace is a complete recorded kernel run.
type Trace struct {
	Kernel  Kernel   `yaml:"kernel"`
	Buffers []Buffer `yaml:"buffers"`
	Events  []Event  `yaml:"events"`
}

// Parse decodes a trace from YAML.
func Parse(data []byte) (*Trace, error) {
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parsing trace: %w", err)
	}

	if err := tr.validate(); err != nil {
		return nil, err
	}

	return &tr, nil
}

// Load reads and decodes a trace file.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}

	return Parse(data)
}

func (tr *Trace) validate() error {
	for i, d := range tr.Kernel.LocalSize {
		if d == 0 {
			return fmt.Errorf("trace: local_size[%d] is zero", i)
		}

		if g := tr.Kernel.GlobalSize[i]; g == 0 || g%d != 0 {
			return fmt.Errorf("trace: global_size[%d]=%d not a positive multiple of local_size[%d]=%d",
				i, g, i, d)
		}
	}

	for i, b := range tr.Buffers {
		if _, ok := parseSpace(b.Space); !ok {
			return fmt.Errorf("trace: buffer %d: unknown space %q", i, b.Space)
		}

		if b.Size == 0 {
			return fmt.Errorf("trace: buffer %d: zero size", i)
		}

		if b.Init != "" {
			if _, err := hex.DecodeString(b.Init); err != nil {
				return fmt.Errorf("trace: buffer %d: bad init data: %w", i, err)
			}
		}
	}

	items := tr.Kernel.GlobalSize[0] * tr.Kernel.GlobalSize[1] * tr.Kernel.GlobalSize[2]

	for i, ev := range tr.Events {
		if err := ev.validate(items, len(tr.Buffers)); err != nil {
			return fmt.Errorf("trace: event %d: %w", i, err)
		}
	}

	return nil
}

func (ev *Event) validate(items uint64, buffers int) error {
	needItem := func() error {
		if ev.WorkItem == nil {
			return fmt.Errorf("%s: missing work_item", ev.Op)
		}

		if *ev.WorkItem >= items {
			return fmt.Errorf("%s: work_item %d out of range (%d items)", ev.Op, *ev.WorkItem, items)
		}

		return nil
	}
	needGroup := func() error {
		if ev.Group == nil {
			return fmt.Errorf("%s: missing group", ev.Op)
		}

		return nil
	}
	needBuffer := func() error {
		if ev.Buffer < 0 || ev.Buffer >= buffers {
			return fmt.Errorf("%s: buffer %d out of range (%d declared)", ev.Op, ev.Buffer, buffers)
		}

		return nil
	}

	switch ev.Op {
	case "load":
		return firstErr(needItem, needBuffer)
	case "load-group":
		return firstErr(needGroup, needBuffer)
	case "store":
		if err := firstErr(needItem, needBuffer); err != nil {
			return err
		}

		return ev.checkData()
	case "store-group":
		if err := firstErr(needGroup, needBuffer); err != nil {
			return err
		}

		return ev.checkData()
	case "atomic":
		if err := firstErr(needItem, needBuffer); err != nil {
			return err
		}

		// Recorded traces may carry the post-atomic memory contents, so a
		// replay keeps the uniform-write filter observable.
		if ev.Data != "" {
			if _, err := hex.DecodeString(ev.Data); err != nil {
				return fmt.Errorf("%s: bad data: %w", ev.Op, err)
			}
		}

		return nil
	case "barrier":
		return needGroup()
	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}
}

func (ev *Event) checkData() error {
	if ev.Data == "" {
		return fmt.Errorf("%s: missing data", ev.Op)
	}

	if _, err := hex.DecodeString(ev.Data); err != nil {
		return fmt.Errorf("%s: bad data: %w", ev.Op, err)
	}

	return nil
}

func firstErr(checks ...func() error) error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}
