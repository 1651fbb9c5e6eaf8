package trace

import (
	"encoding/hex"
	"fmt"

	"github.com/kolkov/clracer/internal/clrace/detector"
	"github.com/kolkov/clracer/internal/clrace/device"
	"github.com/kolkov/clracer/internal/clrace/message"
)

// parseSpace maps a trace space name onto an AddressSpace.
func parseSpace(name string) (device.AddressSpace, bool) {
	space, ok := device.ParseAddressSpace(name)
	if !ok || space == device.SpacePrivate {
		return space, false
	}

	return space, true
}

// allocation is one replayed buffer: the memory object it lives in and the
// device address of its first byte.
type allocation struct {
	mem  device.Memory
	base uint64
}

// replayer holds the reconstructed device state for one trace run.
type replayer struct {
	det *detector.Detector
	inv *device.KernelInvocation

	globalMem   *device.SimMemory
	constantMem *device.SimMemory
	groups      []*device.WorkGroup
	localMems   []*device.SimMemory

	allocs []allocation
}

// Replay runs a trace through a fresh detector and returns the number of
// unique races it reported.
func Replay(tr *Trace, sink message.Sink, opts detector.Options) (int, error) {
	inv := &device.KernelInvocation{
		Name: tr.Kernel.Name,
		GlobalSize: device.Size3{
			X: tr.Kernel.GlobalSize[0], Y: tr.Kernel.GlobalSize[1], Z: tr.Kernel.GlobalSize[2],
		},
		LocalSize: device.Size3{
			X: tr.Kernel.LocalSize[0], Y: tr.Kernel.LocalSize[1], Z: tr.Kernel.LocalSize[2],
		},
	}

	r := &replayer{
		det:         detector.New(sink, opts),
		inv:         inv,
		globalMem:   device.NewSimMemory(device.SpaceGlobal),
		constantMem: device.NewSimMemory(device.SpaceConstant),
	}

	numGroups := inv.NumGroups().Linear()
	r.groups = make([]*device.WorkGroup, numGroups)
	r.localMems = make([]*device.SimMemory, numGroups)

	for g := uint64(0); g < numGroups; g++ {
		r.localMems[g] = device.NewSimMemory(device.SpaceLocal)
		r.groups[g] = &device.WorkGroup{Index: g, LocalMem: r.localMems[g]}
	}

	if err := r.allocate(tr.Buffers); err != nil {
		return 0, err
	}

	r.det.KernelBegin(inv)

	for i := range tr.Events {
		if err := r.apply(&tr.Events[i]); err != nil {
			return r.det.RacesDetected(), fmt.Errorf("event %d: %w", i, err)
		}
	}

	r.det.KernelEnd(inv)
	r.deallocate()

	return r.det.RacesDetected(), nil
}

func (r *replayer) allocate(buffers []Buffer) error {
	for i, b := range buffers {
		space, _ := parseSpace(b.Space)

		var mem *device.SimMemory

		switch space {
		case device.SpaceGlobal:
			mem = r.globalMem
		case device.SpaceConstant:
			mem = r.constantMem
		case device.SpaceLocal:
			if b.Group >= uint64(len(r.localMems)) {
				return fmt.Errorf("buffer %d: group %d out of range (%d groups)",
					i, b.Group, len(r.localMems))
			}

			mem = r.localMems[b.Group]
		default:
			return fmt.Errorf("buffer %d: unsupported space %q", i, b.Space)
		}

		base := mem.Allocate(b.Size)
		r.det.MemoryAllocated(mem, base, b.Size)

		if b.Init != "" {
			init, _ := hex.DecodeString(b.Init) // validated on load
			mem.Store(base, init)
		}

		r.allocs = append(r.allocs, allocation{mem: mem, base: base})
	}

	return nil
}

func (r *replayer) deallocate() {
	for _, a := range r.allocs {
		r.det.MemoryDeallocated(a.mem, a.base)

		if sim, ok := a.mem.(*device.SimMemory); ok {
			sim.Deallocate(a.base)
		}
	}

	r.allocs = nil
}

// workItem reconstructs the descriptor of one work-item from its
// linearized global index.
func (r *replayer) workItem(index uint64, location string) *device.WorkItem {
	global := device.Delinearize(index, r.inv.GlobalSize)
	group := device.Linearize(global.Div(r.inv.LocalSize), r.inv.NumGroups())

	return &device.WorkItem{
		GlobalIndex: index,
		Group:       r.groups[group],
		Location:    location,
	}
}

func (r *replayer) apply(ev *Event) error {
	switch ev.Op {
	case "load":
		a := r.allocs[ev.Buffer]
		r.det.MemoryLoad(a.mem, r.workItem(*ev.WorkItem, ev.Location), a.base+ev.Offset, ev.Size)

	case "load-group":
		a := r.allocs[ev.Buffer]

		wg, err := r.group(*ev.Group)
		if err != nil {
			return err
		}

		r.det.MemoryLoadUniform(a.mem, wg, a.base+ev.Offset, ev.Size)

	case "store":
		a := r.allocs[ev.Buffer]
		data, _ := hex.DecodeString(ev.Data) // validated on load
		addr := a.base + ev.Offset

		r.det.MemoryStore(a.mem, r.workItem(*ev.WorkItem, ev.Location), addr, data)
		a.mem.(*device.SimMemory).Store(addr, data)

	case "store-group":
		a := r.allocs[ev.Buffer]
		data, _ := hex.DecodeString(ev.Data)
		addr := a.base + ev.Offset

		wg, err := r.group(*ev.Group)
		if err != nil {
			return err
		}

		r.det.MemoryStoreUniform(a.mem, wg, addr, data)
		a.mem.(*device.SimMemory).Store(addr, data)

	case "atomic":
		a := r.allocs[ev.Buffer]

		op, ok := device.ParseAtomicOp(ev.Atomic)
		if !ok && ev.Atomic != "" {
			return fmt.Errorf("unknown atomic op %q", ev.Atomic)
		}

		r.det.MemoryAtomic(a.mem, r.workItem(*ev.WorkItem, ev.Location), op,
			a.base+ev.Offset, ev.Size)

		// Commit the recorded post-atomic contents, if the trace carries
		// them, the same way the interpreter commits after notifying.
		if ev.Data != "" {
			data, _ := hex.DecodeString(ev.Data)
			a.mem.(*device.SimMemory).Store(a.base+ev.Offset, data)
		}

	case "barrier":
		wg, err := r.group(*ev.Group)
		if err != nil {
			return err
		}

		var flags device.MemFenceFlags

		for _, f := range ev.Flags {
			switch f {
			case "local":
				flags |= device.LocalMemFence
			case "global":
				flags |= device.GlobalMemFence
			default:
				return fmt.Errorf("unknown fence flag %q", f)
			}
		}

		r.det.WorkGroupBarrier(wg, flags)

	default:
		return fmt.Errorf("unknown op %q", ev.Op)
	}

	return nil
}

func (r *replayer) group(index uint64) (*device.WorkGroup, error) {
	if index >= uint64(len(r.groups)) {
		return nil, fmt.Errorf("group %d out of range (%d groups)", index, len(r.groups))
	}

	return r.groups[index], nil
}
