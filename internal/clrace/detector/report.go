package detector

import (
	"github.com/kolkov/clracer/internal/clrace/device"
	"github.com/kolkov/clracer/internal/clrace/message"
	"github.com/kolkov/clracer/internal/clrace/shadow"
)

// reportKey identifies a race site for deduplication: races of one kind on
// the same byte against the same recorded prior actor are reported once per
// invocation, whichever entity performs the racing access.
type reportKey struct {
	kind       message.RaceKind
	space      device.AddressSpace
	address    uint64
	priorItem  shadow.OptIndex
	priorGroup shadow.OptIndex
}

// logRace composes and emits one race diagnostic. prior is the shadow state
// of the racing byte before this access; wi/wg identify the accessing
// entity (wi nil for work-group uniform accesses); atomicOp names the
// opcode when the access racing now is an atomic, "" otherwise.
func (d *Detector) logRace(kind message.RaceKind, space device.AddressSpace,
	address uint64, prior shadow.ShadowByte, wi *device.WorkItem,
	wg *device.WorkGroup, atomicOp string) {
	key := reportKey{
		kind:       kind,
		space:      space,
		address:    address,
		priorItem:  prior.WorkItem,
		priorGroup: prior.WorkGroup,
	}
	if _, seen := d.reported[key]; seen {
		return
	}

	d.reported[key] = struct{}{}
	d.races++

	diag := message.Diagnostic{
		Severity:       message.SeverityError,
		Kind:           kind,
		Space:          space,
		Address:        address,
		Kernel:         d.invocation.Name,
		Second:         d.priorEntity(prior),
		SecondLocation: prior.Instruction,
		AtomicOp:       atomicOp,
	}

	switch {
	case wi != nil:
		diag.First = d.itemEntity(wi.GlobalIndex)
		diag.FirstLocation = wi.Location
	case wg != nil:
		diag.First = d.groupEntity(wg.Index)
	}

	d.sink.Emit(diag)
}

// priorEntity reconstructs the earlier entity from recorded shadow state.
// A recorded work-item wins over a recorded work-group; with neither the
// entity renders as "(unknown)".
func (d *Detector) priorEntity(prior shadow.ShadowByte) message.Entity {
	switch {
	case prior.WorkItem.Known():
		return d.itemEntity(prior.WorkItem.Value())
	case prior.WorkGroup.Known():
		return d.groupEntity(prior.WorkGroup.Value())
	default:
		return message.Entity{}
	}
}

// itemEntity expands a linearized global index into the Global/Local/Group
// coordinate triple using the current invocation's geometry.
func (d *Detector) itemEntity(index uint64) message.Entity {
	global := device.Delinearize(index, d.invocation.GlobalSize)

	return message.Entity{
		Global:  global,
		Local:   global.Mod(d.invocation.LocalSize),
		Group:   global.Div(d.invocation.LocalSize),
		HasItem: true,
	}
}

// groupEntity expands a linearized group index into its grid coordinate.
func (d *Detector) groupEntity(index uint64) message.Entity {
	return message.Entity{
		Group:    device.Delinearize(index, d.invocation.NumGroups()),
		HasGroup: true,
	}
}
