package device

// MemFenceFlags selects which memory spaces a work-group barrier fences.
// The values mirror OpenCL's CLK_LOCAL_MEM_FENCE / CLK_GLOBAL_MEM_FENCE.
type MemFenceFlags uint32

const (
	// LocalMemFence fences the group's local memory.
	LocalMemFence MemFenceFlags = 1 << iota

	// GlobalMemFence fences global memory.
	GlobalMemFence
)

// KernelInvocation describes one launch of a kernel: its identity and the
// NDRange geometry every coordinate computation derives from.
//
// The interpreter owns the invocation; the detector borrows it between
// kernelBegin and kernelEnd.
type KernelInvocation struct {
	// Name is the kernel's identity as shown in diagnostics.
	Name string

	// GlobalSize is the total NDRange extent in work-items.
	GlobalSize Size3

	// LocalSize is the work-group extent. All components are >= 1.
	LocalSize Size3
}

// NumGroups returns the work-group grid extent (GlobalSize / LocalSize,
// component-wise).
func (k *KernelInvocation) NumGroups() Size3 {
	return k.GlobalSize.Div(k.LocalSize)
}

// WorkGroup is one group of work-items sharing local memory and a barrier.
type WorkGroup struct {
	// Index is the group's 3-D grid coordinate linearized (row-major).
	Index uint64

	// LocalMem is the group's local memory object, distinct per group.
	// May be nil for kernels that use no local memory.
	LocalMem Memory
}

// WorkItem is one lane of the kernel.
type WorkItem struct {
	// GlobalIndex is the item's 3-D global coordinate linearized (row-major).
	GlobalIndex uint64

	// Group is the work-group the item belongs to.
	Group *WorkGroup

	// Location names the source position the item is currently executing.
	// The interpreter updates it as it steps; the detector records it in
	// shadow state so diagnostics can point at the earlier access site.
	// Empty when unknown.
	Location string
}
