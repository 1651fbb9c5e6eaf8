package device

// AddressSpace identifies one of the OpenCL memory regions a buffer lives in.
//
// Private memory is per work-item and never shared, so the detector ignores
// every event tagged with SpacePrivate.
type AddressSpace int

const (
	// SpacePrivate is per work-item memory. Ignored by the detector.
	SpacePrivate AddressSpace = iota

	// SpaceLocal is per work-group memory, shared by the items of one group.
	SpaceLocal

	// SpaceGlobal is device-wide memory, shared by all work-items.
	SpaceGlobal

	// SpaceConstant is device-wide read-only memory.
	SpaceConstant
)

// Name returns the lower-case OpenCL name of the address space, as it
// appears in diagnostics ("private", "local", "global", "constant").
func (s AddressSpace) Name() string {
	switch s {
	case SpacePrivate:
		return "private"
	case SpaceLocal:
		return "local"
	case SpaceGlobal:
		return "global"
	case SpaceConstant:
		return "constant"
	default:
		return "unknown"
	}
}

// String implements fmt.Stringer.
func (s AddressSpace) String() string { return s.Name() }

// ParseAddressSpace maps a space name back to its AddressSpace value.
// The second result is false for unrecognized names.
func ParseAddressSpace(name string) (AddressSpace, bool) {
	switch name {
	case "private":
		return SpacePrivate, true
	case "local":
		return SpaceLocal, true
	case "global":
		return SpaceGlobal, true
	case "constant":
		return SpaceConstant, true
	default:
		return SpacePrivate, false
	}
}
