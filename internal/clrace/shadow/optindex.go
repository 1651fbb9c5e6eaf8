package shadow

import "strconv"

// OptIndex is an optional work-item or work-group index.
//
// The zero value means "no actor". Using an explicit option instead of a -1
// sentinel in an unsigned integer keeps a legitimate large index from ever
// colliding with "none"; comparisons between two OptIndex values (==) match
// only when both the presence and the index agree.
type OptIndex struct {
	index uint64
	known bool
}

// NoIndex is the absent index.
var NoIndex = OptIndex{}

// Index wraps a concrete index.
func Index(i uint64) OptIndex {
	return OptIndex{index: i, known: true}
}

// Known reports whether an index is present.
func (o OptIndex) Known() bool { return o.known }

// Value returns the index. Only meaningful when Known is true.
func (o OptIndex) Value() uint64 { return o.index }

// String renders the index, or "none".
func (o OptIndex) String() string {
	if !o.known {
		return "none"
	}

	return strconv.FormatUint(o.index, 10)
}
