package viewport

const (
	DefaultBreakpoint = 768
	DefaultWideSize   = 16
	DefaultNarrowSize = 8
)

// Policy maps a viewport width to a page size.
type Policy struct {
	Breakpoint int
	WideSize   int
	NarrowSize int
}

func DefaultPolicy() Policy {
	return Policy{
		Breakpoint: DefaultBreakpoint,
		WideSize:   DefaultWideSize,
		NarrowSize: DefaultNarrowSize,
	}
}

// PageSize returns WideSize for widths at or above the breakpoint and
// NarrowSize below it.
func (p Policy) PageSize(width int) int {
	if width >= p.Breakpoint {
		return p.WideSize
	}
	return p.NarrowSize
}

// Valid reports whether both sizes are usable.
func (p Policy) Valid() bool {
	return p.WideSize > 0 && p.NarrowSize > 0 && p.Breakpoint >= 0
}
