package capture

// Capability is an optional feature of a Source
type Capability int

const (
	// FrameSize allows the capture resolution to be changed
	FrameSize Capability = iota
	// Quality allows the compression quality of captured frames to be changed
	Quality
	// Reset allows a source to be restarted from its first frame
	Reset
)

// String returns the capability name
func (c Capability) String() string {
	switch c {
	case FrameSize:
		return "framesize"
	case Quality:
		return "quality"
	case Reset:
		return "reset"
	default:
		return "unknown"
	}
}

// Capable is implemented by sources that report which capabilities they
// support
type Capable interface {
	Supports(c Capability) bool
}

// FrameSizer is implemented by sources supporting FrameSize
type FrameSizer interface {
	SetFrameSize(width, height int) error
}

// QualitySetter is implemented by sources supporting Quality
type QualitySetter interface {
	SetQuality(quality int) error
}

// Resetter is implemented by sources supporting Reset
type Resetter interface {
	Reset() error
}

// Supports reports whether src supports the capability.  Sources not
// implementing Capable support nothing.
func Supports(src Source, c Capability) bool {

	capable, ok := src.(Capable)

	if !ok {
		return false
	}

	return capable.Supports(c)
}
