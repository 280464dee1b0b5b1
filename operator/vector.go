package operator

// Vector is a distributed vector compatible with a row layout. Storage is
// either owned (allocated with the vector) or borrowed from a caller buffer
// for the dynamic extent of one Bind/release pair.
type Vector struct {
	layout Layout
	data   []float64
	owned  bool
}

// NewVector allocates a vector with owned local storage.
func NewVector(layout Layout) *Vector {
	return &Vector{
		layout: layout,
		data:   make([]float64, layout.LocalSize()),
		owned:  true,
	}
}

// NewPlaceholder creates a vector with no backing storage. Local data must be
// borrowed with Bind before the vector is used.
func NewPlaceholder(layout Layout) *Vector {
	return &Vector{layout: layout}
}

// Layout returns the vector's distribution.
func (v *Vector) Layout() Layout { return v.layout }

// Bound reports whether the vector currently has backing storage.
func (v *Vector) Bound() bool { return v.data != nil }

// Bind borrows buf as the vector's local storage and returns the release
// function that detaches it again. The buffer is aliased, not copied: writes
// through the vector land in buf. The caller must invoke release before buf
// is reused or freed; deferring it guarantees detachment on every exit path,
// so the vector can never alias memory beyond the call that bound it.
func (v *Vector) Bind(buf []float64) (release func(), err error) {
	if v.owned || v.data != nil {
		return nil, ErrVectorBound
	}
	if len(buf) != v.layout.LocalSize() {
		return nil, &ErrSizeMismatch{Expected: v.layout.LocalSize(), Actual: len(buf)}
	}
	v.data = buf
	return func() { v.data = nil }, nil
}

// LocalData returns the vector's current local storage.
func (v *Vector) LocalData() ([]float64, error) {
	if v.data == nil {
		return nil, ErrVectorUnbound
	}
	return v.data, nil
}
