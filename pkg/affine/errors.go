package affine

import "errors"

var (
	// ErrShapeMismatch is returned when a matrix is not 4x4 or a coordinate
	// does not have exactly three components
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDegenerateTransform is returned when the homogeneous term of a
	// transformed point is zero, so the point cannot be homogenized
	ErrDegenerateTransform = errors.New("degenerate transform")

	// ErrSingularMatrix is returned when a transform cannot be inverted
	ErrSingularMatrix = errors.New("singular matrix")

	// ErrNotAffine is returned in strict mode when the bottom row of a
	// transform is not [0 0 0 1]
	ErrNotAffine = errors.New("bottom row is not [0 0 0 1]")
)
