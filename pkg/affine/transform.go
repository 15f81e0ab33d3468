// Package affine maps voxel indices to physical scanner coordinates and back
// using 4x4 homogeneous transforms.
package affine

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"voxelspace/internal/models"
)

// SingularTolerance is the smallest determinant of the leading 3x3 block,
// relative to the product of its row norms, accepted as invertible
const SingularTolerance = 1e-12

// bottomRowTolerance bounds the deviation from [0 0 0 1] accepted by IsAffine
const bottomRowTolerance = 1e-12

// Identity returns the 4x4 identity transform
func Identity() models.Affine {
	return models.Affine{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// New builds a transform from four rows of four values.
// Any other shape fails with ErrShapeMismatch.
func New(rows [][]float64) (models.Affine, error) {
	var a models.Affine
	if len(rows) != 4 {
		return a, fmt.Errorf("%w: expected 4 rows, got %d", ErrShapeMismatch, len(rows))
	}
	for r, row := range rows {
		if len(row) != 4 {
			return a, fmt.Errorf("%w: row %d has %d columns, expected 4", ErrShapeMismatch, r, len(row))
		}
		copy(a[r][:], row)
	}
	return a, nil
}

// FromMatrix builds a transform from any gonum matrix with 4 rows and 4 columns
func FromMatrix(m mat.Matrix) (models.Affine, error) {
	var a models.Affine
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return a, fmt.Errorf("%w: expected 4x4 matrix, got %dx%d", ErrShapeMismatch, r, c)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a, nil
}

// Dense returns a freshly allocated gonum copy of the transform
func Dense(a models.Affine) *mat.Dense {
	data := make([]float64, 0, 16)
	for i := range a {
		data = append(data, a[i][:]...)
	}
	return mat.NewDense(4, 4, data)
}

// Rows returns the transform as a slice of rows, the layout used by headers
func Rows(a models.Affine) [][]float64 {
	rows := make([][]float64, 4)
	for i := range a {
		rows[i] = append([]float64(nil), a[i][:]...)
	}
	return rows
}

// IsAffine reports whether the bottom row is [0 0 0 1]
func IsAffine(a models.Affine) bool {
	want := [4]float64{0, 0, 0, 1}
	for j, w := range want {
		if math.Abs(a[3][j]-w) > bottomRowTolerance {
			return false
		}
	}
	return true
}

// Compose returns a·b, the transform that applies b first and then a
func Compose(a, b models.Affine) models.Affine {
	var out mat.Dense
	out.Mul(Dense(a), Dense(b))
	composed, _ := FromMatrix(&out)
	return composed
}

// VoxelSizes returns the physical length of a unit step along each voxel axis,
// i.e. the column norms of the leading 3x3 block
func VoxelSizes(a models.Affine) [3]float64 {
	var sizes [3]float64
	for j := 0; j < 3; j++ {
		sizes[j] = floats.Norm([]float64{a[0][j], a[1][j], a[2][j]}, 2)
	}
	return sizes
}

// IsFinite reports whether every element of the transform is finite
func IsFinite(a models.Affine) bool {
	for i := range a {
		for _, x := range a[i] {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// Inverse returns the inverse transform.
// It fails with ErrSingularMatrix if the leading 3x3 block is not invertible
// or the full matrix is too ill-conditioned to invert, and with
// ErrDegenerateTransform if any element is not finite.
func Inverse(a models.Affine) (models.Affine, error) {
	var inv models.Affine
	if !IsFinite(a) {
		return inv, fmt.Errorf("%w: transform has non-finite elements", ErrDegenerateTransform)
	}

	block := mat.NewDense(3, 3, []float64{
		a[0][0], a[0][1], a[0][2],
		a[1][0], a[1][1], a[1][2],
		a[2][0], a[2][1], a[2][2],
	})
	// scale by the row norms so the test does not depend on voxel size
	scale := 1.0
	for i := 0; i < 3; i++ {
		scale *= floats.Norm(block.RawRowView(i), 2)
	}
	det := mat.Det(block)
	if scale == 0 || math.Abs(det)/scale < SingularTolerance {
		return inv, fmt.Errorf("%w: leading 3x3 block has determinant %g", ErrSingularMatrix, det)
	}

	var m mat.Dense
	if err := m.Inverse(Dense(a)); err != nil {
		// gonum reports mat.Condition once the condition number passes 1e16
		return inv, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	return FromMatrix(&m)
}

// apply multiplies (x, y, z, 1) by the transform and divides out the
// homogeneous term
func apply(a models.Affine, x, y, z float64) ([3]float64, error) {
	var out [3]float64

	var res mat.VecDense
	res.MulVec(Dense(a), mat.NewVecDense(4, []float64{x, y, z, 1}))

	w := res.AtVec(3)
	if w == 0 {
		return out, fmt.Errorf("%w: homogeneous term is zero for (%g, %g, %g)", ErrDegenerateTransform, x, y, z)
	}
	for i := 0; i < 3; i++ {
		out[i] = res.AtVec(i) / w
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return out, fmt.Errorf("%w: non-finite result for (%g, %g, %g)", ErrDegenerateTransform, x, y, z)
		}
	}
	return out, nil
}
