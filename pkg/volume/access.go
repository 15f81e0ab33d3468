// Package volume provides index, slice and region access over a sampled
// volume, plus the summary statistics used to inspect one.
package volume

import (
	"errors"
	"fmt"
	"strings"

	"voxelspace/internal/models"
	"voxelspace/pkg/affine"
)

var (
	// ErrOutOfBounds is returned when an index falls outside the volume
	ErrOutOfBounds = errors.New("index out of bounds")

	// ErrInvalidAxis is returned for an axis the volume does not have
	ErrInvalidAxis = errors.New("invalid axis")
)

// ParseAxis converts an axis name (x, y, z or t) to its index
func ParseAxis(name string) (int, error) {
	switch strings.ToLower(name) {
	case "x":
		return models.AxisX, nil
	case "y":
		return models.AxisY, nil
	case "z":
		return models.AxisZ, nil
	case "t":
		return models.AxisT, nil
	default:
		return 0, fmt.Errorf("%w: %s (must be x, y, z or t)", ErrInvalidAxis, name)
	}
}

// strides returns the flat-index step of each axis, first axis fastest
func strides(shape []int) []int {
	s := make([]int, len(shape))
	step := 1
	for axis, n := range shape {
		s[axis] = step
		step *= n
	}
	return s
}

// Index returns the flat position of the voxel at idx.
// One index per axis is required.
func Index(v *models.Volume, idx ...int) (int, error) {
	if len(idx) != len(v.Shape) {
		return 0, fmt.Errorf("%w: expected %d indices, got %d", ErrOutOfBounds, len(v.Shape), len(idx))
	}
	flat := 0
	step := 1
	for axis, i := range idx {
		if i < 0 || i >= v.Shape[axis] {
			return 0, fmt.Errorf("%w: index %d on axis %d with length %d", ErrOutOfBounds, i, axis, v.Shape[axis])
		}
		flat += i * step
		step *= v.Shape[axis]
	}
	return flat, nil
}

// At returns the sample at idx
func At(v *models.Volume, idx ...int) (float64, error) {
	flat, err := Index(v, idx...)
	if err != nil {
		return 0, err
	}
	return v.Data[flat], nil
}

// Set stores value at idx
func Set(v *models.Volume, value float64, idx ...int) error {
	flat, err := Index(v, idx...)
	if err != nil {
		return err
	}
	v.Data[flat] = value
	return nil
}

// Frame returns the samples of time point t as a 3D slice sharing storage
// with the volume. For 3D volumes only t == 0 is valid.
func Frame(v *models.Volume, t int) ([]float64, error) {
	if t < 0 || t >= v.Frames() {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrOutOfBounds, t, v.Frames())
	}
	if err := checkData(v); err != nil {
		return nil, err
	}
	n := v.Shape[models.AxisX] * v.Shape[models.AxisY] * v.Shape[models.AxisZ]
	return v.Data[t*n : (t+1)*n], nil
}

// Select keeps the indices start, start+stride, start+2*stride, ... along
// axis and returns them as a new volume.
//
// Selecting along a spatial axis rescales that voxel spacing and adjusts the
// affine so that the new indices map to the same physical points. Selecting
// along T scales the sampling interval.
func Select(v *models.Volume, axis, start, stride int) (*models.Volume, error) {
	if axis < 0 || axis >= len(v.Shape) {
		return nil, fmt.Errorf("%w: %d for a %dD volume", ErrInvalidAxis, axis, len(v.Shape))
	}
	if err := checkData(v); err != nil {
		return nil, err
	}
	if stride <= 0 {
		return nil, fmt.Errorf("stride must be positive, got %d", stride)
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: start %d", ErrOutOfBounds, start)
	}

	count := 0
	if start < v.Shape[axis] {
		count = (v.Shape[axis] - start + stride - 1) / stride
	}

	offset := make([]int, len(v.Shape))
	step := make([]int, len(v.Shape))
	for i := range step {
		step[i] = 1
	}
	offset[axis] = start
	step[axis] = stride

	shape := append([]int(nil), v.Shape...)
	shape[axis] = count

	out := derive(v, shape, offset, step)
	if axis == models.AxisT {
		out.SamplingInterval = v.SamplingInterval * float64(stride)
	}
	return out, nil
}

// ExtractRegion copies the block starting at start with the given size.
// start and size need one entry per axis.
func ExtractRegion(v *models.Volume, start, size []int) (*models.Volume, error) {
	if len(start) != len(v.Shape) || len(size) != len(v.Shape) {
		return nil, fmt.Errorf("%w: region needs %d start and size entries", ErrOutOfBounds, len(v.Shape))
	}
	if err := checkData(v); err != nil {
		return nil, err
	}
	for axis := range v.Shape {
		if start[axis] < 0 || size[axis] < 0 {
			return nil, fmt.Errorf("%w: start and size must be non-negative", ErrOutOfBounds)
		}
		if start[axis]+size[axis] > v.Shape[axis] {
			return nil, fmt.Errorf("%w: region extends beyond axis %d with length %d", ErrOutOfBounds, axis, v.Shape[axis])
		}
	}

	step := make([]int, len(v.Shape))
	for i := range step {
		step[i] = 1
	}
	return derive(v, append([]int(nil), size...), start, step), nil
}

// checkData verifies that the volume carries one sample per voxel
func checkData(v *models.Volume) error {
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("volume has %d samples, shape %v needs %d", len(v.Data), v.Shape, v.NumVoxels())
	}
	return nil
}

// derive copies the samples at offset + step*index for every index of shape
func derive(v *models.Volume, shape, offset, step []int) *models.Volume {
	out := &models.Volume{
		Shape:            shape,
		VoxelSpacing:     append([]float64(nil), v.VoxelSpacing...),
		SamplingInterval: v.SamplingInterval,
		Data:             make([]float64, models.NumElements(shape)),
	}

	src := strides(v.Shape)
	idx := make([]int, len(shape))
	for n := range out.Data {
		flat := 0
		for axis, i := range idx {
			flat += (offset[axis] + step[axis]*i) * src[axis]
		}
		out.Data[n] = v.Data[flat]

		for axis := range idx {
			idx[axis]++
			if idx[axis] < shape[axis] {
				break
			}
			idx[axis] = 0
		}
	}

	// new index i' sits at old index offset + step*i' on the spatial axes
	sub := affine.Identity()
	for axis := 0; axis < 3 && axis < len(shape); axis++ {
		sub[axis][axis] = float64(step[axis])
		sub[axis][3] = float64(offset[axis])
		if axis < len(out.VoxelSpacing) {
			out.VoxelSpacing[axis] *= float64(step[axis])
		}
	}
	out.Affine = affine.Compose(v.Affine, sub)
	return out
}

// ExtractSlice2D returns the plane of frame t that is perpendicular to axis
// at position, together with its width and height. Samples are stored row by
// row. The planes are (Y, Z) for x, (X, Z) for y and (X, Y) for z.
func ExtractSlice2D(v *models.Volume, axis, position, t int) ([]float64, int, int, error) {
	if axis < models.AxisX || axis > models.AxisZ {
		return nil, 0, 0, fmt.Errorf("%w: 2D slices need a spatial axis, got %d", ErrInvalidAxis, axis)
	}
	if position < 0 || position >= v.Shape[axis] {
		return nil, 0, 0, fmt.Errorf("%w: position %d exceeds axis length %d", ErrOutOfBounds, position, v.Shape[axis])
	}
	frame, err := Frame(v, t)
	if err != nil {
		return nil, 0, 0, err
	}

	nx, ny, nz := v.Shape[models.AxisX], v.Shape[models.AxisY], v.Shape[models.AxisZ]
	var width, height int
	var index func(col, row int) int

	switch axis {
	case models.AxisX:
		width, height = ny, nz
		index = func(col, row int) int { return position + nx*(col+ny*row) }
	case models.AxisY:
		width, height = nx, nz
		index = func(col, row int) int { return col + nx*(position+ny*row) }
	default:
		width, height = nx, ny
		index = func(col, row int) int { return col + nx*(row+ny*position) }
	}

	plane := make([]float64, width*height)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			plane[row*width+col] = frame[index(col, row)]
		}
	}
	return plane, width, height, nil
}
