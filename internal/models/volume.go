package models

import (
	"errors"
	"fmt"
)

// Axis indices of a volume, in storage order
const (
	AxisX = 0
	AxisY = 1
	AxisZ = 2
	AxisT = 3
)

// ErrInvalidVolume is returned when a volume violates its shape invariants
var ErrInvalidVolume = errors.New("invalid volume")

// Affine is a 4x4 matrix relating voxel-index space to physical space.
// It is a value type: copies never alias, so a volume's transform cannot be
// mutated through a coordinate mapper.
type Affine [4][4]float64

// VoxelCoordinate indexes the first three axes of a volume.
// Fractional values are allowed.
type VoxelCoordinate struct {
	I, J, K float64
}

// PhysicalCoordinate is a point in scanner space, in millimetres.
// Positive X, Y and Z point Right, Anterior and Superior of the isocenter.
type PhysicalCoordinate struct {
	X, Y, Z float64
}

// Volume represents a 3D structural scan or a 4D time series
type Volume struct {
	// Shape holds one entry per axis (X, Y, Z[, T])
	Shape []int

	// VoxelSpacing is the physical size of a voxel along each spatial axis in mm
	VoxelSpacing []float64

	// SamplingInterval is the time between consecutive T samples in seconds.
	// Zero means absent, which is the only valid value for 3D volumes.
	SamplingInterval float64

	// Data holds the samples with the X axis varying fastest:
	// index = i + X*(j + Y*(k + Z*t))
	Data []float64

	// Affine maps voxel indices to physical coordinates
	Affine Affine
}

// NDim returns the number of axes
func (v *Volume) NDim() int {
	return len(v.Shape)
}

// NumVoxels returns the product of all shape entries
func (v *Volume) NumVoxels() int {
	return NumElements(v.Shape)
}

// Frames returns the length of the T axis, or 1 for 3D volumes
func (v *Volume) Frames() int {
	if len(v.Shape) == 4 {
		return v.Shape[AxisT]
	}
	return 1
}

// Validate checks the shape, spacing and data length invariants
func (v *Volume) Validate() error {
	if n := len(v.Shape); n != 3 && n != 4 {
		return fmt.Errorf("%w: expected 3 or 4 axes, got %d", ErrInvalidVolume, n)
	}
	for axis, n := range v.Shape {
		if n < 0 {
			return fmt.Errorf("%w: axis %d has negative length %d", ErrInvalidVolume, axis, n)
		}
	}
	if len(v.VoxelSpacing) != 3 {
		return fmt.Errorf("%w: expected 3 voxel spacings, got %d", ErrInvalidVolume, len(v.VoxelSpacing))
	}
	for axis, s := range v.VoxelSpacing {
		if s <= 0 {
			return fmt.Errorf("%w: voxel spacing along axis %d must be positive, got %g", ErrInvalidVolume, axis, s)
		}
	}
	if v.SamplingInterval < 0 {
		return fmt.Errorf("%w: sampling interval must be positive, got %g", ErrInvalidVolume, v.SamplingInterval)
	}
	if v.SamplingInterval > 0 && len(v.Shape) != 4 {
		return fmt.Errorf("%w: sampling interval is only valid for 4D volumes", ErrInvalidVolume)
	}
	if v.Data != nil && len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("%w: data has %d samples, shape %v needs %d", ErrInvalidVolume, len(v.Data), v.Shape, v.NumVoxels())
	}
	return nil
}

// NumElements returns the product of the given axis lengths
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
