package interpolation

import (
	"errors"
	"fmt"
	"math"

	"voxelspace/internal/models"
	"voxelspace/pkg/affine"
	"voxelspace/pkg/volume"
)

// ErrOutsideVolume is returned when a sample point lies outside the voxel grid
var ErrOutsideVolume = errors.New("point outside volume")

// Sampler evaluates a volume at fractional voxel or physical coordinates
// using trilinear interpolation between the eight surrounding voxels
type Sampler struct {
	volume *models.Volume
	mapper *affine.Mapper
}

// NewSampler creates a sampler over v. A nil mapper uses a private one.
func NewSampler(v *models.Volume, mapper *affine.Mapper) (*Sampler, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if len(v.Data) != v.NumVoxels() {
		return nil, fmt.Errorf("sampler needs voxel data, volume has %d of %d samples", len(v.Data), v.NumVoxels())
	}
	if mapper == nil {
		mapper = affine.NewMapper()
	}
	return &Sampler{volume: v, mapper: mapper}, nil
}

// AtVoxel interpolates frame t at voxel coordinate c.
// Coordinates on the last grid plane are valid; anything beyond is not.
func (s *Sampler) AtVoxel(c models.VoxelCoordinate, t int) (float64, error) {
	frame, err := volume.Frame(s.volume, t)
	if err != nil {
		return 0, err
	}

	nx, ny, nz := s.volume.Shape[models.AxisX], s.volume.Shape[models.AxisY], s.volume.Shape[models.AxisZ]
	i0, fi, ok := split(c.I, nx)
	j0, fj, okJ := split(c.J, ny)
	k0, fk, okK := split(c.K, nz)
	if !ok || !okJ || !okK {
		return 0, fmt.Errorf("%w: (%g, %g, %g) in grid %dx%dx%d", ErrOutsideVolume, c.I, c.J, c.K, nx, ny, nz)
	}

	at := func(i, j, k int) float64 {
		return frame[i+nx*(j+ny*k)]
	}
	i1, j1, k1 := next(i0, nx), next(j0, ny), next(k0, nz)

	c00 := lerp(at(i0, j0, k0), at(i1, j0, k0), fi)
	c10 := lerp(at(i0, j1, k0), at(i1, j1, k0), fi)
	c01 := lerp(at(i0, j0, k1), at(i1, j0, k1), fi)
	c11 := lerp(at(i0, j1, k1), at(i1, j1, k1), fi)

	return lerp(lerp(c00, c10, fj), lerp(c01, c11, fj), fk), nil
}

// AtPhysical maps p into voxel space with the volume's affine and
// interpolates frame t there
func (s *Sampler) AtPhysical(p models.PhysicalCoordinate, t int) (float64, error) {
	c, err := s.mapper.PhysicalToVoxel(s.volume.Affine, p.X, p.Y, p.Z)
	if err != nil {
		return 0, err
	}
	return s.AtVoxel(c, t)
}

// split returns the lower grid index and the fractional offset of x on an
// axis of length n
func split(x float64, n int) (int, float64, bool) {
	if math.IsNaN(x) || x < 0 || x > float64(n-1) {
		return 0, 0, false
	}
	i := int(math.Floor(x))
	if i == n-1 {
		return i, 0, true
	}
	return i, x - float64(i), true
}

func next(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return i
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
