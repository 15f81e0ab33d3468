package affine

import (
	"fmt"
	"sync"

	"voxelspace/internal/models"
)

// Option configures a Mapper
type Option func(m *Mapper)

// WithStrictAffine rejects transforms whose bottom row is not [0 0 0 1]
func WithStrictAffine() Option {
	return func(m *Mapper) {
		m.strict = true
	}
}

// WithoutCache makes the mapper recompute the inverse on every call
func WithoutCache() Option {
	return func(m *Mapper) {
		m.cacheInverse = false
	}
}

// inverseEntry holds the inverse of a single transform, computed at most once
type inverseEntry struct {
	once sync.Once
	inv  models.Affine
	err  error
}

// Mapper converts between voxel and physical coordinates.
//
// A Mapper is safe for concurrent use. Its only shared state is the inverse
// cache, keyed by transform value; concurrent callers asking for the inverse
// of the same transform wait on a single computation.
type Mapper struct {
	strict       bool
	cacheInverse bool

	mu       sync.Mutex
	inverses map[models.Affine]*inverseEntry
}

// NewMapper creates a mapper with the inverse cache enabled
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		cacheInverse: true,
		inverses:     make(map[models.Affine]*inverseEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMapper = NewMapper()

// VoxelToPhysical maps (i, j, k) through the transform using the default mapper
func VoxelToPhysical(a models.Affine, coords ...float64) (models.PhysicalCoordinate, error) {
	return defaultMapper.VoxelToPhysical(a, coords...)
}

// PhysicalToVoxel maps (x, y, z) through the inverse transform using the
// default mapper
func PhysicalToVoxel(a models.Affine, coords ...float64) (models.VoxelCoordinate, error) {
	return defaultMapper.PhysicalToVoxel(a, coords...)
}

// VoxelToPhysical maps voxel coordinate (i, j, k) to physical space.
// Exactly three coordinates are required.
func (m *Mapper) VoxelToPhysical(a models.Affine, coords ...float64) (models.PhysicalCoordinate, error) {
	if err := m.check(a, coords); err != nil {
		return models.PhysicalCoordinate{}, err
	}
	p, err := apply(a, coords[0], coords[1], coords[2])
	if err != nil {
		return models.PhysicalCoordinate{}, err
	}
	return models.PhysicalCoordinate{X: p[0], Y: p[1], Z: p[2]}, nil
}

// PhysicalToVoxel maps physical coordinate (x, y, z) back to voxel space.
// The result is fractional; rounding to a grid index is left to the caller.
func (m *Mapper) PhysicalToVoxel(a models.Affine, coords ...float64) (models.VoxelCoordinate, error) {
	if err := m.check(a, coords); err != nil {
		return models.VoxelCoordinate{}, err
	}
	inv, err := m.Inverse(a)
	if err != nil {
		return models.VoxelCoordinate{}, err
	}
	v, err := apply(inv, coords[0], coords[1], coords[2])
	if err != nil {
		return models.VoxelCoordinate{}, err
	}
	return models.VoxelCoordinate{I: v[0], J: v[1], K: v[2]}, nil
}

// MapVoxels converts a batch of voxel coordinates, stopping at the first error
func (m *Mapper) MapVoxels(a models.Affine, voxels []models.VoxelCoordinate) ([]models.PhysicalCoordinate, error) {
	out := make([]models.PhysicalCoordinate, len(voxels))
	for n, v := range voxels {
		p, err := m.VoxelToPhysical(a, v.I, v.J, v.K)
		if err != nil {
			return nil, fmt.Errorf("voxel %d: %w", n, err)
		}
		out[n] = p
	}
	return out, nil
}

// MapPhysical converts a batch of physical coordinates, stopping at the first error
func (m *Mapper) MapPhysical(a models.Affine, points []models.PhysicalCoordinate) ([]models.VoxelCoordinate, error) {
	out := make([]models.VoxelCoordinate, len(points))
	for n, p := range points {
		v, err := m.PhysicalToVoxel(a, p.X, p.Y, p.Z)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", n, err)
		}
		out[n] = v
	}
	return out, nil
}

// Inverse returns the inverse of a, reading through the cache when enabled.
// Non-finite transforms bypass the cache: NaN keys never match themselves.
func (m *Mapper) Inverse(a models.Affine) (models.Affine, error) {
	if !m.cacheInverse || !IsFinite(a) {
		return Inverse(a)
	}

	m.mu.Lock()
	entry, ok := m.inverses[a]
	if !ok {
		entry = &inverseEntry{}
		m.inverses[a] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.inv, entry.err = Inverse(a)
	})
	return entry.inv, entry.err
}

// CacheSize returns the number of transforms with a cached inverse
func (m *Mapper) CacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inverses)
}

func (m *Mapper) check(a models.Affine, coords []float64) error {
	if len(coords) != 3 {
		return fmt.Errorf("%w: expected 3 coordinates, got %d", ErrShapeMismatch, len(coords))
	}
	if m.strict && !IsAffine(a) {
		return fmt.Errorf("%w: got %v", ErrNotAffine, a[3])
	}
	return nil
}
