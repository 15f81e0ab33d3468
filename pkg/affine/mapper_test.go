package affine

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"voxelspace/internal/models"
)

const tolerance = 1e-9

// scannerAffine is a typical 1mm isotropic structural scan in LAS storage order
var scannerAffine = models.Affine{
	{-1, 0, 0, 120},
	{0, 1, 0, -120},
	{0, 0, 1, -110},
	{0, 0, 0, 1},
}

// obliqueAffine has rotation, anisotropic scaling and translation
var obliqueAffine = models.Affine{
	{2.9, -0.3, 0.1, -90.5},
	{0.2, 3.1, -0.4, -125.25},
	{0.05, 0.35, 3.9, -71.0},
	{0, 0, 0, 1},
}

func assertPhysical(t *testing.T, want, got models.PhysicalCoordinate) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, "x")
	assert.InDelta(t, want.Y, got.Y, tolerance, "y")
	assert.InDelta(t, want.Z, got.Z, tolerance, "z")
}

// TestVoxelToPhysicalScanner checks a voxel near the centre of a structural scan
func TestVoxelToPhysicalScanner(t *testing.T) {
	p, err := VoxelToPhysical(scannerAffine, 69, 119, 109)
	require.NoError(t, err)
	assertPhysical(t, models.PhysicalCoordinate{X: 51, Y: -1, Z: -1}, p)
}

// TestIdentity verifies that the identity transform leaves coordinates unchanged
func TestIdentity(t *testing.T) {
	for _, c := range [][3]float64{{0, 0, 0}, {1, 2, 3}, {-4.5, 10.25, 99}} {
		p, err := VoxelToPhysical(Identity(), c[0], c[1], c[2])
		require.NoError(t, err)
		assertPhysical(t, models.PhysicalCoordinate{X: c[0], Y: c[1], Z: c[2]}, p)
	}
}

// TestFractionalVoxel verifies that no grid snapping takes place
func TestFractionalVoxel(t *testing.T) {
	p, err := VoxelToPhysical(scannerAffine, 0.5, 0.25, 0.75)
	require.NoError(t, err)
	assertPhysical(t, models.PhysicalCoordinate{X: 119.5, Y: -119.75, Z: -109.25}, p)
}

func TestShapeMismatch(t *testing.T) {
	t.Run("3x3 rows", func(t *testing.T) {
		_, err := New([][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := New([][]float64{{1, 0, 0, 0}, {0, 1, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}})
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("3x3 matrix", func(t *testing.T) {
		_, err := FromMatrix(mat.NewDense(3, 3, nil))
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("two coordinates", func(t *testing.T) {
		_, err := VoxelToPhysical(scannerAffine, 1, 2)
		assert.ErrorIs(t, err, ErrShapeMismatch)

		_, err = PhysicalToVoxel(scannerAffine, 1, 2)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("four coordinates", func(t *testing.T) {
		_, err := VoxelToPhysical(scannerAffine, 1, 2, 3, 4)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestNewCopiesRows(t *testing.T) {
	rows := Rows(scannerAffine)
	a, err := New(rows)
	require.NoError(t, err)
	assert.Equal(t, scannerAffine, a)

	// mutating the source rows must not reach the transform
	rows[0][3] = 0
	assert.Equal(t, 120.0, a[0][3])
}

// TestSingularMatrix inverts a transform whose 3x3 block has two identical rows
func TestSingularMatrix(t *testing.T) {
	singular := models.Affine{
		{1, 2, 3, 10},
		{1, 2, 3, 20},
		{0, 0, 1, 30},
		{0, 0, 0, 1},
	}

	_, err := Inverse(singular)
	assert.ErrorIs(t, err, ErrSingularMatrix)

	_, err = PhysicalToVoxel(singular, 0, 0, 0)
	assert.ErrorIs(t, err, ErrSingularMatrix)

	// the forward direction does not need an inverse
	_, err = VoxelToPhysical(singular, 1, 1, 1)
	assert.NoError(t, err)
}

// TestSingularDependentRows uses a block whose second row is a multiple of
// the first without being identical to it
func TestSingularDependentRows(t *testing.T) {
	dependent := models.Affine{
		{1000.1, 2000.3, 3000.7, 0},
		{3000.3, 6000.9, 9002.1, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
	}

	_, err := Inverse(dependent)
	assert.ErrorIs(t, err, ErrSingularMatrix)

	_, err = PhysicalToVoxel(dependent, 1, 2, 3)
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

// TestInverseSmallVoxels checks that a tiny but well-conditioned transform inverts
func TestInverseSmallVoxels(t *testing.T) {
	small := Identity()
	for i := 0; i < 3; i++ {
		small[i][i] = 5e-5
	}

	inv, err := Inverse(small)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 2e4, inv[i][i], 1e-6)
	}

	v, err := PhysicalToVoxel(small, 1e-4, 2e-4, 3e-4)
	require.NoError(t, err)
	assert.InDelta(t, 2, v.I, 1e-9)
	assert.InDelta(t, 4, v.J, 1e-9)
	assert.InDelta(t, 6, v.K, 1e-9)
}

// TestNonFiniteTransformBypassesCache repeats a NaN transform and checks the
// cache does not grow
func TestNonFiniteTransformBypassesCache(t *testing.T) {
	m := NewMapper()
	broken := Identity()
	broken[0][3] = math.NaN()

	for n := 0; n < 100; n++ {
		_, err := m.PhysicalToVoxel(broken, 1, 2, 3)
		assert.ErrorIs(t, err, ErrDegenerateTransform)
	}
	assert.Equal(t, 0, m.CacheSize())

	broken[0][3] = math.Inf(1)
	_, err := Inverse(broken)
	assert.ErrorIs(t, err, ErrDegenerateTransform)
	assert.False(t, IsFinite(broken))
	assert.True(t, IsFinite(scannerAffine))
}

func TestDegenerateTransform(t *testing.T) {
	projective := scannerAffine
	projective[3] = [4]float64{0, 0, 0, 0}

	_, err := VoxelToPhysical(projective, 1, 2, 3)
	assert.ErrorIs(t, err, ErrDegenerateTransform)
}

// TestHomogenize verifies the division by w for a non-standard bottom row
func TestHomogenize(t *testing.T) {
	scaled := Identity()
	scaled[3][3] = 2

	p, err := VoxelToPhysical(scaled, 2, 4, 6)
	require.NoError(t, err)
	assertPhysical(t, models.PhysicalCoordinate{X: 1, Y: 2, Z: 3}, p)
}

func TestStrictAffine(t *testing.T) {
	scaled := Identity()
	scaled[3][3] = 2

	m := NewMapper(WithStrictAffine())
	_, err := m.VoxelToPhysical(scaled, 1, 2, 3)
	assert.ErrorIs(t, err, ErrNotAffine)

	_, err = m.VoxelToPhysical(scannerAffine, 1, 2, 3)
	assert.NoError(t, err)
}

// TestRoundTrip checks that physical→voxel undoes voxel→physical
func TestRoundTrip(t *testing.T) {
	affines := map[string]models.Affine{
		"identity": Identity(),
		"scanner":  scannerAffine,
		"oblique":  obliqueAffine,
	}

	for name, a := range affines {
		t.Run(name, func(t *testing.T) {
			m := NewMapper()
			for i := -2; i <= 70; i += 9 {
				for j := 0; j <= 120; j += 17 {
					for k := 0; k <= 110; k += 23 {
						p, err := m.VoxelToPhysical(a, float64(i), float64(j), float64(k))
						require.NoError(t, err)

						v, err := m.PhysicalToVoxel(a, p.X, p.Y, p.Z)
						require.NoError(t, err)

						assert.InDelta(t, float64(i), v.I, 1e-8)
						assert.InDelta(t, float64(j), v.J, 1e-8)
						assert.InDelta(t, float64(k), v.K, 1e-8)
					}
				}
			}
			assert.Equal(t, 1, m.CacheSize())
		})
	}
}

// TestLinearity checks that a step along i maps to the same physical offset
// wherever it starts
func TestLinearity(t *testing.T) {
	sub := func(a, b models.PhysicalCoordinate) models.PhysicalCoordinate {
		return models.PhysicalCoordinate{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
	}
	mustMap := func(i, j, k float64) models.PhysicalCoordinate {
		p, err := VoxelToPhysical(obliqueAffine, i, j, k)
		require.NoError(t, err)
		return p
	}

	for _, c := range [][4]float64{{3, 7, 5, 2}, {10, 0, 0, 1}, {1.5, 40, 12, 8}} {
		i1, i2, j, k := c[0], c[1], c[2], c[3]
		lhs := sub(mustMap(i1+i2, j, k), mustMap(i2, j, k))
		rhs := sub(mustMap(i1, 0, 0), mustMap(0, 0, 0))
		assertPhysical(t, rhs, lhs)
	}
}

func TestMapBatches(t *testing.T) {
	m := NewMapper()
	voxels := []models.VoxelCoordinate{{I: 0, J: 0, K: 0}, {I: 69, J: 119, K: 109}}

	points, err := m.MapVoxels(scannerAffine, voxels)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assertPhysical(t, models.PhysicalCoordinate{X: 120, Y: -120, Z: -110}, points[0])
	assertPhysical(t, models.PhysicalCoordinate{X: 51, Y: -1, Z: -1}, points[1])

	back, err := m.MapPhysical(scannerAffine, points)
	require.NoError(t, err)
	for n := range voxels {
		assert.InDelta(t, voxels[n].I, back[n].I, tolerance)
		assert.InDelta(t, voxels[n].J, back[n].J, tolerance)
		assert.InDelta(t, voxels[n].K, back[n].K, tolerance)
	}
}

// TestInverseCacheConcurrent hammers one transform from many goroutines
func TestInverseCacheConcurrent(t *testing.T) {
	m := NewMapper()

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for n := 0; n < 64; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := m.PhysicalToVoxel(obliqueAffine, float64(n), 0, 0)
			errs <- err
		}(n)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, m.CacheSize())
}

func TestWithoutCache(t *testing.T) {
	m := NewMapper(WithoutCache())
	_, err := m.PhysicalToVoxel(scannerAffine, 51, -1, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, m.CacheSize())
}

// TestInputNotMutated verifies the mapper leaves its transform untouched
func TestInputNotMutated(t *testing.T) {
	a := obliqueAffine
	_, err := PhysicalToVoxel(a, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, obliqueAffine, a)
}

func TestComposeWithInverse(t *testing.T) {
	inv, err := Inverse(obliqueAffine)
	require.NoError(t, err)

	product := Compose(obliqueAffine, inv)
	id := Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.InDelta(t, id[i][j], product[i][j], 1e-9)
		}
	}
}

func TestVoxelSizes(t *testing.T) {
	a := models.Affine{
		{0, 0, 3, 0},
		{-2, 0, 0, 0},
		{0, 1.5, 0, 0},
		{0, 0, 0, 1},
	}
	sizes := VoxelSizes(a)
	assert.InDeltaSlice(t, []float64{2, 1.5, 3}, sizes[:], tolerance)
}

func TestIsAffine(t *testing.T) {
	assert.True(t, IsAffine(scannerAffine))

	bent := scannerAffine
	bent[3][0] = 0.1
	assert.False(t, IsAffine(bent))
}

func BenchmarkVoxelToPhysical(b *testing.B) {
	for n := 0; n < b.N; n++ {
		_, _ = VoxelToPhysical(obliqueAffine, 12, 34, 56)
	}
}

func BenchmarkPhysicalToVoxelCached(b *testing.B) {
	m := NewMapper()
	for n := 0; n < b.N; n++ {
		_, _ = m.PhysicalToVoxel(obliqueAffine, 12, 34, 56)
	}
}
