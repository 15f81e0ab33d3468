package interpolation

import (
	"errors"
	"math"
	"testing"

	"voxelspace/internal/models"
	"voxelspace/pkg/affine"
)

// createLinearVolume fills a volume with value = i + 10j + 100k + 1000t,
// which trilinear interpolation reproduces exactly
func createLinearVolume(nx, ny, nz, nt int) *models.Volume {
	v := &models.Volume{
		Shape:            []int{nx, ny, nz, nt},
		VoxelSpacing:     []float64{2, 2, 2},
		SamplingInterval: 1,
		Data:             make([]float64, nx*ny*nz*nt),
		Affine: models.Affine{
			{2, 0, 0, -10},
			{0, 2, 0, -20},
			{0, 0, 2, -30},
			{0, 0, 0, 1},
		},
	}
	for t := 0; t < nt; t++ {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				for i := 0; i < nx; i++ {
					v.Data[i+nx*(j+ny*(k+nz*t))] = float64(i + 10*j + 100*k + 1000*t)
				}
			}
		}
	}
	return v
}

func TestAtVoxel(t *testing.T) {
	s, err := NewSampler(createLinearVolume(5, 4, 3, 2), nil)
	if err != nil {
		t.Fatalf("Failed to create sampler: %v", err)
	}

	tests := []struct {
		c     models.VoxelCoordinate
		frame int
		want  float64
	}{
		{models.VoxelCoordinate{I: 0, J: 0, K: 0}, 0, 0},
		{models.VoxelCoordinate{I: 2, J: 1, K: 1}, 0, 112},
		{models.VoxelCoordinate{I: 1.5, J: 0.5, K: 0.25}, 0, 1.5 + 5 + 25},
		{models.VoxelCoordinate{I: 4, J: 3, K: 2}, 1, 1234},
		{models.VoxelCoordinate{I: 3.75, J: 3, K: 1.5}, 1, 1000 + 3.75 + 30 + 150},
	}

	for _, tt := range tests {
		got, err := s.AtVoxel(tt.c, tt.frame)
		if err != nil {
			t.Errorf("AtVoxel(%v): unexpected error %v", tt.c, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("AtVoxel(%v, %d) = %f, expected %f", tt.c, tt.frame, got, tt.want)
		}
	}
}

func TestAtVoxelOutside(t *testing.T) {
	s, err := NewSampler(createLinearVolume(3, 3, 3, 1), nil)
	if err != nil {
		t.Fatalf("Failed to create sampler: %v", err)
	}

	for _, c := range []models.VoxelCoordinate{
		{I: -0.1, J: 0, K: 0},
		{I: 0, J: 2.01, K: 0},
		{I: 0, J: 0, K: math.NaN()},
	} {
		if _, err := s.AtVoxel(c, 0); !errors.Is(err, ErrOutsideVolume) {
			t.Errorf("AtVoxel(%v): expected ErrOutsideVolume, got %v", c, err)
		}
	}
}

func TestAtPhysical(t *testing.T) {
	v := createLinearVolume(5, 4, 3, 1)
	s, err := NewSampler(v, affine.NewMapper())
	if err != nil {
		t.Fatalf("Failed to create sampler: %v", err)
	}

	// voxel (1.5, 2, 0.5) sits at (-7, -16, -29)
	got, err := s.AtPhysical(models.PhysicalCoordinate{X: -7, Y: -16, Z: -29}, 0)
	if err != nil {
		t.Fatalf("AtPhysical failed: %v", err)
	}
	if want := 1.5 + 20 + 50; math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, got)
	}
}

func TestAtPhysicalSingular(t *testing.T) {
	v := createLinearVolume(2, 2, 2, 1)
	v.Affine[1] = v.Affine[0]

	s, err := NewSampler(v, nil)
	if err != nil {
		t.Fatalf("Failed to create sampler: %v", err)
	}
	if _, err := s.AtPhysical(models.PhysicalCoordinate{}, 0); !errors.Is(err, affine.ErrSingularMatrix) {
		t.Errorf("Expected ErrSingularMatrix, got %v", err)
	}
}

func TestNewSamplerNeedsData(t *testing.T) {
	v := createLinearVolume(2, 2, 2, 1)
	v.Data = nil
	if _, err := NewSampler(v, nil); err == nil {
		t.Error("Expected error for volume without data")
	}
}

func BenchmarkAtPhysical(b *testing.B) {
	s, err := NewSampler(createLinearVolume(32, 32, 32, 1), nil)
	if err != nil {
		b.Fatal(err)
	}
	p := models.PhysicalCoordinate{X: 12.3, Y: 4.5, Z: 6.7}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_, _ = s.AtPhysical(p, 0)
	}
}
