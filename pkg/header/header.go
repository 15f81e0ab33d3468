// Package header reads and writes the metadata header that accompanies a
// volume: its shape, voxel spacing, sampling interval and affine.
package header

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelspace/internal/models"
	"voxelspace/pkg/affine"
)

// Header is the YAML document describing a volume
type Header struct {
	// Description is free text, typically the acquisition protocol
	Description string `yaml:"description,omitempty"`

	// Shape holds the axis lengths (X, Y, Z[, T])
	Shape []int `yaml:"shape"`

	// VoxelSpacing is the physical size of a voxel along X, Y and Z in mm
	VoxelSpacing []float64 `yaml:"voxelSpacing"`

	// SamplingInterval is the time between volumes in seconds (4D only)
	SamplingInterval float64 `yaml:"samplingInterval,omitempty"`

	// Affine holds four rows of four values mapping voxel to physical space
	Affine [][]float64 `yaml:"affine"`

	// DataFile is the raw sample file, relative to the header's directory
	DataFile string `yaml:"dataFile,omitempty"`
}

// FromVolume builds a header describing v
func FromVolume(v *models.Volume, dataFile string) *Header {
	return &Header{
		Shape:            append([]int(nil), v.Shape...),
		VoxelSpacing:     append([]float64(nil), v.VoxelSpacing...),
		SamplingInterval: v.SamplingInterval,
		Affine:           affine.Rows(v.Affine),
		DataFile:         dataFile,
	}
}

// Transform returns the header's affine.
// A missing affine falls back to a diagonal of the voxel spacing.
func (h *Header) Transform() (models.Affine, error) {
	if len(h.Affine) == 0 {
		a := affine.Identity()
		for axis := 0; axis < 3 && axis < len(h.VoxelSpacing); axis++ {
			a[axis][axis] = h.VoxelSpacing[axis]
		}
		return a, nil
	}
	return affine.New(h.Affine)
}

// Volume converts the header to a volume without sample data
func (h *Header) Volume() (*models.Volume, error) {
	a, err := h.Transform()
	if err != nil {
		return nil, fmt.Errorf("invalid affine: %w", err)
	}
	v := &models.Volume{
		Shape:            append([]int(nil), h.Shape...),
		VoxelSpacing:     append([]float64(nil), h.VoxelSpacing...),
		SamplingInterval: h.SamplingInterval,
		Affine:           a,
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks that the header describes a valid volume
func (h *Header) Validate() error {
	_, err := h.Volume()
	return err
}

// Load reads a header from a YAML file
func Load(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading header file: %w", err)
	}

	h := &Header{}
	if err := yaml.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("error parsing header file: %w", err)
	}

	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid header %s: %w", path, err)
	}
	return h, nil
}

// Save writes a header to a YAML file
func Save(h *Header, path string) error {
	if err := h.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating header directory: %w", err)
	}

	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("error marshaling header: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing header file: %w", err)
	}
	return nil
}
