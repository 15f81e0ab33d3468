// Package loader reads a volume from a header and its raw sample file.
//
// Samples are stored as little-endian float32 with the X axis varying fastest,
// which matches models.Volume. No compression or other container format is
// understood.
package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"voxelspace/internal/models"
	"voxelspace/pkg/header"
)

// ErrSizeMismatch is returned when a data file does not hold exactly one
// sample per voxel
var ErrSizeMismatch = errors.New("data size does not match shape")

// bytesPerSample is the width of one stored float32 sample
const bytesPerSample = 4

// Load reads the header at headerPath and the data file it names
func Load(headerPath string) (*models.Volume, error) {
	h, err := header.Load(headerPath)
	if err != nil {
		return nil, err
	}

	v, err := h.Volume()
	if err != nil {
		return nil, err
	}

	if h.DataFile == "" {
		return nil, fmt.Errorf("header %s names no data file", headerPath)
	}
	dataPath := h.DataFile
	if !filepath.IsAbs(dataPath) {
		dataPath = filepath.Join(filepath.Dir(headerPath), dataPath)
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}
	want := int64(v.NumVoxels()) * bytesPerSample
	if info.Size() != want {
		return nil, fmt.Errorf("%w: %s has %d bytes, shape %v needs %d", ErrSizeMismatch, dataPath, info.Size(), v.Shape, want)
	}

	v.Data, err = ReadSamples(bufio.NewReader(file), v.NumVoxels())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dataPath, err)
	}
	return v, nil
}

// LoadHeader reads only the header, leaving the volume without data
func LoadHeader(headerPath string) (*models.Volume, *header.Header, error) {
	h, err := header.Load(headerPath)
	if err != nil {
		return nil, nil, err
	}
	v, err := h.Volume()
	if err != nil {
		return nil, nil, err
	}
	return v, h, nil
}

// ReadSamples decodes n little-endian float32 samples
func ReadSamples(r io.Reader, n int) ([]float64, error) {
	raw := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: expected %d samples", ErrSizeMismatch, n)
		}
		return nil, err
	}

	data := make([]float64, n)
	for i, s := range raw {
		data[i] = float64(s)
	}
	return data, nil
}

// WriteSamples encodes samples as little-endian float32
func WriteSamples(w io.Writer, data []float64) error {
	raw := make([]float32, len(data))
	for i, s := range data {
		if !math.IsInf(s, 0) && math.Abs(s) > math.MaxFloat32 {
			return fmt.Errorf("sample %d (%g) does not fit in float32", i, s)
		}
		raw[i] = float32(s)
	}
	return binary.Write(w, binary.LittleEndian, raw)
}

// Save writes v as a header at headerPath plus a raw data file beside it
func Save(v *models.Volume, headerPath string) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if len(v.Data) != v.NumVoxels() {
		return fmt.Errorf("%w: volume has %d samples, needs %d", ErrSizeMismatch, len(v.Data), v.NumVoxels())
	}

	base := filepath.Base(headerPath)
	dataFile := base[:len(base)-len(filepath.Ext(base))] + ".raw"

	if err := header.Save(header.FromVolume(v, dataFile), headerPath); err != nil {
		return err
	}

	file, err := os.Create(filepath.Join(filepath.Dir(headerPath), dataFile))
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	if err := WriteSamples(buf, v.Data); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return buf.Flush()
}
