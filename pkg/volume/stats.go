package volume

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"voxelspace/internal/models"
)

// ErrNoSamples is returned when a statistic is requested over no values
var ErrNoSamples = errors.New("no samples")

// Summary holds descriptive statistics of a set of samples
type Summary struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Count  int
}

// Histogram holds equal-width bin counts.
// Bin n covers [Dividers[n], Dividers[n+1]); the last bin includes the maximum.
type Histogram struct {
	Dividers []float64
	Counts   []float64
}

// Summarize computes min, max, mean and sample standard deviation
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrNoSamples
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   mean,
		StdDev: std,
		Count:  len(values),
	}, nil
}

// Finite returns the samples that are neither NaN nor infinite
func Finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, value := range values {
		if !math.IsNaN(value) && !math.IsInf(value, 0) {
			out = append(out, value)
		}
	}
	return out
}

// ComputeHistogram bins values into the given number of equal-width bins
// spanning their range. NaN and infinite samples are not counted.
func ComputeHistogram(values []float64, bins int) (Histogram, error) {
	if bins <= 0 {
		return Histogram{}, fmt.Errorf("bin count must be positive, got %d", bins)
	}

	sorted := Finite(values)
	if len(sorted) == 0 {
		return Histogram{}, ErrNoSamples
	}
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		hi = lo + 1
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram excludes the upper divider
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	return Histogram{
		Dividers: dividers,
		Counts:   stat.Histogram(nil, dividers, sorted, nil),
	}, nil
}

// MeanOverTime averages a 4D volume across its T axis, giving a 3D volume
// with the same spatial grid and affine
func MeanOverTime(v *models.Volume) (*models.Volume, error) {
	if len(v.Shape) != 4 {
		return nil, fmt.Errorf("%w: mean over time needs a 4D volume, got %dD", ErrInvalidAxis, len(v.Shape))
	}
	if v.Shape[models.AxisT] == 0 {
		return nil, ErrNoSamples
	}
	if err := checkData(v); err != nil {
		return nil, err
	}

	frames := v.Shape[models.AxisT]
	n := v.Shape[models.AxisX] * v.Shape[models.AxisY] * v.Shape[models.AxisZ]
	out := &models.Volume{
		Shape:        append([]int(nil), v.Shape[:3]...),
		VoxelSpacing: append([]float64(nil), v.VoxelSpacing...),
		Data:         make([]float64, n),
		Affine:       v.Affine,
	}

	series := make([]float64, frames)
	for voxel := 0; voxel < n; voxel++ {
		for t := 0; t < frames; t++ {
			series[t] = v.Data[voxel+t*n]
		}
		out.Data[voxel] = stat.Mean(series, nil)
	}
	return out, nil
}

// TimeSeries returns the samples of voxel (i, j, k) across all frames
func TimeSeries(v *models.Volume, i, j, k int) ([]float64, error) {
	if len(v.Shape) != 4 {
		return nil, fmt.Errorf("%w: time series needs a 4D volume, got %dD", ErrInvalidAxis, len(v.Shape))
	}
	series := make([]float64, v.Shape[models.AxisT])
	for t := range series {
		value, err := At(v, i, j, k, t)
		if err != nil {
			return nil, err
		}
		series[t] = value
	}
	return series, nil
}

// Threshold returns a copy of the volume with every sample below lo set to zero
func Threshold(v *models.Volume, lo float64) *models.Volume {
	out := *v
	out.Shape = append([]int(nil), v.Shape...)
	out.VoxelSpacing = append([]float64(nil), v.VoxelSpacing...)
	out.Data = make([]float64, len(v.Data))
	for n, value := range v.Data {
		if value >= lo {
			out.Data[n] = value
		}
	}
	return &out
}

// CountAbove returns how many samples are strictly greater than lo
func CountAbove(values []float64, lo float64) int {
	count := 0
	for _, value := range values {
		if value > lo {
			count++
		}
	}
	return count
}
