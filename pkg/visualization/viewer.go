package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"voxelspace/internal/models"
	"voxelspace/pkg/volume"
)

// Viewer renders 2D slices of one frame of a volume as grayscale images.
// Intensities are windowed to the frame's minimum and maximum.
type Viewer struct {
	// volume holds the samples being displayed
	volume *models.Volume

	// frame is the time point shown for 4D volumes
	frame int

	// low and high bound the display window
	low  float64
	high float64
}

// NewViewer creates a viewer for frame t of v
func NewViewer(v *models.Volume, t int) (*Viewer, error) {
	data, err := volume.Frame(v, t)
	if err != nil {
		return nil, err
	}

	viewer := &Viewer{volume: v, frame: t}
	if len(data) > 0 {
		viewer.low = floats.Min(data)
		viewer.high = floats.Max(data)
	}
	return viewer, nil
}

// SetWindow overrides the display window
func (v *Viewer) SetWindow(low, high float64) error {
	if high <= low {
		return fmt.Errorf("window upper bound %g must exceed lower bound %g", high, low)
	}
	v.low, v.high = low, high
	return nil
}

// ExtractSlice extracts a 2D slice perpendicular to the named axis
func (v *Viewer) ExtractSlice(axisName string, position int) (image.Image, error) {
	axis, err := volume.ParseAxis(axisName)
	if err != nil {
		return nil, err
	}

	plane, width, height, err := volume.ExtractSlice2D(v.volume, axis, position, v.frame)
	if err != nil {
		return nil, err
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: v.scale(plane[y*width+x])})
		}
	}
	return img, nil
}

// scale maps a sample into the 16-bit display range
func (v *Viewer) scale(value float64) uint16 {
	span := v.high - v.low
	if span <= 0 {
		return 0
	}
	norm := (value - v.low) / span
	return uint16(math.Round(math.Max(0, math.Min(1, norm)) * 65535))
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the named axis
func (v *Viewer) SaveSliceSequence(axisName string, outputDir string) error {
	axis, err := volume.ParseAxis(axisName)
	if err != nil {
		return err
	}
	if axis > models.AxisZ {
		return fmt.Errorf("%w: slices need a spatial axis, got %s", volume.ErrInvalidAxis, axisName)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < v.volume.Shape[axis]; pos++ {
		img, err := v.ExtractSlice(axisName, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axisName, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
