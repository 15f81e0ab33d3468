package visualization

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"voxelspace/pkg/volume"
)

// SaveHistogram renders the bin counts of h as a bar chart.
// The image format follows the file extension (png, svg, pdf, ...).
func SaveHistogram(h volume.Histogram, title, filename string) error {
	if len(h.Counts) == 0 {
		return fmt.Errorf("histogram has no bins")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Voxels"

	bars, err := plotter.NewBarChart(plotter.Values(h.Counts), vg.Points(4))
	if err != nil {
		return fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	lo, hi := h.Dividers[0], h.Dividers[len(h.Dividers)-1]
	p.X.Label.Text = fmt.Sprintf("Bin (%.4g to %.4g)", lo, hi)

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("failed to save histogram: %w", err)
	}
	return nil
}
