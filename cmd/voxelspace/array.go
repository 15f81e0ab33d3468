package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"voxelspace/pkg/loader"
	"voxelspace/pkg/visualization"
	"voxelspace/pkg/volume"
)

var (
	sliceAxis     string
	slicePosition int
	sliceFrame    int
	sliceAll      bool

	selectAxis   string
	selectStart  int
	selectStride int
	selectOut    string

	meanOut string

	histBins      int
	histThreshold float64
	histFrame     int
	histPlot      string
)

var sliceCmd = &cobra.Command{
	Use:   "slice <header>",
	Short: "Save 2D slices as JPEG images",
	Args:  cobra.ExactArgs(1),
	RunE:  runSlice,
}

var selectCmd = &cobra.Command{
	Use:   "select <header>",
	Short: "Keep every stride-th index along an axis and save the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

var meanCmd = &cobra.Command{
	Use:   "mean <header>",
	Short: "Average a time series across its frames",
	Args:  cobra.ExactArgs(1),
	RunE:  runMean,
}

var histCmd = &cobra.Command{
	Use:   "hist <header>",
	Short: "Print intensity statistics and a histogram of one frame",
	Args:  cobra.ExactArgs(1),
	RunE:  runHist,
}

func init() {
	sliceCmd.Flags().StringVar(&sliceAxis, "axis", "z", "axis perpendicular to the slice (x, y or z)")
	sliceCmd.Flags().IntVar(&slicePosition, "position", 0, "slice index along the axis")
	sliceCmd.Flags().IntVar(&sliceFrame, "frame", 0, "time point to show")
	sliceCmd.Flags().BoolVar(&sliceAll, "all", false, "save every slice along the axis")

	selectCmd.Flags().StringVar(&selectAxis, "axis", "t", "axis to subsample (x, y, z or t)")
	selectCmd.Flags().IntVar(&selectStart, "start", 0, "first index kept")
	selectCmd.Flags().IntVar(&selectStride, "stride", 1, "step between kept indices")
	selectCmd.Flags().StringVar(&selectOut, "out", "", "header path for the result (required)")
	_ = selectCmd.MarkFlagRequired("out")

	meanCmd.Flags().StringVar(&meanOut, "out", "", "header path for the result (required)")
	_ = meanCmd.MarkFlagRequired("out")

	histCmd.Flags().IntVar(&histBins, "bins", 0, "number of bins (default from config)")
	histCmd.Flags().Float64Var(&histThreshold, "threshold", 0, "ignore samples below this value (default from config, unset keeps all)")
	histCmd.Flags().IntVar(&histFrame, "frame", 0, "time point to analyse")
	histCmd.Flags().StringVar(&histPlot, "plot", "", "also render the histogram to this image file")
}

func runSlice(cmd *cobra.Command, args []string) error {
	v, err := loader.Load(args[0])
	if err != nil {
		return err
	}
	viewer, err := visualization.NewViewer(v, sliceFrame)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sliceAll {
		dir := filepath.Join(appConfig.Output.Dir, "slices", sliceAxis)
		logf("Saving %s-axis slices to %s", sliceAxis, dir)
		if err := viewer.SaveSliceSequence(sliceAxis, dir); err != nil {
			return err
		}
		fmt.Fprintf(out, "Slices saved to %s\n", dir)
		return nil
	}

	img, err := viewer.ExtractSlice(sliceAxis, slicePosition)
	if err != nil {
		return err
	}
	if err := ensureDir(appConfig.Output.Dir); err != nil {
		return err
	}
	filename := filepath.Join(appConfig.Output.Dir, fmt.Sprintf("slice_%s_%03d_t%03d.jpg", sliceAxis, slicePosition, sliceFrame))
	if err := viewer.SaveSlice(img, filename); err != nil {
		return err
	}
	fmt.Fprintf(out, "Slice saved to %s\n", filename)
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	v, err := loader.Load(args[0])
	if err != nil {
		return err
	}
	axis, err := volume.ParseAxis(selectAxis)
	if err != nil {
		return err
	}

	sub, err := volume.Select(v, axis, selectStart, selectStride)
	if err != nil {
		return err
	}
	logf("Selected shape %v from %v", sub.Shape, v.Shape)

	if err := loader.Save(sub, selectOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Shape %v saved to %s\n", sub.Shape, selectOut)
	return nil
}

func runMean(cmd *cobra.Command, args []string) error {
	v, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	mean, err := volume.MeanOverTime(v)
	if err != nil {
		return err
	}
	if err := loader.Save(mean, meanOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mean of %d frames saved to %s\n", v.Frames(), meanOut)
	return nil
}

func runHist(cmd *cobra.Command, args []string) error {
	v, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	bins := appConfig.Histogram.Bins
	if cmd.Flags().Changed("bins") {
		bins = histBins
	}
	threshold := appConfig.Histogram.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold = &histThreshold
	}

	frame, err := volume.Frame(v, histFrame)
	if err != nil {
		return err
	}
	values := volume.Finite(frame)
	if dropped := len(frame) - len(values); dropped > 0 {
		logf("Ignoring %d non-finite samples", dropped)
	}
	if threshold != nil {
		kept := values[:0]
		for _, value := range values {
			if value >= *threshold {
				kept = append(kept, value)
			}
		}
		values = kept
	}

	summary, err := volume.Summarize(values)
	if err != nil {
		return fmt.Errorf("no finite samples to summarize: %w", err)
	}
	hist, err := volume.ComputeHistogram(values, bins)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Samples: %d  Min: %g  Max: %g  Mean: %.4f  Std: %.4f\n",
		summary.Count, summary.Min, summary.Max, summary.Mean, summary.StdDev)
	for n, count := range hist.Counts {
		fmt.Fprintf(out, "[%10.4g, %10.4g) %d\n", hist.Dividers[n], hist.Dividers[n+1], int(count))
	}

	if histPlot != "" {
		title := fmt.Sprintf("%s frame %d", filepath.Base(args[0]), histFrame)
		if err := visualization.SaveHistogram(hist, title, histPlot); err != nil {
			return err
		}
		logf("Histogram plot saved to %s", histPlot)
	}
	return nil
}
