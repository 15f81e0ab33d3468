package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"voxelspace/internal/models"
	"voxelspace/pkg/affine"
	"voxelspace/pkg/interpolation"
	"voxelspace/pkg/loader"
)

var sampleFrame int

var infoCmd = &cobra.Command{
	Use:   "info <header>",
	Short: "Print a volume's shape, spacing and affine",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var mapCmd = &cobra.Command{
	Use:   "map <header> <i> <j> <k>",
	Short: "Map a voxel index to physical coordinates",
	Args:  cobra.ExactArgs(4),
	RunE:  runMap,
}

var unmapCmd = &cobra.Command{
	Use:   "unmap <header> <x> <y> <z>",
	Short: "Map physical coordinates back to a voxel index",
	Args:  cobra.ExactArgs(4),
	RunE:  runUnmap,
}

var sampleCmd = &cobra.Command{
	Use:   "sample <header> <x> <y> <z>",
	Short: "Interpolate the intensity at a physical point",
	Args:  cobra.ExactArgs(4),
	RunE:  runSample,
}

func init() {
	sampleCmd.Flags().IntVar(&sampleFrame, "frame", 0, "time point to sample")
}

func runInfo(cmd *cobra.Command, args []string) error {
	v, h, err := loader.LoadHeader(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if h.Description != "" {
		fmt.Fprintf(out, "Description:     %s\n", h.Description)
	}
	fmt.Fprintf(out, "Shape:           %v\n", v.Shape)
	fmt.Fprintf(out, "Voxel spacing:   %v mm\n", v.VoxelSpacing)
	if v.NDim() == 4 {
		fmt.Fprintf(out, "Sampling:        %g s (%d frames)\n", v.SamplingInterval, v.Frames())
	}
	fmt.Fprintln(out, "Affine:")
	for _, row := range v.Affine {
		fmt.Fprintf(out, "  [%10.4f %10.4f %10.4f %10.4f]\n", row[0], row[1], row[2], row[3])
	}

	sizes := affine.VoxelSizes(v.Affine)
	fmt.Fprintf(out, "Affine voxel sizes: %.4f x %.4f x %.4f mm\n", sizes[0], sizes[1], sizes[2])
	if !affine.IsAffine(v.Affine) {
		fmt.Fprintln(out, "Warning: bottom row is not [0 0 0 1]")
	}

	// centre of the index grid, not of the field of view
	center := models.VoxelCoordinate{
		I: float64(v.Shape[models.AxisX]-1) / 2,
		J: float64(v.Shape[models.AxisY]-1) / 2,
		K: float64(v.Shape[models.AxisZ]-1) / 2,
	}
	p, err := mapper.VoxelToPhysical(v.Affine, center.I, center.J, center.K)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Center voxel (%g, %g, %g) -> (%.4f, %.4f, %.4f) mm\n", center.I, center.J, center.K, p.X, p.Y, p.Z)
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	v, _, err := loader.LoadHeader(args[0])
	if err != nil {
		return err
	}
	c, err := parseTriple(args[1:])
	if err != nil {
		return err
	}

	p, err := mapper.VoxelToPhysical(v.Affine, c[0], c[1], c[2])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%g %g %g\n", p.X, p.Y, p.Z)
	return nil
}

func runUnmap(cmd *cobra.Command, args []string) error {
	v, _, err := loader.LoadHeader(args[0])
	if err != nil {
		return err
	}
	c, err := parseTriple(args[1:])
	if err != nil {
		return err
	}

	vox, err := mapper.PhysicalToVoxel(v.Affine, c[0], c[1], c[2])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%g %g %g\n", vox.I, vox.J, vox.K)

	i, j, k := math.Round(vox.I), math.Round(vox.J), math.Round(vox.K)
	inside := i >= 0 && j >= 0 && k >= 0 &&
		int(i) < v.Shape[models.AxisX] && int(j) < v.Shape[models.AxisY] && int(k) < v.Shape[models.AxisZ]
	if !inside {
		logf("Nearest voxel (%g, %g, %g) lies outside shape %v", i, j, k, v.Shape)
	}
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	v, err := loader.Load(args[0])
	if err != nil {
		return err
	}
	c, err := parseTriple(args[1:])
	if err != nil {
		return err
	}

	s, err := interpolation.NewSampler(v, mapper)
	if err != nil {
		return err
	}
	value, err := s.AtPhysical(models.PhysicalCoordinate{X: c[0], Y: c[1], Z: c[2]}, sampleFrame)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%g\n", value)
	return nil
}
