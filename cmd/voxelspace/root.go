package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"voxelspace/pkg/affine"
	"voxelspace/pkg/config"
)

var (
	// configPath is the YAML configuration file given by --config
	configPath string

	// appConfig is loaded before every command runs
	appConfig *config.Config

	// mapper is shared by all commands so inverses are computed once per run
	mapper *affine.Mapper
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voxelspace",
	Short: "Inspect volumes and map voxel indices to scanner space",
	Long: "voxelspace reads a volume header and its raw samples, maps voxel\n" +
		"indices to physical RAS coordinates through the header's affine, and\n" +
		"extracts slices, subsets and histograms.\n\n" +
		"Negative coordinates must follow a -- separator, for example:\n" +
		"  voxelspace unmap bold.yaml -- 51 -1 -1",
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "voxelspace.yaml", "configuration file")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(unmapCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(sliceCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(meanCmd)
	rootCmd.AddCommand(histCmd)
	rootCmd.AddCommand(initConfigCmd)
}

// initializeApp loads the configuration and builds the shared mapper
func initializeApp(cmd *cobra.Command, args []string) error {
	if cmd.Name() == initConfigCmd.Name() {
		return nil
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appConfig = cfg
	mapper = cfg.NewMapper()

	logf("Loaded configuration from %s", configPath)
	return nil
}

// logf logs progress when verbose output is enabled
func logf(format string, args ...interface{}) {
	if appConfig != nil && appConfig.Output.Verbose {
		log.Printf(format, args...)
	}
}

// parseTriple parses three coordinate arguments
func parseTriple(args []string) ([3]float64, error) {
	var out [3]float64
	if len(args) != 3 {
		return out, fmt.Errorf("%w: expected 3 coordinates, got %d", affine.ErrShapeMismatch, len(args))
	}
	for i, arg := range args {
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return out, fmt.Errorf("invalid coordinate %q: %w", arg, err)
		}
		out[i] = value
	}
	return out, nil
}

// ensureDir creates an output directory if needed
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a configuration file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to %s\n", path)
		return nil
	},
}
