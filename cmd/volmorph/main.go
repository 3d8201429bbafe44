package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"volmorph/pkg/config"
	"volmorph/pkg/fillholes"
	"volmorph/pkg/morphology"
	"volmorph/pkg/volume"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	configPath string
	debugMode  bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volmorph",
		Short: "Morphological transformation and hole filling for labeled volumes",
		Long: `volmorph applies stencil morphology (dilate, erode) and topological
hole filling to labeled image volumes stored in the VMV container format.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newDilateCommand())
	cmd.AddCommand(newErodeCommand())
	cmd.AddCommand(newFillHolesCommand())

	return cmd
}

func initLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch {
	case debugMode:
		logger.SetLevel(logrus.DebugLevel)
	case cfg.Output.Verbose:
		logger.SetLevel(logrus.InfoLevel)
	default:
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

func loadSettings() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configPath)
}

func parseMode(mode string) (morphology.Mode, error) {
	switch mode {
	case "", "multilabel":
		return morphology.Multilabel, nil
	case "grey", "gray":
		return morphology.Grey, nil
	}
	return 0, fmt.Errorf("unknown mode %q (expected multilabel or grey)", mode)
}

func parseAnisotropy(s string) ([3]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]float64{}, fmt.Errorf("anisotropy %q must have three comma-separated values", s)
	}
	var out [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("bad anisotropy component %q: %v", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func newDilateCommand() *cobra.Command {
	var (
		inPath     string
		outPath    string
		grey       bool
		allVoxels  bool
		iterations int
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "dilate",
		Short: "Dilate foreground labels with the full 3x3x3 stencil",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			log := initLogger(cfg)

			opts := morphology.DefaultDilateOptions()
			opts.BackgroundOnly = cfg.Morphology.BackgroundOnly
			opts.Iterations = cfg.Processing.Iterations
			opts.Parallelism = cfg.Processing.NumCores
			if mode, err := parseMode(cfg.Morphology.Mode); err == nil {
				opts.Mode = mode
			} else {
				return err
			}
			if cmd.Flags().Changed("iterations") {
				opts.Iterations = iterations
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallelism = parallel
			}
			if grey {
				opts.Mode = morphology.Grey
			}
			if allVoxels {
				opts.BackgroundOnly = false
			}

			vol, err := volume.ReadFile(inPath)
			if err != nil {
				return err
			}

			start := time.Now()
			var outVol any
			switch v := vol.(type) {
			case *volume.Volume[uint8]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[uint16]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[uint32]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[uint64]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[int8]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[int16]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[int32]:
				outVol, err = morphology.Dilate(v, opts)
			case *volume.Volume[int64]:
				outVol, err = morphology.Dilate(v, opts)
			default:
				return fmt.Errorf("unsupported volume type %T", vol)
			}
			if err != nil {
				return err
			}

			if err := writeAny(outPath, outVol); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"voxels":     humanize.Comma(voxelCount(outVol)),
				"iterations": opts.Iterations,
				"elapsed":    time.Since(start).Round(time.Millisecond),
			}).Info("dilation complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "input", "i", "", "Input volume file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output volume file")
	cmd.Flags().BoolVar(&grey, "grey", false, "Use grayscale (maximum) dilation")
	cmd.Flags().BoolVar(&allVoxels, "all-voxels", false, "Recompute every voxel, letting labels overwrite each other")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "Number of dilation passes")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Worker count (0 = all CPUs)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newErodeCommand() *cobra.Command {
	var (
		inPath     string
		outPath    string
		grey       bool
		keepBorder bool
		iterations int
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "erode",
		Short: "Erode foreground labels with the full 3x3x3 stencil",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			log := initLogger(cfg)

			opts := morphology.DefaultErodeOptions()
			opts.ErodeBorder = cfg.Morphology.ErodeBorder
			opts.Iterations = cfg.Processing.Iterations
			opts.Parallelism = cfg.Processing.NumCores
			if mode, err := parseMode(cfg.Morphology.Mode); err == nil {
				opts.Mode = mode
			} else {
				return err
			}
			if cmd.Flags().Changed("iterations") {
				opts.Iterations = iterations
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallelism = parallel
			}
			if grey {
				opts.Mode = morphology.Grey
			}
			if keepBorder {
				opts.ErodeBorder = false
			}

			vol, err := volume.ReadFile(inPath)
			if err != nil {
				return err
			}

			start := time.Now()
			var outVol any
			switch v := vol.(type) {
			case *volume.Volume[uint8]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[uint16]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[uint32]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[uint64]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[int8]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[int16]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[int32]:
				outVol, err = morphology.Erode(v, opts)
			case *volume.Volume[int64]:
				outVol, err = morphology.Erode(v, opts)
			default:
				return fmt.Errorf("unsupported volume type %T", vol)
			}
			if err != nil {
				return err
			}

			if err := writeAny(outPath, outVol); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"voxels":     humanize.Comma(voxelCount(outVol)),
				"iterations": opts.Iterations,
				"elapsed":    time.Since(start).Round(time.Millisecond),
			}).Info("erosion complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&inPath, "input", "i", "", "Input volume file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output volume file")
	cmd.Flags().BoolVar(&grey, "grey", false, "Use grayscale (minimum) erosion")
	cmd.Flags().BoolVar(&keepBorder, "keep-border", false, "Treat out-of-bounds neighbors as matching instead of background")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "Number of erosion passes")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Worker count (0 = all CPUs)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newFillHolesCommand() *cobra.Command {
	var (
		inPath         string
		outPath        string
		holesPath      string
		mergeThreshold float64
		fixBorders     bool
		anisotropy     string
		legacy         bool
		removeEnclosed bool
		closing        bool
		parallel       int
	)

	cmd := &cobra.Command{
		Use:   "fill-holes",
		Short: "Fill topologically enclosed cavities in a labeled volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			log := initLogger(cfg)

			opts := fillholes.DefaultOptions()
			opts.MergeThreshold = cfg.FillHoles.MergeThreshold
			opts.FixBorders = cfg.FillHoles.FixBorders
			if len(cfg.FillHoles.Anisotropy) == 3 {
				copy(opts.Anisotropy[:], cfg.FillHoles.Anisotropy)
			}
			opts.Parallelism = cfg.Processing.NumCores
			if cmd.Flags().Changed("merge-threshold") {
				opts.MergeThreshold = mergeThreshold
			}
			if cmd.Flags().Changed("fix-borders") {
				opts.FixBorders = fixBorders
			}
			if cmd.Flags().Changed("anisotropy") {
				aniso, err := parseAnisotropy(anisotropy)
				if err != nil {
					return err
				}
				opts.Anisotropy = aniso
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallelism = parallel
			}

			vol, err := volume.ReadFile(inPath)
			if err != nil {
				return err
			}

			if legacy {
				legacyOpts := fillholes.LegacyOptions{
					RemoveEnclosed:       removeEnclosed,
					FixBorders:           opts.FixBorders,
					MorphologicalClosing: closing,
					Parallelism:          opts.Parallelism,
				}
				switch v := vol.(type) {
				case *volume.Volume[uint8]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[uint16]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[uint32]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[uint64]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[int8]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[int16]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[int32]:
					return runLegacy(log, v, legacyOpts, outPath)
				case *volume.Volume[int64]:
					return runLegacy(log, v, legacyOpts, outPath)
				}
				return fmt.Errorf("unsupported volume type %T", vol)
			}

			switch v := vol.(type) {
			case *volume.Volume[uint8]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[uint16]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[uint32]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[uint64]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[int8]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[int16]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[int32]:
				return runFill(log, v, opts, outPath, holesPath)
			case *volume.Volume[int64]:
				return runFill(log, v, opts, outPath, holesPath)
			}
			return fmt.Errorf("unsupported volume type %T", vol)
		},
	}

	cmd.Flags().StringVarP(&inPath, "input", "i", "", "Input volume file")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Filled volume output file")
	cmd.Flags().StringVar(&holesPath, "holes", "", "Optional sparse hole-volume output file")
	cmd.Flags().Float64Var(&mergeThreshold, "merge-threshold", 1.0, "Minimum boundary-area fraction for a merge")
	cmd.Flags().BoolVar(&fixBorders, "fix-borders", false, "Resolve holes visible only on the bounding-box faces")
	cmd.Flags().StringVar(&anisotropy, "anisotropy", "1,1,1", "Per-axis voxel resolution x,y,z")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Use the single-pass per-component fill")
	cmd.Flags().BoolVar(&removeEnclosed, "remove-enclosed", false, "Legacy: delete totally enclosed labels instead of failing")
	cmd.Flags().BoolVar(&closing, "closing", false, "Legacy: dilate before filling and erode afterwards")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Worker count (0 = all CPUs)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runFill[T volume.Label](log *logrus.Logger, vol *volume.Volume[T], opts fillholes.Options, outPath, holesPath string) error {
	start := time.Now()
	filled, holes, err := fillholes.Fill(vol, opts)
	if err != nil {
		return err
	}
	counts, err := fillholes.FillCounts(vol, filled)
	if err != nil {
		return err
	}
	var totalFilled int64
	for _, ct := range counts {
		totalFilled += ct
	}

	if err := volume.WriteFile(outPath, filled); err != nil {
		return err
	}
	if holesPath != "" {
		if err := volume.WriteFile(holesPath, holes); err != nil {
			return err
		}
	}
	log.WithFields(logrus.Fields{
		"voxels":  humanize.Comma(int64(vol.Len())),
		"filled":  humanize.Comma(totalFilled),
		"labels":  len(counts),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("hole filling complete")
	for label, ct := range counts {
		log.WithFields(logrus.Fields{"label": label, "filled": ct}).Debug("per-label fill count")
	}
	return nil
}

func runLegacy[T volume.Label](log *logrus.Logger, vol *volume.Volume[T], opts fillholes.LegacyOptions, outPath string) error {
	start := time.Now()
	filled, counts, removed, err := fillholes.FillLegacy(vol, opts)
	if err != nil {
		return err
	}
	var totalFilled int64
	for _, ct := range counts {
		totalFilled += ct
	}

	if err := volume.WriteFile(outPath, filled); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"voxels":  humanize.Comma(int64(vol.Len())),
		"filled":  humanize.Comma(totalFilled),
		"removed": len(removed),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Info("legacy hole filling complete")
	return nil
}

// writeAny serializes a volume of any supported dtype.
func writeAny(path string, vol any) error {
	switch v := vol.(type) {
	case *volume.Volume[uint8]:
		return volume.WriteFile(path, v)
	case *volume.Volume[uint16]:
		return volume.WriteFile(path, v)
	case *volume.Volume[uint32]:
		return volume.WriteFile(path, v)
	case *volume.Volume[uint64]:
		return volume.WriteFile(path, v)
	case *volume.Volume[int8]:
		return volume.WriteFile(path, v)
	case *volume.Volume[int16]:
		return volume.WriteFile(path, v)
	case *volume.Volume[int32]:
		return volume.WriteFile(path, v)
	case *volume.Volume[int64]:
		return volume.WriteFile(path, v)
	}
	return fmt.Errorf("unsupported volume type %T", vol)
}

func voxelCount(vol any) int64 {
	switch v := vol.(type) {
	case *volume.Volume[uint8]:
		return int64(v.Len())
	case *volume.Volume[uint16]:
		return int64(v.Len())
	case *volume.Volume[uint32]:
		return int64(v.Len())
	case *volume.Volume[uint64]:
		return int64(v.Len())
	case *volume.Volume[int8]:
		return int64(v.Len())
	case *volume.Volume[int16]:
		return int64(v.Len())
	case *volume.Volume[int32]:
		return int64(v.Len())
	case *volume.Volume[int64]:
		return int64(v.Len())
	}
	return 0
}
