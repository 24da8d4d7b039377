package main

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/born-ml/deoldify/colorize"
	"github.com/born-ml/deoldify/internal/config"
	"github.com/born-ml/deoldify/internal/logging"
	"github.com/born-ml/deoldify/internal/parallel"
)

const version = "v0.1.0"

// app carries the settings every command shares. Flags win over the
// DEOLDIFY_* environment.
type app struct {
	modelsDir string
	artistic  bool
	half      bool
	workers   int
	scale     int
	logLevel  string

	cfg       *config.Config
	log       logr.Logger
	variant   colorize.Variant
	precision colorize.Precision
}

func newRootCmd() *cobra.Command {
	a := &app{log: logr.Discard()}

	root := &cobra.Command{
		Use:           "deoldify",
		Short:         "Colorize black and white photographs",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.modelsDir, "models", "", "directory holding the weight files (default: models next to the executable)")
	pf.BoolVar(&a.artistic, "artistic", false, "use the artistic network instead of the stable one")
	pf.BoolVar(&a.half, "half", false, "decode weight files as float16")
	pf.IntVar(&a.workers, "workers", 0, "goroutines per operator (0: all CPUs, 1: serial)")
	pf.IntVar(&a.scale, "scale", 1, "divide every layer width by this factor (testing only)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: error, warn, info, debug or trace")
	_ = pf.MarkHidden("scale")

	root.AddCommand(
		newColorizeCmd(a),
		newBatchCmd(a),
		newCheckCmd(a),
		newFetchCmd(a),
		newScheduleCmd(a),
		newSynthCmd(a),
		newEnvCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(flags *pflag.FlagSet) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if !flags.Changed("models") {
		a.modelsDir = cfg.ModelsDir
	}
	if a.modelsDir == "" {
		a.modelsDir = colorize.DefaultModelsDir()
	}
	if !flags.Changed("half") {
		a.half = cfg.Half
	}
	if !flags.Changed("workers") {
		a.workers = cfg.Workers
	}
	if !flags.Changed("log-level") {
		a.logLevel = cfg.LogLevel
	}
	if a.scale < 1 {
		return fmt.Errorf("--scale must be at least 1, got %d", a.scale)
	}

	a.variant = colorize.Stable
	if flags.Changed("artistic") {
		if a.artistic {
			a.variant = colorize.Artistic
		}
	} else if a.variant, err = colorize.ParseVariant(cfg.Variant); err != nil {
		return err
	}
	a.precision = colorize.Full
	if a.half {
		a.precision = colorize.Half
	}

	a.log, err = logging.New(a.logLevel)
	if err != nil {
		return err
	}
	parallel.SetWorkers(a.workers)
	return nil
}

// engine returns an engine with the selected variant loaded.
func (a *app) engine() (*colorize.Engine, error) {
	e := colorize.New(
		colorize.WithModelsDir(a.modelsDir),
		colorize.WithLogger(a.log),
		colorize.WithScale(a.scale),
	)
	if err := e.Initialize(a.variant, a.precision); err != nil {
		return nil, err
	}
	v, p, _ := e.Loaded()
	a.log.V(1).Info("engine ready", "variant", v.String(), "precision", p.String(),
		"models", a.modelsDir, "convolutions", e.ConvCount())
	return e, nil
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the DEOLDIFY_* environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return config.Usage(cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "deoldify %s\n", version)
		},
	}
}
