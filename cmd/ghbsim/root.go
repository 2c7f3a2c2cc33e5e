package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/sarchlab/ghbsim/timing/config"
)

// options holds flags shared by every subcommand.
type options struct {
	configPath string
	prefetcher string
	verbose    bool
	logger     zerolog.Logger
}

// newLogger writes human-readable logs to terminals and JSON lines elsewhere.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	out := w
	if f, ok := w.(*os.File); ok &&
		(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.TimeOnly}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// loadConfig returns the validated configuration named by --config, or the
// defaults, with --prefetcher applied on top.
func (o *options) loadConfig() (*config.SimConfig, error) {
	sim := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		sim = loaded
		o.logger.Debug().Str("path", o.configPath).Msg("loaded config")
	}
	if o.prefetcher != "" {
		sim.Prefetcher = o.prefetcher
	}

	if err := sim.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return sim, nil
}

// execute runs the command line. Profiles are finished even when the
// command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, prof := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, prof.stop())
}

func newRootCmd() (*cobra.Command, *profiler) {
	opts := &options{logger: zerolog.Nop()}
	prof := &profiler{}

	root := &cobra.Command{
		Use:   "ghbsim",
		Short: "Trace-driven cache simulator with a GHB delta prefetcher",
		Long: `ghbsim replays memory access traces through an L1 data cache model
and reports how well a Global History Buffer prefetcher hides misses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
			logf := func(format string, v ...interface{}) {
				opts.logger.Debug().Msgf(format, v...)
			}
			if _, err := maxprocs.Set(maxprocs.Logger(logf)); err != nil {
				opts.logger.Warn().Err(err).Msg("failed to set GOMAXPROCS from CPU quota")
			}
			return prof.start()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"simulator config file (.yaml, .yml or .json)")
	root.PersistentFlags().StringVar(&opts.prefetcher, "prefetcher", "",
		fmt.Sprintf("override the configured prefetcher (%s)",
			strings.Join(config.PrefetcherKinds(), ", ")))
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"enable debug logging")
	root.PersistentFlags().StringVar(&prof.cpuPath, "cpuprofile", "",
		"write a CPU profile to this file")
	root.PersistentFlags().StringVar(&prof.memPath, "memprofile", "",
		"write a heap profile to this file on exit")

	root.AddCommand(
		newRunCmd(opts),
		newBenchCmd(opts),
		newGenCmd(opts),
		newConfigCmd(opts),
	)

	return root, prof
}
