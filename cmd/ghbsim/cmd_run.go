package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/ghbsim/benchmarks"
	"github.com/sarchlab/ghbsim/mem"
	"github.com/sarchlab/ghbsim/timing/cache"
	"github.com/sarchlab/ghbsim/timing/config"
	"github.com/sarchlab/ghbsim/timing/core"
	"github.com/sarchlab/ghbsim/timing/prefetch"
	"github.com/sarchlab/ghbsim/trace"
)

const metricsNamespace = "ghbsim"

func newRunCmd(opts *options) *cobra.Command {
	var (
		noPrefetch bool
		metricsOut string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "run <trace>",
		Short: "Replay a trace file through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if noPrefetch {
				sim.Prefetcher = config.PrefetcherNone
			}

			path := args[0]
			src, err := trace.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			c := sim.NewCache(cache.NewMemoryBacking(mem.NewMemory()), opts.logger)
			cpu := core.NewCore(c)

			opts.logger.Info().
				Str("trace", path).
				Str("prefetcher", sim.Prefetcher).
				Msg("replaying trace")

			start := time.Now()
			if err := cpu.Run(cmd.Context(), src); err != nil {
				return err
			}
			result := benchmarks.Collect(filepath.Base(path), path, cpu, time.Since(start))

			if metricsOut != "" {
				if err := writeMetrics(metricsOut, c); err != nil {
					return err
				}
				opts.logger.Info().Str("path", metricsOut).Msg("wrote metrics")
			}

			harness := benchmarks.NewHarness(benchmarks.HarnessConfig{
				Sim:    sim,
				Output: cmd.OutOrStdout(),
			})
			if asJSON {
				return harness.PrintJSON([]benchmarks.Result{result})
			}
			harness.PrintResults([]benchmarks.Result{result})
			return nil
		},
	}

	cmd.Flags().BoolVar(&noPrefetch, "no-prefetch", false,
		"detach the prefetcher, same as --prefetcher none")
	cmd.Flags().StringVar(&metricsOut, "metrics-out", "",
		"write final counters in Prometheus text format to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

// writeMetrics dumps cache and predictor counters for a node_exporter
// textfile collector.
func writeMetrics(path string, c *cache.Cache) error {
	registry := prometheus.NewRegistry()
	if err := registry.Register(cache.NewCollector(metricsNamespace, "l1d", c)); err != nil {
		return fmt.Errorf("failed to register cache metrics: %w", err)
	}

	var collector prometheus.Collector
	switch p := c.Prefetcher().(type) {
	case *prefetch.GHB:
		collector = prefetch.NewCollector(metricsNamespace, p)
	case *prefetch.Stride:
		collector = prefetch.NewStrideCollector(metricsNamespace, p)
	}
	if collector != nil {
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register prefetch metrics: %w", err)
		}
	}

	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
