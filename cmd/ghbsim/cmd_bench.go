package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ghbsim/benchmarks"
)

func newBenchCmd(opts *options) *cobra.Command {
	var (
		csv       bool
		asJSON    bool
		compare   bool
		parallel  int
		workloads []string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the synthetic workloads",
		Long: fmt.Sprintf("Run the synthetic workloads (%s) and report cache and prefetch statistics.",
			strings.Join(workloadNames(), ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := opts.loadConfig()
			if err != nil {
				return err
			}

			selected, err := selectWorkloads(workloads)
			if err != nil {
				return err
			}

			harness := benchmarks.NewHarness(benchmarks.HarnessConfig{
				Sim:         sim,
				Output:      cmd.OutOrStdout(),
				Parallelism: parallel,
				Logger:      &opts.logger,
			})
			harness.AddWorkloads(selected)

			if compare {
				comparisons, err := harness.Compare(cmd.Context())
				if err != nil {
					return err
				}
				harness.PrintComparison(comparisons)
				return nil
			}

			results, err := harness.RunAll(cmd.Context())
			if err != nil {
				return err
			}

			switch {
			case asJSON:
				return harness.PrintJSON(results)
			case csv:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&csv, "csv", false, "print results as CSV")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&compare, "compare", false, "compare no prefetcher, the stride prefetcher and the GHB prefetcher")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0,
		"number of workloads to run concurrently (0 = GOMAXPROCS)")
	cmd.Flags().StringSliceVarP(&workloads, "workload", "w", nil,
		"run only the named workloads")
	cmd.MarkFlagsMutuallyExclusive("csv", "json", "compare")

	return cmd
}

func workloadNames() []string {
	var names []string
	for _, w := range benchmarks.DefaultWorkloads() {
		names = append(names, w.Name)
	}
	return names
}

func selectWorkloads(names []string) ([]benchmarks.Workload, error) {
	if len(names) == 0 {
		return benchmarks.DefaultWorkloads(), nil
	}

	selected := make([]benchmarks.Workload, 0, len(names))
	for _, name := range names {
		w, ok := benchmarks.FindWorkload(name)
		if !ok {
			return nil, fmt.Errorf("unknown workload %q (have %s)",
				name, strings.Join(workloadNames(), ", "))
		}
		selected = append(selected, w)
	}
	return selected, nil
}
