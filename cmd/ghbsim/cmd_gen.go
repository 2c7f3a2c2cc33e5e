package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/ghbsim/benchmarks"
	"github.com/sarchlab/ghbsim/trace"
)

func newGenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "gen <workload> <out>",
		Short: "Write a synthetic workload as a trace file",
		Long: fmt.Sprintf(`Write a synthetic workload as a trace file. Output ending in .gz or
.zst is compressed. Workloads: %s.`, strings.Join(workloadNames(), ", ")),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, ok := benchmarks.FindWorkload(args[0])
			if !ok {
				return fmt.Errorf("unknown workload %q (have %s)",
					args[0], strings.Join(workloadNames(), ", "))
			}

			out, err := trace.Create(args[1])
			if err != nil {
				return err
			}

			records := w.Generate()
			if err := out.WriteAll(records); err != nil {
				_ = out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to finish trace: %w", err)
			}

			opts.logger.Info().
				Str("workload", w.Name).
				Str("path", args[1]).
				Int("records", len(records)).
				Msg("wrote trace")
			return nil
		},
	}
}
