// Package benchmarks runs synthetic workloads through the simulated cache and
// reports how well the prefetcher hides misses.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/ghbsim/mem"
	"github.com/sarchlab/ghbsim/timing/cache"
	"github.com/sarchlab/ghbsim/timing/config"
	"github.com/sarchlab/ghbsim/timing/core"
	"github.com/sarchlab/ghbsim/timing/prefetch"
	"github.com/sarchlab/ghbsim/trace"
)

// Version is reported in JSON output.
const Version = "0.1.0"

// Result holds the outcome of a single workload run.
type Result struct {
	// Name identifies the workload
	Name string `json:"name"`

	// Description explains the access pattern
	Description string `json:"description"`

	// Prefetcher names the attached prefetcher: none, stride or ghb
	Prefetcher string `json:"prefetcher"`

	Accesses uint64  `json:"accesses"`
	Cycles   uint64  `json:"cycles"`
	AMAT     float64 `json:"amat"`

	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`

	// Prefetch outcomes, all zero without a prefetcher
	PrefetchIssued    uint64  `json:"prefetch_issued"`
	PrefetchUseful    uint64  `json:"prefetch_useful"`
	PrefetchUnused    uint64  `json:"prefetch_unused"`
	PrefetchRedundant uint64  `json:"prefetch_redundant"`
	PrefetchDropped   uint64  `json:"prefetch_dropped"`
	Accuracy          float64 `json:"accuracy"`
	Coverage          float64 `json:"coverage"`

	// Predictor decisions
	Predictions  uint64 `json:"predictions,omitempty"`
	TableMatches uint64 `json:"table_matches,omitempty"`
	Fallbacks    uint64 `json:"fallbacks,omitempty"`
	CrossPage    uint64 `json:"cross_page,omitempty"`

	// WallTime is the actual time taken to replay the workload
	WallTime time.Duration `json:"wall_time_ns"`
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Sim builds the cache for every run. Default: config.Default().
	Sim *config.SimConfig

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Parallelism bounds concurrent runs. Default: GOMAXPROCS.
	Parallelism int

	// Logger receives per-run progress. Default: disabled.
	Logger *zerolog.Logger
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Sim:         config.Default(),
		Output:      os.Stdout,
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config    HarnessConfig
	logger    zerolog.Logger
	workloads []Workload
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	defaults := DefaultConfig()
	if config.Sim == nil {
		config.Sim = defaults.Sim
	}
	if config.Output == nil {
		config.Output = defaults.Output
	}
	if config.Parallelism <= 0 {
		config.Parallelism = defaults.Parallelism
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Harness{
		config: config,
		logger: logger,
	}
}

// AddWorkload adds a workload to the harness.
func (h *Harness) AddWorkload(w Workload) {
	h.workloads = append(h.workloads, w)
}

// AddWorkloads adds multiple workloads to the harness.
func (h *Harness) AddWorkloads(workloads []Workload) {
	h.workloads = append(h.workloads, workloads...)
}

// Workloads returns the registered workloads in run order.
func (h *Harness) Workloads() []Workload {
	return h.workloads
}

// RunAll executes all workloads with the harness configuration. Results keep
// the order in which workloads were added.
func (h *Harness) RunAll(ctx context.Context) ([]Result, error) {
	return h.runAll(ctx, h.config.Sim)
}

func (h *Harness) runAll(ctx context.Context, sim *config.SimConfig) ([]Result, error) {
	if err := sim.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %w", err)
	}

	results := make([]Result, len(h.workloads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Parallelism)

	for i, w := range h.workloads {
		g.Go(func() error {
			r, err := h.run(ctx, sim, w)
			if err != nil {
				return fmt.Errorf("workload %s: %w", w.Name, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// run replays one workload on a fresh cache and predictor.
func (h *Harness) run(ctx context.Context, sim *config.SimConfig, w Workload) (Result, error) {
	logger := h.logger.With().Str("workload", w.Name).Logger()

	cpu := core.NewCore(sim.NewCache(cache.NewMemoryBacking(mem.NewMemory()), logger))
	records := w.Generate()

	logger.Debug().Int("records", len(records)).Str("prefetcher", sim.Prefetcher).Msg("replaying")

	start := time.Now()
	if err := cpu.Run(ctx, trace.NewSliceSource(records)); err != nil {
		return Result{}, err
	}
	wallTime := time.Since(start)

	result := Collect(w.Name, w.Description, cpu, wallTime)

	logger.Debug().
		Uint64("misses", result.Misses).
		Float64("amat", result.AMAT).
		Dur("wall", wallTime).
		Msg("done")

	return result, nil
}

// Collect gathers the statistics of a finished replay into a Result,
// including the counters of whichever prefetcher the cache carries.
func Collect(
	name, description string,
	cpu *core.Core,
	wallTime time.Duration,
) Result {
	coreStats := cpu.Stats()
	cacheStats := cpu.Cache().Stats()
	result := Result{
		Name:              name,
		Description:       description,
		Prefetcher:        config.PrefetcherNone,
		Accesses:          coreStats.Accesses,
		Cycles:            coreStats.Cycles,
		AMAT:              coreStats.AMAT(),
		Hits:              cacheStats.Hits,
		Misses:            cacheStats.Misses,
		HitRate:           cacheStats.HitRate(),
		PrefetchIssued:    cacheStats.PrefetchIssued,
		PrefetchUseful:    cacheStats.PrefetchUseful,
		PrefetchUnused:    cacheStats.PrefetchUnused,
		PrefetchRedundant: cacheStats.PrefetchRedundant,
		PrefetchDropped:   cacheStats.PrefetchDropped,
		Accuracy:          cacheStats.PrefetchAccuracy(),
		Coverage:          cacheStats.PrefetchCoverage(),
		WallTime:          wallTime,
	}

	switch p := cpu.Cache().Prefetcher().(type) {
	case *prefetch.GHB:
		ghbStats := p.Stats()
		result.Prefetcher = config.PrefetcherGHB
		result.Predictions = ghbStats.Predictions()
		result.TableMatches = ghbStats.TableMatches
		result.Fallbacks = ghbStats.Fallbacks
		result.CrossPage = ghbStats.CrossPage
	case *prefetch.Stride:
		strideStats := p.Stats()
		result.Prefetcher = config.PrefetcherStride
		result.Predictions = strideStats.Predictions
		result.CrossPage = strideStats.CrossPage
	}

	return result
}

// Comparison holds one workload run without a prefetcher, with the stride
// prefetcher and with the GHB prefetcher.
type Comparison struct {
	Name     string `json:"name"`
	Baseline Result `json:"baseline"`
	Stride   Result `json:"stride"`
	GHB      Result `json:"ghb"`
}

// MissReduction returns the percentage of baseline misses removed by run r.
func (c Comparison) MissReduction(r Result) float64 {
	if c.Baseline.Misses == 0 {
		return 0
	}
	removed := float64(c.Baseline.Misses) - float64(r.Misses)
	return 100.0 * removed / float64(c.Baseline.Misses)
}

// Speedup returns baseline cycles over the cycles of run r.
func (c Comparison) Speedup(r Result) float64 {
	if r.Cycles == 0 {
		return 0
	}
	return float64(c.Baseline.Cycles) / float64(r.Cycles)
}

// GHBOverStride returns stride cycles over GHB cycles. Values above 1 mean
// the GHB prefetcher won.
func (c Comparison) GHBOverStride() float64 {
	if c.GHB.Cycles == 0 {
		return 0
	}
	return float64(c.Stride.Cycles) / float64(c.GHB.Cycles)
}

// Compare runs every workload without a prefetcher, with the stride
// prefetcher and with the GHB prefetcher.
func (h *Harness) Compare(ctx context.Context) ([]Comparison, error) {
	runs := make(map[string][]Result, 3)
	for _, kind := range config.PrefetcherKinds() {
		sim := h.config.Sim.Clone()
		sim.Prefetcher = kind

		results, err := h.runAll(ctx, sim)
		if err != nil {
			return nil, err
		}
		runs[kind] = results
	}

	comparisons := make([]Comparison, len(h.workloads))
	for i, w := range h.workloads {
		comparisons[i] = Comparison{
			Name:     w.Name,
			Baseline: runs[config.PrefetcherNone][i],
			Stride:   runs[config.PrefetcherStride][i],
			GHB:      runs[config.PrefetcherGHB][i],
		}
	}
	return comparisons, nil
}

// PrintResults outputs results in a human-readable format.
func (h *Harness) PrintResults(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output, "=== GHB Prefetch Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Workload: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Accesses: %d\n", r.Accesses)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:     %d\n", r.Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:   %d\n", r.Misses)
		_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate: %.1f%%\n", r.HitRate)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles:   %d\n", r.Cycles)
		_, _ = fmt.Fprintf(h.config.Output, "  AMAT:     %.3f\n", r.AMAT)

		if r.Prefetcher != "" && r.Prefetcher != config.PrefetcherNone {
			_, _ = fmt.Fprintf(h.config.Output, "  --- Prefetcher (%s) ---\n", r.Prefetcher)
			_, _ = fmt.Fprintf(h.config.Output, "  Issued:        %d\n", r.PrefetchIssued)
			_, _ = fmt.Fprintf(h.config.Output, "  Useful:        %d\n", r.PrefetchUseful)
			_, _ = fmt.Fprintf(h.config.Output, "  Unused:        %d\n", r.PrefetchUnused)
			_, _ = fmt.Fprintf(h.config.Output, "  Redundant:     %d\n", r.PrefetchRedundant)
			_, _ = fmt.Fprintf(h.config.Output, "  Dropped:       %d\n", r.PrefetchDropped)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:      %.1f%%\n", r.Accuracy)
			_, _ = fmt.Fprintf(h.config.Output, "  Coverage:      %.1f%%\n", r.Coverage)
			_, _ = fmt.Fprintf(h.config.Output, "  Predictions:   %d\n", r.Predictions)
			if r.Prefetcher == config.PrefetcherGHB {
				_, _ = fmt.Fprintf(h.config.Output, "  Table Matches: %d\n", r.TableMatches)
				_, _ = fmt.Fprintf(h.config.Output, "  Fallbacks:     %d\n", r.Fallbacks)
			}
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []Result) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,prefetcher,accesses,hits,misses,cycles,amat,issued,useful,unused,redundant,dropped,accuracy,coverage")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%s,%d,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%.1f,%.1f\n",
			r.Name,
			r.Prefetcher,
			r.Accesses,
			r.Hits,
			r.Misses,
			r.Cycles,
			r.AMAT,
			r.PrefetchIssued,
			r.PrefetchUseful,
			r.PrefetchUnused,
			r.PrefetchRedundant,
			r.PrefetchDropped,
			r.Accuracy,
			r.Coverage,
		)
	}
}

// PrintComparison outputs a side-by-side table of comparisons.
func (h *Harness) PrintComparison(comparisons []Comparison) {
	_, _ = fmt.Fprintf(h.config.Output, "%-18s %10s %11s %10s %10s %10s %10s %10s %9s %9s %10s\n",
		"workload", "base_miss", "stride_miss", "ghb_miss",
		"stride_red", "ghb_red", "stride_acc", "ghb_acc",
		"stride_x", "ghb_x", "ghb/stride")

	for _, c := range comparisons {
		_, _ = fmt.Fprintf(h.config.Output,
			"%-18s %10d %11d %10d %9.1f%% %9.1f%% %9.1f%% %9.1f%% %8.2fx %8.2fx %9.2fx\n",
			c.Name,
			c.Baseline.Misses,
			c.Stride.Misses,
			c.GHB.Misses,
			c.MissReduction(c.Stride),
			c.MissReduction(c.GHB),
			c.Stride.Accuracy,
			c.GHB.Accuracy,
			c.Speedup(c.Stride),
			c.Speedup(c.GHB),
			c.GHBOverStride(),
		)
	}
}

// Report is the complete JSON output format.
type Report struct {
	// Metadata about the run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual workload results
	Results []Result `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the run.
type ReportMetadata struct {
	// RunID distinguishes reports written in the same second
	RunID string `json:"run_id"`

	// Timestamp when the benchmarks were run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the simulator configuration used
	Config *config.SimConfig `json:"config"`
}

// ReportSummary contains aggregate statistics across all workloads.
type ReportSummary struct {
	TotalWorkloads int           `json:"total_workloads"`
	TotalAccesses  uint64        `json:"total_accesses"`
	TotalMisses    uint64        `json:"total_misses"`
	TotalCycles    uint64        `json:"total_cycles"`
	AverageAMAT    float64       `json:"average_amat"`
	TotalWallTime  time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []Result) ReportSummary {
	summary := ReportSummary{TotalWorkloads: len(results)}
	for _, r := range results {
		summary.TotalAccesses += r.Accesses
		summary.TotalMisses += r.Misses
		summary.TotalCycles += r.Cycles
		summary.TotalWallTime += r.WallTime
	}
	if summary.TotalAccesses > 0 {
		summary.AverageAMAT = float64(summary.TotalCycles) / float64(summary.TotalAccesses)
	}
	return summary
}

// PrintJSON outputs results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []Result) error {
	report := Report{
		Metadata: ReportMetadata{
			RunID:     uuid.NewString(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    h.config.Sim,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
