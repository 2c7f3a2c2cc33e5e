// Package main provides the entry point for ghbsim.
// ghbsim is a trace-driven data cache simulator with a Global History Buffer
// delta-correlation prefetcher, built on Akita cache components.
//
// For the full CLI, use: go run ./cmd/ghbsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("ghbsim - GHB Delta-Correlation Prefetch Simulator")
	fmt.Println("Built on Akita cache components")
	fmt.Println("")
	fmt.Println("Usage: ghbsim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run <trace>            Replay a trace file through the cache")
	fmt.Println("  bench                  Run the synthetic workloads")
	fmt.Println("  gen <workload> <out>   Write a synthetic workload as a trace file")
	fmt.Println("  config                 Print the effective configuration")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ghbsim --help' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ghbsim' instead.")
	}
}
