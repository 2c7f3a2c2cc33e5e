// Package main provides the ghbsim command line tool.
// ghbsim replays memory access traces through a simulated data cache with a
// Global History Buffer delta-correlation prefetcher.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Error().Err(err).Msg("ghbsim failed")
		stop()
		os.Exit(1)
	}
}
