package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/cobra"

	"groundchat/config"
	"groundchat/repository"
)

func sweepCMD() *cobra.Command {
	var (
		configPath string
		follow     bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired history files from the file store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(configPath)
			store, err := buildStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			sweeper, ok := store.(repository.Sweeper)
			if !ok {
				return fmt.Errorf("store type %q has no retention sweep", cfg.Memory.Store)
			}
			if follow {
				runSweepLoop(cmd.Context(), sweeper, cfg.Memory.SweepSpec)
				return nil
			}
			removed, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("sweep removed %d files", removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep running on the configured cron schedule")
	return cmd
}

// runSweepLoop sweeps on the cron schedule until the context is canceled. A
// malformed expression disables the loop rather than crashing the service.
func runSweepLoop(ctx context.Context, sweeper repository.Sweeper, spec string) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		log.Printf("invalid sweep schedule %q, retention sweep disabled: %v", spec, err)
		return
	}
	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}
		removed, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Printf("retention sweep failed: %v", err)
			continue
		}
		log.Printf("retention sweep removed %d files", removed)
	}
}
