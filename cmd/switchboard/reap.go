package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webordinary/switchboard/pkg/reaper"
)

var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Run a single cleanup sweep",
	Long: `Run one reaper sweep immediately: flip stale ownership records,
delete orphaned tenant queues, and report thread mapping volume. The
same sweep the daemon runs on its interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()
		c, err := newCore(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		rp := reaper.New(c.queues, c.store, nil, reaper.Options{
			Interval:       cfg.ReaperInterval,
			OrphanAge:      cfg.OrphanAge,
			OwnerHardTTL:   cfg.OwnerHardTTL,
			OwnerFreshness: cfg.OwnerFreshness,
			Prefix:         cfg.QueuePrefix,
		})
		stats, err := rp.Sweep(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Sweep complete\n")
		fmt.Printf("  Queues deleted:  %d\n", stats.QueuesDeleted)
		fmt.Printf("  Owners flipped:  %d\n", stats.OwnersFlipped)
		fmt.Printf("  Thread mappings: %d\n", stats.ThreadMappings)
		return nil
	},
}

func init() {
	addCommonFlags(reapCmd)
}
