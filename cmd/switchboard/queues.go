package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/webordinary/switchboard/pkg/types"
)

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "Inspect and manage tenant queues",
}

var queuesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed queues",
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

		infos, err := c.queues.ListQueues(ctx, cfg.QueuePrefix)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tMESSAGES\tCREATED")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.ApproxMessages, info.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var queuesDropCmd = &cobra.Command{
	Use:   "drop <projectId> <userId>",
	Short: "Delete a tenant's queue triplet and registry records",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		key := types.TenantKey{ProjectID: args[0], UserID: args[1]}
		if !key.Valid() {
			return fmt.Errorf("invalid tenant key %s", key)
		}

		ctx := context.Background()
		c, err := newCore(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.registry.Drop(ctx, key); err != nil {
			return err
		}
		fmt.Printf("✓ Dropped queues for %s\n", key)
		return nil
	},
}

func init() {
	addCommonFlags(queuesListCmd)
	addCommonFlags(queuesDropCmd)
	queuesCmd.AddCommand(queuesListCmd)
	queuesCmd.AddCommand(queuesDropCmd)
}
