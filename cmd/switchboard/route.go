package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/webordinary/switchboard/pkg/ingress"
	"github.com/webordinary/switchboard/pkg/router"
)

var routeCmd = &cobra.Command{
	Use:   "route [payload-file]",
	Short: "Route a single ingress payload",
	Long: `Route one transport payload through the full pipeline and print the
decision. Reads the payload from the given file, or stdin when omitted.

Used for ops: replaying a dropped message, or smoke-testing tenant
configuration. The work message is sent fire-and-forget; nothing waits
for the worker's response.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")

		var payload []byte
		if len(args) == 1 {
			if payload, err = os.ReadFile(args[0]); err != nil {
				return fmt.Errorf("failed to read payload: %w", err)
			}
		} else {
			if payload, err = io.ReadAll(os.Stdin); err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
		}

		msg, err := ingress.Decode(source, payload)
		if err != nil {
			return err
		}

		ctx := context.Background()
		c, err := newCore(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		rt := router.New(c.resolver, c.registry, c.owners, c.queues, &router.DirectSender{Queues: c.queues}, nil)
		decision, err := rt.Route(ctx, msg)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Routed\n")
		fmt.Printf("  Tenant:     %s\n", decision.TenantKey)
		fmt.Printf("  Thread:     %s\n", decision.ThreadID)
		fmt.Printf("  Command:    %s\n", decision.CommandID)
		fmt.Printf("  Input:      %s\n", decision.InputURL)
		if decision.NeedsUnclaimed {
			fmt.Printf("  Claim:      announced on unclaimed queue\n")
		}
		if decision.Unresolved {
			fmt.Printf("  Warning:    unresolved sender, routed to default tenant\n")
		}
		if decision.MissingConfig {
			fmt.Printf("  Warning:    tenant has no repository configured\n")
		}
		return nil
	},
}

func init() {
	addCommonFlags(routeCmd)
	routeCmd.Flags().String("source", "email", "payload transport: email, sms, or chat")
}
