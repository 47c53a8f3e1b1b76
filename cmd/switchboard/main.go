package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webordinary/switchboard/pkg/config"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Switchboard - message routing core for edit-by-email",
	Long: `Switchboard turns inbound conversation messages (email, SMS, chat)
into routed work: it extracts a stable thread identity, attributes the
message to a tenant, provisions the tenant's queue triplet, and delivers
the instruction to whichever worker owns the tenant - or announces a
claim when nobody does. Responses are correlated back to the command
that asked for them.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Switchboard version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	metrics.SetVersion(Version)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(queuesCmd)
	rootCmd.AddCommand(reapCmd)
}

// loadConfig reads the environment configuration and applies the flags
// shared by all verbs.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("local") {
		cfg.Local, _ = cmd.Flags().GetBool("local")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("queue-prefix") {
		cfg.QueuePrefix, _ = cmd.Flags().GetString("queue-prefix")
	}
	if cmd.Flags().Changed("tenant-config") {
		cfg.TenantConfigPath, _ = cmd.Flags().GetString("tenant-config")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	return cfg, nil
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("local", false, "run on the in-memory queue service and BoltDB")
	cmd.Flags().String("data-dir", "", "data directory for local mode")
	cmd.Flags().String("queue-prefix", "", "managed queue naming prefix")
	cmd.Flags().String("tenant-config", "", "path to the tenant-config YAML file")
}
