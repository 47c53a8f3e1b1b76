package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webordinary/switchboard/pkg/correlator"
	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/ingress"
	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/metrics"
	"github.com/webordinary/switchboard/pkg/reaper"
	"github.com/webordinary/switchboard/pkg/router"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the routing daemon",
	Long: `Run the Switchboard daemon: correlator poll loops, the reaper, the
event broker, and the metrics/health listener. Use --local for a fully
self-contained single binary on the in-memory queue service and BoltDB;
without it the daemon targets SQS and DynamoDB.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		logSub := events.NewLoggingSubscriber(broker)
		defer logSub.Stop()

		c, err := newCore(ctx, cfg, broker)
		if err != nil {
			return err
		}
		defer c.Close()
		metrics.RegisterComponent("storage", true, "")
		metrics.RegisterComponent("queues", true, "")

		corr := correlator.New(c.queues, broker, cfg.CommandTimeout)
		corr.Start()
		defer corr.Stop()
		metrics.RegisterComponent("correlator", true, "")

		rt := router.New(c.resolver, c.registry, c.owners, c.queues, corr, broker)
		metrics.RegisterComponent("router", true, "")

		ingressURL, err := c.queues.CreateQueue(ctx, ingress.QueueName(cfg.QueuePrefix), map[string]string{"managedBy": "switchboard"})
		if err != nil {
			return fmt.Errorf("failed to ensure ingress queue: %w", err)
		}
		consumer := ingress.NewConsumer(c.queues, ingressURL, rt.Route)
		consumer.Start()
		defer consumer.Stop()

		rp := reaper.New(c.queues, c.store, broker, reaper.Options{
			Interval:       cfg.ReaperInterval,
			OrphanAge:      cfg.OrphanAge,
			OwnerHardTTL:   cfg.OwnerHardTTL,
			OwnerFreshness: cfg.OwnerFreshness,
			Prefix:         cfg.QueuePrefix,
		})
		rp.Start()
		defer rp.Stop()

		collector := metrics.NewCollector(c.store)
		collector.Start()
		defer collector.Stop()

		srv := metrics.NewServer(cfg.MetricsAddr)
		srvErr := srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()

		logger := log.WithComponent("daemon")
		logger.Info().
			Bool("local", cfg.Local).
			Str("queuePrefix", cfg.QueuePrefix).
			Str("metricsAddr", cfg.MetricsAddr).
			Msg("switchboard daemon started")
		fmt.Println("✓ Switchboard daemon running (Ctrl+C to stop)")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-srvErr:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
		}
		return nil
	},
}

func init() {
	addCommonFlags(serveCmd)
}
