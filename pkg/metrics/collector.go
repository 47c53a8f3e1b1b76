package metrics

import (
	"context"
	"time"

	"github.com/webordinary/switchboard/pkg/log"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/types"
)

// Collector periodically samples store-level gauges
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := log.WithComponent("metrics")

	if n, err := c.store.CountThreadMappings(ctx); err == nil {
		ThreadMappings.Set(float64(n))
	} else {
		logger.Warn().Err(err).Msg("failed to count thread mappings")
	}

	if owners, err := c.store.ListOwnership(ctx); err == nil {
		active := 0
		for _, rec := range owners {
			if rec.Status == types.OwnershipActive {
				active++
			}
		}
		ActiveOwners.Set(float64(active))
	} else {
		logger.Warn().Err(err).Msg("failed to list ownership records")
	}

	if recs, err := c.store.ListLatestQueueRecords(ctx); err == nil {
		RegisteredTenants.Set(float64(len(recs)))
	} else {
		logger.Warn().Err(err).Msg("failed to list queue records")
	}
}
