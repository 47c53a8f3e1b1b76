package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/webordinary/switchboard/pkg/config"
	"github.com/webordinary/switchboard/pkg/events"
	"github.com/webordinary/switchboard/pkg/ownership"
	"github.com/webordinary/switchboard/pkg/queue"
	"github.com/webordinary/switchboard/pkg/registry"
	"github.com/webordinary/switchboard/pkg/storage"
	"github.com/webordinary/switchboard/pkg/tenant"
)

// core bundles the wired building blocks every verb starts from.
type core struct {
	cfg      *config.Config
	queues   queue.Service
	store    storage.Store
	registry *registry.Registry
	resolver *tenant.Resolver
	owners   *ownership.Reader
}

// newCore wires the queue service and store for the selected mode and
// builds the components on top. broker may be nil for one-shot verbs
// with no event consumers.
func newCore(ctx context.Context, cfg *config.Config, broker *events.Broker) (*core, error) {
	var (
		queues queue.Service
		store  storage.Store
	)

	if cfg.Local {
		queues = queue.NewMemory()
		boltStore, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		store = boltStore
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		queues = queue.NewSQS(awssqs.NewFromConfig(awsCfg))
		store = storage.NewDynamoStore(
			dynamodb.NewFromConfig(awsCfg),
			storage.DefaultDynamoTables(cfg.TablePrefix),
		)
	}

	table, err := config.LoadTenantTable(cfg.TenantConfigPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load tenant config: %w", err)
	}

	return &core{
		cfg:      cfg,
		queues:   queues,
		store:    store,
		registry: registry.New(queues, store, cfg.QueuePrefix, broker),
		resolver: tenant.NewResolver(store, table),
		owners:   ownership.NewReader(store, cfg.OwnerFreshness),
	}, nil
}

func (c *core) Close() error {
	return c.store.Close()
}
