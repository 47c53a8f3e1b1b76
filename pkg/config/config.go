package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the timing knobs.
const (
	DefaultOwnerFreshness = 5 * time.Minute
	DefaultOwnerHardTTL   = 30 * time.Minute
	DefaultOrphanAge      = 24 * time.Hour
	DefaultCommandTimeout = 300 * time.Second
	DefaultReaperInterval = 6 * time.Hour
	DefaultQueuePrefix    = "webordinary"
)

// Config holds the environment-driven configuration surface.
type Config struct {
	// AWS settings (hosted mode).
	Region    string
	AccountID string
	// TablePrefix names the DynamoDB tables; defaults to "switchboard".
	TablePrefix string

	// QueuePrefix is the naming-scheme prefix for all managed queues.
	QueuePrefix string

	// Timing knobs.
	OwnerFreshness time.Duration // T_owner: owning-freshness window
	OwnerHardTTL   time.Duration // T_owner_hard: reaper flips older active records
	OrphanAge      time.Duration // T_orphan: minimum queue age before orphan deletion
	CommandTimeout time.Duration // T_timeout: default correlation timeout
	ReaperInterval time.Duration

	// Local mode runs on the in-memory queue service and BoltDB.
	Local   bool
	DataDir string

	// TenantConfigPath points at the YAML identity→tenant table.
	TenantConfigPath string

	MetricsAddr string
	LogLevel    string
	LogJSON     bool
}

// Load reads configuration from SWITCHBOARD_* environment variables,
// applying defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Region:           getenv("SWITCHBOARD_REGION", "us-west-2"),
		AccountID:        os.Getenv("SWITCHBOARD_ACCOUNT_ID"),
		TablePrefix:      getenv("SWITCHBOARD_TABLE_PREFIX", "switchboard"),
		QueuePrefix:      getenv("SWITCHBOARD_QUEUE_PREFIX", DefaultQueuePrefix),
		DataDir:          getenv("SWITCHBOARD_DATA_DIR", "/var/lib/switchboard"),
		TenantConfigPath: os.Getenv("SWITCHBOARD_TENANT_CONFIG"),
		MetricsAddr:      getenv("SWITCHBOARD_METRICS_ADDR", ":9090"),
		LogLevel:         getenv("SWITCHBOARD_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.OwnerFreshness, err = getduration("SWITCHBOARD_OWNER_FRESHNESS", DefaultOwnerFreshness); err != nil {
		return nil, err
	}
	if cfg.OwnerHardTTL, err = getduration("SWITCHBOARD_OWNER_HARD_TTL", DefaultOwnerHardTTL); err != nil {
		return nil, err
	}
	if cfg.OrphanAge, err = getduration("SWITCHBOARD_ORPHAN_AGE", DefaultOrphanAge); err != nil {
		return nil, err
	}
	if cfg.CommandTimeout, err = getduration("SWITCHBOARD_COMMAND_TIMEOUT", DefaultCommandTimeout); err != nil {
		return nil, err
	}
	if cfg.ReaperInterval, err = getduration("SWITCHBOARD_REAPER_INTERVAL", DefaultReaperInterval); err != nil {
		return nil, err
	}
	if cfg.Local, err = getbool("SWITCHBOARD_LOCAL", false); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = getbool("SWITCHBOARD_LOG_JSON", true); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getbool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
