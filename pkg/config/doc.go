/*
Package config loads Switchboard's environment-driven configuration.

All settings come from SWITCHBOARD_* environment variables with sensible
defaults; cobra flags in cmd/switchboard override them. The tenant-config
table (sender identity → tenant key + repository URL) is a YAML file:

	tenants:
	  - identity: escottster@gmail.com
	    projectId: amelia
	    userId: scott
	    repoUrl: https://github.com/webordinary/amelia-site

# Settings

	SWITCHBOARD_REGION            AWS region (hosted mode)
	SWITCHBOARD_ACCOUNT_ID        AWS account identifier
	SWITCHBOARD_TABLE_PREFIX      DynamoDB table name prefix
	SWITCHBOARD_QUEUE_PREFIX      queue naming prefix (default webordinary)
	SWITCHBOARD_OWNER_FRESHNESS   owning-freshness window (default 5m)
	SWITCHBOARD_OWNER_HARD_TTL    reaper stale-active cutoff (default 30m)
	SWITCHBOARD_ORPHAN_AGE        orphan queue age floor (default 24h)
	SWITCHBOARD_COMMAND_TIMEOUT   default correlation timeout (default 5m)
	SWITCHBOARD_REAPER_INTERVAL   sweep schedule (default 6h)
	SWITCHBOARD_LOCAL             run on memory queues + BoltDB
	SWITCHBOARD_DATA_DIR          BoltDB location in local mode
	SWITCHBOARD_TENANT_CONFIG     path to the tenant table YAML
	SWITCHBOARD_METRICS_ADDR      metrics/health listener (default :9090)
	SWITCHBOARD_LOG_LEVEL         debug|info|warn|error
	SWITCHBOARD_LOG_JSON          JSON vs console output
*/
package config
