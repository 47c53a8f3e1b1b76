package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Router metrics
	RoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_routes_total",
			Help: "Total number of routed ingress messages by result",
		},
		[]string{"result"},
	)

	ClaimsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_claims_total",
			Help: "Total number of claim requests announced on the unclaimed queue",
		},
	)

	MessagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_messages_sent_total",
			Help: "Total number of messages sent by queue type",
		},
		[]string{"queue_type"},
	)

	SendRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_send_retries_total",
			Help: "Total number of retried queue sends",
		},
	)

	// Registry metrics
	QueueTripletsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_queue_triplets_created_total",
			Help: "Total number of tenant queue triplets created",
		},
	)

	RegistryRollbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_registry_rollbacks_total",
			Help: "Total number of partial triplet creations rolled back",
		},
	)

	// Correlator metrics
	PendingCommands = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_pending_commands",
			Help: "Number of commands currently awaiting a response",
		},
	)

	CommandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchboard_command_duration_seconds",
			Help:    "Time from command submission to resolution in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	CommandOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchboard_command_outcomes_total",
			Help: "Total number of resolved commands by outcome",
		},
		[]string{"outcome"},
	)

	UnknownResponsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_unknown_responses_total",
			Help: "Total number of output-queue responses with no pending command",
		},
	)

	// Reaper metrics
	ReaperQueuesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_reaper_queues_deleted_total",
			Help: "Total number of orphaned queues deleted by the reaper",
		},
	)

	ReaperOwnersFlipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "switchboard_reaper_owners_flipped_total",
			Help: "Total number of stale ownership records flipped to inactive",
		},
	)

	ReaperSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "switchboard_reaper_sweep_duration_seconds",
			Help:    "Reaper sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Store-level gauges, sampled by the collector
	ThreadMappings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_thread_mappings",
			Help: "Number of live thread mappings in the store",
		},
	)

	ActiveOwners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_active_owners",
			Help: "Number of ownership records currently marked active",
		},
	)

	RegisteredTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchboard_registered_tenants",
			Help: "Number of tenants with a registered queue triplet",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RoutesTotal)
	prometheus.MustRegister(ClaimsTotal)
	prometheus.MustRegister(MessagesSentTotal)
	prometheus.MustRegister(SendRetriesTotal)
	prometheus.MustRegister(QueueTripletsCreated)
	prometheus.MustRegister(RegistryRollbacks)
	prometheus.MustRegister(PendingCommands)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(CommandOutcomes)
	prometheus.MustRegister(UnknownResponsesTotal)
	prometheus.MustRegister(ReaperQueuesDeleted)
	prometheus.MustRegister(ReaperOwnersFlipped)
	prometheus.MustRegister(ReaperSweepDuration)
	prometheus.MustRegister(ThreadMappings)
	prometheus.MustRegister(ActiveOwners)
	prometheus.MustRegister(RegisteredTenants)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures a duration for histogram observation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time into the given histogram
func (t *Timer) ObserveDuration(h prometheus.Histogram) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time into a histogram vec with labels
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
