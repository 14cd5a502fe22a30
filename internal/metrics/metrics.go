package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"
)

var (
	OracleCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_oracle_calls_total",
		Help: "Oracle completions by extraction task and outcome",
	}, []string{"task", "outcome"})

	OracleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insights_oracle_call_seconds",
		Help:    "Latency of a single oracle completion, retries included",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"task"})

	Conversations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_conversations_total",
		Help: "Conversations handled by the analysis batch, by result (processed, skipped, error)",
	}, []string{"result"})

	Fields = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insights_fields_total",
		Help: "Extracted analysis fields by field and state (found, absent, failed)",
	}, []string{"field", "state"})

	Reconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insights_reconciled_records_total",
		Help: "Analysis records corrected by the short-conversation reconciliation",
	})

	lastRun = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "insights_last_run_timestamp_seconds",
		Help: "Unix time of the last finished run per command",
	}, []string{"command"})
)

// ObserveOracle records one oracle call.
func ObserveOracle(task, outcome string, d time.Duration) {
	OracleCalls.WithLabelValues(task, outcome).Inc()
	OracleLatency.WithLabelValues(task).Observe(d.Seconds())
}

// Push sends the batch collectors to a Prometheus push gateway. Batch commands
// exit before any scrape could happen, so this is their only export path.
func Push(gateway, command string) {
	lastRun.WithLabelValues(command).SetToCurrentTime()
	if gateway == "" {
		return
	}
	pusher := push.New(gateway, "insights-"+command).
		Collector(OracleCalls).
		Collector(OracleLatency).
		Collector(Conversations).
		Collector(Fields).
		Collector(Reconciled).
		Collector(lastRun)
	if err := pusher.Push(); err != nil {
		log.WithError(err).WithField("gateway", gateway).Warn("could not push metrics")
	}
}
