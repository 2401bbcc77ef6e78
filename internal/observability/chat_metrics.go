package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storequery_chat_turns_total",
			Help: "Total number of completed chat turns by terminal outcome.",
		},
		[]string{"outcome"},
	)
	chatGenerationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storequery_chat_generation_calls_total",
			Help: "Total number of SQL generation calls by mode.",
		},
		[]string{"mode"},
	)
	chatExecutionAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storequery_chat_execution_attempts_total",
			Help: "Total number of SQL execution attempts.",
		},
	)
	chatRepairCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storequery_chat_repair_cycles_total",
			Help: "Total number of repair cycles triggered by execution errors.",
		},
	)
	chatTurnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storequery_chat_turn_duration_seconds",
			Help:    "End-to-end chat turn latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	ingestRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storequery_ingest_rows_total",
			Help: "Total number of cleaned rows loaded into the master store.",
		},
		[]string{"table"},
	)
	ingestFilesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storequery_ingest_files_total",
			Help: "Total number of raw CSV files processed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatGenerationCallsTotal,
		chatExecutionAttemptsTotal,
		chatRepairCyclesTotal,
		chatTurnDurationSeconds,
		ingestRowsTotal,
		ingestFilesTotal,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	chatTurnDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementGenerationCall(mode string) {
	chatGenerationCallsTotal.WithLabelValues(mode).Inc()
}

func IncrementExecutionAttempt() {
	chatExecutionAttemptsTotal.Inc()
}

func IncrementRepairCycle() {
	chatRepairCyclesTotal.Inc()
}

func ObserveIngestRows(table string, rows int) {
	if rows > 0 {
		ingestRowsTotal.WithLabelValues(table).Add(float64(rows))
	}
}

func IncrementIngestFile() {
	ingestFilesTotal.Inc()
}
