package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты обработки сообщений (label "result").
const (
	ResultOK        = "ok"
	ResultDropped   = "dropped"
	ResultRetry     = "retry"
	ResultPermanent = "permanent"
)

var (
	// MessagesProcessed — число обработанных сообщений по топику и результату.
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ppdb_messages_processed_total",
		Help: "Messages handled per topic and result",
	}, []string{"topic", "result"})

	// JobsLaunched — запущенные staging-задачи.
	JobsLaunched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ppdb_stage_jobs_launched_total",
		Help: "Staging jobs launched per launcher and result",
	}, []string{"launcher", "result"})

	// TablesStaged — таблицы, загруженные в staging.
	TablesStaged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ppdb_tables_staged_total",
		Help: "Parquet tables loaded into staging tables",
	})

	// ChunksPromoted — chunks, перенесённые в production.
	ChunksPromoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ppdb_chunks_promoted_total",
		Help: "Replica chunks promoted into production tables",
	})

	// PromotionDuration — длительность одного запуска промоушена.
	PromotionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ppdb_promotion_duration_seconds",
		Help:    "Duration of promote_chunks runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// ChunkUpdates — изменения трекинговой БД по операции.
	ChunkUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ppdb_chunk_tracking_writes_total",
		Help: "Writes to the chunk tracking table per operation",
	}, []string{"operation"})
)
