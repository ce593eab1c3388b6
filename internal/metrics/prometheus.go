package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the compaction daemon.
type Metrics struct {
	// Selection metrics
	SelectionRunsTotal       prometheus.Counter
	SelectionDuration        prometheus.Histogram
	CandidatesTotal          prometheus.Histogram
	PartitionsSelectedTotal  prometheus.Histogram
	DelFilesSelectedTotal    prometheus.Histogram
	PartitionsPrunedTotal    prometheus.Counter

	// Del-file merge metrics
	DelMergeRunsTotal    prometheus.Counter
	DelMergeDuration     prometheus.Histogram
	DelMergeBatchesTotal prometheus.Counter
	DelFilesAfterMerge   prometheus.Histogram

	// Partition compaction metrics
	PartitionJobsTotal      prometheus.CounterVec
	PartitionJobDuration    prometheus.Histogram
	PartitionBytesRead      prometheus.Counter
	PartitionBytesWritten   prometheus.Counter
	PartitionFilesInput     prometheus.Histogram
	PartitionFilesOutput    prometheus.Histogram
	PartitionCellsMerged    prometheus.Counter

	// Orchestrator/worker-pool metrics
	OrchestratorRunsTotal    prometheus.Counter
	OrchestratorRunDuration  prometheus.Histogram
	WorkerPoolActiveWorkers  prometheus.Gauge
	WorkerPoolQueueDepth     prometheus.Gauge
	WorkerPoolRejectedTotal  prometheus.Counter

	// Commit/bulkload metrics
	BulkloadsTotal          prometheus.CounterVec
	BulkloadDuration        prometheus.Histogram
	FilesArchivedTotal      prometheus.Counter
	CleanupRollbacksTotal   prometheus.Counter

	// System metrics
	DiskUsageBytes     prometheus.Gauge
	DiskAvailableBytes prometheus.Gauge
	DiskUsagePercent   prometheus.Gauge
	GoroutinesTotal    prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		SelectionRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "runs_total",
			Help:        "Total number of selection runs",
			ConstLabels: labels,
		}),
		SelectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "duration_seconds",
			Help:        "Histogram of selection run durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		CandidatesTotal: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "candidates_total",
			Help:        "Histogram of candidate counts per selection run",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		PartitionsSelectedTotal: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "partitions_selected_total",
			Help:        "Histogram of partitions selected per run",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		DelFilesSelectedTotal: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "del_files_selected_total",
			Help:        "Histogram of del files selected per run",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 10),
		}),
		PartitionsPrunedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "selection",
			Name:        "partitions_pruned_total",
			Help:        "Total number of singleton partitions pruned",
			ConstLabels: labels,
		}),

		DelMergeRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "delmerge",
			Name:        "runs_total",
			Help:        "Total number of del-file merge runs",
			ConstLabels: labels,
		}),
		DelMergeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "delmerge",
			Name:        "duration_seconds",
			Help:        "Histogram of del-file merge durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		DelMergeBatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "delmerge",
			Name:        "batches_total",
			Help:        "Total number of del-file merge batches processed",
			ConstLabels: labels,
		}),
		DelFilesAfterMerge: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "delmerge",
			Name:        "files_after_merge",
			Help:        "Histogram of del-file counts after merge",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 1, 10),
		}),

		PartitionJobsTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "jobs_total",
			Help:        "Total number of partition compaction jobs by status",
			ConstLabels: labels,
		}, []string{"status"}),
		PartitionJobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "job_duration_seconds",
			Help:        "Histogram of partition compaction job durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		PartitionBytesRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "bytes_read_total",
			Help:        "Total bytes read from input MOB files",
			ConstLabels: labels,
		}),
		PartitionBytesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "bytes_written_total",
			Help:        "Total bytes written to output MOB/reference files",
			ConstLabels: labels,
		}),
		PartitionFilesInput: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "files_input",
			Help:        "Histogram of input file counts per partition job",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 1, 20),
		}),
		PartitionFilesOutput: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "files_output",
			Help:        "Histogram of output file counts per partition job",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 1, 5),
		}),
		PartitionCellsMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "partition",
			Name:        "cells_merged_total",
			Help:        "Total number of cells merged across all partition jobs",
			ConstLabels: labels,
		}),

		OrchestratorRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "orchestrator",
			Name:        "runs_total",
			Help:        "Total number of orchestrator fan-out runs",
			ConstLabels: labels,
		}),
		OrchestratorRunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "orchestrator",
			Name:        "run_duration_seconds",
			Help:        "Histogram of orchestrator run durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		WorkerPoolActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "orchestrator",
			Name:        "worker_pool_active_workers",
			Help:        "Current number of active worker pool goroutines",
			ConstLabels: labels,
		}),
		WorkerPoolQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "orchestrator",
			Name:        "worker_pool_queue_depth",
			Help:        "Current depth of the worker pool task queue",
			ConstLabels: labels,
		}),
		WorkerPoolRejectedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "orchestrator",
			Name:        "worker_pool_rejected_total",
			Help:        "Total number of tasks rejected by the worker pool queue",
			ConstLabels: labels,
		}),

		BulkloadsTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "commit",
			Name:        "bulkloads_total",
			Help:        "Total number of bulkload attempts by status",
			ConstLabels: labels,
		}, []string{"status"}),
		BulkloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "commit",
			Name:        "bulkload_duration_seconds",
			Help:        "Histogram of bulkload durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		FilesArchivedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "commit",
			Name:        "files_archived_total",
			Help:        "Total number of input files archived after commit",
			ConstLabels: labels,
		}),
		CleanupRollbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "commit",
			Name:        "cleanup_rollbacks_total",
			Help:        "Total number of cleanup-ladder rollbacks triggered by a failed batch",
			ConstLabels: labels,
		}),

		DiskUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "system",
			Name:        "disk_usage_bytes",
			Help:        "Current disk usage in bytes for the staging volume",
			ConstLabels: labels,
		}),
		DiskAvailableBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "system",
			Name:        "disk_available_bytes",
			Help:        "Available disk space in bytes for the staging volume",
			ConstLabels: labels,
		}),
		DiskUsagePercent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "system",
			Name:        "disk_usage_percent",
			Help:        "Disk usage percentage for the staging volume",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mobcompactor",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// RecordSelection records metrics for one selection run.
func (m *Metrics) RecordSelection(duration float64, candidates, partitions, delFiles, pruned int) {
	m.SelectionRunsTotal.Inc()
	m.SelectionDuration.Observe(duration)
	m.CandidatesTotal.Observe(float64(candidates))
	m.PartitionsSelectedTotal.Observe(float64(partitions))
	m.DelFilesSelectedTotal.Observe(float64(delFiles))
	m.PartitionsPrunedTotal.Add(float64(pruned))
}

// RecordDelMerge records metrics for one del-file merge run.
func (m *Metrics) RecordDelMerge(duration float64, batches, filesAfter int) {
	m.DelMergeRunsTotal.Inc()
	m.DelMergeDuration.Observe(duration)
	m.DelMergeBatchesTotal.Add(float64(batches))
	m.DelFilesAfterMerge.Observe(float64(filesAfter))
}

// RecordPartitionJob records metrics for one partition compaction job.
func (m *Metrics) RecordPartitionJob(status string, duration float64, filesIn, filesOut int, bytesRead, bytesWritten int64, cells uint64) {
	m.PartitionJobsTotal.WithLabelValues(status).Inc()
	m.PartitionJobDuration.Observe(duration)
	m.PartitionFilesInput.Observe(float64(filesIn))
	m.PartitionFilesOutput.Observe(float64(filesOut))
	m.PartitionBytesRead.Add(float64(bytesRead))
	m.PartitionBytesWritten.Add(float64(bytesWritten))
	m.PartitionCellsMerged.Add(float64(cells))
}

// RecordOrchestratorRun records metrics for one orchestrator fan-out pass.
func (m *Metrics) RecordOrchestratorRun(duration float64) {
	m.OrchestratorRunsTotal.Inc()
	m.OrchestratorRunDuration.Observe(duration)
}

// UpdateWorkerPoolStats reflects the current worker pool occupancy.
func (m *Metrics) UpdateWorkerPoolStats(active, queueDepth int) {
	m.WorkerPoolActiveWorkers.Set(float64(active))
	m.WorkerPoolQueueDepth.Set(float64(queueDepth))
}

// RecordBulkload records metrics for one bulkload attempt.
func (m *Metrics) RecordBulkload(status string, duration float64) {
	m.BulkloadsTotal.WithLabelValues(status).Inc()
	m.BulkloadDuration.Observe(duration)
}

// RecordFilesArchived increments the archived-file counter.
func (m *Metrics) RecordFilesArchived(count int) {
	m.FilesArchivedTotal.Add(float64(count))
}

// RecordCleanupRollback records a cleanup-ladder rollback.
func (m *Metrics) RecordCleanupRollback() {
	m.CleanupRollbacksTotal.Inc()
}

// UpdateSystemStats updates system-level statistics.
func (m *Metrics) UpdateSystemStats(diskUsage, diskAvailable int64, goroutines int) {
	m.DiskUsageBytes.Set(float64(diskUsage))
	m.DiskAvailableBytes.Set(float64(diskAvailable))
	if diskUsage+diskAvailable > 0 {
		m.DiskUsagePercent.Set(float64(diskUsage) / float64(diskUsage+diskAvailable) * 100)
	}
	m.GoroutinesTotal.Set(float64(goroutines))
}
