package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/util/workerpool"
	"go.uber.org/zap"
)

// OrchestratorConfig sizes the long-lived worker pool the orchestrator
// owns, mirroring the teacher's CompactionService constructor starting
// N workers up front.
type OrchestratorConfig struct {
	Workers   int
	QueueSize int
}

// partitionOutcome is one partition task's settled result.
type partitionOutcome struct {
	key   model.PartitionKey
	paths []string
	err   error
}

// Orchestrator fans a compaction request's partitions out across a
// bounded worker pool and aggregates their outputs, grounded on the
// original Orchestrator contract: partition-atomic, not
// request-atomic.
type Orchestrator struct {
	pool      *workerpool.WorkerPool
	compactor *PartitionCompactor
	logger    *zap.Logger
}

// NewOrchestrator creates an Orchestrator with one long-lived pool.
func NewOrchestrator(compactor *PartitionCompactor, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:       "partition-compactor",
		MaxWorkers: cfg.Workers,
		QueueSize:  cfg.QueueSize,
		Logger:     logger,
	})
	return &Orchestrator{pool: pool, compactor: compactor, logger: logger}
}

// Run submits one task per partition and awaits every partition's
// result. Successfully compacted partitions are never rolled back if a
// sibling partition fails: their outputs are valid and their inputs are
// already archived.
func (o *Orchestrator) Run(ctx context.Context, partitions []*model.Partition, delFiles []string, selectionTime time.Time, cfgFor func(*model.Partition) PartitionCompactorConfig) ([]string, error) {
	results := make(chan partitionOutcome, len(partitions))
	var wg sync.WaitGroup

	for _, partition := range partitions {
		partition := partition
		wg.Add(1)
		task := workerpool.Task{
			ID:      fmt.Sprintf("%s/%s", partition.Key.StartKey, partition.Key.Date),
			Context: ctx,
			Fn: func(taskCtx context.Context) error {
				defer wg.Done()
				paths, err := o.compactor.Compact(taskCtx, partition, delFiles, selectionTime, cfgFor(partition))
				results <- partitionOutcome{key: partition.Key, paths: paths, err: err}
				return err
			},
		}
		if err := o.pool.SubmitWithContext(ctx, task); err != nil {
			wg.Done()
			results <- partitionOutcome{key: partition.Key, err: err}
		}
	}

	wg.Wait()
	close(results)

	var outputs []string
	var failedKeys []string
	var lastErr error
	for outcome := range results {
		if outcome.err != nil {
			o.logger.Error("partition compaction failed",
				zap.String("start_key", outcome.key.StartKey),
				zap.String("date", outcome.key.Date),
				zap.Error(outcome.err))
			failedKeys = append(failedKeys, fmt.Sprintf("%s/%s", outcome.key.StartKey, outcome.key.Date))
			lastErr = outcome.err
			continue
		}
		outputs = append(outputs, outcome.paths...)
	}

	if len(failedKeys) > 0 {
		return outputs, errors.PartialFailure(failedKeys, lastErr)
	}

	return outputs, nil
}

// Stop drains and stops the orchestrator's worker pool.
func (o *Orchestrator) Stop(timeout time.Duration) error {
	return o.pool.Stop(timeout)
}
