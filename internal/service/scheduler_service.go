package service

import (
	"context"
	"sync"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"go.uber.org/zap"
)

// Scheduler is a reference periodic driver for CompactionService,
// grounded on the teacher's ticker-driven compactionScheduler. HBase's
// own master/regionserver machinery is the real upstream trigger this
// module never implements (spec.md §1 names it an external
// collaborator); Scheduler exists only so this module is runnable
// standalone via cmd/mobcompactor.
type Scheduler struct {
	fs        FileSystem
	service   *CompactionService
	sourceDir string
	interval  time.Duration
	logger    *zap.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler that lists sourceDir on each tick
// and submits what it finds there to Compact with isForceAllFiles
// false.
func NewScheduler(fs FileSystem, service *CompactionService, sourceDir string, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		fs:        fs,
		service:   service,
		sourceDir: sourceDir,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the scheduler loop until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	statuses, err := s.fs.ListFiles(s.sourceDir)
	if err != nil {
		s.logger.Warn("scheduler failed to list source directory", zap.Error(err))
		return
	}
	if len(statuses) == 0 {
		return
	}

	candidates := make([]model.FileCandidate, 0, len(statuses))
	for _, st := range statuses {
		if !st.IsFile {
			continue
		}
		candidates = append(candidates, model.FileCandidate{
			Path:   st.Path,
			IsFile: true,
			Length: st.Length,
		})
	}

	outputs, err := s.service.Compact(ctx, candidates, false)
	if err != nil {
		s.logger.Error("scheduled compaction run failed", zap.Error(err))
		return
	}

	s.logger.Info("scheduled compaction run completed", zap.Int("candidates", len(candidates)), zap.Int("outputs", len(outputs)))
}
