package service

import (
	"context"
	"path/filepath"
	"time"

	"github.com/mobstore/compactor/internal/config"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/storage/diskmanager"
	"go.uber.org/zap"
)

// CompactionService is the public entry point of the pipeline: it wires
// the Selector, Del-File Merger, Partition Compactor, and Orchestrator
// together, grounded on the original PartitionedMobFileCompactor's
// top-level compact() method.
type CompactionService struct {
	fs          FileSystem
	readerFor   func(path string) (Reader, error)
	scanners    ScannerFactory
	writers     WriterFactory
	commit      *CommitCoordinator
	archival    Archival
	disk        *diskmanager.DiskManager
	selector    *Selector
	merger      *DelFileMerger
	table       string
	family      string
	familyDir   string
	stagingRoot string
	tempDir     string
	cfg         config.CompactionConfig
	logger      *zap.Logger
}

// CompactionServiceParams bundles the wiring CompactionService needs.
type CompactionServiceParams struct {
	FileSystem  FileSystem
	ReaderFor   func(path string) (Reader, error)
	Scanners    ScannerFactory
	Writers     WriterFactory
	Commit      *CommitCoordinator
	Archival    Archival
	Disk        *diskmanager.DiskManager
	Table       string
	Family      string
	FamilyDir   string
	StagingRoot string
	TempDir     string
	Config      config.CompactionConfig
	Logger      *zap.Logger
}

// NewCompactionService creates a CompactionService.
func NewCompactionService(p CompactionServiceParams) *CompactionService {
	return &CompactionService{
		fs:          p.FileSystem,
		readerFor:   p.ReaderFor,
		scanners:    p.Scanners,
		writers:     p.Writers,
		commit:      p.Commit,
		archival:    p.Archival,
		disk:        p.Disk,
		selector:    NewSelector(p.FileSystem, p.Logger),
		merger:      NewDelFileMerger(p.ReaderFor, p.Scanners, p.Writers, p.Archival, p.Logger),
		table:       p.Table,
		family:      p.Family,
		familyDir:   p.FamilyDir,
		stagingRoot: p.StagingRoot,
		tempDir:     p.TempDir,
		cfg:         p.Config,
		logger:      p.Logger,
	}
}

// Compact runs the full pipeline over candidates and returns the paths
// of every new MOB file produced, together with the paths of single-file
// batches carried over unchanged. isForceAllFiles makes every MOB file
// eligible regardless of size and disables the singleton prune; whether
// the request is ALL_FILES or PART_FILES is decided by the Selector from
// its candidate counts.
func (s *CompactionService) Compact(ctx context.Context, candidates []model.FileCandidate, isForceAllFiles bool) ([]string, error) {
	now := time.Now()

	request, err := s.selector.Select(candidates, SelectorConfig{
		Policy:        model.Policy(s.cfg.Policy),
		MergeableSize: s.cfg.MergeableThreshold,
	}, isForceAllFiles, now)
	if err != nil {
		return nil, err
	}

	delPaths := make([]string, len(request.DelFiles))
	for i, d := range request.DelFiles {
		delPaths[i] = d.Path
	}

	// Del-file merging runs unconditionally, ahead of any partition task,
	// so every partition's scanner opens a bounded del-file set. Only the
	// archival of the final del paths below is gated on ALL_FILES.
	mergedDelPaths := delPaths
	if len(delPaths) > 0 {
		merged, err := s.merger.Merge(ctx, delPaths, s.familyDir, s.table, s.family, DelFileMergerConfig{
			DelFileMaxCount: s.cfg.DelFileMaxCount,
			BatchSize:       s.cfg.BatchSize,
			Compression:     model.Compression(s.cfg.Compression),
		}, now)
		if err != nil {
			return nil, err
		}
		mergedDelPaths = merged
	}

	if len(request.Partitions) == 0 {
		s.logger.Info("no partitions eligible for compaction", zap.Int("candidates", len(candidates)))
		s.archiveFinalDelFiles(ctx, request.Type, mergedDelPaths)
		return nil, nil
	}

	compactor := NewPartitionCompactor(s.readerFor, s.scanners, s.writers, s.commit, s.disk, s.logger)
	orchestrator := NewOrchestrator(compactor, OrchestratorConfig{
		Workers:   s.cfg.Workers,
		QueueSize: len(request.Partitions),
	}, s.logger)
	defer orchestrator.Stop(30 * time.Second)

	cfgFor := func(partition *model.Partition) PartitionCompactorConfig {
		stagingDir := filepath.Join(s.stagingRoot, partition.Key.StartKey, partition.Key.Date)
		return PartitionCompactorConfig{
			BatchSize:   s.cfg.BatchSize,
			KVMax:       s.cfg.KVMax,
			Compression: model.Compression(s.cfg.Compression),
			Table:       s.table,
			Family:      s.family,
			FamilyDir:   s.familyDir,
			StagingDir:  stagingDir,
			TempDir:     s.tempDir,
		}
	}

	outputs, err := orchestrator.Run(ctx, request.Partitions, mergedDelPaths, request.SelectionTime, cfgFor)
	s.archiveFinalDelFiles(ctx, request.Type, mergedDelPaths)
	return outputs, err
}

// archiveFinalDelFiles superseded the del files entirely once an
// ALL_FILES compaction has run against them, mirroring the original's
// unconditional removeMobFiles(..., newDelFiles) call in
// performCompaction. PART_FILES requests leave del files in place since
// they still gate reads against MOB files this compaction didn't touch.
func (s *CompactionService) archiveFinalDelFiles(ctx context.Context, typ model.CompactionType, delPaths []string) {
	if typ != model.AllFiles || len(delPaths) == 0 {
		return
	}
	if err := s.archival.RemoveMobFiles(ctx, s.table, s.family, delPaths); err != nil {
		s.logger.Warn("failed to archive del files after all-files compaction", zap.Error(err))
	}
}
