package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/storage/diskmanager"
	"go.uber.org/zap"
)

// batchState is a position on the cleanup ladder spec.md's partition
// compactor walks for each batch: INIT -> MOB_OPEN -> REF_OPEN ->
// SCAN_DONE -> COMMITTED -> ATTACHED -> DONE.
type batchState int

const (
	stateInit batchState = iota
	stateMobOpen
	stateRefOpen
	stateScanDone
	stateCommitted
	stateAttached
	stateDone
)

// PartitionCompactorConfig holds the tunables the compactor needs.
type PartitionCompactorConfig struct {
	BatchSize   int
	KVMax       int
	Compression model.Compression
	Table       string
	Family      string
	FamilyDir   string
	StagingDir  string
	TempDir     string
}

// PartitionCompactor is the emission engine: it rewrites one partition's
// MOB files (plus the globally-merged del set) into new MOB+reference
// file pairs, grounded on the original's
// compactMobFilePartition/compactMobFilesInBatch.
type PartitionCompactor struct {
	readerFor func(path string) (Reader, error)
	scanners  ScannerFactory
	writers   WriterFactory
	commit    *CommitCoordinator
	disk      *diskmanager.DiskManager
	logger    *zap.Logger
}

// NewPartitionCompactor creates a PartitionCompactor. disk may be nil, in
// which case the pre-write disk check is skipped.
func NewPartitionCompactor(readerFor func(path string) (Reader, error), scanners ScannerFactory, writers WriterFactory, commit *CommitCoordinator, disk *diskmanager.DiskManager, logger *zap.Logger) *PartitionCompactor {
	return &PartitionCompactor{readerFor: readerFor, scanners: scanners, writers: writers, commit: commit, disk: disk, logger: logger}
}

// Compact rewrites partition in batches of at most cfg.BatchSize files,
// returning the paths of every new MOB file committed plus the paths of
// single-file batches carried over unchanged when delFiles is empty.
// delFiles is the already-merged, partition-global del set.
func (c *PartitionCompactor) Compact(ctx context.Context, partition *model.Partition, delFiles []string, selectionTime time.Time, cfg PartitionCompactorConfig) ([]string, error) {
	var outputs []string

	files := partition.Files
	for start := 0; start < len(files); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		if len(batch) == 1 && len(delFiles) == 0 {
			outputs = append(outputs, batch[0].Path)
			continue
		}

		out, err := c.compactBatch(ctx, partition, batch, delFiles, selectionTime, cfg)
		if err != nil {
			return outputs, errors.PartitionFailed(fmt.Sprintf("%s/%s", partition.Key.StartKey, partition.Key.Date), err)
		}
		if out != "" {
			outputs = append(outputs, out)
		}

		if end < len(files) {
			if err := c.commit.ClearStaging(cfg.StagingDir); err != nil {
				c.logger.Warn("failed to clear bulkload staging directory between batches", zap.Error(err))
			}
		}
	}

	return outputs, nil
}

// compactBatch runs the state machine for a single batch, and is
// responsible for undoing exactly what it armed if it fails partway.
func (c *PartitionCompactor) compactBatch(ctx context.Context, partition *model.Partition, batch []*model.MobFile, delFiles []string, selectionTime time.Time, cfg PartitionCompactorConfig) (string, error) {
	state := stateInit
	var cleanupTmpMob, cleanupBulkloadDir, cleanupCommittedMob bool
	var tmpMobPath, committedMobPath string

	defer func() {
		if state >= stateAttached {
			return
		}
		if state >= stateCommitted {
			if cleanupCommittedMob {
				if err := c.commit.UncommitMob(committedMobPath); err != nil {
					c.logger.Warn("failed to delete committed mob file during rollback", zap.Error(err))
				}
			}
			return
		}
		if cleanupTmpMob {
			if err := c.commit.UncommitMob(tmpMobPath); err != nil {
				c.logger.Warn("failed to delete temp mob file during rollback", zap.Error(err))
			}
		}
		if cleanupBulkloadDir {
			if err := c.commit.ClearStaging(cfg.StagingDir); err != nil {
				c.logger.Warn("failed to wipe staging dir during rollback", zap.Error(err))
			}
		}
	}()

	paths := make([]string, 0, len(batch)+len(delFiles))
	for _, f := range batch {
		paths = append(paths, f.Path)
	}
	paths = append(paths, delFiles...)

	readers := make([]Reader, 0, len(paths))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	for _, path := range paths {
		r, err := c.readerFor(path)
		if err != nil {
			return "", err
		}
		readers = append(readers, r)
	}

	maxSeqId := AggregateMaxSequenceId(readers)
	expectedCells := AggregateExpectedCells(readers)

	scanner, err := c.scanners.NewScanner(readers, model.DropDeletes, 0, 0, cfg.KVMax)
	if err != nil {
		return "", err
	}
	defer scanner.Close()

	if c.disk != nil {
		if err := c.disk.CheckBeforeWrite(estimateOutputSize(batch)); err != nil {
			return "", errors.Unavailable("disk space check failed before opening mob writer", err)
		}
	}

	mobWriter, err := c.writers.CreateMobWriter(cfg.TempDir, latestTimestampMillis(partition.Key.Date), partition.Key.StartKey, cfg.Compression)
	if err != nil {
		return "", err
	}
	tmpMobPath = mobWriter.Path()
	cleanupTmpMob = true
	state = stateMobOpen

	refWriter, err := c.writers.CreateRefWriter(cfg.StagingDir, expectedCells)
	if err != nil {
		_ = mobWriter.Close()
		return "", err
	}
	cleanupBulkloadDir = true
	state = stateRefOpen

	tableName := cfg.Table
	var mobCells uint64

	for {
		if err := ctx.Err(); err != nil {
			_ = mobWriter.Close()
			_ = refWriter.Close()
			return "", err
		}

		var cells []model.Cell
		hasMore, err := scanner.Next(&cells)
		if err != nil {
			_ = mobWriter.Close()
			_ = refWriter.Close()
			return "", err
		}

		for _, cell := range cells {
			if err := mobWriter.Append(cell); err != nil {
				_ = mobWriter.Close()
				_ = refWriter.Close()
				return "", err
			}

			refCell := buildReferenceCell(cell, filepath.Base(tmpMobPath), tableName)
			if err := refWriter.Append(refCell); err != nil {
				_ = mobWriter.Close()
				_ = refWriter.Close()
				return "", err
			}

			mobCells++
		}

		if !hasMore {
			break
		}
	}

	state = stateScanDone

	if err := mobWriter.AppendMetadata(maxSeqId, false, &mobCells); err != nil {
		_ = mobWriter.Close()
		_ = refWriter.Close()
		return "", err
	}
	if err := mobWriter.Close(); err != nil {
		_ = refWriter.Close()
		return "", err
	}

	bulkloadTime := fmt.Sprintf("%d", selectionTime.UnixMilli())
	if err := refWriter.AppendFileInfo(model.MetaBulkloadTime, []byte(bulkloadTime)); err != nil {
		_ = refWriter.Close()
		return "", err
	}
	if err := refWriter.AppendMetadata(maxSeqId, false, &mobCells); err != nil {
		_ = refWriter.Close()
		return "", err
	}
	if err := refWriter.Close(); err != nil {
		return "", err
	}

	if mobCells == 0 {
		// Nothing survived the drop-deletes scan; there is no MOB file
		// to commit and no reference to bulkload.
		state = stateDone
		return "", nil
	}

	committedMobPath = filepath.Join(cfg.FamilyDir, filepath.Base(tmpMobPath))
	if err := c.commit.CommitMob(tmpMobPath, committedMobPath); err != nil {
		return "", err
	}
	cleanupTmpMob = false
	cleanupCommittedMob = true
	state = stateCommitted

	if err := c.commit.Bulkload(ctx, cfg.StagingDir, cfg.Table); err != nil {
		return "", errors.BulkloadFailed("bulkload of reference file failed after mob commit", err)
	}
	cleanupCommittedMob = false
	cleanupBulkloadDir = false
	state = stateAttached

	if err := c.commit.ArchiveInputs(ctx, cfg.Table, cfg.Family, batchPaths(batch)); err != nil {
		c.logger.Warn("best-effort archival of compacted mob inputs failed", zap.Error(err))
	}

	state = stateDone
	return committedMobPath, nil
}

func batchPaths(batch []*model.MobFile) []string {
	paths := make([]string, len(batch))
	for i, f := range batch {
		paths[i] = f.Path
	}
	return paths
}

// buildReferenceCell mirrors the original cell's row/family/qualifier/
// timestamp but stores the owning MOB file's name as the value, tagged
// with the table name so a later read can resolve it.
func buildReferenceCell(cell model.Cell, mobFileName string, tableName string) model.Cell {
	return model.Cell{
		Row:       cell.Row,
		Family:    cell.Family,
		Qualifier: cell.Qualifier,
		Timestamp: cell.Timestamp,
		SeqId:     cell.SeqId,
		Value:     []byte(mobFileName),
		Tags:      []model.Tag{ReferenceTag(tableName)},
	}
}

// estimateOutputSize approximates the rewritten MOB file's size as the
// sum of its inputs, a conservative upper bound since compaction never
// grows data.
func estimateOutputSize(batch []*model.MobFile) uint64 {
	var total uint64
	for _, f := range batch {
		total += uint64(f.Length)
	}
	return total
}

// latestTimestampMillis converts a YYYYMMDD bucket date to a millisecond
// timestamp for naming the new MOB file, per the writer factory's
// (dir, maxTimestamp, startKey) naming convention.
func latestTimestampMillis(bucketDate string) int64 {
	t, err := time.ParseInLocation(dateLayout, bucketDate, time.UTC)
	if err != nil {
		return time.Now().UTC().UnixMilli()
	}
	return t.UnixMilli()
}
