package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/model"
	"go.uber.org/zap"
)

// DelFileMergerConfig holds the tunables the merger needs, mirroring the
// teacher's CompactionConfig-driven batch sizing.
type DelFileMergerConfig struct {
	DelFileMaxCount int
	BatchSize       int
	Compression     model.Compression
}

// DelFileMerger collapses an unbounded del-file set down to at most
// DelFileMaxCount files, grounded on the original's
// compactDelFiles/compactDelFilesInBatch.
type DelFileMerger struct {
	readerFor func(path string) (Reader, error)
	scanners  ScannerFactory
	writers   WriterFactory
	archival  Archival
	logger    *zap.Logger
}

// NewDelFileMerger creates a DelFileMerger. readerFor opens a Reader for
// a del-file path; it is supplied rather than assumed so the merger
// never depends on a concrete storage package.
func NewDelFileMerger(readerFor func(path string) (Reader, error), scanners ScannerFactory, writers WriterFactory, archival Archival, logger *zap.Logger) *DelFileMerger {
	return &DelFileMerger{readerFor: readerFor, scanners: scanners, writers: writers, archival: archival, logger: logger}
}

// Merge recurses until len(paths) <= cfg.DelFileMaxCount, returning the
// final set of del-file paths. dir is the MOB family directory new
// merged del files are written into; table/family identify the
// archival destination for superseded inputs.
func (m *DelFileMerger) Merge(ctx context.Context, paths []string, dir, table, family string, cfg DelFileMergerConfig, now time.Time) ([]string, error) {
	if len(paths) <= cfg.DelFileMaxCount {
		return paths, nil
	}

	var merged []string
	for start := 0; start < len(paths); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(paths) {
			end = len(paths)
		}
		chunk := paths[start:end]

		if len(chunk) == 1 {
			merged = append(merged, chunk[0])
			continue
		}

		newPath, err := m.mergeChunk(ctx, chunk, dir, cfg.Compression, now)
		if err != nil {
			return nil, errors.DelMergeFailed(fmt.Sprintf("merging del-file chunk of %d starting at %d", len(chunk), start), err)
		}
		merged = append(merged, newPath)

		if err := m.archival.RemoveMobFiles(ctx, table, family, chunk); err != nil {
			m.logger.Warn("failed to archive superseded del files", zap.Error(err))
		}
	}

	m.logger.Info("del-file merge round completed", zap.Int("before", len(paths)), zap.Int("after", len(merged)))

	return m.Merge(ctx, merged, dir, table, family, cfg, now)
}

// mergeChunk runs a RETAIN_DELETES scan across chunk and writes a single
// merged del file; tombstones survive the merge since del files must
// keep suppressing reads against every MOB file that still exists.
func (m *DelFileMerger) mergeChunk(ctx context.Context, chunk []string, dir string, compression model.Compression, now time.Time) (string, error) {
	readers := make([]Reader, 0, len(chunk))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	var maxSeqId uint64
	for _, path := range chunk {
		r, err := m.readerFor(path)
		if err != nil {
			return "", err
		}
		if r.MaxSequenceId() > maxSeqId {
			maxSeqId = r.MaxSequenceId()
		}
		readers = append(readers, r)
	}

	scanner, err := m.scanners.NewScanner(readers, model.RetainDeletes, 0, 0, len(chunk))
	if err != nil {
		return "", err
	}
	defer scanner.Close()

	writer, err := m.writers.CreateDelWriter(dir, now.UTC().Format(dateLayout), compression, "")
	if err != nil {
		return "", err
	}

	var cellCount uint64
	for {
		if err := ctx.Err(); err != nil {
			_ = writer.Close()
			return "", err
		}

		var cells []model.Cell
		hasMore, err := scanner.Next(&cells)
		if err != nil {
			_ = writer.Close()
			return "", err
		}
		for _, cell := range cells {
			if err := writer.Append(cell); err != nil {
				_ = writer.Close()
				return "", err
			}
			cellCount++
		}
		if !hasMore {
			break
		}
	}

	if err := writer.AppendMetadata(maxSeqId, false, &cellCount); err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	return writer.Path(), nil
}
