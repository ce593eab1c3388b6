package service

import (
	"time"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/validation"
	"go.uber.org/zap"
)

// SelectorConfig holds the tunables the Selector needs from
// CompactionConfig, grounded on the teacher's CompactionConfig struct.
type SelectorConfig struct {
	Policy        model.Policy
	MergeableSize int64
}

// Selector classifies candidates into {del files, compact-eligible
// partitions, irrelevant}, grounded on the original's select() and
// getCompactedPartitions().
type Selector struct {
	fs        FileSystem
	validator *validation.Validator
	logger    *zap.Logger
}

// NewSelector creates a Selector.
func NewSelector(fs FileSystem, logger *zap.Logger) *Selector {
	return &Selector{fs: fs, validator: validation.NewValidator(), logger: logger}
}

// Select classifies candidates and groups compact-eligible MOB files
// into partitions. It fails only when a filesystem probe fails;
// individual malformed entries are counted as irrelevant.
func (s *Selector) Select(candidates []model.FileCandidate, cfg SelectorConfig, isForceAllFiles bool, now time.Time) (*model.CompactionRequest, error) {
	identifier := &PartitionIdentifier{Policy: cfg.Policy, MergeableSize: cfg.MergeableSize}

	var delFiles []*model.DelFile
	irrelevant := 0
	partitions := make(map[model.PartitionKey]*model.Partition)

	for _, c := range candidates {
		if !c.IsFile {
			irrelevant++
			continue
		}

		path := c.Path

		if c.Link != nil {
			resolved, err := s.resolveLink(c.Link)
			if err != nil {
				return nil, err
			}
			if resolved == "" {
				irrelevant++
				continue
			}
			path = resolved
		}

		if err := s.validator.ValidatePath(path); err != nil {
			irrelevant++
			continue
		}

		base := basename(path)

		if validation.IsDelFile(base) {
			delFiles = append(delFiles, &model.DelFile{Path: path})
			continue
		}

		date, startKey, ok := validation.ParseMobFileName(base)
		if !ok {
			irrelevant++
			continue
		}

		bucket, threshold, skip := identifier.Identify(date, now)
		if skip {
			irrelevant++
			continue
		}

		if !Eligible(c.Length, threshold, isForceAllFiles) {
			irrelevant++
			continue
		}

		key := model.PartitionKey{StartKey: startKey, Date: bucket}
		part, found := partitions[key]
		if !found {
			part = &model.Partition{Key: key, Threshold: threshold}
			partitions[key] = part
		}
		part.Files = append(part.Files, &model.MobFile{Path: path, Length: c.Length})
		part.UpdateLatestDate(date)
	}

	// Singleton-prune: a lone file already compacted against these same
	// del files would be recompacted into an identical artifact.
	pruned := 0
	if !isForceAllFiles && len(delFiles) > 0 {
		for key, part := range partitions {
			if len(part.Files) == 1 {
				delete(partitions, key)
				pruned++
			}
		}
	}

	selected := make([]*model.Partition, 0, len(partitions))
	selectedFiles := 0
	for _, part := range partitions {
		selected = append(selected, part)
		selectedFiles += len(part.Files)
	}

	typ := model.PartFiles
	if len(delFiles)+selectedFiles+irrelevant == len(candidates) {
		typ = model.AllFiles
	}

	s.logger.Info("selection completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("partitions", len(selected)),
		zap.Int("del_files", len(delFiles)),
		zap.Int("irrelevant", irrelevant),
		zap.Int("pruned", pruned),
		zap.String("type", typ.String()))

	return &model.CompactionRequest{
		Partitions:    selected,
		DelFiles:      delFiles,
		SelectionTime: now,
		Type:          typ,
	}, nil
}

// resolveLink picks the first existing target, or "" if none resolve.
func (s *Selector) resolveLink(link *model.FileLink) (string, error) {
	for _, target := range link.Targets {
		ok, err := s.fs.IsFile(target)
		if err != nil {
			if errors.GetCode(err) == errors.ErrCodeNotFound {
				continue
			}
			return "", err
		}
		if ok {
			return target, nil
		}
	}
	return "", nil
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
