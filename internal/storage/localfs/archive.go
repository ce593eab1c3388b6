package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/service"
	"go.uber.org/zap"
)

var _ service.Archival = (*Archival)(nil)

// Archival is the reference service.Archival: it moves superseded
// input files into archiveDir/table/family rather than deleting them
// outright, so a wrongly-superseded file can be recovered by hand.
type Archival struct {
	archiveDir string
	logger     *zap.Logger
}

// NewArchival creates an Archival rooted at archiveDir.
func NewArchival(archiveDir string, logger *zap.Logger) *Archival {
	return &Archival{archiveDir: archiveDir, logger: logger}
}

// RemoveMobFiles moves each of files into the archive directory.
func (a *Archival) RemoveMobFiles(ctx context.Context, table, family string, files []string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dest := filepath.Join(a.archiveDir, table, family)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.InternalError("failed to create archive directory", err)
	}

	for _, path := range files {
		dst := filepath.Join(dest, filepath.Base(path))
		if err := os.Rename(path, dst); err != nil {
			if os.IsNotExist(err) {
				if _, statErr := os.Stat(dst); statErr == nil {
					continue
				}
			}
			return errors.InternalError("failed to archive file", err)
		}
	}

	a.logger.Info("files archived", zap.String("table", table), zap.String("family", family), zap.Int("count", len(files)))
	return nil
}
