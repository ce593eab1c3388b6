package localfs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mobstore/compactor/internal/errors"
	"github.com/mobstore/compactor/internal/service"
	"go.uber.org/zap"
)

var _ service.BulkLoad = (*BulkLoad)(nil)

// BulkLoad is the reference service.BulkLoad: it attaches a staged
// reference file by moving it into tableDir/table, standing in for
// the real bulkload RPC HBase's region server exposes. Production
// deployments replace this with a client for that RPC (or an
// equivalent store's bulk-ingest API).
type BulkLoad struct {
	tableDir string
	logger   *zap.Logger
}

// NewBulkLoad creates a BulkLoad rooted at tableDir.
func NewBulkLoad(tableDir string, logger *zap.Logger) *BulkLoad {
	return &BulkLoad{tableDir: tableDir, logger: logger}
}

// DoBulkLoad moves every file in stagingDir into the live table
// directory, the "ATTACHED" transition of the cleanup ladder.
func (b *BulkLoad) DoBulkLoad(ctx context.Context, stagingDir, table string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return errors.BulkloadFailed("failed to list staging directory", err)
	}

	dest := filepath.Join(b.tableDir, table)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.BulkloadFailed("failed to create table directory", err)
	}

	for _, e := range entries {
		src := filepath.Join(stagingDir, e.Name())
		dst := filepath.Join(dest, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return errors.BulkloadFailed("failed to attach staged file", err)
		}
	}

	b.logger.Info("bulkload attached", zap.String("table", table), zap.Int("files", len(entries)))
	return nil
}
