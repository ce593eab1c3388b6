package service

import (
	"context"
	"time"

	"github.com/mobstore/compactor/internal/model"
)

// FileSystem is the external filesystem surface the Selector and
// Commit/Bulkload Coordinator operate over. Production deployments
// back this with HBase's (or an equivalent store's) filesystem client;
// internal/storage/localfs supplies a plain-os.File-backed reference
// implementation.
type FileSystem interface {
	IsFile(path string) (bool, error)
	Stat(path string) (model.FileStatus, error)
	Delete(path string, recursive bool) error
	Rename(src, dst string) error
	ListFiles(dir string) ([]model.FileStatus, error)
}

// Scanner walks a set of readers in merged row/column/timestamp order.
type Scanner interface {
	// Next appends up to the scanner's batch limit of cells to out and
	// reports whether any more remain.
	Next(out *[]model.Cell) (hasMore bool, err error)
	Close() error
}

// ScannerFactory builds a Scanner over a fixed set of readers.
type ScannerFactory interface {
	NewScanner(readers []Reader, scanType model.ScanType, maxVersions int, ttl time.Duration, batchLimit int) (Scanner, error)
}

// Writer is the append-only sink the Partition Compactor and Del-File
// Merger write new MOB, reference, and del files through.
type Writer interface {
	Append(cell model.Cell) error
	AppendMetadata(maxSeqId uint64, majorCompaction bool, cellCount *uint64) error
	AppendFileInfo(key string, value []byte) error
	Close() error
	Path() string
}

// WriterFactory creates the three kinds of output writer the pipeline
// needs. internal/storage/mobfile supplies the reference implementation.
type WriterFactory interface {
	CreateMobWriter(dir string, maxTimestamp int64, startKey string, compression model.Compression) (Writer, error)
	CreateRefWriter(dir string, expectedEntries uint64) (Writer, error)
	CreateDelWriter(dir string, date string, compression model.Compression, startKey string) (Writer, error)
}

// Reader is the read-side counterpart of Writer. Compaction opens one
// through readerFor per input file for each batch or chunk it scans and
// closes it when that scan ends; a Reader is not shared across scans.
type Reader interface {
	MaxSequenceId() uint64
	FileInfo(key string) ([]byte, error)
	Scan() (model.CellIterator, error)
	Close() error
}

// BulkLoad attaches a staged reference file into a live table, the
// "ATTACHED" step of the cleanup ladder.
type BulkLoad interface {
	DoBulkLoad(ctx context.Context, stagingDir, table string) error
}

// Archival moves superseded input files out of the family directory
// once they're safely superseded.
type Archival interface {
	RemoveMobFiles(ctx context.Context, table, family string, files []string) error
}
