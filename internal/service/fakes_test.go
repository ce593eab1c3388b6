package service_test

import (
	"context"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
)

// fakeReader is a minimal in-memory service.Reader backed by a fixed
// cell slice, used wherever a test needs to drive a Scanner without
// touching the real mobfile format.
type fakeReader struct {
	cells    []model.Cell
	maxSeqId uint64
	fileInfo map[string][]byte
	pos      int
	closed   bool
}

func (r *fakeReader) MaxSequenceId() uint64 { return r.maxSeqId }

func (r *fakeReader) FileInfo(key string) ([]byte, error) {
	return r.fileInfo[key], nil
}

func (r *fakeReader) Scan() (model.CellIterator, error) {
	return &fakeCellIterator{cells: r.cells}, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeCellIterator struct {
	cells []model.Cell
	pos   int
}

func (it *fakeCellIterator) Next() (model.Cell, bool, error) {
	if it.pos >= len(it.cells) {
		return model.Cell{}, false, nil
	}
	c := it.cells[it.pos]
	it.pos++
	return c, true, nil
}

// fakeScanner concatenates every reader's cells in file order (real
// ordering semantics are covered by internal/storage/scan's own tests).
type fakeScanner struct {
	cells []model.Cell
	pos   int
	limit int
}

func (s *fakeScanner) Next(out *[]model.Cell) (bool, error) {
	end := s.pos + s.limit
	if end > len(s.cells) {
		end = len(s.cells)
	}
	*out = append(*out, s.cells[s.pos:end]...)
	s.pos = end
	return s.pos < len(s.cells), nil
}

func (s *fakeScanner) Close() error { return nil }

type fakeScannerFactory struct {
	err error
}

func (f *fakeScannerFactory) NewScanner(readers []service.Reader, scanType model.ScanType, maxVersions int, ttl time.Duration, batchLimit int) (service.Scanner, error) {
	if f.err != nil {
		return nil, f.err
	}
	if batchLimit <= 0 {
		batchLimit = 1 << 30
	}

	var cells []model.Cell
	for _, r := range readers {
		it, err := r.Scan()
		if err != nil {
			return nil, err
		}
		for {
			c, ok, err := it.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			if scanType == model.DropDeletes && c.Tombstone {
				continue
			}
			cells = append(cells, c)
		}
	}

	return &fakeScanner{cells: cells, limit: batchLimit}, nil
}

// fakeWriter records every Append call and reports a caller-chosen path.
type fakeWriter struct {
	path      string
	appended  []model.Cell
	fileInfo  map[string][]byte
	maxSeqId  uint64
	cellCount uint64
	closed    bool
	appendErr error
	closeErr  error
}

func (w *fakeWriter) Append(cell model.Cell) error {
	if w.appendErr != nil {
		return w.appendErr
	}
	w.appended = append(w.appended, cell)
	return nil
}

func (w *fakeWriter) AppendMetadata(maxSeqId uint64, majorCompaction bool, cellCount *uint64) error {
	w.maxSeqId = maxSeqId
	if cellCount != nil {
		w.cellCount = *cellCount
	}
	return nil
}

func (w *fakeWriter) AppendFileInfo(key string, value []byte) error {
	if w.fileInfo == nil {
		w.fileInfo = map[string][]byte{}
	}
	w.fileInfo[key] = value
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func (w *fakeWriter) Path() string { return w.path }

// fakeWriterFactory hands out fakeWriters with caller-chosen paths so
// tests can assert on what CommitMob/Bulkload ultimately receive.
type fakeWriterFactory struct {
	mobPath   string
	refPath   string
	delPath   string
	nextIndex int
	writers   []*fakeWriter
	err       error
}

func (f *fakeWriterFactory) newWriter(path string) *fakeWriter {
	w := &fakeWriter{path: path}
	f.writers = append(f.writers, w)
	return w
}

func (f *fakeWriterFactory) CreateMobWriter(dir string, maxTimestamp int64, startKey string, compression model.Compression) (service.Writer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.newWriter(f.mobPath), nil
}

func (f *fakeWriterFactory) CreateRefWriter(dir string, expectedEntries uint64) (service.Writer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.newWriter(f.refPath), nil
}

func (f *fakeWriterFactory) CreateDelWriter(dir string, date string, compression model.Compression, startKey string) (service.Writer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.newWriter(f.delPath), nil
}

// fakeArchival records every RemoveMobFiles call.
type fakeArchival struct {
	calls [][]string
	err   error
}

func (a *fakeArchival) RemoveMobFiles(ctx context.Context, table, family string, files []string) error {
	a.calls = append(a.calls, files)
	return a.err
}

// fakeBulkLoad records every DoBulkLoad call.
type fakeBulkLoad struct {
	calls []string
	err   error
}

func (b *fakeBulkLoad) DoBulkLoad(ctx context.Context, stagingDir, table string) error {
	b.calls = append(b.calls, stagingDir)
	return b.err
}
