package scan

import (
	"bytes"
	"container/heap"
	"fmt"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
)

// Factory is the reference service.ScannerFactory: an ordered,
// heap-based k-way merge across a fixed set of readers, adapted from
// the teacher's kWayMerger/mergeHeap (container/heap) but merging
// model.Cell records in row/family/qualifier/timestamp order instead
// of key/vector-clock order.
type Factory struct{}

var (
	_ service.ScannerFactory = (*Factory)(nil)
	_ service.Scanner        = (*mergeScanner)(nil)
)

// NewFactory creates a Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// NewScanner opens one model.CellIterator per reader and returns a
// Scanner that merges them.
func (f *Factory) NewScanner(readers []service.Reader, scanType model.ScanType, maxVersions int, ttl time.Duration, batchLimit int) (service.Scanner, error) {
	iters := make([]model.CellIterator, 0, len(readers))
	for _, r := range readers {
		it, err := r.Scan()
		if err != nil {
			return nil, fmt.Errorf("failed to open reader scan: %w", err)
		}
		iters = append(iters, it)
	}

	s := &mergeScanner{
		scanType:    scanType,
		maxVersions: maxVersions,
		ttl:         ttl,
		batchLimit:  batchLimit,
		heap:        &mergeHeap{},
	}
	heap.Init(s.heap)
	for idx, it := range iters {
		s.iters = append(s.iters, it)
		s.advance(idx)
	}

	return s, nil
}

// mergeEntry is one pending cell in the merge heap, tagged with the
// iterator it came from so the scanner can pull that iterator's next
// cell once this one is consumed.
type mergeEntry struct {
	cell    model.Cell
	iterIdx int
}

// mergeHeap orders cells the way HBase's store scanner orders them:
// ascending row, then family, then qualifier, then descending
// timestamp (newest version first) so per-key version counting and
// tombstone suppression can be done in a single forward pass.
type mergeHeap []*mergeEntry

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i].cell, h[j].cell
	if c := bytes.Compare(a.Row, b.Row); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.Family, b.Family); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.Qualifier, b.Qualifier); c != 0 {
		return c < 0
	}
	return a.Timestamp > b.Timestamp
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(*mergeEntry))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// mergeScanner is the reference service.Scanner implementation.
type mergeScanner struct {
	iters       []model.CellIterator
	heap        *mergeHeap
	scanType    model.ScanType
	maxVersions int
	ttl         time.Duration
	batchLimit  int

	// version-counting state for the key currently being emitted
	curRow, curFamily, curQualifier []byte
	versionsEmitted                 int
	pendingDelete                   bool
}

// advance pulls iterIdx's next cell into the heap, if any remains.
func (s *mergeScanner) advance(iterIdx int) {
	cell, ok, err := s.iters[iterIdx].Next()
	if err != nil || !ok {
		return
	}
	heap.Push(s.heap, &mergeEntry{cell: cell, iterIdx: iterIdx})
}

// Next appends up to batchLimit cells to out in merged order, applying
// max-versions truncation, TTL expiry, and (for DropDeletes) tombstone
// suppression along the way.
func (s *mergeScanner) Next(out *[]model.Cell) (bool, error) {
	emitted := 0

	for s.heap.Len() > 0 && emitted < s.batchLimit {
		top := heap.Pop(s.heap).(*mergeEntry)
		s.advance(top.iterIdx)
		cell := top.cell

		if !bytes.Equal(cell.Row, s.curRow) || !bytes.Equal(cell.Family, s.curFamily) || !bytes.Equal(cell.Qualifier, s.curQualifier) {
			s.curRow, s.curFamily, s.curQualifier = cell.Row, cell.Family, cell.Qualifier
			s.versionsEmitted = 0
			s.pendingDelete = false
		}

		if s.pendingDelete {
			// A newer tombstone for this column already suppressed every
			// older version; RETAIN_DELETES still needs the tombstone
			// itself but not the versions it covers.
			continue
		}

		if cell.Tombstone {
			s.pendingDelete = true
			if s.scanType == model.DropDeletes {
				continue
			}
		}

		if s.ttl > 0 && !cell.Tombstone {
			age := time.Since(time.UnixMilli(cell.Timestamp))
			if age > s.ttl {
				continue
			}
		}

		if s.maxVersions > 0 && s.versionsEmitted >= s.maxVersions {
			continue
		}

		*out = append(*out, cell)
		if !cell.Tombstone {
			s.versionsEmitted++
		}
		emitted++
	}

	return s.heap.Len() > 0, nil
}

// Close releases every underlying iterator's resources; iterators that
// don't own a resource (most don't) no-op.
func (s *mergeScanner) Close() error {
	for _, it := range s.iters {
		if closer, ok := it.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}
