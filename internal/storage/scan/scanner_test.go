package scan_test

import (
	"testing"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/mobstore/compactor/internal/storage/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceReader struct {
	cells []model.Cell
}

func (r *sliceReader) MaxSequenceId() uint64               { return 0 }
func (r *sliceReader) FileInfo(key string) ([]byte, error) { return nil, nil }
func (r *sliceReader) Close() error                        { return nil }
func (r *sliceReader) Scan() (model.CellIterator, error) {
	return &sliceIterator{cells: r.cells}, nil
}

type sliceIterator struct {
	cells []model.Cell
	pos   int
}

func (it *sliceIterator) Next() (model.Cell, bool, error) {
	if it.pos >= len(it.cells) {
		return model.Cell{}, false, nil
	}
	c := it.cells[it.pos]
	it.pos++
	return c, true, nil
}

func drainAll(t *testing.T, s service.Scanner, batchLimit int) []model.Cell {
	var all []model.Cell
	for {
		var batch []model.Cell
		hasMore, err := s.Next(&batch)
		require.NoError(t, err)
		all = append(all, batch...)
		if !hasMore {
			break
		}
	}
	return all
}

func TestScanner_MergesMultipleReadersInKeyOrder(t *testing.T) {
	r1 := &sliceReader{cells: []model.Cell{
		{Row: []byte("a"), Timestamp: 10},
		{Row: []byte("c"), Timestamp: 10},
	}}
	r2 := &sliceReader{cells: []model.Cell{
		{Row: []byte("b"), Timestamp: 10},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r1, r2}, model.DropDeletes, 0, 0, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	var rows []string
	for _, c := range cells {
		rows = append(rows, string(c.Row))
	}
	assert.Equal(t, []string{"a", "b", "c"}, rows)
}

func TestScanner_OrdersDescendingTimestampWithinSameKey(t *testing.T) {
	r1 := &sliceReader{cells: []model.Cell{{Row: []byte("a"), Timestamp: 5}}}
	r2 := &sliceReader{cells: []model.Cell{{Row: []byte("a"), Timestamp: 20}}}
	r3 := &sliceReader{cells: []model.Cell{{Row: []byte("a"), Timestamp: 10}}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r1, r2, r3}, model.RetainDeletes, 0, 0, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	require.Len(t, cells, 3)
	assert.Equal(t, int64(20), cells[0].Timestamp)
	assert.Equal(t, int64(10), cells[1].Timestamp)
	assert.Equal(t, int64(5), cells[2].Timestamp)
}

func TestScanner_DropDeletesSuppressesTombstonesAndCoveredVersions(t *testing.T) {
	r := &sliceReader{cells: []model.Cell{
		{Row: []byte("a"), Timestamp: 20, Tombstone: true},
		{Row: []byte("a"), Timestamp: 10},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r}, model.DropDeletes, 0, 0, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	assert.Empty(t, cells, "a tombstone and every older version it covers must not survive DropDeletes")
}

func TestScanner_RetainDeletesKeepsTombstoneButSuppressesOlderVersions(t *testing.T) {
	r := &sliceReader{cells: []model.Cell{
		{Row: []byte("a"), Timestamp: 20, Tombstone: true},
		{Row: []byte("a"), Timestamp: 10},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r}, model.RetainDeletes, 0, 0, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	require.Len(t, cells, 1, "the tombstone itself survives RETAIN_DELETES but the version it covers does not")
	assert.True(t, cells[0].Tombstone)
}

func TestScanner_MaxVersionsTruncatesPerColumn(t *testing.T) {
	r := &sliceReader{cells: []model.Cell{
		{Row: []byte("a"), Timestamp: 30},
		{Row: []byte("a"), Timestamp: 20},
		{Row: []byte("a"), Timestamp: 10},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r}, model.DropDeletes, 2, 0, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	require.Len(t, cells, 2)
	assert.Equal(t, int64(30), cells[0].Timestamp)
	assert.Equal(t, int64(20), cells[1].Timestamp)
}

func TestScanner_TTLExpiresOldCells(t *testing.T) {
	old := time.Now().Add(-time.Hour).UnixMilli()
	fresh := time.Now().UnixMilli()

	r := &sliceReader{cells: []model.Cell{
		{Row: []byte("a"), Timestamp: fresh},
		{Row: []byte("b"), Timestamp: old},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r}, model.DropDeletes, 0, 30*time.Minute, 10)
	require.NoError(t, err)
	defer s.Close()

	cells := drainAll(t, s, 10)
	require.Len(t, cells, 1)
	assert.Equal(t, "a", string(cells[0].Row))
}

func TestScanner_BatchLimitSplitsAcrossNextCalls(t *testing.T) {
	r := &sliceReader{cells: []model.Cell{
		{Row: []byte("a")}, {Row: []byte("b")}, {Row: []byte("c")},
	}}

	f := scan.NewFactory()
	s, err := f.NewScanner([]service.Reader{r}, model.DropDeletes, 0, 0, 2)
	require.NoError(t, err)
	defer s.Close()

	var first []model.Cell
	hasMore, err := s.Next(&first)
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Len(t, first, 2)

	var second []model.Cell
	hasMore, err = s.Next(&second)
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Len(t, second, 1)
}
