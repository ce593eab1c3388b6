package mobfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/snappy"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/mobstore/compactor/internal/util"
)

// IndexEntry locates one cell's record inside a file's data stream.
type IndexEntry struct {
	RowKey   string
	Offset   int64
	Size     int32
	Checksum uint32
}

// Config holds the knobs a new mobfile.Writer is built with.
type Config struct {
	BloomFilterFP    float64
	ExpectedElements int
	Compression      model.Compression
}

// Writer writes cells to a MOB, reference, or del file: a size-prefixed,
// checksummed, optionally Snappy-compressed data stream plus a sidecar
// index and bloom filter, mirroring the teacher's SSTableWriter adapted
// to MOB cells.
type Writer struct {
	path        string
	dataFile    *os.File
	indexFile   *os.File
	bloomFile   *os.File
	offset      int64
	index       []IndexEntry
	bloomFilter *BloomFilter
	compression model.Compression
	maxSeqId    uint64
	cellCount   uint64
	fileInfo    map[string][]byte
}

// New creates a writer rooted at path (without extension); it creates
// path, path+".idx", and path+".bloom".
var _ service.Writer = (*Writer)(nil)

func New(path string, cfg Config) (*Writer, error) {
	dataFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create data file: %w", err)
	}

	indexFile, err := os.Create(path + ".idx")
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("failed to create index file: %w", err)
	}

	bloomFile, err := os.Create(path + ".bloom")
	if err != nil {
		dataFile.Close()
		indexFile.Close()
		return nil, fmt.Errorf("failed to create bloom file: %w", err)
	}

	fp := cfg.BloomFilterFP
	if fp <= 0 {
		fp = 0.01
	}
	expected := cfg.ExpectedElements
	if expected <= 0 {
		expected = 10000
	}

	return &Writer{
		path:        path,
		dataFile:    dataFile,
		indexFile:   indexFile,
		bloomFile:   bloomFile,
		index:       make([]IndexEntry, 0),
		bloomFilter: NewBloomFilter(expected, fp),
		compression: cfg.Compression,
		fileInfo:    make(map[string][]byte),
	}, nil
}

// Path returns the path of the underlying data file.
func (w *Writer) Path() string {
	return w.path
}

// Append writes a single cell's record, compressing its payload with
// the configured codec (spec.md §4.4 step 3's "configured with the
// column-family's compaction compression").
func (w *Writer) Append(cell model.Cell) error {
	payload, err := json.Marshal(cell)
	if err != nil {
		return fmt.Errorf("failed to marshal cell: %w", err)
	}

	var blockType byte
	switch w.compression {
	case model.CompressionSnappy:
		payload = snappy.Encode(nil, payload)
		blockType = 1
	default:
		blockType = 0
	}

	checksum := util.ComputeChecksum(payload)

	entrySize := int32(len(payload))
	if err := binary.Write(w.dataFile, binary.LittleEndian, blockType); err != nil {
		return fmt.Errorf("failed to write block type: %w", err)
	}
	if err := binary.Write(w.dataFile, binary.LittleEndian, entrySize); err != nil {
		return fmt.Errorf("failed to write entry size: %w", err)
	}
	if err := binary.Write(w.dataFile, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	n, err := w.dataFile.Write(payload)
	if err != nil {
		return fmt.Errorf("failed to write entry data: %w", err)
	}

	w.index = append(w.index, IndexEntry{
		RowKey:   string(cell.Row),
		Offset:   w.offset,
		Size:     entrySize,
		Checksum: checksum,
	})
	w.bloomFilter.Add(cell.Row)

	w.offset += int64(1 + 4 + 4 + n)
	if cell.SeqId > w.maxSeqId {
		w.maxSeqId = cell.SeqId
	}
	w.cellCount++

	return nil
}

// AppendMetadata records the file's trailer metadata: the maximum
// sequence id among its cells, whether it came from a major compaction,
// and (for MOB files) the cell count used by model.MobFile.CellCount.
func (w *Writer) AppendMetadata(maxSeqId uint64, majorCompaction bool, cellCount *uint64) error {
	w.fileInfo["MAX_SEQ_ID"] = []byte(fmt.Sprintf("%d", maxSeqId))
	if majorCompaction {
		w.fileInfo["MAJOR_COMPACTION"] = []byte("true")
	}
	if cellCount != nil {
		w.fileInfo[model.MetaMobCellsCount] = []byte(fmt.Sprintf("%d", *cellCount))
	}
	return nil
}

// AppendFileInfo stashes an arbitrary key/value in the file's trailer,
// used by the reference writer to record BULKLOAD_TIME.
func (w *Writer) AppendFileInfo(key string, value []byte) error {
	w.fileInfo[key] = value
	return nil
}

// Close finalizes the index and bloom sidecar files and syncs all three
// underlying files to disk.
func (w *Writer) Close() error {
	if err := binary.Write(w.indexFile, binary.LittleEndian, int32(len(w.index))); err != nil {
		return fmt.Errorf("failed to write index count: %w", err)
	}
	for _, entry := range w.index {
		if err := w.writeIndexEntry(entry); err != nil {
			return fmt.Errorf("failed to write index entry: %w", err)
		}
	}
	if err := w.writeFileInfo(); err != nil {
		return fmt.Errorf("failed to write file info: %w", err)
	}
	if err := w.bloomFilter.WriteTo(w.bloomFile); err != nil {
		return fmt.Errorf("failed to write bloom filter: %w", err)
	}

	var err error
	if e := w.dataFile.Sync(); e != nil {
		err = e
	}
	if e := w.dataFile.Close(); e != nil {
		err = e
	}
	if e := w.indexFile.Sync(); e != nil {
		err = e
	}
	if e := w.indexFile.Close(); e != nil {
		err = e
	}
	if e := w.bloomFile.Sync(); e != nil {
		err = e
	}
	if e := w.bloomFile.Close(); e != nil {
		err = e
	}
	return err
}

func (w *Writer) writeIndexEntry(entry IndexEntry) error {
	keyLen := int32(len(entry.RowKey))
	if err := binary.Write(w.indexFile, binary.LittleEndian, keyLen); err != nil {
		return err
	}
	if _, err := w.indexFile.Write([]byte(entry.RowKey)); err != nil {
		return err
	}
	if err := binary.Write(w.indexFile, binary.LittleEndian, entry.Offset); err != nil {
		return err
	}
	if err := binary.Write(w.indexFile, binary.LittleEndian, entry.Size); err != nil {
		return err
	}
	return binary.Write(w.indexFile, binary.LittleEndian, entry.Checksum)
}

func (w *Writer) writeFileInfo() error {
	count := int32(len(w.fileInfo))
	if err := binary.Write(w.indexFile, binary.LittleEndian, count); err != nil {
		return err
	}
	for k, v := range w.fileInfo {
		if err := binary.Write(w.indexFile, binary.LittleEndian, int32(len(k))); err != nil {
			return err
		}
		if _, err := w.indexFile.Write([]byte(k)); err != nil {
			return err
		}
		if err := binary.Write(w.indexFile, binary.LittleEndian, int32(len(v))); err != nil {
			return err
		}
		if _, err := w.indexFile.Write(v); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of bytes written to the data file so far.
func (w *Writer) Size() int64 {
	return w.offset
}

// MaxSequenceId returns the highest sequence id appended so far.
func (w *Writer) MaxSequenceId() uint64 {
	return w.maxSeqId
}

// CellCount returns the number of cells appended so far.
func (w *Writer) CellCount() uint64 {
	return w.cellCount
}
