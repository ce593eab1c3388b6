package mobfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/mobstore/compactor/internal/util"
)

// Reader reads cells back out of a file written by Writer, validating
// each record's checksum and transparently decompressing Snappy blocks.
type Reader struct {
	path      string
	dataFile  *os.File
	index     []IndexEntry
	fileInfo  map[string][]byte
	bloom     *BloomFilter
	maxSeqId  uint64
	cellCount uint64
}

var _ service.Reader = (*Reader)(nil)

// Open opens the data/index/bloom trio rooted at path.
func Open(path string) (*Reader, error) {
	dataFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}

	indexFile, err := os.Open(path + ".idx")
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	defer indexFile.Close()

	r := &Reader{path: path, dataFile: dataFile, fileInfo: make(map[string][]byte)}
	if err := r.loadIndex(indexFile); err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	if bloomFile, err := os.Open(path + ".bloom"); err == nil {
		bf, err := ReadBloomFilter(bloomFile)
		bloomFile.Close()
		if err == nil {
			r.bloom = bf
		}
	}

	if v, ok := r.fileInfo[model.MetaMobCellsCount]; ok {
		fmt.Sscanf(string(v), "%d", &r.cellCount)
	}
	if v, ok := r.fileInfo["MAX_SEQ_ID"]; ok {
		fmt.Sscanf(string(v), "%d", &r.maxSeqId)
	}

	return r, nil
}

func (r *Reader) loadIndex(indexFile *os.File) error {
	var count int32
	if err := binary.Read(indexFile, binary.LittleEndian, &count); err != nil {
		return err
	}
	r.index = make([]IndexEntry, 0, count)

	for i := int32(0); i < count; i++ {
		var keyLen int32
		if err := binary.Read(indexFile, binary.LittleEndian, &keyLen); err != nil {
			return err
		}
		keyBytes := make([]byte, keyLen)
		if _, err := io.ReadFull(indexFile, keyBytes); err != nil {
			return err
		}

		var offset int64
		if err := binary.Read(indexFile, binary.LittleEndian, &offset); err != nil {
			return err
		}
		var size int32
		if err := binary.Read(indexFile, binary.LittleEndian, &size); err != nil {
			return err
		}
		var checksum uint32
		if err := binary.Read(indexFile, binary.LittleEndian, &checksum); err != nil {
			return err
		}

		r.index = append(r.index, IndexEntry{
			RowKey:   string(keyBytes),
			Offset:   offset,
			Size:     size,
			Checksum: checksum,
		})
	}

	var infoCount int32
	if err := binary.Read(indexFile, binary.LittleEndian, &infoCount); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	for i := int32(0); i < infoCount; i++ {
		var kLen int32
		if err := binary.Read(indexFile, binary.LittleEndian, &kLen); err != nil {
			return err
		}
		kBytes := make([]byte, kLen)
		if _, err := io.ReadFull(indexFile, kBytes); err != nil {
			return err
		}
		var vLen int32
		if err := binary.Read(indexFile, binary.LittleEndian, &vLen); err != nil {
			return err
		}
		vBytes := make([]byte, vLen)
		if _, err := io.ReadFull(indexFile, vBytes); err != nil {
			return err
		}
		r.fileInfo[string(kBytes)] = vBytes
	}

	return nil
}

// Path returns the path of the underlying data file.
func (r *Reader) Path() string {
	return r.path
}

// MaxSequenceId returns the highest sequence id recorded in the file's
// trailer.
func (r *Reader) MaxSequenceId() uint64 {
	return r.maxSeqId
}

// CellCount returns the MOB_CELLS_COUNT recorded in the file's trailer.
func (r *Reader) CellCount() uint64 {
	return r.cellCount
}

// FileInfo returns a trailer value by key, or nil, nil if absent —
// callers treat an absent key as "not recorded", not an error.
func (r *Reader) FileInfo(key string) ([]byte, error) {
	v, ok := r.fileInfo[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

// MayContainRow reports whether the file's bloom filter admits the
// possibility that row is present.
func (r *Reader) MayContainRow(row []byte) bool {
	if r.bloom == nil {
		return true
	}
	return r.bloom.MayContain(row)
}

// Len returns the number of cell records in the file.
func (r *Reader) Len() int {
	return len(r.index)
}

// CellAt reads and decodes the cell at index position i in file order,
// which is the order Append wrote them (row/column/timestamp order for
// a file produced by the ordered scanner).
func (r *Reader) CellAt(i int) (model.Cell, error) {
	entry := r.index[i]

	if _, err := r.dataFile.Seek(entry.Offset, io.SeekStart); err != nil {
		return model.Cell{}, fmt.Errorf("failed to seek to offset: %w", err)
	}

	var blockType byte
	if err := binary.Read(r.dataFile, binary.LittleEndian, &blockType); err != nil {
		return model.Cell{}, fmt.Errorf("failed to read block type: %w", err)
	}
	var size int32
	if err := binary.Read(r.dataFile, binary.LittleEndian, &size); err != nil {
		return model.Cell{}, fmt.Errorf("failed to read entry size: %w", err)
	}
	var checksum uint32
	if err := binary.Read(r.dataFile, binary.LittleEndian, &checksum); err != nil {
		return model.Cell{}, fmt.Errorf("failed to read checksum: %w", err)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.dataFile, payload); err != nil {
		return model.Cell{}, fmt.Errorf("failed to read entry data: %w", err)
	}

	if !util.ValidateChecksum(payload, checksum) {
		return model.Cell{}, fmt.Errorf("checksum validation failed at offset %d", entry.Offset)
	}

	if blockType == 1 {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return model.Cell{}, fmt.Errorf("failed to decompress cell: %w", err)
		}
		payload = decoded
	}

	var cell model.Cell
	if err := json.Unmarshal(payload, &cell); err != nil {
		return model.Cell{}, fmt.Errorf("failed to unmarshal cell: %w", err)
	}
	return cell, nil
}

// Scan returns a CellIterator walking the file's cells in storage
// order, which is row/column/timestamp order for a file produced by
// the ordered scanner (component D writes cells in that order).
func (r *Reader) Scan() (model.CellIterator, error) {
	return &CellIter{reader: r}, nil
}

// Close closes the underlying data file.
func (r *Reader) Close() error {
	return r.dataFile.Close()
}

// CellIter walks a single Reader's cells in storage order. It
// satisfies service.CellIterator structurally.
type CellIter struct {
	reader *Reader
	pos    int
}

// Next advances the iterator, returning (cell, true, nil) for each
// stored cell and (zero, false, nil) once exhausted.
func (it *CellIter) Next() (model.Cell, bool, error) {
	if it.pos >= it.reader.Len() {
		return model.Cell{}, false, nil
	}
	cell, err := it.reader.CellAt(it.pos)
	if err != nil {
		return model.Cell{}, false, err
	}
	it.pos++
	return cell, true, nil
}
