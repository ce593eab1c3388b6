package service

import (
	"strconv"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/validation"
)

// ParseFileName extracts the (date, startKey) a MOB file's base name
// encodes, validated through internal/validation before being handed
// to the Partition Identifier. Malformed hex in startKey or a
// non-8-digit date is reported as unparsable rather than a crash.
func ParseFileName(baseName string) (date, startKey string, ok bool) {
	return validation.ParseMobFileName(baseName)
}

// AggregateMaxSequenceId returns the largest MaxSequenceId across a set
// of readers, the "maxSeqId = max(sf.maxSeqId)" step of spec.md §4.4.
func AggregateMaxSequenceId(readers []Reader) uint64 {
	var max uint64
	for _, r := range readers {
		if r.MaxSequenceId() > max {
			max = r.MaxSequenceId()
		}
	}
	return max
}

// AggregateExpectedCells sums MOB_CELLS_COUNT across a set of readers,
// the "expectedCells = sum(MOB_CELLS_COUNT)" step of spec.md §4.4.
func AggregateExpectedCells(readers []Reader) uint64 {
	var total uint64
	for _, r := range readers {
		raw, err := r.FileInfo(model.MetaMobCellsCount)
		if err != nil || raw == nil {
			continue
		}
		n, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			continue
		}
		total += n
	}
	return total
}

// ReferenceTag builds the MOB_TABLE_NAME_TAG tag a reference cell
// carries, identifying the owning table's fully-qualified name.
func ReferenceTag(tableName string) model.Tag {
	return model.Tag{Type: model.MobTableNameTag, Value: []byte(tableName)}
}
