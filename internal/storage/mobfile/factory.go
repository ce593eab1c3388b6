package mobfile

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
)

// Factory is the reference, filesystem-backed service.WriterFactory.
// It names outputs the way the original partition compactor does:
// MOB files by (latestDate, startKey, uuid), reference files as
// "ref_<uuid>" in the directory they are given, del files by (date,
// startKey, uuid).
type Factory struct {
	bloomFilterFP float64
}

var _ service.WriterFactory = (*Factory)(nil)

// NewFactory creates a Factory. bloomFilterFP is the false-positive
// rate new writers size their bloom filter sidecar for.
func NewFactory(bloomFilterFP float64) *Factory {
	if bloomFilterFP <= 0 {
		bloomFilterFP = 0.01
	}
	return &Factory{bloomFilterFP: bloomFilterFP}
}

// CreateMobWriter creates a new MOB file writer named
// "d<maxTimestamp-as-date>_<startKey>_<uuid>" under dir.
func (f *Factory) CreateMobWriter(dir string, maxTimestamp int64, startKey string, compression model.Compression) (service.Writer, error) {
	name := fmt.Sprintf("d%s_%s_%s", formatDate(maxTimestamp), startKey, uuid.NewString())
	return New(filepath.Join(dir, name), Config{
		BloomFilterFP: f.bloomFilterFP,
		Compression:   compression,
	})
}

// CreateRefWriter creates a new reference file writer under dir, sized
// for expectedEntries cells.
func (f *Factory) CreateRefWriter(dir string, expectedEntries uint64) (service.Writer, error) {
	name := fmt.Sprintf("ref_%s", uuid.NewString())
	return New(filepath.Join(dir, name), Config{
		BloomFilterFP:    f.bloomFilterFP,
		ExpectedElements: int(expectedEntries),
	})
}

// CreateDelWriter creates a new merged del-file writer named
// "del<date>_<startKey>_<uuid>" under dir.
func (f *Factory) CreateDelWriter(dir string, date string, compression model.Compression, startKey string) (service.Writer, error) {
	name := fmt.Sprintf("del%s_%s_%s", date, startKey, uuid.NewString())
	return New(filepath.Join(dir, name), Config{
		BloomFilterFP: f.bloomFilterFP,
		Compression:   compression,
	})
}

func formatDate(unixMillis int64) string {
	return time.UnixMilli(unixMillis).UTC().Format("20060102")
}
