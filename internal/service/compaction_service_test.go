package service_test

import (
	"context"
	"testing"

	"github.com/mobstore/compactor/internal/config"
	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(fs *fakeFileSystem, readers map[string]*fakeReader, writerFactory *fakeWriterFactory, arch *fakeArchival, bulk *fakeBulkLoad, cfg config.CompactionConfig) *service.CompactionService {
	readerFor := func(path string) (service.Reader, error) {
		if r, ok := readers[path]; ok {
			return r, nil
		}
		return &fakeReader{}, nil
	}
	commit := service.NewCommitCoordinator(fs, bulk, arch)
	return service.NewCompactionService(service.CompactionServiceParams{
		FileSystem:  fs,
		ReaderFor:   readerFor,
		Scanners:    &fakeScannerFactory{},
		Writers:     writerFactory,
		Commit:      commit,
		Archival:    arch,
		Disk:        nil,
		Table:       "tbl",
		Family:      "mob",
		FamilyDir:   "/fam",
		StagingRoot: "/staging",
		TempDir:     "/tmp",
		Config:      cfg,
		Logger:      zap.NewNop(),
	})
}

func defaultTestConfig() config.CompactionConfig {
	return config.CompactionConfig{
		MergeableThreshold: 1000,
		DelFileMaxCount:    3,
		BatchSize:          10,
		KVMax:              1000,
		Workers:            2,
		Policy:             "DAILY",
		Compression:        "NONE",
	}
}

func TestCompactionService_EmptyInputProducesNoOutputs(t *testing.T) {
	fs := &fakeFileSystem{}
	svc := newTestService(fs, nil, &fakeWriterFactory{}, &fakeArchival{}, &fakeBulkLoad{}, defaultTestConfig())

	out, err := svc.Compact(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompactionService_AllIrrelevantProducesNoOutputs(t *testing.T) {
	fs := &fakeFileSystem{}
	svc := newTestService(fs, nil, &fakeWriterFactory{}, &fakeArchival{}, &fakeBulkLoad{}, defaultTestConfig())

	candidates := []model.FileCandidate{
		{Path: "/mob/not-a-mob-file", IsFile: true, Length: 10},
	}
	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCompactionService_SingletonPartitionNoRewrite(t *testing.T) {
	fs := &fakeFileSystem{}
	svc := newTestService(fs, nil, &fakeWriterFactory{}, &fakeArchival{}, &fakeBulkLoad{}, defaultTestConfig())

	candidates := []model.FileCandidate{
		{Path: "/mob/d20260110_ab12", IsFile: true, Length: 100},
	}
	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/mob/d20260110_ab12"}, out)
}

func TestCompactionService_PartFilesCompactsEligiblePartition(t *testing.T) {
	readers := map[string]*fakeReader{
		"/mob/d20260110_ab12_1": {cells: []model.Cell{{Row: []byte("r1")}}},
		"/mob/d20260110_ab12_2": {cells: []model.Cell{{Row: []byte("r2")}}},
	}
	fs := &fakeFileSystem{}
	writerFactory := &fakeWriterFactory{mobPath: "/tmp/new_mob", refPath: "/staging/ref"}
	arch := &fakeArchival{}
	bulk := &fakeBulkLoad{}

	svc := newTestService(fs, readers, writerFactory, arch, bulk, defaultTestConfig())

	candidates := []model.FileCandidate{
		{Path: "/mob/d20260110_ab12_1", IsFile: true, Length: 100},
		{Path: "/mob/d20260110_ab12_2", IsFile: true, Length: 100},
		{Path: "/mob/d20260115_cd34", IsFile: true, Length: 5000}, // ineligible, over threshold
	}

	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "/fam/new_mob", out[0])
	require.Len(t, bulk.calls, 1, "the eligible partition still bulkloads its reference file")
}

func TestCompactionService_AllFilesTriggersDelFileMerge(t *testing.T) {
	readers := map[string]*fakeReader{
		"/mob/d20260110_ab12_1": {cells: []model.Cell{{Row: []byte("r1")}}},
		"/mob/d20260110_ab12_2": {cells: []model.Cell{{Row: []byte("r2")}}},
	}
	fs := &fakeFileSystem{}
	writerFactory := &fakeWriterFactory{mobPath: "/tmp/new_mob", refPath: "/staging/ref", delPath: "/fam/merged_del"}
	arch := &fakeArchival{}
	bulk := &fakeBulkLoad{}

	cfg := defaultTestConfig()
	cfg.DelFileMaxCount = 1

	svc := newTestService(fs, readers, writerFactory, arch, bulk, cfg)

	candidates := []model.FileCandidate{
		{Path: "/mob/d20260110_ab12_1", IsFile: true, Length: 100},
		{Path: "/mob/d20260110_ab12_2", IsFile: true, Length: 100},
		{Path: "/mob/del20260101_a", IsFile: true, Length: 10},
		{Path: "/mob/del20260102_b", IsFile: true, Length: 10},
	}

	// Every candidate is classified (no irrelevant entries), so this
	// request is ALL_FILES and the del-file merge path runs.
	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, arch.calls, 3, "one for the merged-away del chunk, one for the compacted mob inputs, one for the final merged del file")
	assert.Contains(t, arch.calls, []string{"/fam/merged_del"})
}

func TestCompactionService_AllFilesArchivesDelFilesEvenWithoutAMergeRound(t *testing.T) {
	readers := map[string]*fakeReader{
		"/mob/d20260110_ab12_1": {cells: []model.Cell{{Row: []byte("r1")}}},
		"/mob/d20260110_ab12_2": {cells: []model.Cell{{Row: []byte("r2")}}},
	}
	fs := &fakeFileSystem{}
	writerFactory := &fakeWriterFactory{mobPath: "/tmp/new_mob", refPath: "/staging/ref", delPath: "/fam/merged_del"}
	arch := &fakeArchival{}
	bulk := &fakeBulkLoad{}

	cfg := defaultTestConfig()
	cfg.DelFileMaxCount = 3

	svc := newTestService(fs, readers, writerFactory, arch, bulk, cfg)

	candidates := []model.FileCandidate{
		{Path: "/mob/d20260110_ab12_1", IsFile: true, Length: 100},
		{Path: "/mob/d20260110_ab12_2", IsFile: true, Length: 100},
		{Path: "/mob/del20260101_a", IsFile: true, Length: 10},
	}

	// ALL_FILES, and the single del file is already within DelFileMaxCount
	// so no merge round runs — the final del file must still be archived.
	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, arch.calls, 2, "one archival call for the compacted mob inputs, one for the un-merged final del file")
	assert.Contains(t, arch.calls, []string{"/mob/del20260101_a"})
}

func TestCompactionService_PartFilesNeverArchivesDelFiles(t *testing.T) {
	readers := map[string]*fakeReader{
		"/mob/d20260110_ab12_1": {cells: []model.Cell{{Row: []byte("r1")}}},
		"/mob/d20260110_ab12_2": {cells: []model.Cell{{Row: []byte("r2")}}},
	}
	fs := &fakeFileSystem{}
	writerFactory := &fakeWriterFactory{mobPath: "/tmp/new_mob", refPath: "/staging/ref", delPath: "/fam/merged_del"}
	arch := &fakeArchival{}
	bulk := &fakeBulkLoad{}

	svc := newTestService(fs, readers, writerFactory, arch, bulk, defaultTestConfig())

	candidates := []model.FileCandidate{
		{Path: "/mob/d20260110_ab12_1", IsFile: true, Length: 100},
		{Path: "/mob/d20260110_ab12_2", IsFile: true, Length: 100},
		{Path: "/mob/d20260110_ef56", IsFile: true, Length: 100}, // lone file in its partition, pruned because del files exist
		{Path: "/mob/del20260101_a", IsFile: true, Length: 10},
	}

	out, err := svc.Compact(context.Background(), candidates, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, arch.calls, 1, "PART_FILES only archives the compacted mob batch inputs, never the del files")
}
