package localfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mobstore/compactor/internal/storage/localfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArchival_MovesFilesIntoTableFamilyDirectory(t *testing.T) {
	root := t.TempDir()
	src1 := filepath.Join(root, "mob1")
	src2 := filepath.Join(root, "mob2")
	require.NoError(t, os.WriteFile(src1, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(src2, []byte("y"), 0o644))

	archiveDir := filepath.Join(root, "archive")
	a := localfs.NewArchival(archiveDir, zap.NewNop())

	err := a.RemoveMobFiles(context.Background(), "t1", "f1", []string{src1, src2})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(archiveDir, "t1", "f1", "mob1"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(archiveDir, "t1", "f1", "mob2"))
	assert.NoError(t, err)
	_, err = os.Stat(src1)
	assert.True(t, os.IsNotExist(err), "archived source files must no longer exist at their original path")
}

func TestArchival_MissingSourceFileFails(t *testing.T) {
	root := t.TempDir()
	a := localfs.NewArchival(filepath.Join(root, "archive"), zap.NewNop())

	err := a.RemoveMobFiles(context.Background(), "t1", "f1", []string{filepath.Join(root, "nonexistent")})
	assert.Error(t, err)
}

func TestArchival_RespectsCancelledContext(t *testing.T) {
	root := t.TempDir()
	a := localfs.NewArchival(filepath.Join(root, "archive"), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.RemoveMobFiles(ctx, "t1", "f1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
