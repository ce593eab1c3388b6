package service

import "context"

// CommitCoordinator is a thin wrapper over the external filesystem,
// bulkload, and archival services, grounded on spec.md §4.6: commit is
// an atomic rename into the family directory, bulkload invokes the
// external "load incremental files" service, and archival renames
// inputs to an archive path, tolerant of already-archived entries.
type CommitCoordinator struct {
	fs       FileSystem
	bulkload BulkLoad
	archival Archival
}

// NewCommitCoordinator creates a CommitCoordinator.
func NewCommitCoordinator(fs FileSystem, bulkload BulkLoad, archival Archival) *CommitCoordinator {
	return &CommitCoordinator{fs: fs, bulkload: bulkload, archival: archival}
}

// CommitMob atomically renames a temp MOB file into its family directory.
func (c *CommitCoordinator) CommitMob(tmpPath, committedPath string) error {
	return c.fs.Rename(tmpPath, committedPath)
}

// UncommitMob deletes a MOB file that was committed but must be rolled
// back because bulkload of its reference file never attached.
func (c *CommitCoordinator) UncommitMob(committedPath string) error {
	return c.fs.Delete(committedPath, false)
}

// Bulkload attaches the staged reference directory into the live table.
func (c *CommitCoordinator) Bulkload(ctx context.Context, stagingDir, table string) error {
	return c.bulkload.DoBulkLoad(ctx, stagingDir, table)
}

// ArchiveInputs moves superseded input files out of the family
// directory. Called only after a batch's reference file is attached.
func (c *CommitCoordinator) ArchiveInputs(ctx context.Context, table, family string, files []string) error {
	return c.archival.RemoveMobFiles(ctx, table, family, files)
}

// ClearStaging wipes the bulkload staging directory before the next
// batch, preventing stale reference files from being re-bulkloaded.
func (c *CommitCoordinator) ClearStaging(stagingDir string) error {
	return c.fs.Delete(stagingDir, true)
}
