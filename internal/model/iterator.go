package model

// CellIterator walks a sequence of cells one at a time. Next returns
// (zero, false, nil) once exhausted, mirroring the teacher's scanner
// advance/hasNext split collapsed into a single call.
type CellIterator interface {
	Next() (Cell, bool, error)
}

// FileStatus describes one filesystem entry as the FileSystem service
// reports it: a candidate's path, whether it's a regular file (as
// opposed to a directory or resolved link), and its length.
type FileStatus struct {
	Path   string
	IsFile bool
	Length int64
}

// ScanType selects tombstone handling for an ordered multi-file scan.
type ScanType int

const (
	// DropDeletes omits tombstoned cells and the tombstones themselves
	// from scan output — used when producing a new MOB file, since del
	// files are applied separately at read time.
	DropDeletes ScanType = iota
	// RetainDeletes keeps tombstones in scan output — used by the
	// del-file merger, which must preserve every version it merges.
	RetainDeletes
)
