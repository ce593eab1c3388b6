package validation

import (
	"regexp"
	"strings"

	"github.com/mobstore/compactor/internal/errors"
)

const (
	// delFilePrefix marks a candidate as a tombstone file rather than a
	// MOB file, mirroring StoreFileInfo.isDelFile's naming convention.
	delFilePrefix = "del"

	// MaxPathLength bounds a candidate's path length against pathological
	// input before it reaches the filesystem layer.
	MaxPathLength = 4096
)

// mobFileNamePattern matches "d<YYYYMMDD>_<startKeyHex>[_<suffix>]", the
// naming convention MobFile names and the Partition Identifier both rely
// on (spec.md §3/§4.1). The date and startKey are captured groups.
var mobFileNamePattern = regexp.MustCompile(`^d(\d{8})_([0-9a-fA-F]+)(?:_.*)?$`)

// Validator validates file candidates before they reach the Partition
// Identifier, adapted from the teacher's input Validator.
type Validator struct {
	maxPathLength int
}

// NewValidator creates a Validator with default limits.
func NewValidator() *Validator {
	return &Validator{maxPathLength: MaxPathLength}
}

// IsDelFile reports whether a base file name names a tombstone file: the
// "del" prefix followed by a digit, as in "del<date>_..." names.
func IsDelFile(name string) bool {
	if !strings.HasPrefix(name, delFilePrefix) || len(name) == len(delFilePrefix) {
		return false
	}
	c := name[len(delFilePrefix)]
	return c >= '0' && c <= '9'
}

// ParseMobFileName extracts the date and startKey encoded in a MOB file's
// base name. ok is false when the name is not recognized as a MOB file —
// callers treat this as "unparsable" (feeds skipCompaction) rather than a
// hard error, per spec.md §4.1.
func ParseMobFileName(name string) (date, startKey string, ok bool) {
	m := mobFileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// ValidatePath rejects pathological candidate paths (empty, over
// MaxPathLength, or containing a null byte); the Selector counts a
// rejected candidate as irrelevant.
func (v *Validator) ValidatePath(path string) error {
	if path == "" {
		return errors.InvalidArgument("candidate path cannot be empty", nil)
	}
	if len(path) > v.maxPathLength {
		return errors.InvalidArgument("candidate path exceeds maximum length", nil)
	}
	if strings.Contains(path, "\x00") {
		return errors.InvalidArgument("candidate path cannot contain null bytes", nil)
	}
	return nil
}
