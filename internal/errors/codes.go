package errors

import "fmt"

// ErrorCode represents internal error codes for compaction operations.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = 0

	// Client/input errors
	ErrCodeInvalidArgument   ErrorCode = 1000
	ErrCodeNotFound          ErrorCode = 1001
	ErrCodeFileTooLarge      ErrorCode = 1002
	ErrCodeInvalidFileName   ErrorCode = 1003
	ErrCodeChecksumFailed    ErrorCode = 1006

	// Server/pipeline errors
	ErrCodeInternal           ErrorCode = 2000
	ErrCodeUnavailable        ErrorCode = 2001
	ErrCodeDiskFull           ErrorCode = 2002
	ErrCodeDiskThrottled      ErrorCode = 2003
	ErrCodeDelMergeFailed     ErrorCode = 2004
	ErrCodePartitionFailed    ErrorCode = 2005
	ErrCodeBulkloadFailed     ErrorCode = 2006
	ErrCodeCorruptedData      ErrorCode = 2007
	ErrCodeResourceExhausted  ErrorCode = 2008
	ErrCodePartialFailure     ErrorCode = 2009
	ErrCodeInvariantViolation ErrorCode = 2010
)

// CompactionError is a structured error with code and context, carried
// through the pipeline instead of bare errors so callers can branch on
// Code without string matching.
type CompactionError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *CompactionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CompactionError) Unwrap() error {
	return e.Cause
}

func NewCompactionError(code ErrorCode, message string, cause error) *CompactionError {
	return &CompactionError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Cause:   cause,
	}
}

func (e *CompactionError) WithDetail(key string, value interface{}) *CompactionError {
	e.Details[key] = value
	return e
}

// Convenience constructors for common errors

func InvalidArgument(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeInvalidArgument, message, cause)
}

func NotFound(path string) *CompactionError {
	return NewCompactionError(ErrCodeNotFound, fmt.Sprintf("not found: %s", path), nil).
		WithDetail("path", path)
}

func InvalidFileName(name, reason string) *CompactionError {
	return NewCompactionError(ErrCodeInvalidFileName, fmt.Sprintf("invalid file name '%s': %s", name, reason), nil).
		WithDetail("name", name).
		WithDetail("reason", reason)
}

func ChecksumFailed(expected, actual uint32) *CompactionError {
	return NewCompactionError(ErrCodeChecksumFailed, fmt.Sprintf("checksum validation failed: expected %d, got %d", expected, actual), nil).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

func InternalError(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeInternal, message, cause)
}

func Unavailable(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeUnavailable, message, cause)
}

func DiskFull(usagePercent float64, availableBytes uint64) *CompactionError {
	return NewCompactionError(ErrCodeDiskFull, fmt.Sprintf("disk full: %.2f%% used, %d bytes available", usagePercent, availableBytes), nil).
		WithDetail("usage_percent", usagePercent).
		WithDetail("available_bytes", availableBytes)
}

func DiskThrottled(usagePercent float64) *CompactionError {
	return NewCompactionError(ErrCodeDiskThrottled, fmt.Sprintf("disk write throttled: %.2f%% used", usagePercent), nil).
		WithDetail("usage_percent", usagePercent)
}

func DelMergeFailed(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeDelMergeFailed, message, cause)
}

func PartitionFailed(key string, cause error) *CompactionError {
	return NewCompactionError(ErrCodePartitionFailed, fmt.Sprintf("partition %s failed", key), cause).
		WithDetail("partition", key)
}

func BulkloadFailed(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeBulkloadFailed, message, cause)
}

func CorruptedData(message string, cause error) *CompactionError {
	return NewCompactionError(ErrCodeCorruptedData, message, cause)
}

func ResourceExhausted(resource string, current, limit int) *CompactionError {
	return NewCompactionError(ErrCodeResourceExhausted, fmt.Sprintf("%s exhausted: %d/%d", resource, current, limit), nil).
		WithDetail("resource", resource).
		WithDetail("current", current).
		WithDetail("limit", limit)
}

// PartialFailure wraps the set of partition failures that did not stop
// the rest of the request from committing, mirroring how the original
// surfaces per-partition IOExceptions without aborting the whole compaction.
func PartialFailure(failedPartitions []string, cause error) *CompactionError {
	return NewCompactionError(ErrCodePartialFailure, fmt.Sprintf("%d partition(s) failed to compact", len(failedPartitions)), cause).
		WithDetail("failed_partitions", failedPartitions)
}

func InvariantViolation(message string) *CompactionError {
	return NewCompactionError(ErrCodeInvariantViolation, message, nil)
}

// IsCompactionError checks if an error is a CompactionError.
func IsCompactionError(err error) bool {
	_, ok := err.(*CompactionError)
	return ok
}

// GetCode extracts the error code from an error.
func GetCode(err error) ErrorCode {
	if ce, ok := err.(*CompactionError); ok {
		return ce.Code
	}
	return ErrCodeInternal
}
