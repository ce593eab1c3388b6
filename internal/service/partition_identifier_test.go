package service_test

import (
	"testing"
	"time"

	"github.com/mobstore/compactor/internal/model"
	"github.com/mobstore/compactor/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseDate(t *testing.T, s string) time.Time {
	tm, err := time.ParseInLocation("20060102", s, time.UTC)
	require.NoError(t, err)
	return tm
}

func TestPartitionIdentifier_Daily(t *testing.T) {
	id := &service.PartitionIdentifier{Policy: model.PolicyDaily, MergeableSize: 1000}
	now := mustParseDate(t, "20260115")

	bucket, threshold, skip := id.Identify("20260110", now)
	assert.False(t, skip)
	assert.Equal(t, "20260110", bucket)
	assert.Equal(t, int64(1000), threshold)
}

func TestPartitionIdentifier_Weekly(t *testing.T) {
	id := &service.PartitionIdentifier{Policy: model.PolicyWeekly, MergeableSize: 1000}
	now := mustParseDate(t, "20260115") // Thursday, 2026-01-15

	// Same ISO week as now (Mon 2026-01-12 .. Sun 2026-01-18).
	bucket, threshold, skip := id.Identify("20260113", now)
	assert.False(t, skip)
	assert.Equal(t, "20260113", bucket)
	assert.Equal(t, int64(1000), threshold)

	// A week earlier: buckets to that week's Monday, doubled threshold.
	bucket, threshold, skip = id.Identify("20260105", now) // Monday, prior week
	assert.False(t, skip)
	assert.Equal(t, "20260105", bucket)
	assert.Equal(t, int64(2000), threshold)
}

func TestPartitionIdentifier_Monthly(t *testing.T) {
	id := &service.PartitionIdentifier{Policy: model.PolicyMonthly, MergeableSize: 1000}
	now := mustParseDate(t, "20260128") // Wednesday, 2026-01-28

	// Same ISO week.
	_, threshold, skip := id.Identify("20260127", now)
	assert.False(t, skip)
	assert.Equal(t, int64(1000), threshold)

	// Same month, different week.
	bucket, threshold, skip := id.Identify("20260105", now)
	assert.False(t, skip)
	assert.Equal(t, "20260105", bucket) // Monday of that week
	assert.Equal(t, int64(2000), threshold)

	// Different month entirely.
	bucket, threshold, skip = id.Identify("20251215", now)
	assert.False(t, skip)
	assert.Equal(t, "20251201", bucket) // first of that month
	assert.Equal(t, int64(3000), threshold)
}

func TestPartitionIdentifier_UnparsableDateSkips(t *testing.T) {
	id := &service.PartitionIdentifier{Policy: model.PolicyDaily, MergeableSize: 1000}
	_, _, skip := id.Identify("not-a-date", time.Now())
	assert.True(t, skip)
}

func TestEligible(t *testing.T) {
	assert.True(t, service.Eligible(500, 1000, false))
	assert.False(t, service.Eligible(1500, 1000, false))
	assert.True(t, service.Eligible(1500, 1000, true))
}
