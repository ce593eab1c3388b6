package service

import (
	"time"

	"github.com/mobstore/compactor/internal/model"
)

const dateLayout = "20060102"

// PartitionIdentifier computes a MOB file's partition bucket and size
// threshold under the active policy, grounded on the original
// PartitionedMobFileCompactor's per-file classification step folded
// into the teacher's CompactionConfig-driven threshold lookups.
type PartitionIdentifier struct {
	Policy        model.Policy
	MergeableSize int64
}

// Identify returns the date bucket and eligibility threshold for a file
// dated fileDate, as of currentDate, or skip=true if fileDate can't be
// parsed or the policy can't classify it.
func (p *PartitionIdentifier) Identify(fileDate string, currentDate time.Time) (bucket string, threshold int64, skip bool) {
	d, err := time.ParseInLocation(dateLayout, fileDate, time.UTC)
	if err != nil {
		return "", 0, true
	}

	switch p.Policy {
	case model.PolicyDaily:
		return fileDate, p.MergeableSize, false

	case model.PolicyWeekly:
		if sameISOWeek(d, currentDate) {
			return fileDate, p.MergeableSize, false
		}
		return weekStart(d).Format(dateLayout), 2 * p.MergeableSize, false

	case model.PolicyMonthly:
		if sameISOWeek(d, currentDate) {
			return fileDate, p.MergeableSize, false
		}
		if sameMonth(d, currentDate) {
			return weekStart(d).Format(dateLayout), 2 * p.MergeableSize, false
		}
		return monthStart(d).Format(dateLayout), 3 * p.MergeableSize, false
	}

	return "", 0, true
}

// Eligible reports whether a file of the given length is eligible for
// compaction under threshold, or is forced in regardless.
func Eligible(length, threshold int64, isForceAllFiles bool) bool {
	return isForceAllFiles || length < threshold
}

func sameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// weekStart returns the Monday that starts t's ISO week, matching
// time.Time.ISOWeek's Monday-start convention.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
