package model

// Policy is the column family's MOB compact-partition policy. It decides
// how a file's date buckets into a partition and how large the
// mergeable-size threshold grows for files outside the current period.
type Policy string

const (
	PolicyDaily   Policy = "DAILY"
	PolicyWeekly  Policy = "WEEKLY"
	PolicyMonthly Policy = "MONTHLY"
)

// Compression names the codec a MOB/reference file's payload is stored
// under. It stands in for the column family's "compaction compression type."
type Compression string

const (
	CompressionNone   Compression = "NONE"
	CompressionSnappy Compression = "SNAPPY"
)
