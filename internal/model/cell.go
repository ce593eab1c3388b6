package model

// Cell is a single row-column-version record as it appears inside a MOB
// or reference file payload.
type Cell struct {
	Row       []byte
	Family    []byte
	Qualifier []byte
	Timestamp int64
	SeqId     uint64
	Value     []byte
	Tombstone bool
	Tags      []Tag
}

// Tag is an out-of-band annotation carried alongside a cell's value, the
// same mechanism HBase uses to stash the originating table name on a
// reference-file cell so a compacted MOB file can serve more than one
// table's references.
type Tag struct {
	Type  byte
	Value []byte
}

// MobTableNameTag marks a Tag carrying the originating table name of a
// cell written into a shared MOB file, mirroring TagType.MOB_TABLE_NAME_TAG_TYPE.
const MobTableNameTag byte = 0x01

// TableName extracts the MobTableNameTag value from a cell's tags, or
// nil if the cell carries none.
func (c *Cell) TableName() []byte {
	for _, t := range c.Tags {
		if t.Type == MobTableNameTag {
			return t.Value
		}
	}
	return nil
}
