package base

import "time"

// Metadata is the small bag of stat-like fields every node header carries
// outside of its type-specific fields. Grounded on rs-wnfs's Metadata
// (directory.rs/node.rs: Metadata::new, upsert_mtime).
type Metadata struct {
	Ctime int64
	Mtime int64
	Mode  uint32
	Kind  NodeType
}

// NewMetadata stamps ctime == mtime == time, as every freshly created
// node does.
func NewMetadata(time time.Time, kind NodeType) Metadata {
	ts := time.UTC().Unix()
	return Metadata{
		Ctime: ts,
		Mtime: ts,
		Mode:  ModeDefault,
		Kind:  kind,
	}
}

// UpsertMtime bumps mtime in place; used by PrivateNode.upsert_mtime and
// by every mutating directory/file operation.
func (m *Metadata) UpsertMtime(time time.Time) {
	m.Mtime = time.UTC().Unix()
}

// Timestamp returns the current time in the truncated-to-seconds form
// every header stores it in. Centralized so tests can't drift on
// precision between callers.
func Timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
