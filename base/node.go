package base

import (
	"io/fs"

	cid "github.com/ipfs/go-cid"
)

// NodeType discriminates the tagged union every node CBOR envelope
// carries in its "type" field (§4.3).
type NodeType string

const (
	NTFile      NodeType = "wnfs/private/file"
	NTDir       NodeType = "wnfs/private/dir"
	NTDataFile  NodeType = "wnfs/private/datafile"
	NTPublicDir NodeType = "wnfs/public/dir"
)

// ModeDefault is the Unix-style mode bits stamped on freshly created
// nodes; this FS does not model permissions beyond capability possession.
const ModeDefault uint32 = 0644

// Node is the minimal shape both the public and private trees satisfy:
// enough to stat and to fetch a content address for.
type Node interface {
	fs.File
	Cid() cid.Cid
}

// Tree is a Node that also supports directory-shaped operations.
type Tree interface {
	Node
	fs.ReadDirFile
}

// FileInfo augments fs.FileInfo with the type tag every WNFS node header
// carries, used by Stat() callers that need to discriminate file kinds
// without a type assertion.
type FileInfo interface {
	fs.FileInfo
	Type() NodeType
}

// Link is a directory entry pointing at a child's content address,
// common to both trees (the private tree additionally carries a key and
// a private-name pointer, see private.PrivateLink).
type Link struct {
	Name   string
	Cid    cid.Cid
	Size   int64
	IsFile bool
	Mtime  int64
}

// NewFSDirEntry adapts a Link-shaped name/kind pair to fs.DirEntry for
// ReadDir implementations.
func NewFSDirEntry(name string, isFile bool) fs.DirEntry {
	return fsDirEntry{name: name, isFile: isFile}
}

type fsDirEntry struct {
	name   string
	isFile bool
}

func (e fsDirEntry) Name() string { return e.name }
func (e fsDirEntry) IsDir() bool  { return !e.isFile }
func (e fsDirEntry) Type() fs.FileMode {
	if e.isFile {
		return 0
	}
	return fs.ModeDir
}
func (e fsDirEntry) Info() (fs.FileInfo, error) { return nil, fs.ErrInvalid }

// PutResult is what every node's Put returns: enough to build the
// parent's link entry and, for the caller, to know what got written.
type PutResult struct {
	Cid      cid.Cid
	Userland cid.Cid
	Size     int64
	Type     NodeType
}

// ToLink builds a base Link from a PutResult, used by both trees when
// a parent records a freshly-written child.
func (r PutResult) ToLink(name string) Link {
	return Link{
		Name:   name,
		Cid:    r.Cid,
		Size:   r.Size,
		IsFile: r.Type != NTDir && r.Type != NTPublicDir,
		Mtime:  Timestamp().Unix(),
	}
}

// HistoryEntry is one revision surfaced by Tree.History/File.History.
type HistoryEntry struct {
	Cid         cid.Cid
	Previous    cid.Cid
	Size        int64
	Mtime       int64
	Type        NodeType
	Key         string
	PrivateName string
}

// LinkedDataFile is satisfied by in-memory values that should be stored
// as structured (CBOR/JSON) content instead of an opaque byte stream —
// the source shape a DataFile node is built from.
type LinkedDataFile interface {
	Data() (interface{}, error)
}
