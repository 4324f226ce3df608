// Package public implements the auxiliary, content-visible tree: plain
// directories and files chained by a `previous` CID (§4.9), mergeable
// with a simple set-union-plus-CID-tie-break rule. Grounded line for
// line on rs-wnfs's crates/fs/public/directory.rs.
package public

import (
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
)

// NodeKind discriminates a Link's target without requiring it be
// resolved first.
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDir
)

// Link is a directory entry: an unresolved pointer to a child's CID
// plus the minimum needed to tell files from directories without a
// store round trip. Grounded on rs-wnfs's PublicLink (directory.rs).
type Link struct {
	Name string
	Cid  cid.Cid
	Kind NodeKind
	Size int64
}

func (l Link) isFile() bool { return l.Kind == KindFile }

// resolveFile loads l as a File, erroring if it names a directory.
func (l Link) resolveFile(ctx context.Context, store Store) (*File, error) {
	if l.Kind != KindFile {
		return nil, fmt.Errorf("%s: %w", l.Name, base.ErrNotAFile)
	}
	return LoadFile(ctx, store, l.Cid)
}

// resolveDir loads l as a Directory, erroring if it names a file.
func (l Link) resolveDir(ctx context.Context, store Store) (*Directory, error) {
	if l.Kind != KindDir {
		return nil, fmt.Errorf("%s: %w", l.Name, base.ErrNotADirectory)
	}
	return LoadDirectory(ctx, store, l.Cid)
}
