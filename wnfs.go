// Package wnfs combines the public and private trees behind one
// capability-free top-level handle, routed by a single leading path
// segment ("public/..." or "private/..."). Grounded on the call shape
// cmd/cmd.go already assumes of package wnfs (wnfs.WNFS, wnfs.NewEmptyFS,
// wnfs.FromCID, wnfs.MutationOptions) and, for the private root's
// rediscovery across reloads, on mdstore.Store's PutRatchet/
// OldestKnownRatchet side-index plus private.SearchLatest.
package wnfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
	"github.com/wnfs-go/wnfs/mdstore"
	"github.com/wnfs-go/wnfs/private"
	"github.com/wnfs-go/wnfs/public"
)

// MutationOptions controls whether a mutating call's new root gets
// persisted (forest flushed, root block rewritten) immediately or left
// pending for a later, explicit commit.
type MutationOptions struct {
	Commit bool
}

// WNFS is the unified filesystem handle. Every method addresses a path
// whose first segment picks the tree ("public" or "private") and whose
// remainder is a path within it.
type WNFS interface {
	Mkdir(path string, opts MutationOptions) error
	Write(path string, r io.Reader, opts MutationOptions) error
	Cat(path string) ([]byte, error)
	Ls(path string) ([]fs.DirEntry, error)
	Rm(path string, opts MutationOptions) error
	Mv(from, to string, opts MutationOptions) error
	// History lists prior versions of the node at path, most recent
	// first. Public-tree history walks the `previous` CID chain;
	// private-tree history walks the ratchet chain back to the
	// oldest position the store has recorded.
	History(path string, maxRevs int) ([]base.HistoryEntry, error)
	Cid() cid.Cid
}

// rootINumber is the private root directory's fixed identity: unlike
// every other private node, the root's INumber can't be random, since
// FromCID must rediscover the same forest entry on every reload with
// no plaintext pointer to start from (bootstrapped instead via the
// store's ratchet side-index, see loadPrivateRoot).
var rootINumber = private.INumber{}

func rootBareName() private.BareNamefilter {
	return private.IdentityBareNamefilter().Add(rootINumber[:])
}

func newPrivateRootDirectory() *private.Directory {
	dir := private.NewDirectory(private.IdentityBareNamefilter())
	h := dir.Header()
	h.INumber = rootINumber
	h.BareName = rootBareName()
	return dir
}

// headerOnly satisfies private.Node for a header with no loaded body
// yet, just enough for SearchLatest to walk forward from.
type headerOnly struct{ h *private.Header }

func (n headerOnly) Header() *private.Header { return n.h }

// loadPrivateRoot rediscovers the private root directory's current
// version: the store remembers only the oldest ratchet position ever
// recorded for rootINumber, so the current version is found by
// searching forest membership forward from there.
func loadPrivateRoot(ctx context.Context, forest *private.Forest, store mdstore.Store) (*private.Directory, error) {
	oldest, err := store.OldestKnownRatchet(ctx, rootINumber.Encode())
	if err != nil {
		return nil, fmt.Errorf("locating private root: %w", err)
	}
	header := &private.Header{INumber: rootINumber, BareName: rootBareName(), Ratchet: oldest}
	latest, err := private.SearchLatest(ctx, headerOnly{h: header}, forest, store)
	if err != nil {
		return nil, fmt.Errorf("resolving private root: %w", err)
	}
	dir, ok := latest.(*private.Directory)
	if !ok {
		return nil, fmt.Errorf("wnfs: private root is not a directory (got %T)", latest)
	}
	return dir, nil
}

type rootCBOR struct {
	Public []byte
	Forest []byte
}

// fileSystem is the concrete WNFS. It holds its own context rather
// than taking one per call, matching the call shape cmd/cmd.go already
// assumes (fs.Mkdir(path, opts) with no context argument).
type fileSystem struct {
	ctx context.Context

	store mdstore.Store

	public  *public.Directory
	private *private.Directory
	forest  *private.Forest

	rootCID cid.Cid
}

// NewEmptyFS creates a brand new, empty filesystem over store.
func NewEmptyFS(ctx context.Context, store mdstore.Store) (WNFS, error) {
	fsys := &fileSystem{
		ctx:     ctx,
		store:   store,
		public:  public.NewDirectory(base.Timestamp().Unix()),
		private: newPrivateRootDirectory(),
		forest:  private.NewEmptyForest(store),
	}
	if err := fsys.persist(); err != nil {
		return nil, err
	}
	return fsys, nil
}

// FromCID reopens a filesystem previously persisted at id.
func FromCID(ctx context.Context, store mdstore.Store, id cid.Cid) (WNFS, error) {
	data, err := store.GetBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading wnfs root %s: %w", id, err)
	}
	var rc rootCBOR
	if err := base.DecodeCBOR(data, &rc); err != nil {
		return nil, fmt.Errorf("decoding wnfs root %s: %w", id, err)
	}

	publicCID, err := cid.Cast(rc.Public)
	if err != nil {
		return nil, fmt.Errorf("decoding wnfs root %s: %w", id, err)
	}
	pub, err := public.LoadDirectory(ctx, store, publicCID)
	if err != nil {
		return nil, fmt.Errorf("loading public root: %w", err)
	}

	forestCID, err := cid.Cast(rc.Forest)
	if err != nil {
		return nil, fmt.Errorf("decoding wnfs root %s: %w", id, err)
	}
	forest, err := private.LoadForest(ctx, store, forestCID)
	if err != nil {
		return nil, fmt.Errorf("loading forest: %w", err)
	}

	priv, err := loadPrivateRoot(ctx, forest, store)
	if err != nil {
		return nil, err
	}

	return &fileSystem{ctx: ctx, store: store, public: pub, private: priv, forest: forest, rootCID: id}, nil
}

// Cid returns the CID of the last-persisted root block.
func (fsys *fileSystem) Cid() cid.Cid { return fsys.rootCID }

// persist flushes the private root and forest, the public root, and
// rewrites the combined root block. Also records the root's current
// ratchet position; the oldest-known position that loadPrivateRoot
// reads back is only set by the first call (per
// mdstore.Store.PutRatchet).
func (fsys *fileSystem) persist() error {
	ctx := fsys.ctx

	nextForest, _, err := fsys.private.Put(ctx, fsys.forest, fsys.store)
	if err != nil {
		return fmt.Errorf("persisting private root: %w", err)
	}
	fsys.forest = nextForest

	if err := fsys.store.PutRatchet(ctx, rootINumber.Encode(), fsys.private.Header().Ratchet); err != nil {
		return fmt.Errorf("recording root ratchet: %w", err)
	}

	forestCID, err := fsys.forest.Flush(ctx)
	if err != nil {
		return fmt.Errorf("flushing forest: %w", err)
	}

	publicCID, err := fsys.public.Put(ctx, fsys.store)
	if err != nil {
		return fmt.Errorf("persisting public root: %w", err)
	}

	buf, err := base.EncodeCBOR(rootCBOR{Public: publicCID.Bytes(), Forest: forestCID.Bytes()})
	if err != nil {
		return fmt.Errorf("encoding wnfs root: %w", err)
	}
	rootCID, err := fsys.store.PutBlock(ctx, buf.Bytes())
	if err != nil {
		return fmt.Errorf("storing wnfs root: %w", err)
	}
	fsys.rootCID = rootCID

	return fsys.store.Flush(ctx)
}

// maybePersist calls persist if opts asks for it.
func (fsys *fileSystem) maybePersist(opts MutationOptions) error {
	if !opts.Commit {
		return nil
	}
	return fsys.persist()
}

// treeRoute splits a root-relative path into which tree it addresses
// and the remaining path within that tree.
func treeRoute(path string) (private bool, rest base.Path, err error) {
	p, err := base.NewPath(path)
	if err != nil {
		return false, nil, err
	}
	if len(p) == 0 {
		return false, nil, base.ErrInvalidPath
	}
	head, tail := p.Shift()
	switch head {
	case "public":
		return false, tail, nil
	case "private":
		return true, tail, nil
	default:
		return false, nil, fmt.Errorf("%s: %w", head, base.ErrInvalidPath)
	}
}

func (fsys *fileSystem) Mkdir(path string, opts MutationOptions) error {
	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return err
	}
	if isPrivate {
		newRoot, newForest, err := private.Mkdir(fsys.ctx, fsys.private, rest, fsys.forest, fsys.store)
		if err != nil {
			return err
		}
		fsys.private, fsys.forest = newRoot, newForest
	} else {
		newRoot, err := public.Mkdir(fsys.ctx, fsys.public, rest, base.Timestamp().Unix(), fsys.store)
		if err != nil {
			return err
		}
		fsys.public = newRoot
	}
	return fsys.maybePersist(opts)
}

func (fsys *fileSystem) Write(path string, r io.Reader, opts MutationOptions) error {
	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return err
	}
	if isPrivate {
		newRoot, newForest, err := private.Write(fsys.ctx, fsys.private, rest, r, fsys.forest, fsys.store)
		if err != nil {
			return err
		}
		fsys.private, fsys.forest = newRoot, newForest
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading write input: %w", err)
		}
		contentCID, err := fsys.store.PutBlock(fsys.ctx, data)
		if err != nil {
			return fmt.Errorf("storing file content: %w", err)
		}
		newRoot, err := public.Write(fsys.ctx, fsys.public, rest, contentCID, base.Timestamp().Unix(), fsys.store)
		if err != nil {
			return err
		}
		fsys.public = newRoot
	}
	return fsys.maybePersist(opts)
}

func (fsys *fileSystem) Cat(path string) ([]byte, error) {
	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return nil, err
	}
	if isPrivate {
		rc, err := private.Read(fsys.ctx, fsys.private, rest, fsys.forest, fsys.store)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	contentCID, err := public.Read(fsys.ctx, fsys.public, rest, fsys.store)
	if err != nil {
		return nil, err
	}
	return fsys.store.GetBlock(fsys.ctx, contentCID)
}

func (fsys *fileSystem) Ls(path string) ([]fs.DirEntry, error) {
	if path == "" {
		return []fs.DirEntry{
			base.NewFSDirEntry("public", false),
			base.NewFSDirEntry("private", false),
		}, nil
	}

	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return nil, err
	}
	if isPrivate {
		links, err := private.Ls(fsys.ctx, fsys.private, rest, fsys.forest, fsys.store)
		if err != nil {
			return nil, err
		}
		out := make([]fs.DirEntry, 0, len(links))
		for _, l := range links {
			env, found, err := fsys.forest.Get(fsys.ctx, fsys.store, l.PrivateRef)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, fmt.Errorf("%s: %w", l.Name, base.ErrNotFound)
			}
			out = append(out, base.NewFSDirEntry(l.Name, env.Info.Type == base.NTFile || env.Info.Type == base.NTDataFile))
		}
		return out, nil
	}

	links, err := public.Ls(fsys.ctx, fsys.public, rest, fsys.store)
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, 0, len(links))
	for _, l := range links {
		out = append(out, base.NewFSDirEntry(l.Name, l.Kind == public.KindFile))
	}
	return out, nil
}

func (fsys *fileSystem) Rm(path string, opts MutationOptions) error {
	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return err
	}
	if isPrivate {
		newRoot, newForest, _, err := private.Rm(fsys.ctx, fsys.private, rest, fsys.forest, fsys.store)
		if err != nil {
			return err
		}
		fsys.private, fsys.forest = newRoot, newForest
	} else {
		newRoot, _, err := public.Rm(fsys.ctx, fsys.public, rest, base.Timestamp().Unix(), fsys.store)
		if err != nil {
			return err
		}
		fsys.public = newRoot
	}
	return fsys.maybePersist(opts)
}

func (fsys *fileSystem) Mv(from, to string, opts MutationOptions) error {
	fromPrivate, fromRest, err := treeRoute(from)
	if err != nil {
		return err
	}
	toPrivate, toRest, err := treeRoute(to)
	if err != nil {
		return err
	}
	if fromPrivate != toPrivate {
		return fmt.Errorf("mv: cannot move between public and private trees: %w", base.ErrInvalidPath)
	}

	if fromPrivate {
		newRoot, newForest, err := private.Mv(fsys.ctx, fsys.private, fromRest, toRest, fsys.forest, fsys.store)
		if err != nil {
			return err
		}
		fsys.private, fsys.forest = newRoot, newForest
	} else {
		newRoot, err := public.Mv(fsys.ctx, fsys.public, fromRest, toRest, base.Timestamp().Unix(), fsys.store)
		if err != nil {
			return err
		}
		fsys.public = newRoot
	}
	return fsys.maybePersist(opts)
}

func (fsys *fileSystem) History(path string, maxRevs int) ([]base.HistoryEntry, error) {
	isPrivate, rest, err := treeRoute(path)
	if err != nil {
		return nil, err
	}
	if isPrivate {
		node, err := private.Resolve(fsys.ctx, fsys.private, rest, fsys.forest, fsys.store)
		if err != nil {
			return nil, err
		}
		return private.History(fsys.ctx, node, fsys.forest, fsys.store, maxRevs)
	}

	node, err := public.Resolve(fsys.ctx, fsys.public, rest, fsys.store)
	if err != nil {
		return nil, err
	}
	return publicHistory(fsys.ctx, node, fsys.store, maxRevs)
}

// publicHistory walks a public node's `previous` chain, loading each
// ancestor in turn to recover its own metadata. Grounded on public.go's
// History (teacher's *Directory-only walk), generalized to *File since
// wnfs.WNFS.History addresses either node kind through one path.
func publicHistory(ctx context.Context, node interface{}, store mdstore.Store, maxRevs int) ([]base.HistoryEntry, error) {
	var cur cid.Cid
	switch v := node.(type) {
	case *public.Directory:
		cur = v.Previous
	case *public.File:
		cur = v.Previous
	default:
		return nil, fmt.Errorf("wnfs: unexpected public node type %T", node)
	}

	out := []base.HistoryEntry{}
	for cur != cid.Undef {
		if maxRevs > 0 && len(out) >= maxRevs {
			break
		}
		switch node.(type) {
		case *public.Directory:
			d, err := public.LoadDirectory(ctx, store, cur)
			if err != nil {
				return nil, err
			}
			out = append(out, base.HistoryEntry{Cid: cur, Previous: d.Previous, Mtime: d.Metadata.Mtime, Type: base.NTPublicDir})
			node, cur = d, d.Previous
		case *public.File:
			f, err := public.LoadFile(ctx, store, cur)
			if err != nil {
				return nil, err
			}
			out = append(out, base.HistoryEntry{Cid: cur, Previous: f.Previous, Mtime: f.Metadata.Mtime, Type: base.NTFile})
			node, cur = f, f.Previous
		}
	}
	return out, nil
}
