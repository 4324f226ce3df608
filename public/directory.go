package public

import (
	"context"
	"fmt"
	"sort"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
)

// Directory is a public tree node: every write rewrites the nodes on
// the path to the root and returns a brand new Directory, structurally
// sharing everything else (persistent, copy-on-write). Grounded on
// rs-wnfs's PublicDirectory (public/directory.rs).
type Directory struct {
	Metadata base.Metadata
	Userland map[string]Link
	Previous cid.Cid
}

// NewDirectory constructs an empty directory stamped at ts.
func NewDirectory(ts int64) *Directory {
	return &Directory{
		Metadata: base.Metadata{Ctime: ts, Mtime: ts, Mode: base.ModeDefault, Kind: base.NTPublicDir},
		Userland: map[string]Link{},
	}
}

func (d *Directory) clone() *Directory {
	c := &Directory{Metadata: d.Metadata, Previous: d.Previous, Userland: make(map[string]Link, len(d.Userland))}
	for k, v := range d.Userland {
		c.Userland[k] = v
	}
	return c
}

// Mkdir ensures path exists below d, creating intermediate
// directories as needed, and returns the new root. Grounded on
// get_or_create_path_nodes + fix_up_path_nodes.
func Mkdir(ctx context.Context, d *Directory, path base.Path, ts int64, store Store) (*Directory, error) {
	if len(path) == 0 {
		return d, nil
	}
	head, tail := path.Shift()
	out := d.clone()
	child, err := out.childDirOrNew(ctx, head, ts, store)
	if err != nil {
		return nil, err
	}
	newChild, err := Mkdir(ctx, child, tail, ts, store)
	if err != nil {
		return nil, err
	}
	if err := out.setChildDir(ctx, head, newChild, ts, store); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Directory) childDirOrNew(ctx context.Context, name string, ts int64, store Store) (*Directory, error) {
	link, ok := d.Userland[name]
	if !ok {
		return NewDirectory(ts), nil
	}
	if link.Kind != KindDir {
		return nil, fmt.Errorf("%s: %w", name, base.ErrNotADirectory)
	}
	return LoadDirectory(ctx, store, link.Cid)
}

func (d *Directory) setChildDir(ctx context.Context, name string, child *Directory, ts int64, store Store) error {
	childCID, err := child.Put(ctx, store)
	if err != nil {
		return err
	}
	d.Userland[name] = Link{Name: name, Cid: childCID, Kind: KindDir}
	d.Metadata.Mtime = ts
	return nil
}

// Write stores contentCID at path, creating any missing parent
// directories. Grounded on PublicDirectory::write.
func Write(ctx context.Context, d *Directory, path base.Path, contentCID cid.Cid, ts int64, store Store) (*Directory, error) {
	if len(path) == 0 {
		return nil, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	out := d.clone()

	if len(tail) == 0 {
		var previous cid.Cid
		if link, ok := out.Userland[head]; ok {
			if link.Kind != KindFile {
				return nil, fmt.Errorf("%s: %w", head, base.ErrNotAFile)
			}
			previous = link.Cid
		}
		file := &File{
			Metadata: base.Metadata{Ctime: ts, Mtime: ts, Mode: base.ModeDefault, Kind: base.NTFile},
			Userland: contentCID,
			Previous: previous,
		}
		fileCID, err := file.Put(ctx, store)
		if err != nil {
			return nil, err
		}
		out.Userland[head] = Link{Name: head, Cid: fileCID, Kind: KindFile}
		out.Metadata.Mtime = ts
		return out, nil
	}

	child, err := out.childDirOrNew(ctx, head, ts, store)
	if err != nil {
		return nil, err
	}
	newChild, err := Write(ctx, child, tail, contentCID, ts, store)
	if err != nil {
		return nil, err
	}
	if err := out.setChildDir(ctx, head, newChild, ts, store); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve walks path from d and returns whichever link sits there,
// resolved to its File or Directory value, for callers like History
// that need the node itself rather than one specific shape of it.
func Resolve(ctx context.Context, d *Directory, path base.Path, store Store) (interface{}, error) {
	if len(path) == 0 {
		return d, nil
	}
	head, tail := path.Shift()
	link, ok := d.Userland[head]
	if !ok {
		return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	if len(tail) == 0 {
		if link.Kind == KindDir {
			return link.resolveDir(ctx, store)
		}
		return link.resolveFile(ctx, store)
	}
	child, err := link.resolveDir(ctx, store)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, child, tail, store)
}

// Read resolves path to a file's content CID.
func Read(ctx context.Context, d *Directory, path base.Path, store Store) (cid.Cid, error) {
	if len(path) == 0 {
		return cid.Undef, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	link, ok := d.Userland[head]
	if !ok {
		return cid.Undef, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	if len(tail) == 0 {
		if link.Kind != KindFile {
			return cid.Undef, fmt.Errorf("%s: %w", head, base.ErrNotAFile)
		}
		return link.Cid, nil
	}
	child, err := link.resolveDir(ctx, store)
	if err != nil {
		return cid.Undef, err
	}
	return Read(ctx, child, tail, store)
}

// Ls lists the direct children at path (path may be empty to list d
// itself).
func Ls(ctx context.Context, d *Directory, path base.Path, store Store) ([]Link, error) {
	dir := d
	if len(path) > 0 {
		head, tail := path.Shift()
		link, ok := d.Userland[head]
		if !ok {
			return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
		}
		child, err := link.resolveDir(ctx, store)
		if err != nil {
			return nil, err
		}
		return Ls(ctx, child, tail, store)
	}
	out := make([]Link, 0, len(dir.Userland))
	for _, l := range dir.Userland {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Rm removes path, returning the new root and the removed link.
func Rm(ctx context.Context, d *Directory, path base.Path, ts int64, store Store) (*Directory, Link, error) {
	if len(path) == 0 {
		return nil, Link{}, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	out := d.clone()

	if len(tail) == 0 {
		link, ok := out.Userland[head]
		if !ok {
			return nil, Link{}, fmt.Errorf("%s: %w", head, base.ErrNotFound)
		}
		delete(out.Userland, head)
		out.Metadata.Mtime = ts
		return out, link, nil
	}

	link, ok := out.Userland[head]
	if !ok {
		return nil, Link{}, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	child, err := link.resolveDir(ctx, store)
	if err != nil {
		return nil, Link{}, err
	}
	newChild, removed, err := Rm(ctx, child, tail, ts, store)
	if err != nil {
		return nil, Link{}, err
	}
	if err := out.setChildDir(ctx, head, newChild, ts, store); err != nil {
		return nil, Link{}, err
	}
	return out, removed, nil
}

// Mv moves the node at from to to, erroring if to already exists.
// Grounded on PublicDirectory::basic_mv.
func Mv(ctx context.Context, d *Directory, from, to base.Path, ts int64, store Store) (*Directory, error) {
	if len(to) == 0 {
		return nil, base.ErrInvalidPath
	}
	root, removed, err := Rm(ctx, d, from, ts, store)
	if err != nil {
		return nil, err
	}

	destHead, destTail := to.Shift()
	out := root.clone()
	if len(destTail) == 0 {
		if _, exists := out.Userland[destHead]; exists {
			return nil, fmt.Errorf("%s: %w", destHead, base.ErrFileAlreadyExists)
		}
		moved := removed
		moved.Name = destHead
		out.Userland[destHead] = moved
		out.Metadata.Mtime = ts
		return out, nil
	}

	child, err := out.childDirOrNew(ctx, destHead, ts, store)
	if err != nil {
		return nil, err
	}
	newChild, err := placeAt(ctx, child, destTail, removed, ts, store)
	if err != nil {
		return nil, err
	}
	if err := out.setChildDir(ctx, destHead, newChild, ts, store); err != nil {
		return nil, err
	}
	return out, nil
}

func placeAt(ctx context.Context, d *Directory, path base.Path, l Link, ts int64, store Store) (*Directory, error) {
	head, tail := path.Shift()
	out := d.clone()
	if len(tail) == 0 {
		if _, exists := out.Userland[head]; exists {
			return nil, fmt.Errorf("%s: %w", head, base.ErrFileAlreadyExists)
		}
		l.Name = head
		out.Userland[head] = l
		out.Metadata.Mtime = ts
		return out, nil
	}
	child, err := out.childDirOrNew(ctx, head, ts, store)
	if err != nil {
		return nil, err
	}
	newChild, err := placeAt(ctx, child, tail, l, ts, store)
	if err != nil {
		return nil, err
	}
	if err := out.setChildDir(ctx, head, newChild, ts, store); err != nil {
		return nil, err
	}
	return out, nil
}

// --- serialization ---

type directoryCBOR struct {
	Ctime    int64
	Mtime    int64
	Mode     uint32
	Userland map[string]linkCBOR
	Previous []byte
}

type linkCBOR struct {
	Cid    []byte
	IsFile bool
	Size   int64
}

func (d *Directory) encode() ([]byte, error) {
	dc := directoryCBOR{
		Ctime:    d.Metadata.Ctime,
		Mtime:    d.Metadata.Mtime,
		Mode:     d.Metadata.Mode,
		Userland: make(map[string]linkCBOR, len(d.Userland)),
	}
	for name, l := range d.Userland {
		dc.Userland[name] = linkCBOR{Cid: l.Cid.Bytes(), IsFile: l.Kind == KindFile, Size: l.Size}
	}
	if d.Previous != cid.Undef {
		dc.Previous = d.Previous.Bytes()
	}
	buf, err := base.EncodeCBOR(dc)
	if err != nil {
		return nil, fmt.Errorf("encoding public directory: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeDirectory(data []byte) (*Directory, error) {
	var dc directoryCBOR
	if err := base.DecodeCBOR(data, &dc); err != nil {
		return nil, fmt.Errorf("decoding public directory: %w", err)
	}
	d := &Directory{
		Metadata: base.Metadata{Ctime: dc.Ctime, Mtime: dc.Mtime, Mode: dc.Mode, Kind: base.NTPublicDir},
		Userland: make(map[string]Link, len(dc.Userland)),
	}
	for name, lc := range dc.Userland {
		id, err := cid.Cast(lc.Cid)
		if err != nil {
			return nil, fmt.Errorf("decoding public directory: %w", err)
		}
		kind := KindDir
		if lc.IsFile {
			kind = KindFile
		}
		d.Userland[name] = Link{Name: name, Cid: id, Kind: kind, Size: lc.Size}
	}
	if len(dc.Previous) > 0 {
		prev, err := cid.Cast(dc.Previous)
		if err != nil {
			return nil, fmt.Errorf("decoding public directory: %w", err)
		}
		d.Previous = prev
	}
	return d, nil
}

// Put persists d and returns its CID.
func (d *Directory) Put(ctx context.Context, store Store) (cid.Cid, error) {
	data, err := d.encode()
	if err != nil {
		return cid.Undef, err
	}
	return store.PutBlock(ctx, data)
}

// LoadDirectory fetches and decodes the directory at id.
func LoadDirectory(ctx context.Context, store Store, id cid.Cid) (*Directory, error) {
	data, err := store.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeDirectory(data)
}

// History walks d's previous chain, oldest last, yielding each CID the
// chain passes through (get_history, directory.rs).
func History(ctx context.Context, d *Directory, store Store) ([]cid.Cid, error) {
	var out []cid.Cid
	cur := d
	for cur.Previous != cid.Undef {
		out = append(out, cur.Previous)
		next, err := LoadDirectory(ctx, store, cur.Previous)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return out, nil
}
