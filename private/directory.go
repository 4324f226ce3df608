package private

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/wnfs-go/wnfs/base"
)

// PrivateLink is a private directory entry: unlike the public tree's
// Link, it never carries a plaintext CID — only the PrivateRef
// capability needed to find and decrypt the child in a Forest.
// Grounded on private.go's `PrivateLink{base.Link, Key, Pointer Name}`,
// collapsed to just the ref since Key/Pointer are exactly PrivateRef's
// fields split apart.
type PrivateLink struct {
	Name       string
	PrivateRef PrivateRef
}

// Directory is a private tree interior node: a header plus a name-
// to-PrivateLink map. Every mutation advances not just the touched
// leaf's ratchet but every directory's ratchet along the path back to
// the root, since a directory's "content" is its link table and that
// table just changed. Grounded on private.go's `Tree`.
type Directory struct {
	header *Header
	links  map[string]PrivateLink
}

func NewDirectory(parentBareName BareNamefilter) *Directory {
	return &Directory{header: NewHeader(parentBareName), links: map[string]PrivateLink{}}
}

func (d *Directory) Header() *Header { return d.header }

func (d *Directory) clone() *Directory {
	c := &Directory{header: d.header.Copy(), links: make(map[string]PrivateLink, len(d.links))}
	for k, v := range d.links {
		c.links[k] = v
	}
	return c
}

func (d *Directory) envelope() (Envelope, error) {
	info := d.header.Info(base.NTDir)
	buf, err := encodeLinks(d.links)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Info: info, Value: buf}, nil
}

// Put persists d (not its children, which must already be persisted
// by the caller's mutation) into forest and returns d's capability.
func (d *Directory) Put(ctx context.Context, forest *Forest, store Store) (*Forest, PrivateRef, error) {
	ref := d.header.PrivateRef()
	env, err := d.envelope()
	if err != nil {
		return nil, PrivateRef{}, err
	}
	next, err := forest.Set(ctx, store, ref, env)
	if err != nil {
		return nil, PrivateRef{}, err
	}
	return next, ref, nil
}

func directoryFromEnvelope(header *Header, env Envelope) (*Directory, error) {
	links, err := decodeLinks(env.Value)
	if err != nil {
		return nil, err
	}
	return &Directory{header: header, links: links}, nil
}

// LoadDirectory resolves ref against forest, expecting a Directory node.
func LoadDirectory(ctx context.Context, forest *Forest, store Store, ref PrivateRef) (*Directory, error) {
	env, found, err := forest.Get(ctx, store, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, base.ErrNotFound
	}
	if env.Info.Type != base.NTDir {
		return nil, base.ErrUnexpectedNodeType
	}
	return directoryFromEnvelope(headerFromRef(ref, env.Info), env)
}

// childDirOrNew resolves head as an existing child directory, or
// mints a fresh one rooted at d's bare name if absent.
func childDirOrNew(ctx context.Context, d *Directory, head string, forest *Forest, store Store) (*Directory, error) {
	link, ok := d.links[head]
	if !ok {
		return NewDirectory(d.header.BareName), nil
	}
	child, err := LoadDirectory(ctx, forest, store, link.PrivateRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", head, err)
	}
	return child, nil
}

// setChildDir persists child, advances d's own ratchet (d's content
// just changed), and records the new link.
func setChildDir(ctx context.Context, d *Directory, head string, child *Directory, forest *Forest, store Store) (*Forest, error) {
	nextForest, ref, err := child.Put(ctx, forest, store)
	if err != nil {
		return nil, err
	}
	d.header.AdvanceRatchet()
	d.links[head] = PrivateLink{Name: head, PrivateRef: ref}
	return nextForest, nil
}

// Mkdir ensures path exists below root, creating intermediate
// directories as needed, and returns the new root plus forest.
// Grounded on public.Mkdir generalized to the private tree's
// forest-indexed, ratchet-advancing persistence.
func Mkdir(ctx context.Context, root *Directory, path base.Path, forest *Forest, store Store) (*Directory, *Forest, error) {
	log.Debugw("private.Mkdir", "path", path.String())
	if len(path) == 0 {
		return root, forest, nil
	}
	head, tail := path.Shift()
	out := root.clone()
	child, err := childDirOrNew(ctx, out, head, forest, store)
	if err != nil {
		return nil, nil, err
	}
	newChild, nextForest, err := Mkdir(ctx, child, tail, forest, store)
	if err != nil {
		return nil, nil, err
	}
	nextForest, err = setChildDir(ctx, out, head, newChild, nextForest, store)
	if err != nil {
		return nil, nil, err
	}
	return out, nextForest, nil
}

// Write seals r's content at path, creating any missing parent
// directories, and returns the new root plus forest.
func Write(ctx context.Context, root *Directory, path base.Path, r io.Reader, forest *Forest, store Store) (*Directory, *Forest, error) {
	if len(path) == 0 {
		return nil, nil, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	out := root.clone()

	if len(tail) == 0 {
		var file *File
		if link, ok := out.links[head]; ok {
			existing, err := LoadFile(ctx, forest, store, link.PrivateRef)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", head, err)
			}
			file = existing
		} else {
			file = NewFile(out.header.BareName)
		}
		file, err := file.SetContent(ctx, r, store)
		if err != nil {
			return nil, nil, err
		}
		nextForest, ref, err := file.Put(ctx, forest, store)
		if err != nil {
			return nil, nil, err
		}
		out.header.AdvanceRatchet()
		out.links[head] = PrivateLink{Name: head, PrivateRef: ref}
		return out, nextForest, nil
	}

	child, err := childDirOrNew(ctx, out, head, forest, store)
	if err != nil {
		return nil, nil, err
	}
	newChild, nextForest, err := Write(ctx, child, tail, r, forest, store)
	if err != nil {
		return nil, nil, err
	}
	nextForest, err = setChildDir(ctx, out, head, newChild, nextForest, store)
	if err != nil {
		return nil, nil, err
	}
	return out, nextForest, nil
}

// Read resolves path to a file's decrypted content.
func Read(ctx context.Context, root *Directory, path base.Path, forest *Forest, store Store) (io.ReadCloser, error) {
	if len(path) == 0 {
		return nil, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	link, ok := root.links[head]
	if !ok {
		return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	if len(tail) == 0 {
		file, err := LoadFile(ctx, forest, store, link.PrivateRef)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", head, err)
		}
		return file.Open(ctx, store)
	}
	child, err := LoadDirectory(ctx, forest, store, link.PrivateRef)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", head, err)
	}
	return Read(ctx, child, tail, forest, store)
}

// Resolve walks path from root and returns whichever node type sits
// there (a *File, *DataFile or *Directory), for callers like History
// that need the node itself rather than one specific shape of it.
func Resolve(ctx context.Context, root *Directory, path base.Path, forest *Forest, store Store) (Node, error) {
	if len(path) == 0 {
		return root, nil
	}
	head, tail := path.Shift()
	link, ok := root.links[head]
	if !ok {
		return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	env, found, err := forest.Get(ctx, store, link.PrivateRef)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	header := headerFromRef(link.PrivateRef, env.Info)
	node, err := nodeFromEnvelope(header, env)
	if err != nil {
		return nil, err
	}
	if len(tail) == 0 {
		return node, nil
	}
	dir, ok := node.(*Directory)
	if !ok {
		return nil, fmt.Errorf("%s: %w", head, base.ErrNotADirectory)
	}
	return Resolve(ctx, dir, tail, forest, store)
}

// Ls lists the direct children at path (path may be empty to list
// root itself), sorted by name.
func Ls(ctx context.Context, root *Directory, path base.Path, forest *Forest, store Store) ([]PrivateLink, error) {
	dir := root
	if len(path) > 0 {
		head, tail := path.Shift()
		link, ok := root.links[head]
		if !ok {
			return nil, fmt.Errorf("%s: %w", head, base.ErrNotFound)
		}
		child, err := LoadDirectory(ctx, forest, store, link.PrivateRef)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", head, err)
		}
		return Ls(ctx, child, tail, forest, store)
	}
	out := make([]PrivateLink, 0, len(dir.links))
	for _, l := range dir.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Rm removes path, returning the new root, forest, and the removed
// link's ref (so a caller wiring Mv can re-place it elsewhere).
func Rm(ctx context.Context, root *Directory, path base.Path, forest *Forest, store Store) (*Directory, *Forest, PrivateRef, error) {
	if len(path) == 0 {
		return nil, nil, PrivateRef{}, base.ErrInvalidPath
	}
	head, tail := path.Shift()
	out := root.clone()

	if len(tail) == 0 {
		link, ok := out.links[head]
		if !ok {
			return nil, nil, PrivateRef{}, fmt.Errorf("%s: %w", head, base.ErrNotFound)
		}
		delete(out.links, head)
		out.header.AdvanceRatchet()
		return out, forest, link.PrivateRef, nil
	}

	link, ok := out.links[head]
	if !ok {
		return nil, nil, PrivateRef{}, fmt.Errorf("%s: %w", head, base.ErrNotFound)
	}
	child, err := LoadDirectory(ctx, forest, store, link.PrivateRef)
	if err != nil {
		return nil, nil, PrivateRef{}, err
	}
	newChild, nextForest, removed, err := Rm(ctx, child, tail, forest, store)
	if err != nil {
		return nil, nil, PrivateRef{}, err
	}
	nextForest, err = setChildDir(ctx, out, head, newChild, nextForest, store)
	if err != nil {
		return nil, nil, PrivateRef{}, err
	}
	return out, nextForest, removed, nil
}

// Mv moves the node at from to to, severing any namefilter-provable
// link between its old and new position via UpdateAncestry before
// re-inserting it at the destination. Grounded on spec's mv operation
// (§4.7) generalized from public.Mv plus rs-wnfs's update_ancestry.
func Mv(ctx context.Context, root *Directory, from, to base.Path, forest *Forest, store Store) (*Directory, *Forest, error) {
	log.Debugw("private.Mv", "from", from.String(), "to", to.String())
	if len(to) == 0 {
		return nil, nil, base.ErrInvalidPath
	}
	afterRm, forestAfterRm, removedRef, err := Rm(ctx, root, from, forest, store)
	if err != nil {
		return nil, nil, err
	}

	destHead, destTail := to.Shift()
	out := afterRm.clone()

	destParent := out
	destParentPath := destTail
	if len(destTail) > 0 {
		child, err := childDirOrNew(ctx, out, destHead, forestAfterRm, store)
		if err != nil {
			return nil, nil, err
		}
		// Persist any missing intermediate directories first, so the
		// bare-name lookup and placeAt below load the same directories
		// instead of each minting its own.
		destParent, forestAfterRm, err = Mkdir(ctx, child, destTail[:len(destTail)-1], forestAfterRm, store)
		if err != nil {
			return nil, nil, err
		}
	} else {
		if _, exists := out.links[destHead]; exists {
			return nil, nil, fmt.Errorf("%s: %w", destHead, base.ErrFileAlreadyExists)
		}
	}

	removedEnv, found, err := forestAfterRm.Get(ctx, store, removedRef)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("mv: %w", base.ErrNotFound)
	}
	movedHeader := headerFromRef(removedRef, removedEnv.Info)
	movedNode, err := nodeFromEnvelope(movedHeader, removedEnv)
	if err != nil {
		return nil, nil, err
	}

	newParentBareName := out.header.BareName
	if len(destTail) > 0 {
		newParentBareName, err = resolveParentBareName(ctx, destParent, destTail, forestAfterRm, store)
		if err != nil {
			return nil, nil, err
		}
	}
	rebased, nextForest, err := UpdateAncestry(ctx, movedNode, newParentBareName, forestAfterRm, store)
	if err != nil {
		return nil, nil, err
	}

	if len(destTail) > 0 {
		newDestParent, deeperForest, err := placeAt(ctx, destParent, destParentPath, rebased, nextForest, store)
		if err != nil {
			return nil, nil, err
		}
		nextForest, err = setChildDir(ctx, out, destHead, newDestParent, deeperForest, store)
		if err != nil {
			return nil, nil, err
		}
		return out, nextForest, nil
	}

	out.header.AdvanceRatchet()
	out.links[destHead] = PrivateLink{Name: destHead, PrivateRef: rebased.Header().PrivateRef()}
	return out, nextForest, nil
}

// resolveParentBareName walks path from d down to (but not including)
// its final segment, creating missing intermediate directories only
// in memory, to find the bare namefilter of the directory that will
// actually hold the node placeAt inserts at path's last segment. Must
// agree with placeAt's own descent on which directory is the true
// parent, since rebasing onto the wrong ancestor breaks every
// descendant's bare-name invariant.
func resolveParentBareName(ctx context.Context, d *Directory, path base.Path, forest *Forest, store Store) (BareNamefilter, error) {
	head, tail := path.Shift()
	if len(tail) == 0 {
		return d.header.BareName, nil
	}
	child, err := childDirOrNew(ctx, d, head, forest, store)
	if err != nil {
		return BareNamefilter{}, err
	}
	return resolveParentBareName(ctx, child, tail, forest, store)
}

func placeAt(ctx context.Context, d *Directory, path base.Path, n Node, forest *Forest, store Store) (*Directory, *Forest, error) {
	head, tail := path.Shift()
	out := d.clone()
	if len(tail) == 0 {
		if _, exists := out.links[head]; exists {
			return nil, nil, fmt.Errorf("%s: %w", head, base.ErrFileAlreadyExists)
		}
		out.header.AdvanceRatchet()
		out.links[head] = PrivateLink{Name: head, PrivateRef: n.Header().PrivateRef()}
		return out, forest, nil
	}
	child, err := childDirOrNew(ctx, out, head, forest, store)
	if err != nil {
		return nil, nil, err
	}
	newChild, nextForest, err := placeAt(ctx, child, tail, n, forest, store)
	if err != nil {
		return nil, nil, err
	}
	nextForest, err = setChildDir(ctx, out, head, newChild, nextForest, store)
	if err != nil {
		return nil, nil, err
	}
	return out, nextForest, nil
}

// --- link-table serialization ---

type privateRefCBOR struct {
	Hash       []byte
	ContentKey []byte
	RatchetKey []byte
}

type privateLinkCBOR struct {
	Name string
	Ref  privateRefCBOR
}

func encodeLinks(links map[string]PrivateLink) ([]byte, error) {
	out := make([]privateLinkCBOR, 0, len(links))
	for name, l := range links {
		out = append(out, privateLinkCBOR{
			Name: name,
			Ref: privateRefCBOR{
				Hash:       l.PrivateRef.SaturatedNameHash[:],
				ContentKey: l.PrivateRef.ContentKey[:],
				RatchetKey: l.PrivateRef.RatchetKey[:],
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	buf, err := base.EncodeCBOR(out)
	if err != nil {
		return nil, fmt.Errorf("encoding private directory links: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeLinks(value interface{}) (map[string]PrivateLink, error) {
	raw, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("decoding private directory links: unexpected value shape")
	}
	var entries []privateLinkCBOR
	if err := base.DecodeCBOR(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding private directory links: %w", err)
	}
	out := make(map[string]PrivateLink, len(entries))
	for _, e := range entries {
		var ref PrivateRef
		copy(ref.SaturatedNameHash[:], e.Ref.Hash)
		copy(ref.ContentKey[:], e.Ref.ContentKey)
		copy(ref.RatchetKey[:], e.Ref.RatchetKey)
		out[e.Name] = PrivateLink{Name: e.Name, PrivateRef: ref}
	}
	return out, nil
}
