package private

import (
	"context"
	"fmt"
	"io"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
)

// File is a private tree leaf: a header plus a pointer to its
// content-key-encrypted body, stored as a separate block from the
// header/content-pointer envelope itself. Grounded on private.go's
// `File` (NewFile/LoadFile/Put).
type File struct {
	header  *Header
	Size    int64
	Content cid.Cid // content-key-encrypted block, via store.PutEncryptedFile
}

func NewFile(parentBareName BareNamefilter) *File {
	return &File{header: NewHeader(parentBareName)}
}

func (f *File) Header() *Header { return f.header }

func (f *File) clone() *File {
	c := *f
	c.header = f.header.Copy()
	return &c
}

// SetContent seals r's bytes under the node's content key and points
// the header at the resulting block, advancing the ratchet so the
// previous content remains recoverable only by someone who already
// had it. Grounded on private.go's File.Update / ensureContent.
func (f *File) SetContent(ctx context.Context, r io.Reader, store Store) (*File, error) {
	out := f.clone()
	out.header.AdvanceRatchet()
	ref := out.header.PrivateRef()

	id, size, err := store.PutEncryptedFile(ctx, r, ref.ContentKey)
	if err != nil {
		return nil, fmt.Errorf("sealing file content: %w", err)
	}
	out.Content = id
	out.Size = size
	return out, nil
}

func (f *File) Open(ctx context.Context, store Store) (io.ReadCloser, error) {
	ref := f.header.PrivateRef()
	return store.GetEncryptedFile(ctx, f.Content, ref.ContentKey)
}

func (f *File) envelope() Envelope {
	info := f.header.Info(base.NTFile)
	info.Size = f.Size
	return Envelope{Info: info, ContentID: f.Content}
}

// Put persists f into forest (indexed under its own saturated name)
// and returns the forest that now contains it plus f's current
// capability.
func (f *File) Put(ctx context.Context, forest *Forest, store Store) (*Forest, PrivateRef, error) {
	ref := f.header.PrivateRef()
	next, err := forest.Set(ctx, store, ref, f.envelope())
	if err != nil {
		return nil, PrivateRef{}, err
	}
	return next, ref, nil
}

func fileFromEnvelope(header *Header, env Envelope) *File {
	return &File{header: header, Size: env.Info.Size, Content: env.ContentID}
}

// LoadFile resolves ref against forest, expecting a File node.
func LoadFile(ctx context.Context, forest *Forest, store Store, ref PrivateRef) (*File, error) {
	env, found, err := forest.Get(ctx, store, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, base.ErrNotFound
	}
	if env.Info.Type != base.NTFile {
		return nil, base.ErrUnexpectedNodeType
	}
	return fileFromEnvelope(headerFromRef(ref, env.Info), env), nil
}
