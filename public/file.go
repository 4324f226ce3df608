package public

import (
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
)

// File is a public tree leaf: its content lives at Userland, an
// opaque CID the caller's raw-block layer resolves (the public tree
// itself carries no encryption, unlike private.File). Grounded on
// rs-wnfs's PublicFile (public/file.rs).
type File struct {
	Metadata base.Metadata
	Userland cid.Cid
	Previous cid.Cid
}

// NewFile wraps contentCID as a freshly created file.
func NewFile(contentCID cid.Cid, ts int64) *File {
	return &File{
		Metadata: base.Metadata{Ctime: ts, Mtime: ts, Mode: base.ModeDefault, Kind: base.NTFile},
		Userland: contentCID,
	}
}

// clone returns a shallow copy safe to mutate independently.
func (f *File) clone() *File {
	c := *f
	return &c
}

func (f *File) updateMtime(ts int64) *File {
	c := f.clone()
	c.Metadata.Mtime = ts
	return c
}

type fileCBOR struct {
	Ctime    int64
	Mtime    int64
	Mode     uint32
	Userland []byte
	Previous []byte
}

func (f *File) encode() ([]byte, error) {
	fc := fileCBOR{
		Ctime:    f.Metadata.Ctime,
		Mtime:    f.Metadata.Mtime,
		Mode:     f.Metadata.Mode,
		Userland: f.Userland.Bytes(),
	}
	if f.Previous != cid.Undef {
		fc.Previous = f.Previous.Bytes()
	}
	buf, err := base.EncodeCBOR(fc)
	if err != nil {
		return nil, fmt.Errorf("encoding public file: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeFile(data []byte) (*File, error) {
	var fc fileCBOR
	if err := base.DecodeCBOR(data, &fc); err != nil {
		return nil, fmt.Errorf("decoding public file: %w", err)
	}
	userland, err := cid.Cast(fc.Userland)
	if err != nil {
		return nil, fmt.Errorf("decoding public file: %w", err)
	}
	f := &File{
		Metadata: base.Metadata{Ctime: fc.Ctime, Mtime: fc.Mtime, Mode: fc.Mode, Kind: base.NTFile},
		Userland: userland,
	}
	if len(fc.Previous) > 0 {
		prev, err := cid.Cast(fc.Previous)
		if err != nil {
			return nil, fmt.Errorf("decoding public file: %w", err)
		}
		f.Previous = prev
	}
	return f, nil
}

// Put persists f and returns its CID.
func (f *File) Put(ctx context.Context, store Store) (cid.Cid, error) {
	data, err := f.encode()
	if err != nil {
		return cid.Undef, err
	}
	return store.PutBlock(ctx, data)
}

// LoadFile fetches and decodes the file at id.
func LoadFile(ctx context.Context, store Store, id cid.Cid) (*File, error) {
	data, err := store.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeFile(data)
}
