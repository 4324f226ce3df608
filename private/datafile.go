package private

import (
	"context"

	"github.com/wnfs-go/wnfs/base"
)

// DataFile is an inline structured-data leaf: its content is a plain
// Go value small enough to live inside the header's own encrypted
// envelope rather than behind a separate content-key-encrypted block.
// Grounded on private.go's `DataFile` (supplemented feature: spec.md
// only names opaque file content, the teacher additionally supports
// CBOR-linked data files for sidecar metadata/config values).
type DataFile struct {
	header  *Header
	Content interface{}
}

func NewDataFile(parentBareName BareNamefilter, content interface{}) *DataFile {
	return &DataFile{header: NewHeader(parentBareName), Content: content}
}

func (d *DataFile) Header() *Header { return d.header }

func (d *DataFile) clone() *DataFile {
	c := *d
	c.header = d.header.Copy()
	return &c
}

// SetContent replaces the inline value and advances the ratchet.
func (d *DataFile) SetContent(content interface{}) *DataFile {
	out := d.clone()
	out.header.AdvanceRatchet()
	out.Content = content
	return out
}

func (d *DataFile) envelope() (Envelope, error) {
	info := d.header.Info(base.NTDataFile)
	return Envelope{Info: info, Value: d.Content}, nil
}

// Put persists d into forest and returns d's current capability.
func (d *DataFile) Put(ctx context.Context, forest *Forest, store Store) (*Forest, PrivateRef, error) {
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

func dataFileFromEnvelope(header *Header, env Envelope) *DataFile {
	return &DataFile{header: header, Content: env.Value}
}

// LoadDataFile resolves ref against forest, expecting a DataFile node.
func LoadDataFile(ctx context.Context, forest *Forest, store Store, ref PrivateRef) (*DataFile, error) {
	env, found, err := forest.Get(ctx, store, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, base.ErrNotFound
	}
	if env.Info.Type != base.NTDataFile {
		return nil, base.ErrUnexpectedNodeType
	}
	return dataFileFromEnvelope(headerFromRef(ref, env.Info), env), nil
}
