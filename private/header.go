package private

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	cbor "github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"
	cbornode "github.com/ipfs/go-ipld-cbor"
	mh "github.com/multiformats/go-multihash"

	"github.com/wnfs-go/wnfs/base"
	"github.com/wnfs-go/wnfs/ratchet"
)

// INumber uniquely names a private node for its whole lifetime
// (mutation replaces a node's content and ratchet but never its
// INumber). Grounded on private.go's `type INumber [32]byte`.
type INumber [32]byte

func NewINumber() INumber {
	var n INumber
	if _, err := io.ReadFull(rand.Reader, n[:]); err != nil {
		panic(err)
	}
	return n
}

func (n INumber) Encode() string { return base64.URLEncoding.EncodeToString(n[:]) }

// Name is a node's saturated-name-hash, base64-encoded — the key the
// forest indexes nodes under and the value a parent directory's link
// stores to find a child without the child's plaintext name leaking.
// Grounded on private.go's `type Name` usage (`PrivateName() (Name, error)`).
type Name string

// PrivateRef bundles everything a capability holder needs to locate
// and decrypt one version of a node, without needing its plaintext
// path: the forest lookup key plus both layers of key material.
// Grounded 1:1 on rs-wnfs's `PrivateRef` (node.rs).
type PrivateRef struct {
	SaturatedNameHash [32]byte
	ContentKey        Key
	RatchetKey        Key
}

func (r PrivateRef) Name() Name {
	return Name(base64.URLEncoding.EncodeToString(r.SaturatedNameHash[:]))
}

// Header is the per-node identity and key-schedule state common to
// files, directories and data files: an INumber, a bare namefilter
// rooted in the node's ancestry, and the ratchet the node's keys are
// derived from. Grounded on rs-wnfs's `PrivateNodeHeader`
// (`new`/`advance_ratchet`/`get_private_ref`/
// `get_saturated_name_with_key`/`update_bare_name`/`reset_ratchet`).
type Header struct {
	INumber  INumber
	BareName BareNamefilter
	Ratchet  *ratchet.Spiral
}

// NewHeader mints a fresh header whose bare name folds a new random
// INumber into parentBareName.
func NewHeader(parentBareName BareNamefilter) *Header {
	in := NewINumber()
	return &Header{
		INumber:  in,
		BareName: parentBareName.Add(in[:]),
		Ratchet:  ratchet.NewSpiral(),
	}
}

func (h *Header) Copy() *Header {
	return &Header{INumber: h.INumber, BareName: h.BareName, Ratchet: h.Ratchet.Clone()}
}

// AdvanceRatchet is called on every mutation so a node's previous
// content remains recoverable only by someone who already had it.
func (h *Header) AdvanceRatchet() { h.Ratchet.Inc() }

// GetSaturatedNameWithKey computes the forest lookup key a node would
// have if its ratchet were at ratchetKey, without mutating h.
func (h *Header) GetSaturatedNameWithKey(ratchetKey [32]byte) BareNamefilter {
	return h.BareName.Add(ratchetKey[:]).Saturate()
}

func (h *Header) GetSaturatedName() BareNamefilter {
	return h.GetSaturatedNameWithKey(h.Ratchet.Key())
}

// PrivateRef derives the capability for the node's current ratchet
// position. Grounded 1:1 on `PrivateNodeHeader::get_private_ref`.
func (h *Header) PrivateRef() PrivateRef {
	ratchetKey := h.Ratchet.Key()
	saturated := h.GetSaturatedNameWithKey(ratchetKey)
	return PrivateRef{
		SaturatedNameHash: saturated.Hash(),
		ContentKey:        contentKeyFromRatchetKey(ratchetKey),
		RatchetKey:        Key(ratchetKey),
	}
}

func (h *Header) PrivateName() Name { return h.PrivateRef().Name() }

// UpdateBareName rebases h onto a new parent, keeping INumber fixed
// (a move changes ancestry, never identity).
func (h *Header) UpdateBareName(parentBareName BareNamefilter) {
	h.BareName = parentBareName.Add(h.INumber[:])
}

// ResetRatchet assigns a fresh, unrelated ratchet: used by
// UpdateAncestry on every node a move displaces, so the moved
// subtree's old position can no longer be correlated with its new one.
func (h *Header) ResetRatchet() {
	h.Ratchet = ratchet.NewSpiral()
}

// --- CBOR header-info envelope ---

// Info is the plaintext-shaped projection of Header that gets
// serialized and sealed under the node's ratchet key. A file's own
// content lives in a separately content-key-encrypted block pointed
// to by ContentID; directory and data-file bodies are sealed inline
// under the same ratchet key, and Forest.Set seals the whole envelope
// block once more under the content key. Grounded on private.go's `HeaderInfo`/`Header`
// split (`encryptHeaderBlock`/`decodeHeaderBlock`).
type Info struct {
	WNFS  base.SemVer
	Type  base.NodeType
	Mode  uint32
	Ctime int64
	Mtime int64
	Size  int64

	INumber  INumber
	BareName BareNamefilter
	Ratchet  string // encoded ratchet position; headerFromRef rebuilds the Header from it
}

func NewInfo(nt base.NodeType, in INumber, bnf BareNamefilter) Info {
	now := base.Timestamp().Unix()
	return Info{
		WNFS:     base.LatestVersion,
		Type:     nt,
		Mode:     base.ModeDefault,
		Ctime:    now,
		Mtime:    now,
		INumber:  in,
		BareName: bnf,
	}
}

// Info builds the plaintext-shaped Info projection for a node of type
// nt rooted at h, stamping in h's current ratchet so a reloaded node's
// header can be reconstructed without the forest needing to track
// ratchet state out of band (mdstore's ratchet-tracking store exists
// for History/OldestKnownRatchet, not for this).
func (h *Header) Info(nt base.NodeType) Info {
	info := NewInfo(nt, h.INumber, h.BareName)
	info.Ratchet = h.Ratchet.Encode()
	return info
}

func (i Info) cbor() (*bytes.Buffer, error) { return base.EncodeCBOR(i) }

// Envelope wraps a node's Info plus its content/metadata pointers
// into the single CBOR block stored at the node's own CID.
type Envelope struct {
	Info      Info
	ContentID cid.Cid
	MetaID    cid.Cid     // optional, cid.Undef if unused
	Value     interface{} // only present on DataFile and Directory nodes, in place of ContentID
}

// Encrypt seals Envelope's Info under ratchetKey and returns the
// go-ipld-cbor block to persist: an "info" field holding the sealed
// bytes, plaintext "content"/"metadata" CID fields, and for directory
// and data-file nodes a "value" field sealed under the same ratchet
// key, following private.go's encryptHeaderBlock.
func (e Envelope) Encrypt(ratchetKey Key) ([]byte, error) {
	buf, err := e.Info.cbor()
	if err != nil {
		return nil, err
	}
	sealed, err := seal(ratchetKey, buf.Bytes())
	if err != nil {
		return nil, err
	}

	env := map[string]interface{}{"info": sealed}
	if hasInlineValue(e.Info.Type) {
		valuePlain := []byte(nil)
		if e.Info.Type == base.NTDir {
			// Directory link tables arrive already CBOR-encoded
			// (private/directory.go's encodeLinks); seal them as-is
			// instead of wrapping them in a second CBOR layer.
			raw, ok := e.Value.([]byte)
			if !ok {
				return nil, fmt.Errorf("encrypting header block: directory value must be raw bytes")
			}
			valuePlain = raw
		} else {
			valueBuf, err := base.EncodeCBOR(e.Value)
			if err != nil {
				return nil, err
			}
			valuePlain = valueBuf.Bytes()
		}
		sealedValue, err := seal(ratchetKey, valuePlain)
		if err != nil {
			return nil, err
		}
		env["value"] = sealedValue
	} else {
		env["content"] = e.ContentID
	}
	if e.MetaID != cid.Undef {
		env["metadata"] = e.MetaID
	}

	node, err := cbornode.WrapObject(env, mh.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("encrypting header block: %w", err)
	}
	return node.RawData(), nil
}

// Decrypt reverses Encrypt given the node's ratchet key.
func Decrypt(data []byte, ratchetKey Key) (Envelope, error) {
	var env map[string]interface{}
	if err := base.DecodeCBOR(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding header block: %w", err)
	}

	sealedInfo, ok := env["info"].([]byte)
	if !ok {
		return Envelope{}, fmt.Errorf("header block missing info field")
	}
	plaintext, err := open(ratchetKey, sealedInfo)
	if err != nil {
		return Envelope{}, fmt.Errorf("decrypting header info: %w", err)
	}
	var info Info
	if err := base.DecodeCBOR(plaintext, &info); err != nil {
		return Envelope{}, fmt.Errorf("decoding header info: %w", err)
	}

	out := Envelope{Info: info}
	if meta, ok := env["metadata"].(cid.Cid); ok {
		out.MetaID = meta
	}

	if hasInlineValue(info.Type) {
		sealedValue, ok := env["value"].([]byte)
		if !ok {
			return Envelope{}, fmt.Errorf("node header has no value field")
		}
		valuePlaintext, err := open(ratchetKey, sealedValue)
		if err != nil {
			return Envelope{}, fmt.Errorf("decrypting header value: %w", err)
		}
		if info.Type == base.NTDir {
			// directory link tables are carried as a raw CBOR blob
			// (private/directory.go encodes/decodes it itself), not
			// a generic decoded value.
			out.Value = valuePlaintext
			return out, nil
		}
		var v interface{}
		if err := base.DecodeCBOR(valuePlaintext, &v); err != nil {
			return Envelope{}, err
		}
		out.Value = v
		return out, nil
	}

	contentID, ok := env["content"].(cid.Cid)
	if tag, isTag := env["content"].(cbor.Tag); isTag && tag.Number == 42 {
		// go-ipld-cbor writes CIDs as tag 42 over a 0x00-prefixed byte
		// string; a generic decode yields that tag, not a cid.Cid.
		if raw, isBytes := tag.Content.([]byte); isBytes && len(raw) > 1 && raw[0] == 0 {
			contentID, err = cid.Cast(raw[1:])
			ok = err == nil
		}
	}
	if !ok {
		return Envelope{}, fmt.Errorf("header block has no content cid")
	}
	out.ContentID = contentID
	return out, nil
}

// hasInlineValue reports whether a node type carries its body inline
// in the header envelope (directory link tables, datafile values)
// rather than as a separate content-key-encrypted block pointed to by
// a plaintext CID (regular files).
func hasInlineValue(t base.NodeType) bool {
	return t == base.NTDataFile || t == base.NTDir
}

