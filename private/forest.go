package private

import (
	"context"
	"fmt"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/hamt"
)

// Forest is a HAMT mapping saturated-name-hashes to CIDs of
// content-key-encrypted node blobs — the private tree's index, kept
// separate from the trees it indexes so a capability holder without a
// given subtree's keys still can't tell how many nodes the forest
// holds or how they're related. Grounded 1:1 on rs-wnfs's
// `type PrivateForest = Hamt<Namefilter, Cid>` (forest.rs).
type Forest struct {
	hamt *hamt.HAMT
}

func NewEmptyForest(store Store) *Forest {
	return &Forest{hamt: hamt.NewEmpty(store)}
}

func LoadForest(ctx context.Context, store Store, id cid.Cid) (*Forest, error) {
	h, err := hamt.Load(ctx, store, id)
	if err != nil {
		return nil, fmt.Errorf("loading forest: %w", err)
	}
	return &Forest{hamt: h}, nil
}

func (f *Forest) Cid() cid.Cid { return f.hamt.Root() }

// Flush persists every dirty HAMT node the forest's mutators have
// produced and returns the forest's new root CID.
func (f *Forest) Flush(ctx context.Context) (cid.Cid, error) {
	return f.hamt.Flush(ctx)
}

// Has reports whether some node is indexed at saturatedNameHash,
// without needing any key material for it.
func (f *Forest) Has(ctx context.Context, saturatedNameHash [32]byte) (bool, error) {
	return f.hamt.Has(ctx, saturatedNameHash)
}

// SetEncrypted indexes an already content-key-encrypted blob CID
// under a saturated name. Grounded on `PrivateForest::set_encrypted`.
func (f *Forest) SetEncrypted(ctx context.Context, saturatedNameHash [32]byte, value cid.Cid) (*Forest, error) {
	h, err := f.hamt.Set(ctx, saturatedNameHash, value)
	if err != nil {
		return nil, err
	}
	return &Forest{hamt: h}, nil
}

// GetEncrypted reverses SetEncrypted. Grounded on
// `PrivateForest::get_encrypted`.
func (f *Forest) GetEncrypted(ctx context.Context, saturatedNameHash [32]byte) (cid.Cid, bool, error) {
	return f.hamt.Get(ctx, saturatedNameHash)
}

// RemoveEncrypted drops the entry at saturatedNameHash, if any.
func (f *Forest) RemoveEncrypted(ctx context.Context, saturatedNameHash [32]byte) (*Forest, bool, error) {
	h, found, err := f.hamt.Remove(ctx, saturatedNameHash)
	if err != nil {
		return nil, false, err
	}
	return &Forest{hamt: h}, found, nil
}

// Set CBOR-encrypts env's node envelope under ref's keys (Info under
// the ratchet key via Envelope.Encrypt, then the whole resulting block
// sealed again under the content key — the forest's own encryption
// layer) and indexes it. Grounded 1:1 on `PrivateForest::set`.
func (f *Forest) Set(ctx context.Context, store Store, ref PrivateRef, env Envelope) (*Forest, error) {
	plain, err := env.Encrypt(ref.RatchetKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting node for forest: %w", err)
	}
	sealed, err := seal(ref.ContentKey, plain)
	if err != nil {
		return nil, fmt.Errorf("sealing node for forest: %w", err)
	}
	blockCID, err := store.PutBlock(ctx, sealed)
	if err != nil {
		return nil, fmt.Errorf("storing node block: %w", err)
	}
	log.Debugw("Forest.Set", "name", ref.Name(), "blockCID", blockCID)
	return f.SetEncrypted(ctx, ref.SaturatedNameHash, blockCID)
}

// Get resolves ref to the node Envelope it names, decrypting first
// under the content key (the forest's layer) then the ratchet key
// (the header's own layer). Grounded 1:1 on `PrivateForest::get`.
func (f *Forest) Get(ctx context.Context, store Store, ref PrivateRef) (Envelope, bool, error) {
	blockCID, found, err := f.GetEncrypted(ctx, ref.SaturatedNameHash)
	if err != nil || !found {
		return Envelope{}, found, err
	}
	sealed, err := store.GetBlock(ctx, blockCID)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("fetching node block %s: %w", blockCID, err)
	}
	plain, err := open(ref.ContentKey, sealed)
	if err != nil {
		return Envelope{}, false, fmt.Errorf("opening node block: %w", err)
	}
	env, err := Decrypt(plain, ref.RatchetKey)
	if err != nil {
		return Envelope{}, false, err
	}
	return env, true, nil
}
