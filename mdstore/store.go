// Package mdstore is the block- and ratchet-level persistence layer
// both trees are built on. It plays the role the teacher's
// `fs.Blockservice()`/`fs.RatchetStore()` pair played in private.go,
// collapsed into one interface since this spec has no use for a
// separate go-ipfs blockservice (networking is out of scope, §1).
package mdstore

import (
	"context"
	"io"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/ratchet"
)

// Store is the dependency every tree (public and private) and the
// hamt package is built against. It satisfies hamt.Store directly.
type Store interface {
	// PutBlock content-addresses and persists an opaque block,
	// returning its CID. Used for CBOR-encoded directory/file/HAMT
	// node blocks.
	PutBlock(ctx context.Context, data []byte) (cid.Cid, error)
	// GetBlock fetches a block previously returned by PutBlock.
	GetBlock(ctx context.Context, id cid.Cid) ([]byte, error)

	// PutEncryptedFile AEAD-seals r's content under key and persists
	// it as a block, returning its CID and plaintext size. Grounded
	// on private.go's `store.PutEncryptedFile(base.NewMemfileReader(...), key[:])`.
	PutEncryptedFile(ctx context.Context, r io.Reader, key [32]byte) (cid.Cid, int64, error)
	// GetEncryptedFile reverses PutEncryptedFile.
	GetEncryptedFile(ctx context.Context, id cid.Cid, key [32]byte) (io.ReadCloser, error)

	// PutRatchet records inumber's current ratchet position, and (the
	// first time inumber is seen) its oldest known position too.
	// Grounded on private.go's `RatchetStore().PutRatchet(ctx,
	// header.Info.INumber.Encode(), ratchet)`.
	PutRatchet(ctx context.Context, inumber string, r *ratchet.Spiral) error
	// OldestKnownRatchet returns the earliest ratchet position ever
	// recorded for inumber — the anchor History/search_latest walk
	// forward from. Grounded on private.go's
	// `store.RatchetStore().OldestKnownRatchet(ctx, n.INumber().Encode())`.
	OldestKnownRatchet(ctx context.Context, inumber string) (*ratchet.Spiral, error)

	// Flush commits any buffered writes, mirroring
	// `r.fs.RatchetStore().Flush()` at the end of a Root.Put.
	Flush(ctx context.Context) error
}
