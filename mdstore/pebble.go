package mdstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	cid "github.com/ipfs/go-cid"
	"github.com/cockroachdb/pebble"

	"github.com/wnfs-go/wnfs/ratchet"
)

// keyspace prefixes so blocks, current ratchets and oldest-known
// ratchets can share one pebble instance without colliding.
const (
	prefixBlock   = 'b'
	prefixRatchet = 'r'
	prefixOldest  = 'o'
)

// Pebble is the embedded, on-disk Store backing a real wnfs root,
// replacing the go-ipfs-backed store the teacher's cmd/cmd.go wired up
// (see DESIGN.md "Dropped teacher code"). cockroachdb/pebble is the
// pack's idiomatic embedded KV engine (Ezkerrox-bsc/go.mod).
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens (creating if absent) a pebble database at dir.
func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble store at %s: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func blockKey(id cid.Cid) []byte {
	return append([]byte{prefixBlock}, id.Bytes()...)
}

func ratchetKey(inumber string) []byte {
	return append([]byte{prefixRatchet}, []byte(inumber)...)
}

func oldestRatchetKey(inumber string) []byte {
	return append([]byte{prefixOldest}, []byte(inumber)...)
}

func (p *Pebble) PutBlock(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := blockCID(data)
	if err != nil {
		return cid.Undef, err
	}
	if err := p.db.Set(blockKey(id), data, pebble.NoSync); err != nil {
		return cid.Undef, fmt.Errorf("writing block %s: %w", id, err)
	}
	return id, nil
}

func (p *Pebble) GetBlock(ctx context.Context, id cid.Cid) ([]byte, error) {
	data, closer, err := p.db.Get(blockKey(id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("block not found: %s", id)
		}
		return nil, fmt.Errorf("reading block %s: %w", id, err)
	}
	defer closer.Close()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (p *Pebble) PutEncryptedFile(ctx context.Context, r io.Reader, key [32]byte) (cid.Cid, int64, error) {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return cid.Undef, 0, err
	}
	sealed, err := sealContent(key, plaintext)
	if err != nil {
		return cid.Undef, 0, err
	}
	id, err := p.PutBlock(ctx, sealed)
	if err != nil {
		return cid.Undef, 0, err
	}
	return id, int64(len(plaintext)), nil
}

func (p *Pebble) GetEncryptedFile(ctx context.Context, id cid.Cid, key [32]byte) (io.ReadCloser, error) {
	sealed, err := p.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	pt, err := openContent(key, sealed)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(pt)), nil
}

func (p *Pebble) PutRatchet(ctx context.Context, inumber string, r *ratchet.Spiral) error {
	batch := p.db.NewBatch()
	defer batch.Close()

	if _, closer, err := p.db.Get(oldestRatchetKey(inumber)); err != nil {
		if err != pebble.ErrNotFound {
			return fmt.Errorf("checking oldest ratchet for %s: %w", inumber, err)
		}
		if err := batch.Set(oldestRatchetKey(inumber), []byte(r.Encode()), nil); err != nil {
			return err
		}
	} else {
		closer.Close()
	}

	if err := batch.Set(ratchetKey(inumber), []byte(r.Encode()), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.NoSync)
}

func (p *Pebble) OldestKnownRatchet(ctx context.Context, inumber string) (*ratchet.Spiral, error) {
	data, closer, err := p.db.Get(oldestRatchetKey(inumber))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("no ratchet recorded for inumber %q", inumber)
		}
		return nil, fmt.Errorf("reading oldest ratchet for %s: %w", inumber, err)
	}
	defer closer.Close()
	return ratchet.DecodeSpiral(string(data))
}

func (p *Pebble) Flush(ctx context.Context) error {
	return p.db.Flush()
}
