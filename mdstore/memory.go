package mdstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/wnfs-go/wnfs/ratchet"
)

// Memory is a map-backed Store, used by tests; callers of
// wnfs.NewEmptyFS pass it like any other Store (there is no automatic
// fallback to it).
type Memory struct {
	mu      sync.RWMutex
	blocks  map[string][]byte
	ratchet map[string]*ratchet.Spiral // current position
	oldest  map[string]*ratchet.Spiral // write-once
}

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		blocks:  map[string][]byte{},
		ratchet: map[string]*ratchet.Spiral{},
		oldest:  map[string]*ratchet.Spiral{},
	}
}

func blockCID(data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.DagCBOR, sum), nil
}

func (m *Memory) PutBlock(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := blockCID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[id.KeyString()] = data
	return id, nil
}

func (m *Memory) GetBlock(ctx context.Context, id cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blocks[id.KeyString()]
	if !ok {
		return nil, fmt.Errorf("block not found: %s", id)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) PutEncryptedFile(ctx context.Context, r io.Reader, key [32]byte) (cid.Cid, int64, error) {
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return cid.Undef, 0, err
	}
	sealed, err := sealContent(key, plaintext)
	if err != nil {
		return cid.Undef, 0, err
	}
	id, err := m.PutBlock(ctx, sealed)
	if err != nil {
		return cid.Undef, 0, err
	}
	return id, int64(len(plaintext)), nil
}

func (m *Memory) GetEncryptedFile(ctx context.Context, id cid.Cid, key [32]byte) (io.ReadCloser, error) {
	sealed, err := m.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	pt, err := openContent(key, sealed)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(pt)), nil
}

func (m *Memory) PutRatchet(ctx context.Context, inumber string, r *ratchet.Spiral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.oldest[inumber]; !ok {
		m.oldest[inumber] = r.Clone()
	}
	m.ratchet[inumber] = r.Clone()
	return nil
}

func (m *Memory) OldestKnownRatchet(ctx context.Context, inumber string) (*ratchet.Spiral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.oldest[inumber]
	if !ok {
		return nil, fmt.Errorf("no ratchet recorded for inumber %q", inumber)
	}
	return r.Clone(), nil
}

func (m *Memory) Flush(ctx context.Context) error { return nil }
