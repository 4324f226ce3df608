package mdstore

import (
	"context"

	"github.com/VictoriaMetrics/fastcache"
	cid "github.com/ipfs/go-cid"
)

// Cached wraps a Store with a fixed-size, read-through block cache.
// Blocks are immutable once written (content-addressed), so a cache
// hit never needs invalidation — the cache key is simply the CID.
// Domain-stack wiring: VictoriaMetrics/fastcache is the pack's
// zero-GC-overhead byte cache, sized here for repeatedly-touched HAMT
// interior nodes during a single search_latest/forest walk.
type Cached struct {
	Store
	blocks *fastcache.Cache
}

// NewCached wraps store with an in-process cache sized maxBytes.
func NewCached(store Store, maxBytes int) *Cached {
	return &Cached{Store: store, blocks: fastcache.New(maxBytes)}
}

func (c *Cached) PutBlock(ctx context.Context, data []byte) (cid.Cid, error) {
	id, err := c.Store.PutBlock(ctx, data)
	if err != nil {
		return id, err
	}
	c.blocks.Set(id.Bytes(), data)
	return id, nil
}

func (c *Cached) GetBlock(ctx context.Context, id cid.Cid) ([]byte, error) {
	if data, ok := c.blocks.HasGet(nil, id.Bytes()); ok {
		return data, nil
	}
	data, err := c.Store.GetBlock(ctx, id)
	if err != nil {
		return nil, err
	}
	c.blocks.Set(id.Bytes(), data)
	return data, nil
}

// PutEncryptedFile, GetEncryptedFile, PutRatchet, OldestKnownRatchet
// and Flush fall through to the embedded Store unmodified — sealed
// file content and ratchet side-indices are not re-read often enough
// in one walk to be worth caching the way interior nodes are.
var _ Store = (*Cached)(nil)
