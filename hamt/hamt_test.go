package hamt_test

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"testing"

	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"

	"github.com/wnfs-go/wnfs/hamt"
)

type memStore struct {
	blocks map[string][]byte
}

func newMemStore() *memStore { return &memStore{blocks: map[string][]byte{}} }

func (m *memStore) PutBlock(ctx context.Context, data []byte) (cid.Cid, error) {
	b, err := hamt.NewBlock(data)
	if err != nil {
		return cid.Undef, err
	}
	m.blocks[b.Cid().KeyString()] = data
	return b.Cid(), nil
}

func (m *memStore) GetBlock(ctx context.Context, id cid.Cid) ([]byte, error) {
	data, ok := m.blocks[id.KeyString()]
	if !ok {
		return nil, fmt.Errorf("block not found: %s", id)
	}
	return data, nil
}

func keyHash(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func cidFor(n int) cid.Cid {
	sum := sha256.Sum256([]byte(fmt.Sprintf("value-%d", n)))
	id, _ := cid.V1Builder{Codec: cid.Raw, MhType: 0x12}.Sum(sum[:])
	return id
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := hamt.NewEmpty(store)

	keys := []string{"alice", "bob", "carol", "dave", "erin", "frank", "gina"}
	for i, k := range keys {
		var err error
		h, err = h.Set(ctx, keyHash(k), cidFor(i))
		require.NoError(t, err)
	}

	for i, k := range keys {
		got, ok, err := h.Get(ctx, keyHash(k))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, cidFor(i), got)
	}

	_, ok, err := h.Get(ctx, keyHash("nobody"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFlushAndReload(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := hamt.NewEmpty(store)

	for i := 0; i < 50; i++ {
		var err error
		h, err = h.Set(ctx, keyHash(fmt.Sprintf("key-%d", i)), cidFor(i))
		require.NoError(t, err)
	}

	root, err := h.Flush(ctx)
	require.NoError(t, err)
	require.NotEqual(t, cid.Undef, root)

	reloaded, err := hamt.Load(ctx, store, root)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		got, ok, err := reloaded.Get(ctx, keyHash(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, cidFor(i), got)
	}
}

func TestRemoveCollapsesLonelyChains(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := hamt.NewEmpty(store)

	for i := 0; i < 30; i++ {
		var err error
		h, err = h.Set(ctx, keyHash(fmt.Sprintf("entry-%d", i)), cidFor(i))
		require.NoError(t, err)
	}

	// Remove all but one entry; the survivor must still be reachable,
	// proving a lonely chain collapse didn't strand it.
	var err error
	var removedAll = true
	for i := 1; i < 30; i++ {
		var found bool
		h, found, err = h.Remove(ctx, keyHash(fmt.Sprintf("entry-%d", i)))
		require.NoError(t, err)
		require.True(t, found)
	}
	_ = removedAll

	got, ok, err := h.Get(ctx, keyHash("entry-0"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cidFor(0), got)
}

func TestCanonicalRootIndependentOfInsertionOrder(t *testing.T) {
	ctx := context.Background()
	keys := make([]string, 40)
	for i := range keys {
		keys[i] = fmt.Sprintf("name-%d", i)
	}

	buildRoot := func(order []int) cid.Cid {
		store := newMemStore()
		h := hamt.NewEmpty(store)
		for _, i := range order {
			var err error
			h, err = h.Set(ctx, keyHash(keys[i]), cidFor(i))
			require.NoError(t, err)
		}
		root, err := h.Flush(ctx)
		require.NoError(t, err)
		return root
	}

	orderA := make([]int, len(keys))
	for i := range orderA {
		orderA[i] = i
	}
	orderB := append([]int(nil), orderA...)
	rand.New(rand.NewSource(7)).Shuffle(len(orderB), func(i, j int) {
		orderB[i], orderB[j] = orderB[j], orderB[i]
	})

	require.Equal(t, buildRoot(orderA), buildRoot(orderB))
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	h := hamt.NewEmpty(store)
	h, err := h.Set(ctx, keyHash("only"), cidFor(1))
	require.NoError(t, err)

	same, found, err := h.Remove(ctx, keyHash("missing"))
	require.NoError(t, err)
	require.False(t, found)
	require.Same(t, h, same)
}
