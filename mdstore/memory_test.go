package mdstore_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wnfs-go/wnfs/mdstore"
	"github.com/wnfs-go/wnfs/ratchet"
)

func TestMemoryBlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()

	id, err := store.PutBlock(ctx, []byte("hello block"))
	require.NoError(t, err)

	got, err := store.GetBlock(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []byte("hello block"), got)
}

func TestMemoryEncryptedFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x42}, 32))

	id, size, err := store.PutEncryptedFile(ctx, bytes.NewReader([]byte("plaintext content")), key)
	require.NoError(t, err)
	require.EqualValues(t, len("plaintext content"), size)

	r, err := store.GetEncryptedFile(ctx, id, key)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "plaintext content", string(data))

	var wrongKey [32]byte
	copy(wrongKey[:], bytes.Repeat([]byte{0x24}, 32))
	_, err = store.GetEncryptedFile(ctx, id, wrongKey)
	require.Error(t, err)
}

func TestMemoryOldestKnownRatchetWriteOnce(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()

	first := ratchet.NewSpiral()
	require.NoError(t, store.PutRatchet(ctx, "inumber-1", first))

	second := first.Clone()
	second.Inc()
	require.NoError(t, store.PutRatchet(ctx, "inumber-1", second))

	oldest, err := store.OldestKnownRatchet(ctx, "inumber-1")
	require.NoError(t, err)
	require.True(t, oldest.Equal(first))
	require.False(t, oldest.Equal(second))
}
