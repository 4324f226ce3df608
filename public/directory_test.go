package public_test

import (
	"context"
	"testing"

	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/wnfs-go/wnfs/base"
	"github.com/wnfs-go/wnfs/mdstore"
	"github.com/wnfs-go/wnfs/public"
)

func fakeCID(t *testing.T, s string) cid.Cid {
	t.Helper()
	sum, err := mh.Sum([]byte(s), mh.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, sum)
}

func mustPath(t *testing.T, s string) base.Path {
	t.Helper()
	p, err := base.NewPath(s)
	require.NoError(t, err)
	return p
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	root := public.NewDirectory(1)

	content := fakeCID(t, "tabby.png")
	root, err := public.Write(ctx, root, mustPath(t, "pictures/cats/tabby.png"), content, 2, store)
	require.NoError(t, err)

	got, err := public.Read(ctx, root, mustPath(t, "pictures/cats/tabby.png"), store)
	require.NoError(t, err)
	require.Equal(t, content, got)

	entries, err := public.Ls(ctx, root, mustPath(t, "pictures/cats"), store)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "tabby.png", entries[0].Name)
}

func TestRmRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	root := public.NewDirectory(1)
	root, err := public.Write(ctx, root, mustPath(t, "a/b.txt"), fakeCID(t, "b"), 2, store)
	require.NoError(t, err)

	root, _, err = public.Rm(ctx, root, mustPath(t, "a/b.txt"), 3, store)
	require.NoError(t, err)

	_, err = public.Read(ctx, root, mustPath(t, "a/b.txt"), store)
	require.Error(t, err)
}

func TestMvMovesEntry(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	root := public.NewDirectory(1)
	root, err := public.Write(ctx, root, mustPath(t, "a/b.txt"), fakeCID(t, "b"), 2, store)
	require.NoError(t, err)

	root, err = public.Mv(ctx, root, mustPath(t, "a/b.txt"), mustPath(t, "c/d.txt"), 3, store)
	require.NoError(t, err)

	_, err = public.Read(ctx, root, mustPath(t, "a/b.txt"), store)
	require.Error(t, err)

	got, err := public.Read(ctx, root, mustPath(t, "c/d.txt"), store)
	require.NoError(t, err)
	require.Equal(t, fakeCID(t, "b"), got)
}

func TestBasicMergeUnionsDisjointEntries(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	base := public.NewDirectory(1)

	left, err := public.Write(ctx, base, mustPath(t, "left.txt"), fakeCID(t, "left"), 2, store)
	require.NoError(t, err)
	right, err := public.Write(ctx, base, mustPath(t, "right.txt"), fakeCID(t, "right"), 2, store)
	require.NoError(t, err)

	merged, err := public.BasicMerge(ctx, left, right, store)
	require.NoError(t, err)
	require.Len(t, merged.Userland, 2)
	require.Contains(t, merged.Userland, "left.txt")
	require.Contains(t, merged.Userland, "right.txt")
}

func TestBasicMergeFileConflictIsDeterministic(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	base := public.NewDirectory(1)

	left, err := public.Write(ctx, base, mustPath(t, "f.txt"), fakeCID(t, "version-a"), 2, store)
	require.NoError(t, err)
	right, err := public.Write(ctx, base, mustPath(t, "f.txt"), fakeCID(t, "version-b"), 2, store)
	require.NoError(t, err)

	mergedAB, err := public.BasicMerge(ctx, left, right, store)
	require.NoError(t, err)
	mergedBA, err := public.BasicMerge(ctx, right, left, store)
	require.NoError(t, err)

	require.Equal(t, mergedAB.Userland["f.txt"].Cid, mergedBA.Userland["f.txt"].Cid)
}

func TestBaseHistoryOnChainsPrevious(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	baseDir := public.NewDirectory(1)
	baseDir, err := public.Write(ctx, baseDir, mustPath(t, "a.txt"), fakeCID(t, "a1"), 2, store)
	require.NoError(t, err)

	recent, err := public.Write(ctx, baseDir, mustPath(t, "b.txt"), fakeCID(t, "b1"), 3, store)
	require.NoError(t, err)

	derived, err := public.BaseHistoryOn(ctx, recent, baseDir, store)
	require.NoError(t, err)
	require.NotEqual(t, cid.Undef, derived.Previous)

	history, err := public.History(ctx, derived, store)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
