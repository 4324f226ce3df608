package private

import (
	"bytes"
	"context"
	"testing"

	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/mdstore"
)

func TestForestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)

	file := NewFile(IdentityBareNamefilter())
	file, err := file.SetContent(ctx, bytes.NewReader([]byte("hello private world")), store)
	if err != nil {
		t.Fatalf("SetContent: %v", err)
	}

	forest, ref, err := file.Put(ctx, forest, store)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := LoadFile(ctx, forest, store, ref)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	rc, err := loaded.Open(ctx, store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(rc); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if buf.String() != "hello private world" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestForestGetWithWrongRefFails(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)

	file := NewFile(IdentityBareNamefilter())
	file, err := file.SetContent(ctx, bytes.NewReader([]byte("secret")), store)
	if err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	forest, _, err = file.Put(ctx, forest, store)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	other := NewFile(IdentityBareNamefilter()).Header().PrivateRef()
	if _, found, err := forest.Get(ctx, store, other); err == nil && found {
		t.Fatalf("expected lookup with an unrelated ref to miss")
	}
}

func TestForestHasReflectsSetEncrypted(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)

	file := NewFile(IdentityBareNamefilter())
	ref := file.Header().PrivateRef()

	has, err := forest.Has(ctx, ref.SaturatedNameHash)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Fatalf("empty forest should not have any entries")
	}

	forest, err = forest.SetEncrypted(ctx, ref.SaturatedNameHash, mustBlockCID(t, store))
	if err != nil {
		t.Fatalf("SetEncrypted: %v", err)
	}
	has, err = forest.Has(ctx, ref.SaturatedNameHash)
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has {
		t.Fatalf("expected entry to be present after SetEncrypted")
	}
}

func mustBlockCID(t *testing.T, store *mdstore.Memory) cid.Cid {
	t.Helper()
	id, err := store.PutBlock(context.Background(), []byte("placeholder"))
	if err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	return id
}
