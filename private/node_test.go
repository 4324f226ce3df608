package private

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/wnfs-go/wnfs/mdstore"
)

func TestSearchLatestFindsMostRecentIndexedVersion(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)

	v1, err := NewFile(IdentityBareNamefilter()).SetContent(ctx, bytes.NewReader([]byte("v1")), store)
	if err != nil {
		t.Fatalf("SetContent v1: %v", err)
	}
	forest, _, err = v1.Put(ctx, forest, store)
	if err != nil {
		t.Fatalf("Put v1: %v", err)
	}

	v2, err := v1.SetContent(ctx, bytes.NewReader([]byte("v2")), store)
	if err != nil {
		t.Fatalf("SetContent v2: %v", err)
	}
	forest, _, err = v2.Put(ctx, forest, store)
	if err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	v3, err := v2.SetContent(ctx, bytes.NewReader([]byte("v3")), store)
	if err != nil {
		t.Fatalf("SetContent v3: %v", err)
	}
	forest, _, err = v3.Put(ctx, forest, store)
	if err != nil {
		t.Fatalf("Put v3: %v", err)
	}

	latest, err := SearchLatest(ctx, v1, forest, store)
	if err != nil {
		t.Fatalf("SearchLatest: %v", err)
	}
	latestFile, ok := latest.(*File)
	if !ok {
		t.Fatalf("expected *File, got %T", latest)
	}

	rc, err := latestFile.Open(ctx, store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "v3" {
		t.Fatalf("SearchLatest returned version with content %q, want v3", data)
	}
}

func TestSearchLatestOnUnindexedNodeReturnsItself(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)

	f := NewFile(IdentityBareNamefilter())
	latest, err := SearchLatest(ctx, f, forest, store)
	if err != nil {
		t.Fatalf("SearchLatest: %v", err)
	}
	if latest != Node(f) {
		t.Fatalf("expected the unindexed node to be returned unchanged")
	}
}
