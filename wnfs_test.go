package wnfs

import (
	"bytes"
	"context"
	"testing"

	"github.com/wnfs-go/wnfs/mdstore"
)

func TestEmptyFSRootListing(t *testing.T) {
	ctx := context.Background()
	fsys, err := NewEmptyFS(ctx, mdstore.NewMemory())
	if err != nil {
		t.Fatalf("NewEmptyFS: %v", err)
	}
	entries, err := fsys.Ls("")
	if err != nil {
		t.Fatalf("Ls(\"\"): %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 top-level entries, got %d", len(entries))
	}
}

func TestWriteCatRoundTripBothTrees(t *testing.T) {
	ctx := context.Background()
	fsys, err := NewEmptyFS(ctx, mdstore.NewMemory())
	if err != nil {
		t.Fatalf("NewEmptyFS: %v", err)
	}

	if err := fsys.Write("public/notes.txt", bytes.NewReader([]byte("public hello")), MutationOptions{Commit: true}); err != nil {
		t.Fatalf("Write public: %v", err)
	}
	if err := fsys.Write("private/notes.txt", bytes.NewReader([]byte("private hello")), MutationOptions{Commit: true}); err != nil {
		t.Fatalf("Write private: %v", err)
	}

	pub, err := fsys.Cat("public/notes.txt")
	if err != nil {
		t.Fatalf("Cat public: %v", err)
	}
	if string(pub) != "public hello" {
		t.Fatalf("got %q", pub)
	}

	priv, err := fsys.Cat("private/notes.txt")
	if err != nil {
		t.Fatalf("Cat private: %v", err)
	}
	if string(priv) != "private hello" {
		t.Fatalf("got %q", priv)
	}
}

func TestFromCIDReopensFilesystem(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	fsys, err := NewEmptyFS(ctx, store)
	if err != nil {
		t.Fatalf("NewEmptyFS: %v", err)
	}

	if err := fsys.Write("private/deep/dir/file.txt", bytes.NewReader([]byte("reload me")), MutationOptions{Commit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rootCID := fsys.Cid()

	reopened, err := FromCID(ctx, store, rootCID)
	if err != nil {
		t.Fatalf("FromCID: %v", err)
	}

	data, err := reopened.Cat("private/deep/dir/file.txt")
	if err != nil {
		t.Fatalf("Cat after reopen: %v", err)
	}
	if string(data) != "reload me" {
		t.Fatalf("got %q", data)
	}
}

func TestMvAcrossTreesRejected(t *testing.T) {
	ctx := context.Background()
	fsys, err := NewEmptyFS(ctx, mdstore.NewMemory())
	if err != nil {
		t.Fatalf("NewEmptyFS: %v", err)
	}
	if err := fsys.Write("public/a.txt", bytes.NewReader([]byte("a")), MutationOptions{Commit: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := fsys.Mv("public/a.txt", "private/a.txt", MutationOptions{Commit: true}); err == nil {
		t.Fatalf("expected cross-tree Mv to fail")
	}
}
