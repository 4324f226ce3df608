package private

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/wnfs-go/wnfs/base"
	"github.com/wnfs-go/wnfs/mdstore"
)

func mustPrivatePath(t *testing.T, s string) base.Path {
	t.Helper()
	p, err := base.NewPath(s)
	if err != nil {
		t.Fatalf("NewPath(%q): %v", s, err)
	}
	return p
}

func TestDirectoryWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)
	root := NewDirectory(IdentityBareNamefilter())

	root, forest, err := Write(ctx, root, mustPrivatePath(t, "pictures/cats/tabby.png"), bytes.NewReader([]byte("meow")), forest, store)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	rc, err := Read(ctx, root, mustPrivatePath(t, "pictures/cats/tabby.png"), forest, store)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "meow" {
		t.Fatalf("got %q", data)
	}

	entries, err := Ls(ctx, root, mustPrivatePath(t, "pictures/cats"), forest, store)
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "tabby.png" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestDirectoryRmRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)
	root := NewDirectory(IdentityBareNamefilter())

	root, forest, err := Write(ctx, root, mustPrivatePath(t, "a/b.txt"), bytes.NewReader([]byte("b")), forest, store)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	root, forest, _, err = Rm(ctx, root, mustPrivatePath(t, "a/b.txt"), forest, store)
	if err != nil {
		t.Fatalf("Rm: %v", err)
	}

	if _, err := Read(ctx, root, mustPrivatePath(t, "a/b.txt"), forest, store); err == nil {
		t.Fatalf("expected read of removed file to fail")
	}
}

func TestDirectoryMvMovesEntryAndResetsKeys(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)
	root := NewDirectory(IdentityBareNamefilter())

	root, forest, err := Write(ctx, root, mustPrivatePath(t, "a/b.txt"), bytes.NewReader([]byte("contents")), forest, store)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	a, err := LoadDirectory(ctx, forest, store, root.links["a"].PrivateRef)
	if err != nil {
		t.Fatalf("LoadDirectory a: %v", err)
	}
	oldFileRef := a.links["b.txt"].PrivateRef

	root, forest, err = Mv(ctx, root, mustPrivatePath(t, "a/b.txt"), mustPrivatePath(t, "c/d.txt"), forest, store)
	if err != nil {
		t.Fatalf("Mv: %v", err)
	}

	if _, err := Read(ctx, root, mustPrivatePath(t, "a/b.txt"), forest, store); err == nil {
		t.Fatalf("expected old path to be gone")
	}

	rc, err := Read(ctx, root, mustPrivatePath(t, "c/d.txt"), forest, store)
	if err != nil {
		t.Fatalf("Read at new path: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "contents" {
		t.Fatalf("got %q", data)
	}

	newCLink, ok := root.links["c"]
	if !ok {
		t.Fatalf("expected new parent directory c to exist")
	}
	c, err := LoadDirectory(ctx, forest, store, newCLink.PrivateRef)
	if err != nil {
		t.Fatalf("LoadDirectory c: %v", err)
	}
	newFileRef := c.links["d.txt"].PrivateRef
	if oldFileRef.SaturatedNameHash == newFileRef.SaturatedNameHash {
		t.Fatalf("moved subtree must not be reachable under its old saturated name")
	}
	if oldFileRef.RatchetKey == newFileRef.RatchetKey {
		t.Fatalf("moved file's ratchet must be reset")
	}
}

func TestDirectoryMvRebasesOntoTrueParentAtMultiSegmentDestination(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)
	root := NewDirectory(IdentityBareNamefilter())

	root, forest, err := Write(ctx, root, mustPrivatePath(t, "src.txt"), bytes.NewReader([]byte("contents")), forest, store)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	root, forest, err = Mv(ctx, root, mustPrivatePath(t, "src.txt"), mustPrivatePath(t, "x/y/z.txt"), forest, store)
	if err != nil {
		t.Fatalf("Mv: %v", err)
	}

	xLink, ok := root.links["x"]
	if !ok {
		t.Fatalf("expected intermediate directory x to exist")
	}
	x, err := LoadDirectory(ctx, forest, store, xLink.PrivateRef)
	if err != nil {
		t.Fatalf("LoadDirectory x: %v", err)
	}
	yLink, ok := x.links["y"]
	if !ok {
		t.Fatalf("expected intermediate directory y to exist")
	}
	y, err := LoadDirectory(ctx, forest, store, yLink.PrivateRef)
	if err != nil {
		t.Fatalf("LoadDirectory y: %v", err)
	}
	zLink, ok := y.links["z.txt"]
	if !ok {
		t.Fatalf("expected moved file z.txt to exist under y")
	}
	z, err := LoadFile(ctx, forest, store, zLink.PrivateRef)
	if err != nil {
		t.Fatalf("LoadFile z.txt: %v", err)
	}

	wantBareName := y.header.BareName.Add(z.header.INumber[:])
	if z.header.BareName != wantBareName {
		t.Fatalf("moved file's bare name is not rebased onto its true parent y: got %x, want %x", z.header.BareName, wantBareName)
	}
}

func TestDirectoryMvFailsIfDestinationExists(t *testing.T) {
	ctx := context.Background()
	store := mdstore.NewMemory()
	forest := NewEmptyForest(store)
	root := NewDirectory(IdentityBareNamefilter())

	root, forest, err := Write(ctx, root, mustPrivatePath(t, "a.txt"), bytes.NewReader([]byte("a")), forest, store)
	if err != nil {
		t.Fatalf("Write a: %v", err)
	}
	root, forest, err = Write(ctx, root, mustPrivatePath(t, "b.txt"), bytes.NewReader([]byte("b")), forest, store)
	if err != nil {
		t.Fatalf("Write b: %v", err)
	}

	if _, _, err := Mv(ctx, root, mustPrivatePath(t, "a.txt"), mustPrivatePath(t, "b.txt"), forest, store); err == nil {
		t.Fatalf("expected Mv onto an existing destination to fail")
	}
}
