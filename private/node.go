package private

import (
	"context"
	"fmt"

	"github.com/wnfs-go/wnfs/base"
	"github.com/wnfs-go/wnfs/ratchet"
)

// Node is the tagged union every value stored in a Forest satisfies:
// a File, a Directory, or a DataFile, each owning a *Header. Grounded
// on rs-wnfs's `enum PrivateNode { File(...), Dir(...) }` (node.rs),
// extended with DataFile the way private.go's `LoadNode` dispatch
// does (§ supplemented feature: inline structured data nodes).
type Node interface {
	Header() *Header
}

// SearchLatest walks forward from n's own ratchet position to the
// furthest one the forest has an entry for, using exponential-then-
// bisecting search over the ratchet's hash chain rather than a linear
// scan. If n was never indexed in forest at all (e.g. an
// in-memory-only node nobody has persisted yet), n is already latest.
// Grounded 1:1 on rs-wnfs's `PrivateNode::search_latest` (node.rs).
func SearchLatest(ctx context.Context, n Node, forest *Forest, store Store) (Node, error) {
	header := n.Header()
	ref := header.PrivateRef()

	present, err := forest.Has(ctx, ref.SaturatedNameHash)
	if err != nil {
		return nil, err
	}
	if !present {
		return n, nil
	}

	search := ratchet.NewSeeker(header.Ratchet, ratchet.Small)
	current := header.Copy()

	for {
		current.Ratchet = search.Current()
		hasCurrent, err := forest.Has(ctx, current.PrivateRef().SaturatedNameHash)
		if err != nil {
			return nil, err
		}
		ord := ratchet.Greater
		if hasCurrent {
			ord = ratchet.Less
		}
		if !search.Step(ord) {
			break
		}
	}
	current.Ratchet = search.Current()

	latestRef := current.PrivateRef()
	env, found, err := forest.Get(ctx, store, latestRef)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("private: forest integrity violation: search_latest found no node at its own confirmed position")
	}
	return nodeFromEnvelope(current, env)
}

func nodeFromEnvelope(header *Header, env Envelope) (Node, error) {
	switch env.Info.Type {
	case base.NTFile:
		return fileFromEnvelope(header, env), nil
	case base.NTDir:
		return directoryFromEnvelope(header, env)
	case base.NTDataFile:
		return dataFileFromEnvelope(header, env), nil
	default:
		return nil, fmt.Errorf("private: unrecognized node type %q", env.Info.Type)
	}
}

// UpdateAncestry rebases n (and, if n is a Directory, every descendant
// already linked under it) onto a new parent bare name, resets every
// rebased node's ratchet to a fresh, unrelated one, and re-indexes
// each into forest under its new saturated name. Used by Mv to sever
// any namefilter-provable link between a moved subtree's old and new
// positions. Grounded on rs-wnfs's `PrivateNode::update_ancestry`
// (node.rs). A directory adopts its new bare name first and its
// children are then rebased onto that new bare name, so every moved
// node's bare name is its new parent's plus its own INumber. A file's
// body is re-sealed under the content key its reset ratchet derives.
func UpdateAncestry(ctx context.Context, n Node, parentBareName BareNamefilter, forest *Forest, store Store) (Node, *Forest, error) {
	switch v := n.(type) {
	case *File:
		f := v.clone()
		content, err := v.Open(ctx, store)
		if err != nil {
			return nil, nil, err
		}
		defer content.Close()
		f.header.UpdateBareName(parentBareName)
		f.header.ResetRatchet()
		f.Content, f.Size, err = store.PutEncryptedFile(ctx, content, f.header.PrivateRef().ContentKey)
		if err != nil {
			return nil, nil, err
		}
		return updateAncestrySelf(ctx, f, forest, store)

	case *DataFile:
		d := v.clone()
		d.header.UpdateBareName(parentBareName)
		d.header.ResetRatchet()
		return updateAncestrySelf(ctx, d, forest, store)

	case *Directory:
		dir := v.clone()
		dir.header.UpdateBareName(parentBareName)

		for name, childRef := range dir.links {
			childEnv, found, err := forest.Get(ctx, store, childRef.PrivateRef)
			if err != nil {
				return nil, nil, err
			}
			if !found {
				return nil, nil, fmt.Errorf("private: update_ancestry: missing child %q in forest", name)
			}
			childHeader := headerFromRef(childRef.PrivateRef, childEnv.Info)
			childNode, err := nodeFromEnvelope(childHeader, childEnv)
			if err != nil {
				return nil, nil, err
			}

			rebasedChild, nextForest, err := UpdateAncestry(ctx, childNode, dir.header.BareName, forest, store)
			if err != nil {
				return nil, nil, err
			}
			forest = nextForest

			dir.links[name] = PrivateLink{Name: name, PrivateRef: rebasedChild.Header().PrivateRef()}
		}

		dir.header.ResetRatchet()
		return updateAncestrySelf(ctx, dir, forest, store)

	default:
		return nil, nil, fmt.Errorf("private: unknown node type %T", n)
	}
}

// updateAncestrySelf re-indexes n (whose header has already been
// rebased by the caller) into forest under its new saturated name.
func updateAncestrySelf(ctx context.Context, n Node, forest *Forest, store Store) (Node, *Forest, error) {
	header := n.Header()
	ref := header.PrivateRef()
	env, err := envelopeOf(n)
	if err != nil {
		return nil, nil, err
	}
	nextForest, err := forest.Set(ctx, store, ref, env)
	if err != nil {
		return nil, nil, err
	}
	return n, nextForest, nil
}

func envelopeOf(n Node) (Envelope, error) {
	switch v := n.(type) {
	case *File:
		return v.envelope(), nil
	case *Directory:
		return v.envelope()
	case *DataFile:
		return v.envelope()
	default:
		return Envelope{}, fmt.Errorf("private: unknown node type %T", n)
	}
}

// headerFromRef reconstructs a *Header from a PrivateRef and the Info
// an Envelope decrypt already recovered: the ratchet key embeds the
// current ratchet position (Spiral.Key is one-way, so the ratchet
// itself must come from Info, which carries its own encoded form).
func headerFromRef(ref PrivateRef, info Info) *Header {
	r, err := ratchet.DecodeSpiral(info.Ratchet)
	if err != nil {
		panic(fmt.Sprintf("private: corrupt ratchet in stored header: %v", err))
	}
	return &Header{INumber: info.INumber, BareName: info.BareName, Ratchet: r}
}
