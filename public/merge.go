package public

import (
	"context"

	cid "github.com/ipfs/go-cid"
)

// BaseHistoryOn rewrites self so that every entry that differs from
// base's corresponding entry gets a `previous` pointer into base,
// recursively. Used before a 3-way merge to give divergent branches a
// common history to diff against. Grounded 1:1 on
// PublicDirectory::base_history_on / base_history_on_helper.
func BaseHistoryOn(ctx context.Context, self, base *Directory, store Store) (*Directory, error) {
	if self == base {
		return self, nil
	}
	baseCID, err := base.Put(ctx, store)
	if err != nil {
		return nil, err
	}
	out := self.clone()
	out.Previous = baseCID

	for name, link := range self.Userland {
		baseLink, ok := base.Userland[name]
		if !ok {
			continue
		}
		newLink, changed, err := baseHistoryOnLink(ctx, link, baseLink, store)
		if err != nil {
			return nil, err
		}
		if changed {
			out.Userland[name] = newLink
		}
	}
	return out, nil
}

func baseHistoryOnLink(ctx context.Context, link, baseLink Link, store Store) (Link, bool, error) {
	if link.Cid == baseLink.Cid {
		return Link{}, false, nil
	}
	if link.Kind != baseLink.Kind {
		// One side is a file, the other a directory: no shared history
		// to attach, leave it as-is.
		return Link{}, false, nil
	}

	if link.Kind == KindFile {
		file, err := link.resolveFile(ctx, store)
		if err != nil {
			return Link{}, false, err
		}
		rewritten := file.clone()
		rewritten.Previous = baseLink.Cid
		newCID, err := rewritten.Put(ctx, store)
		if err != nil {
			return Link{}, false, err
		}
		return Link{Name: link.Name, Cid: newCID, Kind: KindFile, Size: link.Size}, true, nil
	}

	dir, err := link.resolveDir(ctx, store)
	if err != nil {
		return Link{}, false, err
	}
	baseDir, err := baseLink.resolveDir(ctx, store)
	if err != nil {
		return Link{}, false, err
	}
	rewritten := dir.clone()
	rewritten.Previous = baseLink.Cid
	for name, childLink := range dir.Userland {
		baseChildLink, ok := baseDir.Userland[name]
		if !ok {
			continue
		}
		newChildLink, changed, err := baseHistoryOnLink(ctx, childLink, baseChildLink, store)
		if err != nil {
			return Link{}, false, err
		}
		if changed {
			rewritten.Userland[name] = newChildLink
		}
	}
	newCID, err := rewritten.Put(ctx, store)
	if err != nil {
		return Link{}, false, err
	}
	return Link{Name: link.Name, Cid: newCID, Kind: KindDir}, true, nil
}

// BasicMerge performs a commutative-ish 3-way merge of left and right:
// a plain union of entries, with both-sides conflicts resolved by
// recursing into directories and, for two conflicting files, picking
// the lexicographically smaller CID (an arbitrary but deterministic
// tie-break, not a content-aware merge). The merged directory's
// metadata and previous pointer are taken from left unmodified (see
// SPEC_FULL.md §5). left and right must already
// be persisted (every Link.Cid resolvable via store). Grounded 1:1 on
// PublicDirectory::basic_merge / basic_merge_links.
func BasicMerge(ctx context.Context, left, right *Directory, store Store) (*Directory, error) {
	result := make(map[string]Link, len(left.Userland)+len(right.Userland))
	for name, l := range left.Userland {
		result[name] = l
	}
	for name, r := range right.Userland {
		l, ok := left.Userland[name]
		if !ok {
			result[name] = r
			continue
		}
		merged, err := mergeLinkPair(ctx, l, r, store)
		if err != nil {
			return nil, err
		}
		result[name] = merged
	}
	return &Directory{Metadata: left.Metadata, Previous: left.Previous, Userland: result}, nil
}

func mergeLinkPair(ctx context.Context, left, right Link, store Store) (Link, error) {
	if left.Cid != cid.Undef && left.Cid == right.Cid {
		return left, nil
	}

	switch {
	case left.Kind == KindFile && right.Kind == KindFile:
		return tieBreak(left, right), nil
	case left.Kind == KindFile && right.Kind == KindDir:
		return right, nil
	case left.Kind == KindDir && right.Kind == KindFile:
		return left, nil
	default:
		leftDir, err := left.resolveDir(ctx, store)
		if err != nil {
			return Link{}, err
		}
		rightDir, err := right.resolveDir(ctx, store)
		if err != nil {
			return Link{}, err
		}
		mergedDir, err := BasicMerge(ctx, leftDir, rightDir, store)
		if err != nil {
			return Link{}, err
		}
		mergedCID, err := mergedDir.Put(ctx, store)
		if err != nil {
			return Link{}, err
		}
		return Link{Name: left.Name, Cid: mergedCID, Kind: KindDir}, nil
	}
}

// tieBreak deterministically picks one of two conflicting file links
// by CID ordering (bytewise) so every peer resolves the same conflict
// identically without coordination.
func tieBreak(left, right Link) Link {
	if bytesLess(left.Cid.Bytes(), right.Cid.Bytes()) {
		return left
	}
	return right
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
