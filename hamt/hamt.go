// Package hamt implements the canonical, persistent 16-ary trie the
// forest indexes saturated name-hashes with (§4.4). It borrows the
// bitmap/compacted-slot-array technique from go-ipfs's unixfs HAMT
// (other_examples/.../go-ipfs-unixfs-hamt.go: indexForBitPos, bitfield)
// but keys on a fixed 32-byte hash instead of an arbitrary byte string,
// and collapses lonely chains on removal the same way that file's
// modifyValue does for shards that shrink to a single child.
//
// Every node is canonically serialized (bitmap, then slots in
// ascending bit-position order; bucket entries sorted by key hash) so
// two HAMTs built from the same key/value pairs in any insertion order
// hash to the identical root CID (§4.4 invariant).
package hamt

import (
	"context"
	"fmt"
	"math/bits"
	"sort"

	cbor "github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"

	"github.com/wnfs-go/wnfs/base"
)

// bucketCap is the maximum number of entries a terminal bucket holds
// before it is split into a child node keyed by the next nibble (§4.4).
const bucketCap = 3

// maxDepth is the number of nibbles a 32-byte (256-bit) key hash can be
// split into; a trie this deep exhausts the entire key, so depth never
// needs to exceed it.
const maxDepth = 64

// Store is the narrow block-level dependency the trie needs. Defined
// locally (rather than importing mdstore) so hamt has no dependency on
// the rest of the module — mdstore.Store satisfies it directly.
type Store interface {
	PutBlock(ctx context.Context, data []byte) (cid.Cid, error)
	GetBlock(ctx context.Context, id cid.Cid) ([]byte, error)
}

// Entry is one leaf pairing a full key hash with the CID it maps to
// (in the forest, a saturated name-hash and an encrypted node CID).
type Entry struct {
	KeyHash [32]byte
	Value   cid.Cid
}

// slot is one occupied position (0-15) in a node's nibble space. It is
// either a terminal bucket of entries or a pointer to a child node;
// exactly one of Bucket/child-or-childCID is meaningful at a time.
type slot struct {
	bucket   []Entry
	child    *node
	childCID cid.Cid
}

func (s *slot) isBucket() bool { return s.childCID == cid.Undef && s.child == nil }

// node is one trie level: a bitmap of occupied nibbles plus a
// compacted slots slice (len(slots) == popcount(bitmap)). cid caches
// this node's canonical-encoding content address; it is cid.Undef
// whenever the node has been mutated since the last Flush (the same
// mutate-then-commit-once memoization the Ethereum trie family in the
// pack uses, rather than rehashing on every Set).
type node struct {
	bitmap uint16
	slots  []slot
	cid    cid.Cid
}

func (n *node) dirty() bool { return n.cid == cid.Undef }

func (n *node) clone() *node {
	c := &node{bitmap: n.bitmap, slots: make([]slot, len(n.slots))}
	copy(c.slots, n.slots)
	return c
}

// slotIndex returns the compacted-array index a nibble occupies given
// the bitmap, and whether that nibble is currently occupied.
func slotIndex(bitmap uint16, nibble int) (idx int, present bool) {
	bit := uint16(1) << uint(nibble)
	present = bitmap&bit != 0
	idx = bits.OnesCount16(bitmap & (bit - 1))
	return idx, present
}

func nibbleAt(key [32]byte, depth int) int {
	b := key[depth/2]
	if depth%2 == 0 {
		return int(b >> 4)
	}
	return int(b & 0x0f)
}

// HAMT is a handle on one persistent trie. Set/Remove return a new
// HAMT sharing unmodified subtrees with the receiver; nothing is
// written to the store until Flush.
type HAMT struct {
	store Store
	root  *node
}

// NewEmpty constructs an empty trie, not yet persisted.
func NewEmpty(store Store) *HAMT {
	return &HAMT{store: store, root: &node{}}
}

// Load fetches and decodes the trie rooted at id. Children are
// resolved lazily on first descent.
func Load(ctx context.Context, store Store, id cid.Cid) (*HAMT, error) {
	n, err := loadNode(ctx, store, id)
	if err != nil {
		return nil, err
	}
	return &HAMT{store: store, root: n}, nil
}

// Root is the trie's content address. It is only valid immediately
// after Flush; callers that mutate and then read Root without an
// intervening Flush get cid.Undef.
func (h *HAMT) Root() cid.Cid { return h.root.cid }

// Get looks up key, resolving child nodes from the store as needed.
func (h *HAMT) Get(ctx context.Context, key [32]byte) (cid.Cid, bool, error) {
	return h.get(ctx, h.root, 0, key)
}

func (h *HAMT) get(ctx context.Context, n *node, depth int, key [32]byte) (cid.Cid, bool, error) {
	nibble := nibbleAt(key, depth)
	idx, present := slotIndex(n.bitmap, nibble)
	if !present {
		return cid.Undef, false, nil
	}
	s := &n.slots[idx]
	if s.isBucket() {
		for _, e := range s.bucket {
			if e.KeyHash == key {
				return e.Value, true, nil
			}
		}
		return cid.Undef, false, nil
	}
	child, err := h.resolve(ctx, s)
	if err != nil {
		return cid.Undef, false, err
	}
	return h.get(ctx, child, depth+1, key)
}

// Has reports key's presence without decoding its value, the
// membership check search_latest and the forest's Has use (§4.5, §4.6).
func (h *HAMT) Has(ctx context.Context, key [32]byte) (bool, error) {
	_, ok, err := h.Get(ctx, key)
	return ok, err
}

// Set returns a new HAMT with key mapped to value, structurally
// sharing every subtree Set didn't touch.
func (h *HAMT) Set(ctx context.Context, key [32]byte, value cid.Cid) (*HAMT, error) {
	newRoot, err := h.set(ctx, h.root, 0, key, value)
	if err != nil {
		return nil, err
	}
	return &HAMT{store: h.store, root: newRoot}, nil
}

func (h *HAMT) set(ctx context.Context, n *node, depth int, key [32]byte, value cid.Cid) (*node, error) {
	nibble := nibbleAt(key, depth)
	idx, present := slotIndex(n.bitmap, nibble)
	out := n.clone()

	if !present {
		insertAt, _ := slotIndex(n.bitmap, nibble)
		out.bitmap |= uint16(1) << uint(nibble)
		out.slots = append(out.slots, slot{})
		copy(out.slots[insertAt+1:], out.slots[insertAt:])
		out.slots[insertAt] = slot{bucket: []Entry{{KeyHash: key, Value: value}}}
		out.cid = cid.Undef
		return out, nil
	}

	s := out.slots[idx]
	switch {
	case s.isBucket():
		newBucket, replaced := upsertEntry(s.bucket, key, value)
		if replaced || len(newBucket) <= bucketCap || depth+1 >= maxDepth {
			out.slots[idx] = slot{bucket: newBucket}
			out.cid = cid.Undef
			return out, nil
		}
		// Overflow: split this bucket into a child node keyed on the
		// next nibble, re-inserting every displaced entry plus the new
		// one (mirrors modifyValue's shard-growth path).
		child := &node{}
		for _, e := range newBucket {
			var err error
			child, err = h.set(ctx, child, depth+1, e.KeyHash, e.Value)
			if err != nil {
				return nil, err
			}
		}
		out.slots[idx] = slot{child: child}
		out.cid = cid.Undef
		return out, nil

	default:
		childNode, err := h.resolve(ctx, &s)
		if err != nil {
			return nil, err
		}
		newChild, err := h.set(ctx, childNode, depth+1, key, value)
		if err != nil {
			return nil, err
		}
		out.slots[idx] = slot{child: newChild}
		out.cid = cid.Undef
		return out, nil
	}
}

func upsertEntry(bucket []Entry, key [32]byte, value cid.Cid) (out []Entry, replaced bool) {
	out = make([]Entry, len(bucket), len(bucket)+1)
	copy(out, bucket)
	for i, e := range out {
		if e.KeyHash == key {
			out[i].Value = value
			return out, true
		}
	}
	out = append(out, Entry{KeyHash: key, Value: value})
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i].KeyHash, out[j].KeyHash) })
	return out, false
}

func lessKey(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Remove returns a new HAMT with key absent, reporting whether key was
// present to begin with. A child node left with exactly one bucket
// entry after a removal is collapsed back into its parent's slot as a
// bucket, so the tree never retains lonely single-entry chains
// regardless of the order keys were inserted or removed in — the same
// invariant go-ipfs's HamtShard.modifyValue enforces for its own
// single-child shards.
func (h *HAMT) Remove(ctx context.Context, key [32]byte) (*HAMT, bool, error) {
	newRoot, removed, err := h.remove(ctx, h.root, 0, key)
	if err != nil || !removed {
		return h, removed, err
	}
	return &HAMT{store: h.store, root: newRoot}, true, nil
}

func (h *HAMT) remove(ctx context.Context, n *node, depth int, key [32]byte) (*node, bool, error) {
	nibble := nibbleAt(key, depth)
	idx, present := slotIndex(n.bitmap, nibble)
	if !present {
		return n, false, nil
	}
	out := n.clone()
	s := out.slots[idx]

	if s.isBucket() {
		newBucket, found := removeEntry(s.bucket, key)
		if !found {
			return n, false, nil
		}
		if len(newBucket) == 0 {
			out.bitmap &^= uint16(1) << uint(nibble)
			out.slots = append(out.slots[:idx], out.slots[idx+1:]...)
		} else {
			out.slots[idx] = slot{bucket: newBucket}
		}
		out.cid = cid.Undef
		return out, true, nil
	}

	childNode, err := h.resolve(ctx, &s)
	if err != nil {
		return nil, false, err
	}
	newChild, found, err := h.remove(ctx, childNode, depth+1, key)
	if err != nil || !found {
		return n, found, err
	}
	if len(newChild.slots) == 1 && newChild.slots[0].isBucket() && len(newChild.slots[0].bucket) <= bucketCap {
		// Collapse: the child is now a single bucket, fold it directly
		// into this slot instead of keeping a one-entry indirection.
		out.slots[idx] = slot{bucket: newChild.slots[0].bucket}
	} else if len(newChild.slots) == 0 {
		out.bitmap &^= uint16(1) << uint(nibble)
		out.slots = append(out.slots[:idx], out.slots[idx+1:]...)
		out.cid = cid.Undef
		return out, true, nil
	} else {
		out.slots[idx] = slot{child: newChild}
	}
	out.cid = cid.Undef
	return out, true, nil
}

func removeEntry(bucket []Entry, key [32]byte) (out []Entry, found bool) {
	for i, e := range bucket {
		if e.KeyHash == key {
			out = make([]Entry, 0, len(bucket)-1)
			out = append(out, bucket[:i]...)
			out = append(out, bucket[i+1:]...)
			return out, true
		}
	}
	return bucket, false
}

func (h *HAMT) resolve(ctx context.Context, s *slot) (*node, error) {
	if s.child != nil {
		return s.child, nil
	}
	n, err := loadNode(ctx, h.store, s.childCID)
	if err != nil {
		return nil, err
	}
	s.child = n
	return n, nil
}

// Flush persists every dirty node bottom-up and returns the new root
// CID, memoizing each node's address so a second Flush with no
// intervening mutation is a no-op lookup rather than a re-encode.
func (h *HAMT) Flush(ctx context.Context) (cid.Cid, error) {
	id, err := h.flush(ctx, h.root)
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (h *HAMT) flush(ctx context.Context, n *node) (cid.Cid, error) {
	if !n.dirty() {
		return n.cid, nil
	}
	for i := range n.slots {
		s := &n.slots[i]
		if s.isBucket() {
			continue
		}
		if s.child == nil {
			continue // unresolved pointer to an already-stored child
		}
		childCID, err := h.flush(ctx, s.child)
		if err != nil {
			return cid.Undef, err
		}
		s.childCID = childCID
	}
	enc, err := encodeNode(n)
	if err != nil {
		return cid.Undef, err
	}
	id, err := h.store.PutBlock(ctx, enc)
	if err != nil {
		return cid.Undef, err
	}
	n.cid = id
	return id, nil
}

// --- canonical encoding ---

type entryCBOR struct {
	KeyHash []byte
	Value   []byte
}

type slotCBOR struct {
	Bucket []entryCBOR
	Child  []byte
}

type nodeCBOR struct {
	Bitmap uint16
	Slots  []slotCBOR
}

func encodeNode(n *node) ([]byte, error) {
	out := nodeCBOR{Bitmap: n.bitmap, Slots: make([]slotCBOR, len(n.slots))}
	for i, s := range n.slots {
		if s.isBucket() {
			entries := make([]entryCBOR, len(s.bucket))
			for j, e := range s.bucket {
				entries[j] = entryCBOR{KeyHash: e.KeyHash[:], Value: e.Value.Bytes()}
			}
			out.Slots[i] = slotCBOR{Bucket: entries}
			continue
		}
		out.Slots[i] = slotCBOR{Child: s.childCID.Bytes()}
	}
	buf, err := base.EncodeCBOR(out)
	if err != nil {
		return nil, fmt.Errorf("encoding hamt node: %w", err)
	}
	return buf.Bytes(), nil
}

func loadNode(ctx context.Context, store Store, id cid.Cid) (*node, error) {
	data, err := store.GetBlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading hamt node %s: %w", id, err)
	}
	var nc nodeCBOR
	if err := cbor.Unmarshal(data, &nc); err != nil {
		return nil, fmt.Errorf("decoding hamt node %s: %w", id, err)
	}
	n := &node{bitmap: nc.Bitmap, cid: id, slots: make([]slot, len(nc.Slots))}
	for i, sc := range nc.Slots {
		if sc.Bucket != nil {
			bucket := make([]Entry, len(sc.Bucket))
			for j, ec := range sc.Bucket {
				var e Entry
				copy(e.KeyHash[:], ec.KeyHash)
				c, err := cid.Cast(ec.Value)
				if err != nil {
					return nil, fmt.Errorf("decoding hamt node %s: %w", id, err)
				}
				e.Value = c
				bucket[j] = e
			}
			n.slots[i] = slot{bucket: bucket}
			continue
		}
		childCID, err := cid.Cast(sc.Child)
		if err != nil {
			return nil, fmt.Errorf("decoding hamt node %s: %w", id, err)
		}
		n.slots[i] = slot{childCID: childCID}
	}
	return n, nil
}
