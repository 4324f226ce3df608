package private

import (
	"encoding/base64"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/sha3"
)

// namefilterBits/Bytes/hashCount/targetPopcount are the Bloom
// accumulator's fixed parameters (§4.1): a 2048-bit filter, 30
// independent hash functions per Add, saturated by repeated
// self-hashing until 1019 bits are set.
const (
	namefilterBits         = 2048
	namefilterBytes        = namefilterBits / 8
	namefilterHashCount    = 30
	namefilterSaturatedPop = 1019
	maxSaturateRounds      = 10_000
)

// BareNamefilter is the private tree's name accumulator: every private
// node's bare name is its parent's BareNamefilter with the node's own
// INumber folded in (Add), so ancestry is provable without revealing
// any path segment. Grounded on spec §4.1 and rs-wnfs's
// `namefilter::Namefilter` (node.rs: `namefilter.add(&inumber)`,
// `.saturate()`).
type BareNamefilter [namefilterBytes]byte

// IdentityBareNamefilter is the empty filter the root private node's
// bare name is built from (no ancestry yet to fold in).
func IdentityBareNamefilter() BareNamefilter {
	return BareNamefilter{}
}

// Add folds data into the filter by setting the K bit positions its
// indexed hashes select, returning a new filter (the accumulator is
// treated as an immutable value throughout the private tree).
func (f BareNamefilter) Add(data []byte) BareNamefilter {
	out := f
	for _, idx := range hashIndices(data) {
		out[idx/8] |= 1 << uint(idx%8)
	}
	return out
}

// Saturate repeatedly folds the filter's own digest into itself, one
// bit position at a time, until its popcount reaches exactly
// namefilterSaturatedPop. Deterministic and idempotent: a filter
// already at or past the target is returned unchanged (§4.1 invariant).
func (f BareNamefilter) Saturate() BareNamefilter {
	out := f
	pop := out.popcount()
	for i := 0; pop < namefilterSaturatedPop; i++ {
		if i >= maxSaturateRounds {
			panic("namefilter: saturation did not converge")
		}
		digest := out.hash()
		for _, idx := range hashIndices(digest[:]) {
			if pop >= namefilterSaturatedPop {
				break
			}
			mask := byte(1) << uint(idx%8)
			if out[idx/8]&mask == 0 {
				out[idx/8] |= mask
				pop++
			}
		}
	}
	return out
}

func (f BareNamefilter) popcount() int {
	n := 0
	for _, b := range f {
		n += bits.OnesCount8(b)
	}
	return n
}

// hash is the filter's own content digest, used by Saturate and as
// the HAMT/forest lookup key once saturated (the "saturated name
// hash", §4.2).
func (f BareNamefilter) hash() [32]byte {
	return sha3.Sum256(f[:])
}

// Hash exposes the digest for callers outside the package (the forest
// keys its HAMT on exactly this).
func (f BareNamefilter) Hash() [32]byte { return f.hash() }

func hashIndices(data []byte) [namefilterHashCount]int {
	var out [namefilterHashCount]int
	for i := 0; i < namefilterHashCount; i++ {
		h := sha3.New256()
		h.Write(data)
		h.Write([]byte{byte(i)})
		sum := h.Sum(nil)
		v := uint16(sum[0])<<8 | uint16(sum[1])
		out[i] = int(v) % namefilterBits
	}
	return out
}

// Encode/Decode give namefilters a stable string form for CBOR header
// fields (HeaderInfo.BareNamefilter in the teacher's naming).
func (f BareNamefilter) Encode() string {
	return base64.URLEncoding.EncodeToString(f[:])
}

func DecodeBareNamefilter(s string) (BareNamefilter, error) {
	var out BareNamefilter
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decoding namefilter: %w", err)
	}
	if len(data) != namefilterBytes {
		return out, fmt.Errorf("decoding namefilter: want %d bytes, got %d", namefilterBytes, len(data))
	}
	copy(out[:], data)
	return out, nil
}
