// Package ratchet implements the forward-secure key chain the private
// tree derives every node version's keys from: the "skip-ratchet"
// ("Spiral") referenced by spec.md's glossary and used throughout
// wnfs-go's private package (ratchet.NewSpiral, ratchet.DecodeSpiral).
//
// A Spiral is three chained SHA3-256 layers — large, medium, small —
// forming a base-256 counter. Advancing the small layer is the common
// case (one hash per Inc); the medium and large layers only advance
// every 256 and 65536 small-steps respectively. There is no shortcut
// jump across a medium or large epoch: Advance replays every
// intermediate small step.
package ratchet

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	cbor "github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

const keySize = 32

func hash(parts ...[]byte) [keySize]byte {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [keySize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Spiral is a forward-secure key chain. Two Spirals built from the same
// seed produce identical key sequences (invariant §3); there is no
// operation that reverses Inc.
type Spiral struct {
	Large  [keySize]byte
	Medium [keySize]byte
	Small  [keySize]byte

	MediumCounter uint8
	SmallCounter  uint8
}

type spiralCBOR struct {
	Large         []byte
	Medium        []byte
	Small         []byte
	MediumCounter uint8
	SmallCounter  uint8
}

// Zero derives a fresh Spiral from a 32-byte seed. Used on node creation
// and whenever update_ancestry resets a moved node's key epoch (§4.8).
func Zero(seed [keySize]byte) *Spiral {
	large := hash(seed[:])
	medium := hash(large[:])
	small := hash(medium[:])
	return &Spiral{Large: large, Medium: medium, Small: small}
}

// NewSpiral generates a fresh random seed and returns Zero(seed).
func NewSpiral() *Spiral {
	var seed [keySize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(err)
	}
	return Zero(seed)
}

// Clone returns an independent copy, used by Seeker so probing doesn't
// mutate the ratchet a node header still holds.
func (s *Spiral) Clone() *Spiral {
	c := *s
	return &c
}

// Inc advances the ratchet by exactly one step (irreversible). Small
// advances every call; medium every 256 small-advances; large every
// 256 medium-advances (65536 small-advances).
func (s *Spiral) Inc() {
	if s.SmallCounter == 255 {
		s.SmallCounter = 0
		if s.MediumCounter == 255 {
			s.MediumCounter = 0
			s.Large = hash(s.Large[:])
			s.Medium = hash(s.Large[:])
			s.Small = hash(s.Medium[:])
			return
		}
		s.MediumCounter++
		s.Medium = hash(s.Medium[:])
		s.Small = hash(s.Medium[:])
		return
	}
	s.SmallCounter++
	s.Small = hash(s.Small[:])
}

// Advance calls Inc n times. Used by Seeker to jump by an arbitrary
// number of steps; n stays small in practice (seek.go only ever jumps
// by a bounded, doubling amount), so the naive loop is adequate.
func (s *Spiral) Advance(n int) {
	for i := 0; i < n; i++ {
		s.Inc()
	}
}

// DeriveKey is the current symmetric key material (§3: ratchet.derive_key()).
func (s *Spiral) DeriveKey() [keySize]byte {
	return hash(s.Large[:], s.Medium[:], s.Small[:])
}

// Key is an alias for DeriveKey matching the teacher's ratchet.Key() name.
func (s *Spiral) Key() [keySize]byte { return s.DeriveKey() }

// Equal reports whether two ratchets are at the identical position.
func (s *Spiral) Equal(o *Spiral) bool {
	if o == nil {
		return false
	}
	return s.Large == o.Large && s.Medium == o.Medium && s.Small == o.Small &&
		s.MediumCounter == o.MediumCounter && s.SmallCounter == o.SmallCounter
}

// Encode base64-encodes a CBOR-serialized ratchet, the form persisted
// inside an encrypted PrivateNodeHeader (HeaderInfo.Ratchet).
func (s *Spiral) Encode() string {
	data, err := cbor.Marshal(spiralCBOR{
		Large:         s.Large[:],
		Medium:        s.Medium[:],
		Small:         s.Small[:],
		MediumCounter: s.MediumCounter,
		SmallCounter:  s.SmallCounter,
	})
	if err != nil {
		panic(err)
	}
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeSpiral reverses Encode.
func DecodeSpiral(s string) (*Spiral, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding ratchet: %w", err)
	}
	var sc spiralCBOR
	if err := cbor.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding ratchet: %w", err)
	}
	if len(sc.Large) != keySize || len(sc.Medium) != keySize || len(sc.Small) != keySize {
		return nil, fmt.Errorf("decoding ratchet: malformed seed lengths")
	}
	r := &Spiral{MediumCounter: sc.MediumCounter, SmallCounter: sc.SmallCounter}
	copy(r.Large[:], sc.Large)
	copy(r.Medium[:], sc.Medium)
	copy(r.Small[:], sc.Small)
	return r, nil
}

// Summary is a short, human-readable identity for log lines (the teacher
// logs ratchet.Summary() on every Tree.Put).
func (s *Spiral) Summary() string {
	return fmt.Sprintf("medium=%d/small=%d/%x", s.MediumCounter, s.SmallCounter, s.Small[:4])
}

// Previous walks fwd from old, collecting every intermediate ratchet
// after old up to (and including) s, most recent first; when maxRevs is
// positive only the maxRevs most recent are kept. Used by
// private.History (SPEC_FULL.md §4 supplemented feature). Returns an
// error if old never reaches s within a generous step bound, which
// would mean old is not actually an ancestor of s.
func (s *Spiral) Previous(old *Spiral, maxRevs int) ([]*Spiral, error) {
	const maxSteps = 1 << 20
	cur := old.Clone()
	var out []*Spiral
	for steps := 0; !cur.Equal(s); steps++ {
		if steps >= maxSteps {
			return nil, fmt.Errorf("ratchet: old is not an ancestor of current")
		}
		cur.Inc()
		out = append(out, cur.Clone())
	}
	// reverse so out[0] is s itself, the most recent entry.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if maxRevs > 0 && len(out) > maxRevs {
		out = out[:maxRevs]
	}
	return out, nil
}
