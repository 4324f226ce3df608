package private

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/wnfs-go/wnfs/ratchet"
)

// Key is 32 bytes of AES-256-GCM key material — a ratchet key, a
// content key, or a root key supplied out of band. Grounded 1:1 on
// private.go's `Key [32]byte`.
type Key [32]byte

// EmptyKey is the zero key, used as a sentinel for "no root key
// configured yet".
var EmptyKey = Key{}

// NewKey derives a fresh random key from a new ratchet, the same
// recipe private.go's NewKey uses.
func NewKey() Key {
	return Key(ratchet.NewSpiral().Key())
}

func (k Key) Encode() string { return base64.URLEncoding.EncodeToString(k[:]) }

func (k *Key) Decode(s string) error {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	if len(data) != len(k) {
		return fmt.Errorf("decoding key: want %d bytes, got %d", len(k), len(data))
	}
	copy(k[:], data)
	return nil
}

func (k Key) IsEmpty() bool { return k == EmptyKey }

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Encode())
}

func (k *Key) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	return k.Decode(s)
}

// contentKeyFromRatchetKey derives the content key that wraps a node's outer CBOR
// envelope from its ratchet key: SHA3-256(ratchet_key). Grounded 1:1
// on rs-wnfs's `ContentKey(Key::new(Sha3_256::hash(&ratchet_key.as_bytes())))`.
func contentKeyFromRatchetKey(ratchetKey [32]byte) Key {
	return Key(sha3.Sum256(ratchetKey[:]))
}

func newCipher(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal AEAD-encrypts plaintext under key with a random nonce prefixed
// to the ciphertext, the envelope shape every encrypted block in the
// private tree uses (headers under the ratchet key, node bodies under
// the content key).
func seal(key Key, plaintext []byte) ([]byte, error) {
	aead, err := newCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("sealing block: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("sealing block: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key Key, sealed []byte) ([]byte, error) {
	aead, err := newCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("opening block: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("opening block: ciphertext too short")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("opening block: %w", err)
	}
	return pt, nil
}
