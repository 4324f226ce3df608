package private

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	key := NewKey()
	plaintext := []byte("the owl flies at midnight")

	sealed, err := seal(key, plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	opened, err := open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != string(plaintext) {
		t.Fatalf("got %q, want %q", opened, plaintext)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := seal(NewKey(), []byte("secret"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := open(NewKey(), sealed); err == nil {
		t.Fatalf("expected decryption under the wrong key to fail")
	}
}

func TestContentKeyDerivationIsDeterministic(t *testing.T) {
	ratchetKey := NewKey()
	a := contentKeyFromRatchetKey([32]byte(ratchetKey))
	b := contentKeyFromRatchetKey([32]byte(ratchetKey))
	if a != b {
		t.Fatalf("contentKeyFromRatchetKey is not deterministic")
	}
	if a == Key(ratchetKey) {
		t.Fatalf("content key must differ from the ratchet key it's derived from")
	}
}
