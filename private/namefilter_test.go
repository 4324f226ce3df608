package private

import "testing"

func TestNamefilterAddIsDeterministic(t *testing.T) {
	base := IdentityBareNamefilter()
	a := base.Add([]byte("inumber-1"))
	b := base.Add([]byte("inumber-1"))
	if a != b {
		t.Fatalf("Add is not deterministic")
	}
}

func TestNamefilterSaturateReachesTargetPopcount(t *testing.T) {
	f := IdentityBareNamefilter().Add([]byte("some inumber bytes"))
	saturated := f.Saturate()
	if got := saturated.popcount(); got != namefilterSaturatedPop {
		t.Fatalf("popcount = %d, want %d", got, namefilterSaturatedPop)
	}
}

func TestNamefilterSaturateIsIdempotent(t *testing.T) {
	f := IdentityBareNamefilter().Add([]byte("x")).Saturate()
	twice := f.Saturate()
	if f != twice {
		t.Fatalf("Saturate is not idempotent on an already-saturated filter")
	}
}

func TestNamefilterDistinctInputsDivergeHash(t *testing.T) {
	base := IdentityBareNamefilter()
	a := base.Add([]byte("a")).Saturate()
	b := base.Add([]byte("b")).Saturate()
	if a.Hash() == b.Hash() {
		t.Fatalf("distinct inputs produced the same saturated hash")
	}
}

func TestNamefilterEncodeDecodeRoundTrip(t *testing.T) {
	f := IdentityBareNamefilter().Add([]byte("round-trip")).Saturate()
	s := f.Encode()
	got, err := DecodeBareNamefilter(s)
	if err != nil {
		t.Fatalf("DecodeBareNamefilter: %v", err)
	}
	if got != f {
		t.Fatalf("decoded namefilter does not match original")
	}
}
