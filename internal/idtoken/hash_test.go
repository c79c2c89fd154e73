package idtoken

import (
	"encoding/base64"
	"testing"
)

func TestLeftmostHash_HalfDigest(t *testing.T) {
	cases := []struct {
		alg  string
		half int
	}{
		{"RS256", 16},
		{"HS256", 16},
		{"PS256", 16},
		{"RS384", 24},
		{"ES384", 24},
		{"RS512", 32},
		{"HS512", 32},
	}
	for _, c := range cases {
		got, err := LeftmostHash("payload", c.alg)
		if err != nil {
			t.Fatalf("%s: %v", c.alg, err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(got)
		if err != nil {
			t.Fatalf("%s: output is not base64url: %v", c.alg, err)
		}
		if len(raw) != c.half {
			t.Fatalf("%s: got %d bytes, want %d", c.alg, len(raw), c.half)
		}
	}
}

func TestLeftmostHash_Deterministic(t *testing.T) {
	a, err := LeftmostHash("SplxlOBeZQQYbYS6WxSbIA", "RS256")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := LeftmostHash("SplxlOBeZQQYbYS6WxSbIA", "RS256")
	if a != b {
		t.Fatalf("hashes differ: %q vs %q", a, b)
	}
	other, _ := LeftmostHash("otro-payload", "RS256")
	if a == other {
		t.Fatal("distinct payloads produced the same hash")
	}
}

func TestLeftmostHash_FamilyMatters(t *testing.T) {
	h256, _ := LeftmostHash("x", "RS256")
	h512, _ := LeftmostHash("x", "RS512")
	if h256 == h512 {
		t.Fatal("different alg families must yield different hashes")
	}
}

func TestLeftmostHash_Rejects(t *testing.T) {
	for _, alg := range []string{"none", "", "EdDSA"} {
		if _, err := LeftmostHash("x", alg); err == nil {
			t.Fatalf("alg %q: expected error", alg)
		}
	}
}
