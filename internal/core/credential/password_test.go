package credential

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	for _, p := range []string{"Abcdef12", "correct horse battery staple", "ünïcødé-9", "x"} {
		hash, err := h.Hash(p)
		if err != nil {
			t.Fatalf("hash %q: %v", p, err)
		}
		if hash == p {
			t.Fatalf("expected password to be hashed")
		}
		if !VerifyPassword(p, hash) {
			t.Errorf("VerifyPassword(%q, hash(%q)) = false", p, p)
		}
		if VerifyPassword(p+"!", hash) {
			t.Errorf("VerifyPassword accepted a different password for %q", p)
		}
	}
}

func TestPasswordHasher_SaltsEachHash(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	a, _ := h.Hash("Abcdef12")
	b, _ := h.Hash("Abcdef12")
	if a == b {
		t.Fatal("expected distinct salted hashes")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	if VerifyPassword("Abcdef12", "") {
		t.Fatal("empty hash must not verify")
	}
	if VerifyPassword("Abcdef12", "not-a-bcrypt-hash") {
		t.Fatal("malformed hash must not verify")
	}
}

func TestPasswordHasher_TooLong(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	if _, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1)); err == nil {
		t.Fatal("expected error for password longer than bcrypt accepts")
	}
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	h := NewPasswordHasher(99)
	if h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}

func TestPasswordHasher_BurnNeverPanics(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	h.Burn("anything")
}
