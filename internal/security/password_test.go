package security_test

import (
	"strings"
	"testing"

	"github.com/leafscan/leafscan-api/internal/security"
)

func TestHash_NeverEqualsPlaintext(t *testing.T) {
	h := security.NewHasher(8)

	hash, err := h.Hash("secret123")

	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if hash == "secret123" {
		t.Fatalf("hash equals the plaintext password")
	}

	// bcrypt embeds the cost in its output
	if !strings.HasPrefix(hash, "$2a$08$") {
		t.Fatalf("hash %q does not embed cost 8", hash)
	}
}

func TestCheck_MatchesAndRejects(t *testing.T) {
	h := security.NewHasher(8)

	hash, err := h.Hash("secret123")

	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if err := h.Check(hash, "secret123"); err != nil {
		t.Fatalf("Check rejected the right password: %v", err)
	}

	if err := h.Check(hash, "wrong"); err == nil {
		t.Fatalf("Check accepted the wrong password")
	}
}

func TestHash_SaltedOutputDiffersPerCall(t *testing.T) {
	h := security.NewHasher(8)

	first, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	second, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Fatalf("two hashes of the same password are identical, salt missing")
	}
}

func TestNewHasher_ClampsBadCost(t *testing.T) {
	// out-of-range costs fall back to the bcrypt default instead of
	// failing every hash at request time
	h := security.NewHasher(99)

	hash, err := h.Hash("secret123")

	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if err := h.Check(hash, "secret123"); err != nil {
		t.Fatalf("Check rejected the right password: %v", err)
	}
}
