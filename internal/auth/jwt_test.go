package auth_test

import (
	"testing"
	"time"

	"github.com/leafscan/leafscan-api/internal/auth"
)

func TestGenerateAndVerify_RoundTripsUserID(t *testing.T) {
	m := auth.NewManager("test-secret-key", 24*time.Hour)

	token, err := m.Generate(42)

	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if token == "" {
		t.Fatalf("Generate returned empty token")
	}

	id, err := m.Verify(token)

	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if id != 42 {
		t.Fatalf("Verify returned id %d, want 42", id)
	}
}

func TestVerify_SameIDFromIndependentTokens(t *testing.T) {
	m := auth.NewManager("test-secret-key", 24*time.Hour)

	// register and login each mint their own token for the same user

	first, err := m.Generate(7)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	second, err := m.Generate(7)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	idFirst, err := m.Verify(first)
	if err != nil {
		t.Fatalf("Verify(first) returned error: %v", err)
	}

	idSecond, err := m.Verify(second)
	if err != nil {
		t.Fatalf("Verify(second) returned error: %v", err)
	}

	if idFirst != idSecond {
		t.Fatalf("tokens encode different ids: %d vs %d", idFirst, idSecond)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	m := auth.NewManager("test-secret-key", 24*time.Hour)
	other := auth.NewManager("a-different-secret", 24*time.Hour)

	token, err := m.Generate(1)

	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	_, err = other.Verify(token)

	if err == nil {
		t.Fatalf("Verify accepted a token signed with another secret")
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	m := auth.NewManager("test-secret-key", -time.Minute)

	token, err := m.Generate(1)

	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	_, err = m.Verify(token)

	if err == nil {
		t.Fatalf("Verify accepted an expired token")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	m := auth.NewManager("test-secret-key", 24*time.Hour)

	_, err := m.Verify("not-a-jwt")

	if err == nil {
		t.Fatalf("Verify accepted garbage input")
	}
}
