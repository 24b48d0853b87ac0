package credentials

import (
	"testing"
)

func TestNewPoolDropsBlankTokens(t *testing.T) {
	pool, err := NewPool([]string{"", "tok-a", "", "tok-b"})
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	if pool.Size() != 2 {
		t.Errorf("size = %d, want 2", pool.Size())
	}
	tokens := pool.Tokens()
	if len(tokens) != 2 || tokens[0] != "tok-a" || tokens[1] != "tok-b" {
		t.Errorf("tokens = %v, want order preserved without blanks", tokens)
	}
	if pool.Primary() != "tok-a" {
		t.Errorf("primary = %q, want tok-a", pool.Primary())
	}
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	if _, err := NewPool(nil); err == nil {
		t.Error("expected error for nil token list")
	}
	if _, err := NewPool([]string{"", ""}); err == nil {
		t.Error("expected error for all-blank token list")
	}
}

func TestTokensReturnsCopy(t *testing.T) {
	pool, err := NewPool([]string{"tok-a", "tok-b"})
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the returned slice must not corrupt rotation order.
	tokens := pool.Tokens()
	tokens[0] = "clobbered"

	if pool.Primary() != "tok-a" {
		t.Errorf("primary = %q after caller mutation, want tok-a", pool.Primary())
	}
	if again := pool.Tokens(); again[0] != "tok-a" {
		t.Errorf("tokens = %v after caller mutation", again)
	}
}
