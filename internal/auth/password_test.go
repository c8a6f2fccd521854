package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("digest must not equal the plaintext")
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("unexpected digest format: %q", hash)
	}

	if !VerifyPassword("s3cret-pass", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("wrong-pass", hash) {
		t.Error("wrong password accepted")
	}
	if VerifyPassword("", hash) {
		t.Error("empty password accepted")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	a, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("same-input")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password should differ by salt")
	}
}

func TestHashPasswordTooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("got %v, want ErrPasswordTooLong", err)
	}

	// Exactly at the ceiling is still accepted.
	if _, err := HashPassword(strings.Repeat("x", 72)); err != nil {
		t.Errorf("72-byte password rejected: %v", err)
	}
}
