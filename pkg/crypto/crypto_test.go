package crypto

import (
	"bytes"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	hash := HashPassword("hunter2", salt)

	if !VerifyPassword("hunter2", salt, hash) {
		t.Error("VerifyPassword() = false for correct password")
	}
	if VerifyPassword("wrong", salt, hash) {
		t.Error("VerifyPassword() = true for wrong password")
	}

	other, _ := GenerateSalt()
	if bytes.Equal(salt, other) {
		t.Error("two generated salts are identical")
	}
	if VerifyPassword("hunter2", other, hash) {
		t.Error("VerifyPassword() = true with wrong salt")
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(4)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if len(tok) != 8 {
		t.Errorf("token length = %d, want 8 hex chars", len(tok))
	}
}
