package auth

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestTokenGenerator_GenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, tokenHash, err := tg.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	// 32 random bytes, hex encoded
	if len(token) != TokenLength*2 {
		t.Errorf("Token length = %d, want %d", len(token), TokenLength*2)
	}
	if _, err := hex.DecodeString(token); err != nil {
		t.Errorf("Token is not hex: %v", err)
	}

	// Check hash length (SHA256 = 64 hex chars)
	if len(tokenHash) != 64 {
		t.Errorf("TokenHash length = %d, want 64", len(tokenHash))
	}
	if tokenHash == token {
		t.Error("TokenHash must differ from the token")
	}
	if tokenHash != tg.HashToken(token) {
		t.Error("TokenHash should equal HashToken(token)")
	}
}

func TestTokenGenerator_GenerateToken_Uniqueness(t *testing.T) {
	tg := NewTokenGenerator()

	tokens := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := tg.GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}
}

func TestTokenGenerator_HashToken(t *testing.T) {
	tg := NewTokenGenerator()

	h1 := tg.HashToken("abc")
	h2 := tg.HashToken("abc")
	h3 := tg.HashToken("abd")

	if h1 != h2 {
		t.Error("HashToken should be deterministic")
	}
	if h1 == h3 {
		t.Error("Different tokens should hash differently")
	}
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if h1 != want {
		t.Errorf("HashToken(abc) = %s, want %s", h1, want)
	}
}

func TestTokenGenerator_ValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()
	valid, _, _ := tg.GenerateToken()

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", valid, false},
		{"empty", "", true},
		{"too short", valid[:10], true},
		{"too long", valid + "00", true},
		{"not hex", strings.Repeat("z", TokenLength*2), true},
		{"upper hex", strings.ToUpper(valid), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tg.ValidateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
