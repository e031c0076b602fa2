package auth

import (
	"errors"
	"testing"
)

const testSecret = "test-secret-at-least-32-characters!!"

func testUser() *User {
	return &User{
		ID:    "usr-abc12345",
		Email: "alice@example.com",
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateAccessToken(testUser(), testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "usr-abc12345" {
		t.Errorf("Subject = %q, want usr-abc12345", claims.Subject)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", claims.Email)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("missing expiry or issue timestamps")
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(testUser(), testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	_, err = ParseToken(token, "a-completely-different-32-char-secret")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.jwt", testSecret)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
	}
}

func TestGenerateAccessTokenDefaultTTL(t *testing.T) {
	// Zero TTL falls back to the default rather than minting an
	// already-expired token.
	token, err := GenerateAccessToken(testUser(), testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if _, err := ParseToken(token, testSecret); err != nil {
		t.Errorf("ParseToken() error = %v for default-TTL token", err)
	}
}
