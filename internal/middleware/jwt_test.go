// jwt_test.go — Unit tests for JWT generation and parsing.
//
// Go Pattern: Even simple functions deserve tests. Token handling is
// security-critical — if it breaks, authentication breaks.
package middleware

import (
	"testing"

	"github.com/pagecraft-labs/file-converter-api/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &models.User{ID: 42, Email: "pat@example.com"}
	secret := "test-secret"

	token, err := GenerateJWT(user, secret)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Email != "pat@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want \"42\"", claims.Subject)
	}
}

func TestParseJWTRejectsBadTokens(t *testing.T) {
	user := &models.User{ID: 7, Email: "pat@example.com"}
	token, err := GenerateJWT(user, "right-secret")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{name: "wrong secret", token: token, secret: "wrong-secret"},
		{name: "garbage token", token: "not.a.jwt", secret: "right-secret"},
		{name: "empty token", token: "", secret: "right-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.token, tt.secret); err == nil {
				t.Error("ParseJWT accepted an invalid token")
			}
		})
	}
}
