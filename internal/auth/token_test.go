package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hems/examhall/internal/model"
)

const secret = "0123456789abcdef0123"

func TestIssueAndParse(t *testing.T) {
	iss, err := NewIssuer(secret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, err := iss.Issue(model.User{ID: 42, Role: model.UserRoleCoordinator})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	id, claims, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id != 42 || claims.Role != model.UserRoleCoordinator {
		t.Errorf("got id=%d role=%s", id, claims.Role)
	}
}

func TestParseRejects(t *testing.T) {
	iss, _ := NewIssuer(secret, time.Hour)
	good, _ := iss.Issue(model.User{ID: 1, Role: model.UserRoleStudent})

	other, _ := NewIssuer("another-secret-value", time.Hour)
	foreign, _ := other.Issue(model.User{ID: 1, Role: model.UserRoleAdmin})

	expired, _ := NewIssuer(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.Issue(model.User{ID: 1})

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "1", Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"tampered", tamper(good)},
		{"other secret", foreign},
		{"expired", stale},
		{"unsigned", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := iss.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewIssuer("short", 0); err == nil {
		t.Error("expected error for short secret")
	}
}

// tamper changes one character inside the signature.
func tamper(token string) string {
	i := len(token) - 5
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}
