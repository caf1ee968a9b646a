package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

func testIssuer() *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret-please-rotate"), "pocketmoney", "pocketmoney-api")
}

func testUser() *model.User {
	return &model.User{
		ID:          7,
		Username:    "milo",
		DisplayName: "Milo",
		Role:        model.RoleUser,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	ti := testIssuer()

	signed, err := ti.Issue(testUser(), time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	id, err := ti.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != 7 {
		t.Errorf("user id = %d, want 7", id.UserID)
	}
	if id.Username != "milo" || id.DisplayName != "Milo" {
		t.Errorf("identity = %+v", id)
	}
	if id.Role != model.RoleUser {
		t.Errorf("role = %q, want user", id.Role)
	}
}

func TestTokenExpired(t *testing.T) {
	ti := testIssuer()

	signed, err := ti.Issue(testUser(), time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ti.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	signed, err := testIssuer().Issue(testUser(), time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenIssuer([]byte("different-secret"), "pocketmoney", "pocketmoney-api")
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenWrongIssuerOrAudience(t *testing.T) {
	signed, err := testIssuer().Issue(testUser(), time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	badIssuer := NewTokenIssuer([]byte("test-secret-please-rotate"), "someone-else", "pocketmoney-api")
	if _, err := badIssuer.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer err = %v, want ErrInvalidToken", err)
	}

	badAudience := NewTokenIssuer([]byte("test-secret-please-rotate"), "pocketmoney", "other-api")
	if _, err := badAudience.Verify(signed); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong audience err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenGarbage(t *testing.T) {
	ti := testIssuer()
	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		if _, err := ti.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidToken", tok, err)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := WithIdentity(t.Context(), Identity{UserID: 3, Role: model.RoleAdmin})

	id, ok := FromContext(ctx)
	if !ok || id.UserID != 3 {
		t.Fatalf("FromContext = %+v, %v", id, ok)
	}
	if !IsAdmin(ctx) {
		t.Error("expected admin context")
	}

	if _, ok := FromContext(t.Context()); ok {
		t.Error("unauthenticated context should carry no identity")
	}
	if IsAdmin(t.Context()) {
		t.Error("unauthenticated context should not be admin")
	}
}
