package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(t *testing.T, now func() time.Time) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("test-secret", WithClock(now))
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	tm := newTestManager(t, time.Now)

	want := Identity{ID: 42, Name: "alice", Role: RoleAdmin}
	token, expiresAt, err := tm.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if d := time.Until(expiresAt); d <= TokenTTL-time.Minute || d > TokenTTL {
		t.Fatalf("unexpected expiry window: %v", d)
	}

	got, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Fatalf("identity mismatch: got %+v want %+v", got, want)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issued := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	now := issued
	tm := newTestManager(t, func() time.Time { return now })

	token, _, err := tm.Issue(Identity{ID: 1, Name: "it", Role: RoleIT})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = issued.Add(TokenTTL - time.Second)
	if _, err := tm.Parse(token); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}

	for _, age := range []time.Duration{TokenTTL, TokenTTL + time.Second, 24 * time.Hour} {
		now = issued.Add(age)
		if _, err := tm.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("age %v: expected ErrInvalidToken, got %v", age, err)
		}
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	tm := newTestManager(t, time.Now)
	other, err := NewTokenManager("another-secret")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	token, _, err := other.Issue(Identity{ID: 3, Name: "mallory", Role: RoleIT})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := tm.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsUnsignedAndGarbage(t *testing.T) {
	tm := newTestManager(t, time.Now)

	now := time.Now()
	claims := Claims{
		UserID: 5,
		Name:   "eve",
		Role:   RoleIT,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   "5",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for _, token := range []string{"", "garbage", "a.b.c", unsigned} {
		if _, err := tm.Parse(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIssueValidatesIdentity(t *testing.T) {
	tm := newTestManager(t, time.Now)
	if _, _, err := tm.Issue(Identity{ID: 0, Role: RoleIT}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, _, err := tm.Issue(Identity{ID: 1, Role: "root"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestNewTokenManagerRequiresSecret(t *testing.T) {
	if _, err := NewTokenManager("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestContextHelpers(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("unexpected identity in empty context")
	}
	ctx := ContextWithIdentity(context.Background(), Identity{ID: 7, Name: "bob", Role: RoleClient})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.ID != 7 || id.Role != RoleClient {
		t.Fatalf("unexpected identity: %+v ok=%v", id, ok)
	}
}

func TestPasswordHashing(t *testing.T) {
	HashCost = 4
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if strings.Contains(hash, "s3cret") {
		t.Fatal("hash leaks plaintext")
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrWrongSecret) {
		t.Fatalf("expected ErrWrongSecret, got %v", err)
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("expected error for empty password")
	}
}
