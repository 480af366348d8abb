package security

import (
	"errors"
	"testing"
	"time"

	"authgrid/api/internal/models"
)

var testUser = models.User{
	ID:          "usr_1",
	Email:       "alice@x",
	DisplayName: "Alice",
	RoleID:      "rol_admin",
	Status:      models.UserStatusActive,
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)

	signed, minted, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatalf("MintAccess failed: %v", err)
	}
	if minted.ID == "" {
		t.Fatal("minted access token has empty jti")
	}

	claims, err := tc.ParseAccess(signed)
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UserID != "usr_1" || claims.Email != "alice@x" || claims.DisplayName != "Alice" {
		t.Errorf("claims mismatch: %+v", claims)
	}
	if claims.SessionID != "ses_1" {
		t.Errorf("session id = %q, want ses_1", claims.SessionID)
	}
	if claims.Kind != models.TokenKindAccess {
		t.Errorf("kind = %q, want access", claims.Kind)
	}
	if claims.ID != minted.ID {
		t.Errorf("jti changed across parse: %q vs %q", claims.ID, minted.ID)
	}
}

func TestFreshJTIPerIssuance(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)

	_, c1, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatal(err)
	}
	_, c2, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatal(err)
	}
	if c1.ID == c2.ID {
		t.Error("two issuances share a jti")
	}
}

func TestParseExpired(t *testing.T) {
	tc := NewTokenCodec("secret-a", time.Nanosecond, 7*24*time.Hour)

	signed, _, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := tc.ParseAccess(signed); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}

	// logout path must still read claims from expired tokens
	claims, err := tc.ParseAccessExpired(signed)
	if err != nil {
		t.Fatalf("ParseAccessExpired failed: %v", err)
	}
	if claims.UserID != "usr_1" {
		t.Errorf("claims.UserID = %q", claims.UserID)
	}
}

func TestParseBadSignature(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)
	other := NewTokenCodec("secret-b", 15*time.Minute, 7*24*time.Hour)

	signed, _, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := other.ParseAccess(signed); !errors.Is(err, ErrBadSignature) {
		t.Errorf("err = %v, want ErrBadSignature", err)
	}
}

func TestParseMalformed(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)

	if _, err := tc.ParseAccess("not.a.token"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("err = %v, want ErrTokenMalformed", err)
	}
}

func TestKindEnforced(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)

	refresh, _, err := tc.MintRefresh("usr_1", "ses_1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tc.ParseAccess(refresh); !errors.Is(err, ErrWrongTokenKind) {
		t.Errorf("refresh accepted as access: err = %v", err)
	}

	access, _, err := tc.MintAccess(testUser, "ses_1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tc.ParseRefresh(access); !errors.Is(err, ErrWrongTokenKind) {
		t.Errorf("access accepted as refresh: err = %v", err)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	tc := NewTokenCodec("secret-a", 15*time.Minute, 7*24*time.Hour)

	signed, minted, err := tc.MintRefresh("usr_1", "ses_1")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := tc.ParseRefresh(signed)
	if err != nil {
		t.Fatalf("ParseRefresh failed: %v", err)
	}
	if claims.UserID != "usr_1" || claims.SessionID != "ses_1" {
		t.Errorf("claims mismatch: %+v", claims)
	}
	if claims.ID != minted.ID {
		t.Error("jti changed across parse")
	}
}
