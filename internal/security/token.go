package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authgrid/api/internal/models"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrBadSignature   = errors.New("token signature invalid")
	ErrWrongTokenKind = errors.New("wrong token kind")
)

type AccessClaims struct {
	UserID      string           `json:"uid"`
	SessionID   string           `json:"sid"`
	RoleID      string           `json:"rid"`
	DisplayName string           `json:"name"`
	Email       string           `json:"email"`
	Kind        models.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID    string           `json:"uid"`
	SessionID string           `json:"sid"`
	Kind      models.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenCodec mints and parses the signed token pair. The jti is a fresh
// 128-bit value per issuance and is the sole handle the revocation index
// keys on.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (tc *TokenCodec) AccessTTL() time.Duration  { return tc.accessTTL }
func (tc *TokenCodec) RefreshTTL() time.Duration { return tc.refreshTTL }

func (tc *TokenCodec) MintAccess(user models.User, sessionID string) (string, *AccessClaims, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:      user.ID,
		SessionID:   sessionID,
		RoleID:      user.RoleID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Kind:        models.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.accessTTL)),
			Subject:   user.ID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, &claims, nil
}

func (tc *TokenCodec) MintRefresh(userID, sessionID string) (string, *RefreshClaims, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		Kind:      models.TokenKindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tc.refreshTTL)),
			Subject:   userID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(tc.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, &claims, nil
}

func (tc *TokenCodec) ParseAccess(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := tc.parse(tokenStr, &claims, true); err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindAccess {
		return nil, ErrWrongTokenKind
	}
	return &claims, nil
}

// ParseAccessExpired accepts an expired but otherwise verifiable access
// token. Used by logout so users can still log out after idle expiry.
func (tc *TokenCodec) ParseAccessExpired(tokenStr string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := tc.parse(tokenStr, &claims, false); err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindAccess {
		return nil, ErrWrongTokenKind
	}
	return &claims, nil
}

func (tc *TokenCodec) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := tc.parse(tokenStr, &claims, true); err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindRefresh {
		return nil, ErrWrongTokenKind
	}
	return &claims, nil
}

// ParseRefreshExpired is ParseAccessExpired for refresh tokens; revocation
// needs the jti of tokens past their expiry.
func (tc *TokenCodec) ParseRefreshExpired(tokenStr string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := tc.parse(tokenStr, &claims, false); err != nil {
		return nil, err
	}
	if claims.Kind != models.TokenKindRefresh {
		return nil, ErrWrongTokenKind
	}
	return &claims, nil
}

func (tc *TokenCodec) parse(tokenStr string, claims jwt.Claims, checkExpiry bool) error {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS512"})}
	if !checkExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tc.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return ErrBadSignature
		default:
			return ErrTokenMalformed
		}
	}
	if !token.Valid {
		return ErrTokenMalformed
	}
	return nil
}
