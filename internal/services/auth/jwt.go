package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "ember-dating"
	clockSkew   = 5 * time.Second
)

var errEmptySecret = errors.New("jwt secret is empty")

// JWTManager signs and verifies HS256 access tokens. A token only names a
// session; whether that session is still alive is the session store's call.
type JWTManager struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

type accessTokenClaims struct {
	SID  string `json:"sid"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewJWTManager(secret string, accessTTL time.Duration) *JWTManager {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &JWTManager{secret: []byte(secret), accessTTL: accessTTL, now: time.Now}
}

func (m *JWTManager) GenerateAccessToken(userID int64, sid, role string) (string, time.Time, error) {
	if len(m.secret) == 0 {
		return "", time.Time{}, errEmptySecret
	}
	if userID <= 0 || strings.TrimSpace(sid) == "" {
		return "", time.Time{}, ErrInvalidInput
	}

	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.accessTTL)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessTokenClaims{
		SID:  sid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Any failure is
// ErrUnauthorized; callers never learn which check failed.
func (m *JWTManager) ParseAccessToken(raw string) (AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(m.secret) == 0 {
		return AccessClaims{}, ErrUnauthorized
	}

	var claims accessTokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || strings.TrimSpace(claims.SID) == "" {
		return AccessClaims{}, ErrUnauthorized
	}

	return AccessClaims{
		UserID:    userID,
		SID:       claims.SID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
