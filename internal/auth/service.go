package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"codeshare/internal/redis"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, expired, and revoked credentials.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload for a signed-in user. Subject holds the
// user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service issues and validates bearer tokens. Revocation is kept in a
// redis denylist; without redis, tokens stay valid until expiry.
type Service struct {
	secret     []byte
	tokenTTL   time.Duration
	cache      *redis.Client
	headerName string
}

// NewService constructs an auth service with the supplied signing
// secret and token lifetime. cache may be nil.
func NewService(secret string, ttl time.Duration, cache *redis.Client) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		secret:     []byte(secret),
		tokenTTL:   ttl,
		cache:      cache,
		headerName: "Authorization",
	}
}

// IssueToken mints a signed token for the user.
func (s *Service) IssueToken(userID, username string) (string, error) {
	if userID == "" {
		return "", errors.New("invalid user id")
	}
	now := time.Now().UTC()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies the signature and expiry and checks the
// revocation denylist, returning the embedded claims.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if s.isRevoked(ctx, tokenString) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RevokeToken denylists the token for its remaining validity.
func (s *Service) RevokeToken(ctx context.Context, tokenString string) error {
	if tokenString == "" || s.cache == nil {
		return nil
	}
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokeKey(tokenString), "1", remaining); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) isRevoked(ctx context.Context, tokenString string) bool {
	if s.cache == nil {
		return false
	}
	revoked, err := s.cache.Exists(ctx, revokeKey(tokenString))
	if err != nil && err != redis.ErrCacheMiss {
		log.Printf("auth revocation lookup failed: %v", err)
		return false
	}
	return revoked
}

func revokeKey(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return "auth:revoked:" + hex.EncodeToString(sum[:])
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
