package utils // package utils provides JWT helpers shared by the HTTP and WebSocket gateways

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and signing tokens

	"github.com/iliyamo/farm-live-bidding/internal/auction"
)

// ErrInvalidToken is returned for tokens that fail signature or claim
// validation, and for tokens missing the claims the bidding service
// requires (sub, name, role).
var ErrInvalidToken = errors.New("invalid token")

// ParseIdentity verifies an HS256 bearer token issued by the account
// service and resolves it to an auction identity.  Both trust
// boundaries of the service go through this function: the HTTP JWT
// middleware and the WebSocket `authenticate` event, so the two paths
// can never accept different tokens.
func ParseIdentity(secret, raw string) (auction.Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return auction.Identity{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return auction.Identity{}, ErrInvalidToken
	}

	// The sub claim arrives as a JSON number; names and roles are
	// plain strings.  Anything missing makes the token unusable for
	// bidding even if its signature is fine.
	sub, ok := claims["sub"].(float64)
	if !ok || sub <= 0 {
		return auction.Identity{}, ErrInvalidToken
	}
	name, _ := claims["name"].(string)
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return auction.Identity{}, ErrInvalidToken
	}
	return auction.Identity{ID: uint64(sub), Name: name, Role: role}, nil
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The
// bidding service never issues tokens in production (the account
// service does); this helper mirrors the issuer's claim layout for
// local development and tests.  The JWT includes subject (sub), name,
// role, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, name, role string, ttlMin int) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"role": role,
		"exp":  now.Add(time.Duration(ttlMin) * time.Minute).Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}
