package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

const testSecret = "unit-test-secret"

func TestParseIdentityRoundTrip(t *testing.T) {
	raw, err := NewAccessToken(testSecret, 42, "ada", model.RoleBuyer, 15)
	require.NoError(t, err)

	id, err := ParseIdentity(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id.ID)
	assert.Equal(t, "ada", id.Name)
	assert.Equal(t, model.RoleBuyer, id.Role)
}

func TestParseIdentityWrongSecret(t *testing.T) {
	raw, err := NewAccessToken(testSecret, 42, "ada", model.RoleBuyer, 15)
	require.NoError(t, err)

	_, err = ParseIdentity("another-secret", raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseIdentityExpired(t *testing.T) {
	raw, err := NewAccessToken(testSecret, 42, "ada", model.RoleBuyer, -1)
	require.NoError(t, err)

	_, err = ParseIdentity(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseIdentityMissingClaims(t *testing.T) {
	// Valid signature but no role claim.
	claims := jwt.MapClaims{
		"sub": 42,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseIdentity(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseIdentityRejectsUnsignedToken(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":  42,
		"role": model.RoleBuyer,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseIdentity(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseIdentityGarbage(t *testing.T) {
	_, err := ParseIdentity(testSecret, "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
