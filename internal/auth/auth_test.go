package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-signing-key"

func testValidator(t *testing.T, config Config) *Validator {
	t.Helper()
	if config.SigningKey == "" {
		config.SigningKey = testKey
	}
	v, err := NewValidator(config)
	require.NoError(t, err)
	return v
}

// signToken builds a token outside the Issue path, for shaping claims
// Issue would never produce.
func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return s
}

func TestNewValidator(t *testing.T) {
	t.Run("requires signing key", func(t *testing.T) {
		_, err := NewValidator(Config{})
		assert.ErrorIs(t, err, ErrNoSigningKey)
	})

	t.Run("accepts minimal config", func(t *testing.T) {
		v, err := NewValidator(Config{SigningKey: testKey})
		require.NoError(t, err)
		assert.NotNil(t, v)
	})
}

func TestIssueAndValidate(t *testing.T) {
	v := testValidator(t, Config{Issuer: "ruletree", TokenTTL: time.Hour})

	token, err := v.Issue("alice", "admin", "editor")
	require.NoError(t, err)

	user, err := v.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Subject)
	assert.Equal(t, []string{"admin", "editor"}, user.Roles)
	assert.True(t, user.HasRole("admin"))
	assert.False(t, user.HasRole("viewer"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), user.ExpiresAt, time.Minute)
}

func TestValidateToken(t *testing.T) {
	v := testValidator(t, Config{})

	t.Run("empty token", func(t *testing.T) {
		_, err := v.ValidateToken("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		token := signToken(t, "some-other-key", jwt.MapClaims{
			"sub": "bob",
			"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{
			"sub": "bob",
			"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{"sub": "bob"})
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "mallory",
			"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.ValidateToken(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("name and array roles claims", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{
			"sub":   "carol",
			"name":  "Carol",
			"roles": []any{"viewer", 42},
			"exp":   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		user, err := v.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "Carol", user.Name)
		assert.Equal(t, []string{"viewer"}, user.Roles)
	})
}

func TestValidateTokenIssuer(t *testing.T) {
	v := testValidator(t, Config{Issuer: "ruletree"})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{
			"sub": "bob",
			"iss": "someone-else",
			"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("missing issuer", func(t *testing.T) {
		token := signToken(t, testKey, jwt.MapClaims{
			"sub": "bob",
			"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		_, err := v.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("matching issuer", func(t *testing.T) {
		token, err := v.Issue("bob")
		require.NoError(t, err)
		user, err := v.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "bob", user.Subject)
	})
}

func TestIssueDefaultTTL(t *testing.T) {
	v := testValidator(t, Config{})

	token, err := v.Issue("alice")
	require.NoError(t, err)

	user, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), user.ExpiresAt, time.Minute)
	assert.Empty(t, user.Roles)
}
