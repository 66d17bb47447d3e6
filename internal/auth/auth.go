package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL bounds issued tokens when the config does not.
const DefaultTokenTTL = 24 * time.Hour

// hmacMethods are the signature algorithms the validator accepts.
var hmacMethods = []string{"HS256", "HS384", "HS512"}

// Config holds token validation and issuing settings.
type Config struct {
	// SigningKey is the shared HMAC secret.
	SigningKey string

	// Issuer, when set, must match the token's iss claim and is
	// stamped onto issued tokens.
	Issuer string

	// TokenTTL is the lifetime of issued tokens; zero means
	// DefaultTokenTTL.
	TokenTTL time.Duration
}

// User is the caller identity carried by a verified token.
type User struct {
	Subject   string
	Name      string
	Roles     []string
	ExpiresAt time.Time
}

// HasRole checks if the user has the specified role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Validator verifies bearer tokens and extracts the caller identity.
// It is safe for concurrent use.
type Validator struct {
	config Config
}

// NewValidator creates a validator. The signing key is mandatory; an
// API with auth enabled but no key would reject every request.
func NewValidator(config Config) (*Validator, error) {
	if config.SigningKey == "" {
		return nil, ErrNoSigningKey
	}
	return &Validator{config: config}, nil
}

// ValidateToken verifies the signature, expiry and issuer, and returns
// the extracted user.
func (v *Validator) ValidateToken(tokenStr string) (*User, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(hmacMethods),
		jwt.WithExpirationRequired(),
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(v.config.SigningKey), nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return nil, ErrInvalidIssuer
	case err != nil:
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	user := &User{
		Subject: stringClaim(claims, "sub"),
		Name:    stringClaim(claims, "name"),
		Roles:   stringListClaim(claims, "roles"),
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		user.ExpiresAt = exp.Time
	}
	return user, nil
}

// Issue mints a token for the subject, signed with the configured key.
// The CLI and tests use this; deployments usually have their own
// issuer sharing the key.
func (v *Validator) Issue(subject string, roles ...string) (string, error) {
	ttl := v.config.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.config.Issuer != "" {
		claims["iss"] = v.config.Issuer
	}
	if len(roles) > 0 {
		claims["roles"] = roles
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.config.SigningKey))
}

// stringClaim extracts a string claim from the claims map.
func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// stringListClaim extracts a string list claim, accepting both JSON
// arrays and the []string an issued token round-trips through.
func stringListClaim(claims jwt.MapClaims, key string) []string {
	var result []string
	switch v := claims[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
	case []string:
		result = v
	}
	return result
}
