package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "addonbay"

// sessionClaims is the JWT payload for a signed-in user.
type sessionClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier issues and validates HMAC-signed session tokens.
type Verifier struct {
	key   []byte
	ttl   time.Duration
	clock func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithSessionTTL overrides the default 30-day session lifetime.
func WithSessionTTL(ttl time.Duration) VerifierOption {
	return func(v *Verifier) {
		v.ttl = ttl
	}
}

// WithClock overrides time lookup, for tests.
func WithClock(clock func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.clock = clock
	}
}

// NewVerifier creates a Verifier signing with the given key.
func NewVerifier(key []byte, opts ...VerifierOption) (*Verifier, error) {
	if len(key) == 0 {
		return nil, errors.New("session key is required")
	}
	v := &Verifier{
		key:   key,
		ttl:   30 * 24 * time.Hour,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Issue signs a session token for the identity.
func (v *Verifier) Issue(ident Identity) (string, error) {
	if ident.UserID == "" {
		return "", ErrUnauthenticated
	}
	now := v.clock()
	claims := sessionClaims{
		Name: ident.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   ident.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and returns the identity it carries.
func (v *Verifier) Verify(raw string) (Identity, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return v.key, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthenticated
	}
	if claims.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UserID: claims.Subject, Name: claims.Name}, nil
}
