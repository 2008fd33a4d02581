package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Fixed claim values minted by the identity provider's handoff endpoint.
const (
	Issuer   = "quenty.com.br"
	Audience = "webchannel"
)

// Payload is the identity claim extracted from a valid handoff token. It is
// transient; nothing stores it beyond the verification call.
type Payload struct {
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type handoffClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates compact HMAC-signed handoff tokens. It is stateless and
// safe for concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier fails when no signing secret is configured. A verifier must
// never operate without one, or forged tokens would be accepted.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("webchannel signing secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify checks the three-segment signed token and returns its identity
// claim, or nil for anything malformed, forged, expired, or mis-claimed.
// It never panics on untrusted input.
//
// Rules: HMAC-SHA256 over header.payload, compared timing-safe; issuer and
// audience must match the fixed literals; email must be a non-empty string;
// exp and iat must be present; exp <= now rejects with no leeway.
func (v *Verifier) Verify(tokenString string) *Payload {
	claims := &handoffClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || parsed == nil || !parsed.Valid {
		return nil
	}

	// jwt requires exp via the option above; iat and email are ours to check.
	if claims.Email == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil
	}

	return &Payload{
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}
