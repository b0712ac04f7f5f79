// Package auth encodes and decodes RS256 access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the typ claim of every access token.
const TokenTypeAccess = "access"

// DefaultAccessTTL is the lifetime of an access token.
const DefaultAccessTTL = 15 * time.Minute

// AccessClaims are the claims carried by an access token. Encoding goes
// through encoding/json of this fixed struct, so the field order is stable.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Type string `json:"typ"`
}

// UserID is the subject of the token.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// Signer signs claims and resolves verification keys. keys.Ring implements it.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	Keyfunc(token *jwt.Token) (any, error)
}

// Codec turns AccessClaims into compact signed tokens and back.
type Codec struct {
	signer Signer
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithIssuer sets the iss claim of issued tokens and requires it on decode.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) { c.issuer = issuer }
}

// WithTimeFunc replaces time.Now for issuing and expiry checks.
func WithTimeFunc(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(signer Signer, ttl time.Duration, opts ...CodecOption) *Codec {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	c := &Codec{signer: signer, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL is the lifetime given to issued tokens.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// IssueAccess mints claims for the user with a fresh jti and signs them.
func (c *Codec) IssueAccess(userID, role string) (string, *AccessClaims, error) {
	now := c.now().Truncate(jwt.TimePrecision)
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Role: role,
		Type: TokenTypeAccess,
	}
	token, err := c.EncodeAccess(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (c *Codec) EncodeAccess(claims *AccessClaims) (string, error) {
	if claims == nil || claims.Subject == "" || claims.ID == "" || claims.ExpiresAt == nil {
		return "", fmt.Errorf("%w: incomplete claims", common.ErrInvalidInput)
	}
	if claims.Type == "" {
		claims.Type = TokenTypeAccess
	}
	return c.signer.Sign(claims)
}

// DecodeAccess verifies the signature, then the expiry, and returns the
// claims. Failures are common.ErrTokenExpired or common.ErrTokenInvalid,
// the latter joined with ErrMalformedToken or ErrInvalidSignature when the
// cause is known.
func (c *Codec) DecodeAccess(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, c.signer.Keyfunc, opts...)
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, common.ErrTokenInvalid
	}
	if claims.Type != TokenTypeAccess || claims.Subject == "" || claims.ID == "" {
		return nil, common.ErrTokenInvalid
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", common.ErrTokenInvalid, common.ErrMalformedToken)
	case errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", common.ErrTokenInvalid, common.ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
}
