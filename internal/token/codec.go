// Package token mints and verifies the signed bearer tokens used by the
// session core.  Tokens are HS256 JWTs carrying the subject (e-mail), the
// role names held at mint time and an explicit token_type claim.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type distinguishes access tokens from refresh tokens.
type Type string

const (
	TypeAccess  Type = "ACCESS"
	TypeRefresh Type = "REFRESH"
)

// Claims is the claim set embedded in every token.
type Claims struct {
	Roles     []string `json:"roles"`
	TokenType Type     `json:"token_type"`
	jwt.RegisteredClaims
}

// Pair is an access and refresh token minted together.
type Pair struct {
	Access         string
	AccessExpires  time.Time
	Refresh        string
	RefreshExpires time.Time
}

// Codec encodes and verifies tokens with a single SigningKey.
type Codec struct {
	key        SigningKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock replaces the wall clock used for iat/exp and verification.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec builds a Codec.  accessTTL and refreshTTL are the lifetimes used
// by IssuePair.
func NewCodec(key SigningKey, accessTTL, refreshTTL time.Duration, opts ...Option) *Codec {
	c := &Codec{key: key, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c
}

// Mint signs a token for subject.  Every token gets a random jti so two
// mints in the same second never produce the same string.
func (c *Codec) Mint(subject string, roles []string, expiresAt time.Time, typ Type) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	if typ != TypeAccess && typ != TypeRefresh {
		return "", fmt.Errorf("unknown token type %q", typ)
	}
	claims := Claims{
		Roles:     append([]string(nil), roles...),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.bytes())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssuePair mints an access and a refresh token for subject using the
// configured lifetimes.
func (c *Codec) IssuePair(subject string, roles []string) (Pair, error) {
	now := c.now()
	p := Pair{
		AccessExpires:  now.Add(c.accessTTL),
		RefreshExpires: now.Add(c.refreshTTL),
	}
	var err error
	if p.Access, err = c.Mint(subject, roles, p.AccessExpires, TypeAccess); err != nil {
		return Pair{}, err
	}
	if p.Refresh, err = c.Mint(subject, roles, p.RefreshExpires, TypeRefresh); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// Parse verifies the signature and standard claims of raw and returns its
// claim set.  Errors are always one of ErrMalformedToken,
// ErrInvalidSignature or ErrExpiredToken.
func (c *Codec) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.key.bytes(), nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	default:
		return ErrMalformedToken
	}
}

// ExtractSubject returns the subject of a verifiable token.  A true result
// is not an authorization decision; callers must still check type and
// ownership.
func (c *Codec) ExtractSubject(raw string) (string, bool) {
	claims, err := c.Parse(raw)
	if err != nil {
		return "", false
	}
	return claims.Subject, true
}

// IsExpired is fail-closed: anything that does not verify counts as expired.
func (c *Codec) IsExpired(raw string) bool {
	_, err := c.Parse(raw)
	return err != nil
}

// IsAccessToken reports whether raw verifies and is an access token.
func (c *Codec) IsAccessToken(raw string) bool { return c.hasType(raw, TypeAccess) }

// IsRefreshToken reports whether raw verifies and is a refresh token.
func (c *Codec) IsRefreshToken(raw string) bool { return c.hasType(raw, TypeRefresh) }

func (c *Codec) hasType(raw string, typ Type) bool {
	claims, err := c.Parse(raw)
	return err == nil && claims.TokenType == typ
}
