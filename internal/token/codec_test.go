package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretA = "test-secret-a-0123456789abcdefghij"
	secretB = "test-secret-b-0123456789abcdefghij"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCodec(t *testing.T, secret string, clock *fakeClock) *Codec {
	t.Helper()
	key, err := NewSigningKey(secret)
	require.NoError(t, err)
	return NewCodec(key, time.Minute, 24*time.Hour, WithClock(clock.Now))
}

func TestNewSigningKey_RejectsShortSecret(t *testing.T) {
	_, err := NewSigningKey("short")
	require.Error(t, err)

	_, err = NewSigningKey(strings.Repeat("k", MinKeyBytes))
	require.NoError(t, err)
}

func TestMintParse_RoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, secretA, clock)

	cases := []struct {
		subject string
		roles   []string
		typ     Type
	}{
		{"alice@test.com", []string{"USER"}, TypeAccess},
		{"root@test.com", []string{"ADMIN", "SUPER_ADMIN"}, TypeRefresh},
		{"nobody@test.com", nil, TypeAccess},
	}
	for _, tc := range cases {
		exp := clock.Now().Add(10 * time.Minute)
		raw, err := c.Mint(tc.subject, tc.roles, exp, tc.typ)
		require.NoError(t, err)

		claims, err := c.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, tc.subject, claims.Subject)
		assert.ElementsMatch(t, tc.roles, claims.Roles)
		assert.Equal(t, tc.typ, claims.TokenType)
		assert.True(t, claims.ExpiresAt.Time.Equal(exp))
		assert.True(t, claims.IssuedAt.Time.Equal(clock.Now()))
		assert.NotEmpty(t, claims.ID)
	}
}

func TestMint_SameInputsDifferentStrings(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, secretA, clock)
	exp := clock.Now().Add(time.Hour)

	a, err := c.Mint("alice@test.com", []string{"USER"}, exp, TypeRefresh)
	require.NoError(t, err)
	b, err := c.Mint("alice@test.com", []string{"USER"}, exp, TypeRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, HashToken(a), HashToken(b))
}

func TestMint_RejectsBadInput(t *testing.T) {
	c := newTestCodec(t, secretA, &fakeClock{t: time.Now()})
	_, err := c.Mint("", nil, time.Now().Add(time.Hour), TypeAccess)
	assert.Error(t, err)
	_, err = c.Mint("a@test.com", nil, time.Now().Add(time.Hour), Type("RESET"))
	assert.Error(t, err)
}

func TestParse_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, secretA, clock)
	raw, err := c.Mint("alice@test.com", []string{"USER"}, clock.Now().Add(time.Minute), TypeAccess)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	assert.False(t, c.IsExpired(raw))

	clock.Advance(time.Second) // now == exp
	assert.True(t, c.IsExpired(raw))
	_, err = c.Parse(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, ok := c.ExtractSubject(raw)
	assert.False(t, ok)
}

func TestParse_WrongKey(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	minted := newTestCodec(t, secretA, clock)
	other := newTestCodec(t, secretB, clock)

	raw, err := minted.Mint("alice@test.com", []string{"USER"}, clock.Now().Add(time.Hour), TypeAccess)
	require.NoError(t, err)

	_, err = other.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.True(t, other.IsExpired(raw))
}

func TestParse_TamperedPayload(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, secretA, clock)
	raw, err := c.Mint("alice@test.com", []string{"USER"}, clock.Now().Add(time.Hour), TypeAccess)
	require.NoError(t, err)

	// Re-sign a different claim set with another key and splice its payload in.
	forged, err := newTestCodec(t, secretB, clock).Mint("alice@test.com", []string{"SUPER_ADMIN"}, clock.Now().Add(time.Hour), TypeAccess)
	require.NoError(t, err)
	parts := strings.Split(raw, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	_, err = c.Parse(spliced)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParse_Malformed(t *testing.T) {
	c := newTestCodec(t, secretA, &fakeClock{t: time.Now()})
	for _, raw := range []string{"", "not-a-token", "a.b.c", "a.b"} {
		_, err := c.Parse(raw)
		assert.ErrorIs(t, err, ErrMalformedToken, raw)
		assert.True(t, c.IsExpired(raw), raw)
		_, ok := c.ExtractSubject(raw)
		assert.False(t, ok, raw)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, secretA, clock)
	claims := Claims{
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice@test.com",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(secretA))
	require.NoError(t, err)
	_, err = c.Parse(hs512)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = c.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParse_MissingTypeOrExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := newTestCodec(t, secretA, clock)

	noType, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice@test.com",
		"exp": clock.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secretA))
	require.NoError(t, err)
	_, err = c.Parse(noType)
	assert.ErrorIs(t, err, ErrMalformedToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "alice@test.com",
		"token_type": "ACCESS",
	}).SignedString([]byte(secretA))
	require.NoError(t, err)
	_, err = c.Parse(noExp)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestIssuePair(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestCodec(t, secretA, clock)

	p, err := c.IssuePair("alice@test.com", []string{"USER"})
	require.NoError(t, err)
	assert.NotEqual(t, p.Access, p.Refresh)
	assert.True(t, c.IsAccessToken(p.Access))
	assert.False(t, c.IsRefreshToken(p.Access))
	assert.True(t, c.IsRefreshToken(p.Refresh))
	assert.False(t, c.IsAccessToken(p.Refresh))
	assert.Equal(t, clock.Now().Add(time.Minute), p.AccessExpires)
	assert.Equal(t, clock.Now().Add(24*time.Hour), p.RefreshExpires)

	clock.Advance(2 * time.Minute)
	assert.True(t, c.IsExpired(p.Access))
	assert.False(t, c.IsExpired(p.Refresh))
	sub, ok := c.ExtractSubject(p.Refresh)
	assert.True(t, ok)
	assert.Equal(t, "alice@test.com", sub)
}
