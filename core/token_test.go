package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("super-secret")
	tok, expiresAt, err := svc.Issue("alice", 30*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 2*time.Second)

	sub, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)
}

func TestTokenService_DefaultTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewTokenService("k").WithClock(func() time.Time { return now })

	_, expiresAt, err := svc.Issue("bob", 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(DefaultTokenTTL), expiresAt)
}

func TestTokenService_ExpiredIsInvalid(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	issuer := NewTokenService("k").WithClock(func() time.Time { return issued })
	tok, _, err := issuer.Issue("alice", 30*time.Minute)
	require.NoError(t, err)

	before := issuer.WithClock(func() time.Time { return issued.Add(29 * time.Minute) })
	_, err = before.Validate(tok)
	require.NoError(t, err)

	for _, offset := range []time.Duration{30 * time.Minute, 31 * time.Minute, 24 * time.Hour} {
		later := issuer.WithClock(func() time.Time { return issued.Add(offset) })
		_, err := later.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "offset %s", offset)
	}
}

func TestTokenService_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewTokenService("right-secret").Issue("u2", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("wrong-secret").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsMalformedAndForeignTokens(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("k")

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":    "",
		"garbage":  "not.a.jwt",
		"hs512":    hs512,
		"no exp":   noExp,
		"no sub":   noSub,
		"alg none": unsigned,
	}
	for name, tok := range cases {
		_, err := svc.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func TestTokenService_EmptySubject(t *testing.T) {
	t.Parallel()

	_, _, err := NewTokenService("k").Issue("", time.Minute)
	assert.Error(t, err)
}
