package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v := NewJWTVerifier("test-key", "bouncehub")
	token, err := v.Sign("u42", "Ada", time.Minute)
	require.NoError(t, err)

	who, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "u42", who.ID)
	require.Equal(t, "Ada", who.DisplayName)
	require.True(t, who.Authenticated)
}

func TestJWTVerifierRejectsExpired(t *testing.T) {
	v := NewJWTVerifier("test-key", "bouncehub")
	token, err := v.Sign("u42", "Ada", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifierRejectsForeignKey(t *testing.T) {
	other := NewJWTVerifier("other-key", "bouncehub")
	token, err := other.Sign("u42", "Ada", time.Minute)
	require.NoError(t, err)

	v := NewJWTVerifier("test-key", "bouncehub")
	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifierRejectsWrongIssuer(t *testing.T) {
	other := NewJWTVerifier("test-key", "someone-else")
	token, err := other.Sign("u42", "Ada", time.Minute)
	require.NoError(t, err)

	v := NewJWTVerifier("test-key", "bouncehub")
	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestGuestIdentity(t *testing.T) {
	who := Guest(" g1 ", " Dana ")
	require.Equal(t, "g1", who.ID)
	require.Equal(t, "Dana", who.DisplayName)
	require.False(t, who.Authenticated)
	require.True(t, who.Valid())
	require.False(t, Guest("", "Dana").Valid())
	require.False(t, Guest("g1", "  ").Valid())
}
