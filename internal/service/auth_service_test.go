package service

import (
	"testing"
	"time"

	"parking_market/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_ValidateToken(t *testing.T) {
	svc := NewAuthService("secret")
	user := domain.User{ID: "42", Username: "buyer", Role: "buyer"}

	t.Run("Valid", func(t *testing.T) {
		token, err := svc.IssueToken(user, time.Hour)
		require.NoError(t, err)

		got, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, user, *got)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := svc.IssueToken(user, -time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Wrong secret", func(t *testing.T) {
		token, err := NewAuthService("other").IssueToken(user, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Missing subject", func(t *testing.T) {
		token, err := svc.IssueToken(domain.User{}, time.Hour)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
