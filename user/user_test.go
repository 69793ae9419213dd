package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPasswordModel(t *testing.T) {
	t.Run("hashes the password", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.SetPassword("password123"))

		assert.NotEmpty(t, u.PasswordHash)
		assert.NotEqual(t, "password123", u.PasswordHash)
	})

	t.Run("too short", func(t *testing.T) {
		u := &User{}
		assert.ErrorIs(t, u.SetPassword("short"), ErrPasswordTooShort)
		assert.Empty(t, u.PasswordHash)
	})
}

func TestCheckPassword(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("password123"))

	assert.True(t, u.CheckPassword("password123"))
	assert.False(t, u.CheckPassword("wrong-password"))
	assert.False(t, u.CheckPassword(""))
}

func TestUserValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		u := &User{Email: "a@b.c", Username: "ab"}
		assert.NoError(t, u.Validate())
	})

	t.Run("missing email", func(t *testing.T) {
		u := &User{Username: "ab"}
		assert.ErrorIs(t, u.Validate(), ErrInvalidEmail)
	})

	t.Run("missing username", func(t *testing.T) {
		u := &User{Email: "a@b.c"}
		assert.ErrorIs(t, u.Validate(), ErrInvalidUsername)
	})
}
