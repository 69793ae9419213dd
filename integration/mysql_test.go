package integration

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIntegration(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	t.Run("valid integration", func(t *testing.T) {
		i := createTestIntegration(t, store, "Team Jira", ProviderJira)
		assert.NotEqual(t, uuid.Nil, i.ID)

		got, err := store.GetByID(ctx, i.ID)
		require.NoError(t, err)
		assert.Equal(t, "Team Jira", got.Name)
		assert.Equal(t, ProviderJira, got.Provider)
		assert.True(t, got.IsActive)
		assert.NotEmpty(t, got.EncryptedCredentials)
	})

	t.Run("missing name", func(t *testing.T) {
		i := &Integration{CreatedBy: uuid.New(), Provider: ProviderGitHub, EncryptedCredentials: []byte{1}}
		assert.ErrorIs(t, store.Create(ctx, i), ErrInvalidName)
	})

	t.Run("bad provider", func(t *testing.T) {
		i := &Integration{CreatedBy: uuid.New(), Name: "x", Provider: ProviderType("gitlab"), EncryptedCredentials: []byte{1}}
		assert.ErrorIs(t, store.Create(ctx, i), ErrInvalidProvider)
	})

	t.Run("missing credentials", func(t *testing.T) {
		i := &Integration{CreatedBy: uuid.New(), Name: "x", Provider: ProviderGitHub}
		assert.Error(t, store.Create(ctx, i))
	})
}

func TestUpdateIntegration(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	i := createTestIntegration(t, store, "Old Name", ProviderBrowserbase)

	t.Run("rotating credentials", func(t *testing.T) {
		key := DeriveKey("test-passphrase")
		rotated, err := EncryptCredentials(key, map[string]string{"api_token": "rotated"})
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, i.ID,
			SetName("New Name"),
			SetIsActive(false),
			SetEncryptedCredentials(rotated),
		))

		got, err := store.GetByID(ctx, i.ID)
		require.NoError(t, err)
		assert.Equal(t, "New Name", got.Name)
		assert.False(t, got.IsActive)

		creds, err := DecryptCredentials(key, got.EncryptedCredentials)
		require.NoError(t, err)
		assert.Equal(t, "rotated", creds["api_token"])
	})

	t.Run("unknown integration", func(t *testing.T) {
		err := store.Update(ctx, uuid.New(), SetName("nope"))
		assert.ErrorIs(t, err, ErrIntegrationNotFound)
	})
}

func TestDeleteIntegration(t *testing.T) {
	_, store := setupTestStore(t)
	ctx := context.Background()

	i := createTestIntegration(t, store, "Doomed", ProviderAzureDevOps)

	require.NoError(t, store.Delete(ctx, i.ID))
	_, err := store.GetByID(ctx, i.ID)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
	assert.ErrorIs(t, store.Delete(ctx, i.ID), ErrIntegrationNotFound)
}

func TestProviderTypeIsValid(t *testing.T) {
	for _, p := range []ProviderType{ProviderJira, ProviderAzureDevOps, ProviderGitHub, ProviderBrowserbase, ProviderAzureOpenAI} {
		assert.True(t, p.IsValid())
	}
	assert.False(t, ProviderType("slack").IsValid())
}
