package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-api/internal/models"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
)

func TestCacheRepositoryDisabledActsAsMiss(t *testing.T) {
	repo := NewCacheRepository(nil, nil)

	_, err := repo.GetValidation(context.Background(), "tok")
	require.True(t, appErrors.HasCode(err, appErrors.ErrCacheMiss))

	result := models.ValidationResult{Valid: true, UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.SetValidation(context.Background(), "tok", result, 30*time.Second))
	require.NoError(t, repo.InvalidateToken(context.Background(), "tok"))
	require.NoError(t, repo.Close())
}

func TestCacheKeyNeverEmbedsToken(t *testing.T) {
	token := "super-secret-session-token"
	key := cacheKey(token)
	require.NotContains(t, key, token)

	// Same token, same key; different token, different key.
	require.Equal(t, key, cacheKey(token))
	require.NotEqual(t, key, cacheKey(token+"x"))
}
