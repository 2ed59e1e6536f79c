package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/session-api/internal/models"
	appErrors "github.com/noah-isme/session-api/pkg/errors"
)

// CacheRepository caches positive validation results in Redis so the
// per-request Validate path stays off the database. Raw tokens never
// reach Redis; keys are derived from a token digest.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client
// disables caching and every lookup reports a miss.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func cacheKey(sessionToken string) string {
	sum := sha256.Sum256([]byte(sessionToken))
	return "session:valid:" + hex.EncodeToString(sum[:])
}

// cachedValidation is the Redis payload. It has its own shape because
// ValidationResult hides the session ID from API responses, and the
// cache must round-trip it.
type cachedValidation struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetValidation retrieves a cached validation result for the token.
func (r *CacheRepository) GetValidation(ctx context.Context, sessionToken string) (*models.ValidationResult, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, cacheKey(sessionToken)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get validation: %w", err)
	}

	var cached cachedValidation
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("unmarshal cached validation: %w", err)
	}

	return &models.ValidationResult{
		Valid:     true,
		SessionID: cached.SessionID,
		UserID:    cached.UserID,
		ExpiresAt: cached.ExpiresAt,
	}, nil
}

// SetValidation caches a positive validation result. The TTL is clamped
// to the session's remaining lifetime so a cached entry can never
// outlive the token it vouches for.
func (r *CacheRepository) SetValidation(ctx context.Context, sessionToken string, result models.ValidationResult, ttl time.Duration) error {
	if r.client == nil || !result.Valid {
		return nil
	}

	if remaining := time.Until(result.ExpiresAt); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(cachedValidation{
		SessionID: result.SessionID,
		UserID:    result.UserID,
		ExpiresAt: result.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal validation result: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(sessionToken), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set validation: %w", err)
	}

	return nil
}

// InvalidateToken drops the cached entry for a session token. Called on
// rotation and revocation so stale positives disappear immediately.
func (r *CacheRepository) InvalidateToken(ctx context.Context, sessionToken string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, cacheKey(sessionToken)).Err(); err != nil {
		return fmt.Errorf("redis delete validation: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
