// Package credentials resolves store access credentials for the
// orchestrator, fronting the database with a short-lived cache so one
// cycle touching many rules for the same store does not repeat the lookup.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campaign-autopilot/cap/internal/models"
)

// Store is the durable credential source
type Store interface {
	Get(ctx context.Context, storeID string) (models.Credentials, error)
}

// Cache is the short-TTL lookaside in front of the store
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Resolver resolves credentials per store
type Resolver struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver creates a credential resolver. cache may be nil, in which
// case every resolve hits the store.
func NewResolver(store Store, cache Cache, ttl time.Duration, logger *slog.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, ttl: ttl, logger: logger}
}

// Resolve returns the credentials for a store, or
// models.ErrCredentialsNotFound when none are on file.
func (r *Resolver) Resolve(ctx context.Context, storeID string) (models.Credentials, error) {
	key := "credentials:" + storeID

	if r.cache != nil {
		var cached models.Credentials
		err := r.cache.Get(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			// Cache trouble should not block the cycle; fall through to
			// the store.
			r.logger.Warn("credential cache read failed", "store_id", storeID, "error", err)
		}
	}

	creds, err := r.store.Get(ctx, storeID)
	if err != nil {
		return models.Credentials{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, creds, r.ttl); err != nil {
			r.logger.Warn("credential cache write failed", "store_id", storeID, "error", err)
		}
	}

	return creds, nil
}
