package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaign-autopilot/cap/internal/models"
)

type fakeStore struct {
	creds map[string]models.Credentials
	calls int
}

func (f *fakeStore) Get(ctx context.Context, storeID string) (models.Credentials, error) {
	f.calls++
	creds, ok := f.creds[storeID]
	if !ok {
		return models.Credentials{}, models.ErrCredentialsNotFound
	}
	return creds, nil
}

type fakeCache struct {
	data     map[string][]byte
	getErr   error
	setErr   error
	setCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.data[key]
	if !ok {
		return models.ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func TestResolveMissOnThenHit(t *testing.T) {
	store := &fakeStore{creds: map[string]models.Credentials{
		"store-1": {StoreID: "store-1", AccessToken: "token-1", Region: "sg"},
	}}
	cache := newFakeCache()
	r := NewResolver(store, cache, time.Minute, nil)

	creds, err := r.Resolve(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", creds.AccessToken)
	assert.Equal(t, 1, store.calls)

	// Second resolve is served from cache
	creds, err = r.Resolve(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", creds.AccessToken)
	assert.Equal(t, 1, store.calls)
}

func TestResolveUnknownStore(t *testing.T) {
	r := NewResolver(&fakeStore{}, newFakeCache(), time.Minute, nil)

	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrCredentialsNotFound)
}

func TestResolveCacheReadFailureFallsThrough(t *testing.T) {
	store := &fakeStore{creds: map[string]models.Credentials{
		"store-1": {StoreID: "store-1", AccessToken: "token-1"},
	}}
	cache := newFakeCache()
	cache.getErr = fmt.Errorf("redis down")
	r := NewResolver(store, cache, time.Minute, nil)

	creds, err := r.Resolve(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", creds.AccessToken)
}

func TestResolveCacheWriteFailureIsBestEffort(t *testing.T) {
	store := &fakeStore{creds: map[string]models.Credentials{
		"store-1": {StoreID: "store-1", AccessToken: "token-1"},
	}}
	cache := newFakeCache()
	cache.setErr = fmt.Errorf("redis down")
	r := NewResolver(store, cache, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.setCalls)
}

func TestResolveWithoutCache(t *testing.T) {
	store := &fakeStore{creds: map[string]models.Credentials{
		"store-1": {StoreID: "store-1", AccessToken: "token-1"},
	}}
	r := NewResolver(store, nil, 0, nil)

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "store-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.calls)
}
