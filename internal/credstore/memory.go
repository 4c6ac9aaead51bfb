// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package credstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/user"
)

// entry is a value with an absolute expiry time.
type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local [Store] with TTL-aware entries.
//
// # Concurrency
//
// Safe for concurrent use. The transport reads tokens on every request while
// the refresh coordinator rotates them; a read immediately following
// SetTokens observes the new values.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory credential store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// get returns the live value for a key, or "" when absent or expired.
func (store *MemoryStore) get(key string) string {
	store.mu.RLock()
	defer store.mu.RUnlock()

	e, ok := store.entries[key]
	if !ok || store.now().After(e.expiresAt) {
		return ""
	}
	return e.value
}

// set writes a value with the given TTL.
func (store *MemoryStore) set(key, value string, ttl time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.entries[key] = entry{value: value, expiresAt: store.now().Add(ttl)}
}

// AccessToken returns the stored access token, or "" when unset or expired.
func (store *MemoryStore) AccessToken(context.Context) string {
	return store.get(constants.KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when unset or expired.
func (store *MemoryStore) RefreshToken(context.Context) string {
	return store.get(constants.KeyRefreshToken)
}

// SetTokens writes the access token and, when non-empty, the refresh token.
// An empty refresh token preserves the previously stored one.
func (store *MemoryStore) SetTokens(_ context.Context, access, refresh string) {
	store.set(constants.KeyAccessToken, access, constants.AccessTokenTTL)
	if refresh != "" {
		store.set(constants.KeyRefreshToken, refresh, constants.RefreshTokenTTL)
	}
}

// ClearTokens removes tokens and the cached user. Idempotent.
func (store *MemoryStore) ClearTokens(context.Context) {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.entries, constants.KeyAccessToken)
	delete(store.entries, constants.KeyRefreshToken)
	delete(store.entries, constants.KeyUser)
}

// StoreUser caches the profile snapshot. Serialization failure is silent.
func (store *MemoryStore) StoreUser(_ context.Context, record *user.Record) {
	if record == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	store.set(constants.KeyUser, string(data), constants.UserCacheTTL)
}

// User returns the cached profile snapshot, or nil when absent or corrupt.
func (store *MemoryStore) User(context.Context) *user.Record {
	raw := store.get(constants.KeyUser)
	if raw == "" {
		return nil
	}

	record := &user.Record{}
	if err := json.Unmarshal([]byte(raw), record); err != nil {
		return nil
	}
	return record
}

// ClearUser removes only the cached profile snapshot.
func (store *MemoryStore) ClearUser(context.Context) {
	store.mu.Lock()
	defer store.mu.Unlock()

	delete(store.entries, constants.KeyUser)
}
