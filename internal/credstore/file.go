// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package credstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/user"
)

// fileEntry is a persisted value with an absolute expiry timestamp.
type fileEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore is a [Store] backed by a single JSON file.
//
// # Degradation
//
// When the file cannot be created, read, or written (read-only filesystem,
// missing home directory, corrupt content), every operation degrades to the
// in-memory zero behavior instead of failing. This mirrors running the web
// client outside a browser context: storage simply is not there.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileStore creates a file-backed credential store at the given path.
// The parent directory is created lazily on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// load reads and decodes the backing file. Any failure reads as empty.
func (store *FileStore) load() map[string]fileEntry {
	data, err := os.ReadFile(store.path)
	if err != nil {
		return map[string]fileEntry{}
	}

	entries := map[string]fileEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]fileEntry{}
	}
	return entries
}

// save encodes and writes the backing file. Failures are silent.
func (store *FileStore) save(entries map[string]fileEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(store.path), 0o700); err != nil {
		return
	}

	// 0600: the file holds bearer credentials.
	_ = os.WriteFile(store.path, data, 0o600)
}

// get returns the live value for a key, or "" when absent or expired.
func (store *FileStore) get(key string) string {
	store.mu.Lock()
	defer store.mu.Unlock()

	e, ok := store.load()[key]
	if !ok || store.now().After(e.ExpiresAt) {
		return ""
	}
	return e.Value
}

// set writes a single key with the given TTL.
func (store *FileStore) set(key, value string, ttl time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entries := store.load()
	entries[key] = fileEntry{Value: value, ExpiresAt: store.now().Add(ttl)}
	store.save(entries)
}

// AccessToken returns the stored access token, or "" when unavailable.
func (store *FileStore) AccessToken(context.Context) string {
	return store.get(constants.KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when unavailable.
func (store *FileStore) RefreshToken(context.Context) string {
	return store.get(constants.KeyRefreshToken)
}

// SetTokens writes the access token and, when non-empty, the refresh token.
func (store *FileStore) SetTokens(_ context.Context, access, refresh string) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entries := store.load()
	entries[constants.KeyAccessToken] = fileEntry{
		Value:     access,
		ExpiresAt: store.now().Add(constants.AccessTokenTTL),
	}
	if refresh != "" {
		entries[constants.KeyRefreshToken] = fileEntry{
			Value:     refresh,
			ExpiresAt: store.now().Add(constants.RefreshTokenTTL),
		}
	}
	store.save(entries)
}

// ClearTokens removes tokens and the cached user. Idempotent.
func (store *FileStore) ClearTokens(context.Context) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entries := store.load()
	delete(entries, constants.KeyAccessToken)
	delete(entries, constants.KeyRefreshToken)
	delete(entries, constants.KeyUser)
	store.save(entries)
}

// StoreUser caches the profile snapshot. Failures are silent.
func (store *FileStore) StoreUser(_ context.Context, record *user.Record) {
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
func (store *FileStore) User(context.Context) *user.Record {
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
func (store *FileStore) ClearUser(context.Context) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entries := store.load()
	delete(entries, constants.KeyUser)
	store.save(entries)
}
