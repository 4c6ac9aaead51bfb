// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/user"
)

// RedisStore is a [Store] backed by Redis with real key TTLs.
//
// Used by server-rendered deployments where the Go process acts on behalf of
// many browser sessions; keys are namespaced by device ID so one instance
// can hold credentials for several clients.
//
// # Degradation
//
// Connectivity failures are logged at debug level and otherwise silent:
// reads return "", writes are dropped. The session layer treats a missing
// access token as "logged out", which is the correct observable behavior
// when the store is unreachable.
type RedisStore struct {
	client   *redis.Client
	deviceID string
	log      *slog.Logger
}

// NewRedisStore creates a Redis-backed credential store.
//
// # Parameters
//   - client: Connected go-redis client.
//   - deviceID: Namespace for this client instance's keys.
//   - logger: Structured logger for degraded-operation diagnostics.
func NewRedisStore(client *redis.Client, deviceID string, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, deviceID: deviceID, log: logger}
}

// key builds the namespaced Redis key for a credential field.
func (store *RedisStore) key(name string) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisPrefixCredential, store.deviceID, name)
}

// get returns the value for a key, or "" on miss or connectivity failure.
func (store *RedisStore) get(context context.Context, name string) string {
	value, err := store.client.Get(context, store.key(name)).Result()
	if err != nil {
		if err != redis.Nil {
			store.log.Debug("credstore read degraded", slog.String("key", name), slog.Any("error", err))
		}
		return ""
	}
	return value
}

// AccessToken returns the stored access token, or "" when unavailable.
func (store *RedisStore) AccessToken(context context.Context) string {
	return store.get(context, constants.KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when unavailable.
func (store *RedisStore) RefreshToken(context context.Context) string {
	return store.get(context, constants.KeyRefreshToken)
}

// SetTokens writes the access token and, when non-empty, the refresh token,
// each with its own TTL. Write failures are logged and dropped.
func (store *RedisStore) SetTokens(context context.Context, access, refresh string) {
	if err := store.client.Set(context, store.key(constants.KeyAccessToken), access, constants.AccessTokenTTL).Err(); err != nil {
		store.log.Debug("credstore write degraded", slog.Any("error", err))
	}

	if refresh == "" {
		return
	}
	if err := store.client.Set(context, store.key(constants.KeyRefreshToken), refresh, constants.RefreshTokenTTL).Err(); err != nil {
		store.log.Debug("credstore write degraded", slog.Any("error", err))
	}
}

// ClearTokens removes tokens and the cached user. Idempotent.
func (store *RedisStore) ClearTokens(context context.Context) {
	err := store.client.Del(context,
		store.key(constants.KeyAccessToken),
		store.key(constants.KeyRefreshToken),
		store.key(constants.KeyUser),
	).Err()
	if err != nil {
		store.log.Debug("credstore clear degraded", slog.Any("error", err))
	}
}

// StoreUser caches the profile snapshot. Failures are silent.
func (store *RedisStore) StoreUser(context context.Context, record *user.Record) {
	if record == nil {
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := store.client.Set(context, store.key(constants.KeyUser), string(data), constants.UserCacheTTL).Err(); err != nil {
		store.log.Debug("credstore write degraded", slog.Any("error", err))
	}
}

// User returns the cached profile snapshot, or nil when absent or corrupt.
func (store *RedisStore) User(context context.Context) *user.Record {
	raw := store.get(context, constants.KeyUser)
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
func (store *RedisStore) ClearUser(context context.Context) {
	if err := store.client.Del(context, store.key(constants.KeyUser)).Err(); err != nil {
		store.log.Debug("credstore clear degraded", slog.Any("error", err))
	}
}
