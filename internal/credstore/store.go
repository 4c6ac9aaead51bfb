// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package credstore persists tokens and the cached profile snapshot.

It abstracts over three backends (memory, file, redis), all sharing the same
expiry semantics: access tokens live one day, refresh tokens seven.

# Contract

Every operation is always safe to call. Reads return zero values when the
backing medium is unavailable or the entry has expired; writes degrade to
no-ops. Nothing in this package ever panics or surfaces storage errors to
callers, because callers (the transport hot path included) cannot do anything
useful with them.
*/
package credstore

import (
	"context"

	"github.com/townspark/townspark-go/internal/user"
)

// # Credential Storage

// Store defines the persistence contract for tokens and the cached user.
type Store interface {

	/*
		AccessToken returns the stored short-lived bearer token.

		Parameters:
		  - context: context.Context

		Returns:
		  - string: The token, or "" when unset, expired, or unreadable
	*/
	AccessToken(context context.Context) string

	/*
		RefreshToken returns the stored long-lived refresh token.

		Parameters:
		  - context: context.Context

		Returns:
		  - string: The token, or "" when unset, expired, or unreadable
	*/
	RefreshToken(context context.Context) string

	/*
		SetTokens writes the access token (1-day expiry) and, when non-empty,
		the refresh token (7-day expiry).

		Description: The two writes are independent. Omitting the refresh
		token (empty string) must preserve a previously stored one.

		Parameters:
		  - context: context.Context
		  - access: string
		  - refresh: string (optional; "" preserves the existing value)
	*/
	SetTokens(context context.Context, access, refresh string)

	/*
		ClearTokens removes the access token, refresh token, and cached user
		unconditionally.

		Description: Idempotent; calling it on an empty store is a no-op.

		Parameters:
		  - context: context.Context
	*/
	ClearTokens(context context.Context)

	/*
		StoreUser caches the profile snapshot (JSON-serialized).

		Parameters:
		  - context: context.Context
		  - record: *user.Record
	*/
	StoreUser(context context.Context, record *user.Record)

	/*
		User returns the cached profile snapshot.

		Description: Serialization failures are silent; a corrupt entry
		reads as nil, never as an error.

		Parameters:
		  - context: context.Context

		Returns:
		  - *user.Record: The snapshot, or nil
	*/
	User(context context.Context) *user.Record

	/*
		ClearUser removes only the cached profile snapshot.

		Parameters:
		  - context: context.Context
	*/
	ClearUser(context context.Context)
}
