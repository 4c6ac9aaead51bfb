// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package constants provides centralized, immutable values for the client SDK.

It defines default timeouts, token lifetimes, and cross-cutting keys that are
shared between different layers of the SDK.

Categories:

  - Request Timing: Deadlines for outbound HTTP calls.
  - Token Lifetimes: Expiry windows for stored credentials.
  - Storage Keys: Names under which credentials are persisted.
  - Endpoints: Relative paths of the TownSpark REST API.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "townspark-sdk"
	AppVersion = "0.1.0-dev"
)

// # Request Timing

const (
	// DefaultRequestTimeout bounds every outbound API call. A request that
	// exceeds this deadline is aborted and surfaced as TIMEOUT.
	DefaultRequestTimeout = 30 * time.Second

	// RefreshRequestTimeout bounds the token refresh call. It reuses the
	// default request deadline; no additional retry or backoff is applied.
	RefreshRequestTimeout = DefaultRequestTimeout
)

// # Token Lifetimes

const (
	// AccessTokenTTL is how long a stored access token stays readable.
	// Matches the server-side bearer token lifetime.
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is how long a stored refresh token stays readable.
	RefreshTokenTTL = 7 * 24 * time.Hour

	// UserCacheTTL bounds the cached profile snapshot. Tied to the refresh
	// token window: with no refresh token left the snapshot is useless anyway.
	UserCacheTTL = RefreshTokenTTL
)

// # Storage Keys

const (
	// KeyAccessToken names the stored short-lived bearer token.
	KeyAccessToken = "townspark_access_token"

	// KeyRefreshToken names the stored long-lived refresh token.
	KeyRefreshToken = "townspark_refresh_token"

	// KeyUser names the cached profile snapshot (JSON).
	KeyUser = "townspark_user"
)

// # Endpoints

const (
	EndpointLogin                = "/auth/login"
	EndpointLogout               = "/auth/logout/"
	EndpointRegister             = "/auth/users/"
	EndpointRegisterResolver     = "/auth/register/resolver/"
	EndpointTokenRefresh         = "/auth/token/refresh/"
	EndpointPasswordReset        = "/auth/users/reset_password/"
	EndpointPasswordResetConfirm = "/auth/users/reset_password_confirm/"
	EndpointSetPassword          = "/auth/users/set_password/"
	EndpointCurrentUser          = "/auth/users/me/"
	EndpointIssues               = "/issues/"
)

// # Defaults

const (
	// DefaultAPIBaseURL points at a local development backend.
	DefaultAPIBaseURL = "http://localhost:8000/api"
)

// # HTTP Headers

const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-ID"

	ContentTypeJSON = "application/json"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldErrors  = "errors"
	FieldMessage = "message"
	FieldDetail  = "detail"
	FieldAccess  = "access"
	FieldRefresh = "refresh"
	FieldTokens  = "tokens"
	FieldUser    = "user"
)

// # Redis Prefixes (Credential Taxonomy)

const (
	RedisPrefixCredential = "townspark:credential:"
)
