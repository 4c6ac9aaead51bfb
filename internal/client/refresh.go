// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package client

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/platform/apperr"
	"github.com/townspark/townspark-go/internal/platform/constants"
)

// refreshKey is the single singleflight key: there is exactly one kind of
// refresh, so all concurrent 401 holders collapse onto one flight.
const refreshKey = "token_refresh"

// tokenPair is the refresh endpoint's payload. The backend rotates refresh
// tokens, so a successful refresh returns both.
type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// refreshCoordinator serializes concurrent token-refresh attempts.
//
// # Invariant
//
// For any number of authenticated requests failing with 401 before a refresh
// completes, at most one call reaches the refresh endpoint. Every waiter
// shares that flight's outcome: on success each replays its original request
// with the rotated token; on failure all observe TOKEN_EXPIRED.
type refreshCoordinator struct {
	group     singleflight.Group
	transport *Transport
	store     credstore.Store
	log       *slog.Logger

	// onExpired fires exactly once per failed flight, after credentials
	// are cleared. The session layer hangs its forced-logout here.
	onExpired func()
}

func newRefreshCoordinator(transport *Transport, store credstore.Store, logger *slog.Logger) *refreshCoordinator {
	return &refreshCoordinator{
		transport: transport,
		store:     store,
		log:       logger,
	}
}

/*
resolve handles a 401 on an authenticated request.

Description: Joins (or starts) the single in-flight refresh. When the
refresh succeeds, the original request is replayed with the rotated token
and the replay's envelope replaces the discarded 401. When it fails, the
caller receives TOKEN_EXPIRED; a replayed request that still gets 401 is
surfaced as-is rather than triggering another refresh.

Parameters:
  - ctx: The original caller's context (governs the replay).
  - rc: The built, replayable request.

Returns:
  - *Envelope: The replay outcome or a TOKEN_EXPIRED failure.
*/
func (coordinator *refreshCoordinator) resolve(ctx context.Context, rc *requestConfig) *Envelope {

	// The flight runs on a detached context: one canceled caller must not
	// poison the refresh every other waiter is sharing. The transport's own
	// deadline still bounds the call.
	flightCtx := context.WithoutCancel(ctx)

	_, err, shared := coordinator.group.Do(refreshKey, func() (any, error) {
		return nil, coordinator.refresh(flightCtx)
	})
	if err != nil {
		return fail(http.StatusUnauthorized, apperr.TokenExpired())
	}

	if shared {
		coordinator.log.Debug("refresh flight shared by concurrent request")
	}

	// Replay with the rotated token; execute re-reads the store, so the
	// new Authorization header is picked up automatically. A second 401
	// here is final: no refresh-of-refresh.
	return coordinator.transport.execute(ctx, rc)
}

// refresh performs the one network call that mints a new token pair.
// On any failure the credentials are cleared and the expiry callback fires;
// recovery from here requires a fresh login.
func (coordinator *refreshCoordinator) refresh(ctx context.Context) error {
	refreshToken := coordinator.store.RefreshToken(ctx)
	if refreshToken == "" {
		coordinator.expire(ctx)
		return apperr.TokenExpired()
	}

	rc, err := coordinator.transport.buildRequest(http.MethodPost, constants.EndpointTokenRefresh, Options{
		Data: map[string]string{constants.FieldRefresh: refreshToken},
	})
	if err != nil {
		coordinator.expire(ctx)
		return apperr.TokenExpired()
	}

	envelope := coordinator.transport.execute(ctx, rc)
	if !envelope.Success {
		coordinator.log.Debug("token refresh rejected",
			slog.Int("status", envelope.StatusCode),
			slog.String("code", string(envelope.ErrorCode())),
		)
		coordinator.expire(ctx)
		return apperr.TokenExpired()
	}

	pair, err := Decode[tokenPair](envelope)
	if err != nil || pair.Access == "" {
		coordinator.expire(ctx)
		return apperr.TokenExpired()
	}

	// Persist the rotated pair. Read-after-write consistency of the store
	// guarantees the replays see the new access token.
	coordinator.store.SetTokens(ctx, pair.Access, pair.Refresh)
	return nil
}

// expire clears all credentials and fires the forced-logout callback.
func (coordinator *refreshCoordinator) expire(ctx context.Context) {
	coordinator.store.ClearTokens(ctx)
	if coordinator.onExpired != nil {
		coordinator.onExpired()
	}
}
