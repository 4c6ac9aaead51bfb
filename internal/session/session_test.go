// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package session_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townspark/townspark-go/internal/client"
	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/platform/apperr"
	"github.com/townspark/townspark-go/internal/platform/config"
	"github.com/townspark/townspark-go/internal/platform/sec"
	"github.com/townspark/townspark-go/internal/session"
	"github.com/townspark/townspark-go/internal/user"
)

// fakeAPI is a chi-routed stand-in for the TownSpark backend.
type fakeAPI struct {
	server *httptest.Server

	loginCalls  atomic.Int32
	logoutCalls atomic.Int32

	// me is what GET /auth/users/me/ returns for a valid token.
	me user.Record
	// validToken gates the authenticated endpoints.
	validToken string
	// logoutStatus lets tests fail the server-side logout.
	logoutStatus int
}

func newFakeAPI() *fakeAPI {
	api := &fakeAPI{
		me:           user.Record{ID: "u1", Email: "ada@town.gov", FullName: "Ada"},
		validToken:   "valid-access",
		logoutStatus: http.StatusOK,
	}

	router := chi.NewRouter()

	router.Post("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		api.loginCalls.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tokens": map[string]string{"access": api.validToken, "refresh": "valid-refresh"},
			"user":   api.me,
		})
	})

	router.Get("/auth/users/me/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+api.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"not logged in"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(api.me)
	})

	router.Post("/auth/logout/", func(w http.ResponseWriter, r *http.Request) {
		api.logoutCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(api.logoutStatus)
		_, _ = w.Write([]byte(`{}`))
	})

	// The refresh endpoint always rejects; session tests that need a live
	// refresh path are covered in the client package.
	router.Post("/auth/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"refresh rejected"}`))
	})

	api.server = httptest.NewServer(router)
	return api
}

// newTestSession wires a session service against the fake API.
func newTestSession(api *fakeAPI) (*session.Service, *credstore.MemoryStore) {
	store := credstore.NewMemoryStore()
	cfg := &config.Config{APIBaseURL: api.server.URL, RequestTimeoutSeconds: 5}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	transport := client.NewTransport(cfg, store, logger)
	return session.NewService(transport, store), store
}

/*
TestService_LoginSuccess: a successful login persists both tokens, hydrates
the profile, and transitions to Authenticated.
*/
func TestService_LoginSuccess(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	var transitions []session.State
	unsubscribe := service.Subscribe(func(snapshot session.Snapshot) {
		transitions = append(transitions, snapshot.State)
	})
	defer unsubscribe()

	record, err := service.Login(context.Background(), "ada@town.gov", "pw")
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, "valid-access", store.AccessToken(context.Background()))
	assert.Equal(t, "valid-refresh", store.RefreshToken(context.Background()))
	assert.Equal(t, session.StateAuthenticated, service.State())
	assert.Equal(t, "ada@town.gov", service.CurrentUser().Email)
	assert.Contains(t, transitions, session.StateAuthenticated)
}

/*
TestService_LoginValidation: locally invalid input never reaches the wire.
*/
func TestService_LoginValidation(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, _ := newTestSession(api)
	defer service.Close()

	_, err := service.Login(context.Background(), "not-an-email", "")
	require.Error(t, err)

	ae := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeValidationError, ae.Code)
	assert.Equal(t, int32(0), api.loginCalls.Load())
}

/*
TestService_LoginRejected: wrong credentials surface the server's message.
*/
func TestService_LoginRejected(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	_, err := service.Login(context.Background(), "ada@town.gov", "wrong")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.As(err).Code)
	assert.Empty(t, store.AccessToken(context.Background()))
}

/*
TestService_InitWithoutToken settles straight to Anonymous.
*/
func TestService_InitWithoutToken(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, _ := newTestSession(api)
	defer service.Close()

	require.NoError(t, service.Init(context.Background()))
	assert.Equal(t, session.StateAnonymous, service.State())
	assert.Nil(t, service.CurrentUser())
}

/*
TestService_InitWithValidToken hydrates the profile from the backend.
*/
func TestService_InitWithValidToken(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	store.SetTokens(context.Background(), "valid-access", "valid-refresh")

	require.NoError(t, service.Init(context.Background()))
	assert.Equal(t, session.StateAuthenticated, service.State())
	assert.Equal(t, "u1", service.CurrentUser().ID)
}

/*
TestService_InitUnauthorizedClearsCredentials: a 401 on the profile fetch
(with a dead refresh path) means "not logged in" and wipes the store.
*/
func TestService_InitUnauthorizedClearsCredentials(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	store.SetTokens(context.Background(), "stale-access", "dead-refresh")

	require.NoError(t, service.Init(context.Background()))
	assert.Equal(t, session.StateAnonymous, service.State())
	assert.Empty(t, store.AccessToken(context.Background()))
	assert.Empty(t, store.RefreshToken(context.Background()))
}

/*
TestService_LogoutAlwaysClears: local credentials are wiped even when the
server-side logout call fails.
*/
func TestService_LogoutAlwaysClears(t *testing.T) {
	api := newFakeAPI()
	api.logoutStatus = http.StatusInternalServerError
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	_, err := service.Login(context.Background(), "ada@town.gov", "pw")
	require.NoError(t, err)

	err = service.Logout(context.Background())
	require.Error(t, err) // server failure surfaced for diagnostics

	assert.Equal(t, int32(1), api.logoutCalls.Load())
	assert.Equal(t, session.StateAnonymous, service.State())
	assert.Empty(t, store.AccessToken(context.Background()))
}

/*
TestService_RolePredicates: table over the boolean flag combinations.
*/
func TestService_RolePredicates(t *testing.T) {
	tests := []struct {
		name      string
		isAdmin   bool
		isStaff   bool
		wantRole  sec.Role
		isAdminP  bool
		isStaffP  bool
		isCitizen bool
	}{
		{"admin_wins", true, true, sec.RoleAdmin, true, false, false},
		{"staff", false, true, sec.RoleStaff, false, true, false},
		{"citizen", false, false, sec.RoleCitizen, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.me.IsAdmin = tt.isAdmin
			api.me.IsStaff = tt.isStaff
			defer api.server.Close()

			service, _ := newTestSession(api)
			defer service.Close()

			_, err := service.Login(context.Background(), "ada@town.gov", "pw")
			require.NoError(t, err)

			assert.Equal(t, tt.isAdminP, service.IsAdmin())
			assert.Equal(t, tt.isStaffP, service.IsStaff())
			assert.Equal(t, tt.isCitizen, service.IsCitizen())
			assert.True(t, service.HasRole(tt.wantRole))
		})
	}
}

/*
TestService_UpdateUserLocally merges fields without a server round-trip and
persists the merged snapshot.
*/
func TestService_UpdateUserLocally(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	_, err := service.Login(context.Background(), "ada@town.gov", "pw")
	require.NoError(t, err)

	phone := "555-0101"
	merged := service.UpdateUserLocally(context.Background(), user.Partial{PhoneNumber: &phone})

	require.NotNil(t, merged)
	assert.Equal(t, "555-0101", merged.PhoneNumber)
	assert.Equal(t, "Ada", merged.FullName) // untouched fields survive

	cached := store.User(context.Background())
	require.NotNil(t, cached)
	assert.Equal(t, "555-0101", cached.PhoneNumber)
}

/*
TestService_ForcedLogoutOnRefreshFailure: an irrecoverable refresh failure
anywhere in the transport drops the session to Anonymous.
*/
func TestService_ForcedLogoutOnRefreshFailure(t *testing.T) {
	api := newFakeAPI()
	defer api.server.Close()

	service, store := newTestSession(api)
	defer service.Close()

	_, err := service.Login(context.Background(), "ada@town.gov", "pw")
	require.NoError(t, err)

	// Invalidate the access token server-side; the refresh endpoint in the
	// fixture always rejects, so the next authenticated call forces logout.
	api.validToken = "rotated-away"

	_, err = service.RefreshUser(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTokenExpired, apperr.As(err).Code)

	assert.Equal(t, session.StateAnonymous, service.State())
	assert.Empty(t, store.AccessToken(context.Background()))
}
