// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

// Command townspark is a small demonstration client for the TownSpark API.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load .env (optional) and configuration from environment variables.
//  3. Build the credential store for the configured backend.
//  4. Wire transport, session, and issues services.
//  5. Hydrate the session, log in when credentials are provided, and print
//     the profile plus recent issues.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/townspark/townspark-go/internal/client"
	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/issues"
	"github.com/townspark/townspark-go/internal/platform/config"
	"github.com/townspark/townspark-go/internal/platform/rediskv"
	"github.com/townspark/townspark-go/internal/platform/sec"
	"github.com/townspark/townspark-go/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", "townspark"))
	slog.SetDefault(log)

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "townspark"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("api_url", cfg.APIBaseURL),
		slog.String("credential_backend", cfg.CredentialBackend),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Credential Store ───────────────────────────────────────────────
	var store credstore.Store
	switch cfg.CredentialBackend {
	case "redis":
		rdb, err := rediskv.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
		store = credstore.NewRedisStore(rdb, cfg.DeviceID, log)
	case "memory":
		store = credstore.NewMemoryStore()
	default:
		store = credstore.NewFileStore(cfg.CredentialFile)
	}

	// ── 4. SDK Wiring ─────────────────────────────────────────────────────
	transport := client.NewTransport(cfg, store, log)
	sessions := session.NewService(transport, store)
	defer sessions.Close()
	reports := issues.NewService(transport)

	unsubscribe := sessions.Subscribe(func(snapshot session.Snapshot) {
		log.Info("session_transition", slog.String("state", string(snapshot.State)))
	})
	defer unsubscribe()

	// ── 5. Demo Run ───────────────────────────────────────────────────────
	runCtx, runCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer runCancel()

	if err := sessions.Init(runCtx); err != nil {
		log.Warn("session hydration degraded", slog.Any("error", err))
	}

	if sessions.State() != session.StateAuthenticated {
		email := os.Getenv("TOWNSPARK_EMAIL")
		password := os.Getenv("TOWNSPARK_PASSWORD")
		if email == "" || password == "" {
			log.Info("not logged in; set TOWNSPARK_EMAIL and TOWNSPARK_PASSWORD to authenticate")
			return
		}

		if _, err := sessions.Login(runCtx, email, password); err != nil {
			must(log, err, "login")
		}
	}

	me := sessions.CurrentUser()
	fmt.Printf("Logged in as %s <%s> (role: %s)\n", me.FullName, me.Email, me.Role())

	if token := store.AccessToken(runCtx); token != "" {
		if expiry, err := sec.TokenExpiry(token); err == nil {
			log.Debug("access_token_status",
				slog.Time("expires_at", expiry),
				slog.Bool("expiring_soon", sec.TokenExpiresWithin(token, 5*time.Minute)),
			)
		}
	}

	recent, err := reports.List(runCtx, issues.Filter{
		Statuses: []issues.Status{issues.StatusOpen, issues.StatusInProgress},
		PageSize: 10,
	})
	must(log, err, "list issues")

	fmt.Printf("Open issues: %d\n", len(recent))
	for _, issue := range recent {
		fmt.Printf("  [%s] %s (%s)\n", issue.Status, issue.Title, issue.Category)
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
