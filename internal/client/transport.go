// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package client implements the authenticated HTTP transport of the SDK.

It translates logical (method, endpoint, options) calls into real network
requests and normalizes every outcome, success or failure, into an
[Envelope]. No call across the public boundary ever returns a raw Go error
or panics; all failure modes collapse into the error taxonomy of
[apperr.Code].

Architecture:

  - Transport: Request building (query, JSON, multipart), execution with a
    deadline, and response parsing.
  - RefreshCoordinator: Single-flight token refresh with transparent replay
    of requests that failed with 401.
  - Envelope: The normalized result type shared by both.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/platform/apperr"
	"github.com/townspark/townspark-go/internal/platform/config"
	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/platform/sec"
)

// # Request Options

// File is an upload attached to a multipart request.
type File struct {
	// Name is the filename reported to the server.
	Name string
	// Reader supplies the file content. Consumed once at request build time.
	Reader io.Reader
}

// Options configures a single API call.
type Options struct {
	// Params is flattened into the query string. Nil values are dropped;
	// slice values are joined with commas.
	Params map[string]any

	// Auth attaches "Authorization: Bearer <token>" when a token exists.
	// A missing token is not an error at this layer; the server rejects
	// the call and the outcome surfaces as UNAUTHORIZED.
	Auth bool

	// Data is the request body. JSON-encoded unless Files is non-empty.
	// Ignored for GET requests.
	Data any

	// Files switches the body to multipart form encoding. Scalar fields
	// from Data are stringified alongside the file parts.
	Files map[string]File
}

// requestConfig is the fully built, replayable form of one request.
// The body is captured as bytes so the refresh coordinator can re-send it
// with a rotated token.
type requestConfig struct {
	method      string
	url         string
	contentType string
	body        []byte
	auth        bool
}

// # Transport

// Transport executes API calls against the TownSpark backend.
//
// # Concurrency
//
// Safe for concurrent use. All mutable state lives in the credential store
// and the refresh coordinator, both of which are concurrency-safe.
type Transport struct {
	baseURL string
	http    *http.Client
	store   credstore.Store
	refresh *refreshCoordinator
	limiter *rate.Limiter
	log     *slog.Logger
	timeout time.Duration
}

// NewTransport constructs a [Transport] with its refresh coordinator.
//
// # Parameters
//   - cfg: Loaded SDK configuration (base URL, timeout, rate limit).
//   - store: Credential store shared with the session layer.
//   - logger: Structured logger for request diagnostics.
func NewTransport(cfg *config.Config, store credstore.Store, logger *slog.Logger) *Transport {
	transport := &Transport{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		http:    &http.Client{},
		store:   store,
		log:     logger,
		timeout: cfg.RequestTimeout(),
	}

	if cfg.RateLimitRPS > 0 {
		transport.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS)+1)
	}

	transport.refresh = newRefreshCoordinator(transport, store, logger)
	return transport
}

// OnSessionExpired registers the callback fired exactly once per forced
// logout (irrecoverable refresh failure). The session layer uses it to
// transition to Anonymous and notify the UI.
func (transport *Transport) OnSessionExpired(fn func()) {
	transport.refresh.onExpired = fn
}

/*
Request performs one API call and returns its normalized outcome.

Description: Builds the request (query string, JSON or multipart body),
executes it under the configured deadline, and parses the response. A 401 on
an authenticated call is not surfaced; it is handed to the refresh
coordinator, which refreshes the token once and replays the request.

Parameters:
  - context: context.Context
  - method: HTTP method ("GET", "POST", ...)
  - endpoint: Path relative to the API base URL
  - options: Options

Returns:
  - *Envelope: Never nil; failures are envelopes, not errors
*/
func (transport *Transport) Request(context context.Context, method, endpoint string, options Options) *Envelope {

	// Outbound rate limiting, when configured.
	if transport.limiter != nil {
		if err := transport.limiter.Wait(context); err != nil {
			return fail(0, apperr.Timeout(err))
		}
	}

	// Build the replayable request form.
	rc, err := transport.buildRequest(method, endpoint, options)
	if err != nil {
		return fail(0, apperr.Unknown("Failed to build the request", err))
	}

	envelope := transport.execute(context, rc)

	// 401 on an authenticated call goes through the refresh coordinator.
	// The refresh endpoint itself is exempt to avoid recursion.
	if envelope.StatusCode == http.StatusUnauthorized && rc.auth {
		return transport.refresh.resolve(context, rc)
	}

	return envelope
}

// # Request Building

// buildRequest assembles the URL, headers, and body for one call.
func (transport *Transport) buildRequest(method, endpoint string, options Options) (*requestConfig, error) {
	rc := &requestConfig{
		method: method,
		url:    transport.baseURL + endpoint,
		auth:   options.Auth,
	}

	if query := encodeParams(options.Params); query != "" {
		rc.url += "?" + query
	}

	// GET requests never carry a body, whatever Data says.
	if method == http.MethodGet {
		return rc, nil
	}

	switch {
	case len(options.Files) > 0:
		// Multipart: the writer supplies the boundary-bearing content type.
		body, contentType, err := encodeMultipart(options.Data, options.Files)
		if err != nil {
			return nil, err
		}
		rc.body = body
		rc.contentType = contentType

	case options.Data != nil:
		body, err := json.Marshal(options.Data)
		if err != nil {
			return nil, fmt.Errorf("client: failed to encode body: %w", err)
		}
		rc.body = body
		rc.contentType = constants.ContentTypeJSON
	}

	return rc, nil
}

// encodeParams flattens a parameter map into a query string.
// Nil values are dropped; slices are comma-joined.
func encodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	values := url.Values{}

	// Deterministic ordering keeps request logs and tests stable.
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		if value == nil {
			continue
		}

		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			parts := make([]string, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				parts = append(parts, fmt.Sprint(rv.Index(i).Interface()))
			}
			values.Set(key, strings.Join(parts, ","))
			continue
		}

		values.Set(key, fmt.Sprint(value))
	}

	return values.Encode()
}

// # Execution

// execute performs the network call for a built request and parses the
// response. It is also the replay entry point used by the refresh
// coordinator; the Authorization header is re-read from the credential
// store on every attempt, so a replay automatically picks up the rotated
// token.
func (transport *Transport) execute(ctx context.Context, rc *requestConfig) *Envelope {
	reqCtx, cancel := context.WithTimeout(ctx, transport.timeout)
	defer cancel()

	var bodyReader io.Reader
	if rc.body != nil {
		bodyReader = bytes.NewReader(rc.body)
	}

	req, err := http.NewRequestWithContext(reqCtx, rc.method, rc.url, bodyReader)
	if err != nil {
		return fail(0, apperr.Unknown("Failed to create the request", err))
	}

	requestID := uuid.NewString()
	req.Header.Set(constants.HeaderRequestID, requestID)
	if rc.contentType != "" {
		req.Header.Set(constants.HeaderContentType, rc.contentType)
	}

	token := ""
	if rc.auth {
		token = transport.store.AccessToken(ctx)
		if token != "" {
			req.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)
		}
	}

	resp, err := transport.http.Do(req)
	if err != nil {
		return fail(0, classifyNetworkError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, apperr.Network(err))
	}

	envelope := parseResponse(resp.StatusCode, resp.Header.Get(constants.HeaderContentType), raw)

	transport.log.Debug("api request",
		slog.String("method", rc.method),
		slog.String("url", rc.url),
		slog.String("request_id", requestID),
		slog.Int("status", resp.StatusCode),
		slog.String("token", sec.TruncateToken(token)),
	)

	return envelope
}

// classifyNetworkError maps a transport-level error onto the taxonomy.
func classifyNetworkError(err error) *apperr.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return apperr.Timeout(err)
		}
		// Connectivity, DNS, TLS: anything that died before a response.
		return apperr.Network(err)
	}

	return apperr.Unknown(err.Error(), err)
}

// # Response Parsing

// serverError mirrors the error shapes the backend is known to emit.
// The envelope sometimes nests the message under "error", sometimes not.
type serverError struct {
	Errors  map[string][]string `json:"errors"`
	Error   json.RawMessage     `json:"error"`
	Message string              `json:"message"`
	Detail  string              `json:"detail"`
}

// parseResponse converts a raw HTTP response into an [Envelope].
func parseResponse(status int, contentType string, raw []byte) *Envelope {
	payload, perr := decodeBody(contentType, raw)
	if perr != nil {
		return fail(status, apperr.ParseError(status, perr))
	}

	if status >= 200 && status < 300 {
		return succeed(status, unwrapData(payload))
	}

	msg, details := extractErrorMessage(payload)
	return fail(status, apperr.FromStatus(status, msg, details...))
}

// decodeBody parses the body as JSON when the content type declares it.
// Non-JSON bodies are wrapped as {"message": <raw text>}, or null if empty.
func decodeBody(contentType string, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)

	if !strings.Contains(contentType, constants.ContentTypeJSON) {
		if len(trimmed) == 0 {
			return nil, nil
		}
		wrapped, err := json.Marshal(map[string]string{constants.FieldMessage: string(trimmed)})
		if err != nil {
			return nil, err
		}
		return wrapped, nil
	}

	if len(trimmed) == 0 {
		return nil, nil
	}

	var payload json.RawMessage
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// unwrapData lifts the actual payload out of a server envelope that nests it
// under a "data" key. One level only; flat bodies pass through untouched.
func unwrapData(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return payload
	}

	if nested, ok := probe[constants.FieldData]; ok {
		return nested
	}
	return payload
}

// extractErrorMessage finds the most specific message in an error body.
// Priority: field-level validation errors, then error.message, then
// message, then detail. An empty result defers to the status fallback.
func extractErrorMessage(payload json.RawMessage) (string, []apperr.FieldError) {
	if len(payload) == 0 {
		return "", nil
	}

	se := serverError{}
	if err := json.Unmarshal(payload, &se); err != nil {
		return "", nil
	}

	// Field-level validation errors win. Sorted for deterministic output.
	if len(se.Errors) > 0 {
		fields := make([]string, 0, len(se.Errors))
		for field := range se.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		details := make([]apperr.FieldError, 0, len(se.Errors))
		for _, field := range fields {
			for _, msg := range se.Errors[field] {
				details = append(details, apperr.FieldError{Field: field, Message: msg})
			}
		}

		msg := fmt.Sprintf("%s: %s", details[0].Field, details[0].Message)
		return msg, details
	}

	// "error" may be an object carrying a message, or a bare string.
	if len(se.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(se.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message, nil
		}

		var plain string
		if err := json.Unmarshal(se.Error, &plain); err == nil && plain != "" {
			return plain, nil
		}
	}

	if se.Message != "" {
		return se.Message, nil
	}
	if se.Detail != "" {
		return se.Detail, nil
	}

	return "", nil
}
