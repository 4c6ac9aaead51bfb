// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/platform/apperr"
	"github.com/townspark/townspark-go/internal/platform/config"
)

// newTestTransport wires a transport against a test server with an
// in-memory credential store.
func newTestTransport(baseURL string) (*Transport, *credstore.MemoryStore) {
	store := credstore.NewMemoryStore()
	cfg := &config.Config{APIBaseURL: baseURL, RequestTimeoutSeconds: 5}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTransport(cfg, store, logger), store
}

/*
TestTransport_QueryParams verifies query-string flattening: nil values are
dropped and slice values are comma-joined.
*/
func TestTransport_QueryParams(t *testing.T) {
	var gotQuery map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	envelope := transport.Request(context.Background(), http.MethodGet, "/issues/", Options{
		Params: map[string]any{
			"status":   []string{"open", "in_progress"},
			"page":     2,
			"category": nil,
		},
	})

	require.True(t, envelope.Success)
	assert.Equal(t, "open,in_progress", gotQuery["status"][0])
	assert.Equal(t, "2", gotQuery["page"][0])
	assert.NotContains(t, gotQuery, "category")
}

/*
TestTransport_BodyEncoding checks the multipart-vs-JSON selection: identical
data produces a JSON body without files and a multipart body with them.
*/
func TestTransport_BodyEncoding(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]File
		wantCT    string
		multipart bool
	}{
		{"json_without_files", nil, "application/json", false},
		{"multipart_with_file", map[string]File{
			"photo": {Name: "pothole.jpg", Reader: strings.NewReader("jpegbytes")},
		}, "multipart/form-data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotContentType string
			var gotTitle string
			var gotPhoto string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotContentType = r.Header.Get("Content-Type")
				if strings.HasPrefix(gotContentType, "multipart/form-data") {
					require.NoError(t, r.ParseMultipartForm(1<<20))
					gotTitle = r.FormValue("title")
					file, _, err := r.FormFile("photo")
					require.NoError(t, err)
					content, _ := io.ReadAll(file)
					gotPhoto = string(content)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			transport, _ := newTestTransport(server.URL)
			envelope := transport.Request(context.Background(), http.MethodPost, "/issues/", Options{
				Data:  map[string]any{"title": "Broken streetlight"},
				Files: tt.files,
			})

			require.True(t, envelope.Success)
			assert.True(t, strings.HasPrefix(gotContentType, tt.wantCT))
			if tt.multipart {
				assert.Equal(t, "Broken streetlight", gotTitle)
				assert.Equal(t, "jpegbytes", gotPhoto)
			}
		})
	}
}

/*
TestTransport_GetNeverCarriesBody ensures Data is ignored on GET requests.
*/
func TestTransport_GetNeverCarriesBody(t *testing.T) {
	var gotLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	envelope := transport.Request(context.Background(), http.MethodGet, "/issues/", Options{
		Data: map[string]string{"should": "not appear"},
	})

	require.True(t, envelope.Success)
	assert.Zero(t, gotLength)
}

/*
TestTransport_EnvelopeInvariant walks every response path and verifies that
exactly one of Data/Err is populated.
*/
func TestTransport_EnvelopeInvariant(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
	}{
		{"success_flat", 200, "application/json", `{"id":"1"}`},
		{"success_nested", 200, "application/json", `{"data":{"id":"1"},"message":"ok"}`},
		{"success_empty", 204, "application/json", ``},
		{"success_plain_text", 200, "text/plain", `all good`},
		{"not_found", 404, "application/json", `{"detail":"missing"}`},
		{"server_error", 500, "text/html", `<h1>boom</h1>`},
		{"bad_json", 200, "application/json", `{broken`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			transport, _ := newTestTransport(server.URL)
			envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

			if envelope.Success {
				assert.Nil(t, envelope.Err)
			} else {
				require.NotNil(t, envelope.Err)
				assert.Nil(t, envelope.Data)
			}
		})
	}
}

/*
TestTransport_UnwrapsDataKey verifies one-level unwrapping of server
envelopes that nest the payload under "data".
*/
func TestTransport_UnwrapsDataKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"42"},"message":"created"}`))
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

	require.True(t, envelope.Success)
	assert.JSONEq(t, `{"id":"42"}`, string(envelope.Data))
}

/*
TestTransport_ErrorMessagePriority checks the extraction order:
field errors, error.message, message, detail, then the status fallback.
*/
func TestTransport_ErrorMessagePriority(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
		wantDetails int
	}{
		{
			"field_errors_win",
			`{"errors":{"email":["Already taken"]},"message":"ignored"}`,
			"email: Already taken",
			1,
		},
		{"nested_error_message", `{"error":{"message":"Nested"}}`, "Nested", 0},
		{"flat_message", `{"message":"Flat"}`, "Flat", 0},
		{"detail_field", `{"detail":"Detailed"}`, "Detailed", 0},
		{"fallback", `{}`, "The requested resource was not found.", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			transport, _ := newTestTransport(server.URL)
			envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

			require.False(t, envelope.Success)
			assert.Equal(t, tt.wantMessage, envelope.Err.Message)
			assert.Len(t, envelope.Err.Details, tt.wantDetails)
		})
	}
}

/*
TestTransport_Timeout verifies that a request exceeding the deadline resolves
to a TIMEOUT envelope instead of escaping as an error.
*/
func TestTransport_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	transport.timeout = 50 * time.Millisecond

	envelope := transport.Request(context.Background(), http.MethodGet, "/slow", Options{})

	require.False(t, envelope.Success)
	assert.Equal(t, apperr.CodeTimeout, envelope.ErrorCode())
}

/*
TestTransport_NetworkError verifies connectivity failures map to NETWORK_ERROR.
*/
func TestTransport_NetworkError(t *testing.T) {
	// Nothing listens here.
	transport, _ := newTestTransport("http://127.0.0.1:1")

	envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

	require.False(t, envelope.Success)
	assert.Equal(t, apperr.CodeNetworkError, envelope.ErrorCode())
}

/*
TestTransport_ParseError verifies an invalid JSON body under a JSON content
type maps to PARSE_ERROR.
*/
func TestTransport_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

	require.False(t, envelope.Success)
	assert.Equal(t, apperr.CodeParseError, envelope.ErrorCode())
}

/*
TestTransport_NonJSONBodyWrapped verifies a plain-text success body is
wrapped as {"message": <raw text>}.
*/
func TestTransport_NonJSONBodyWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`all good`))
	}))
	defer server.Close()

	transport, _ := newTestTransport(server.URL)
	envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{})

	require.True(t, envelope.Success)
	assert.JSONEq(t, `{"message":"all good"}`, string(envelope.Data))
}

/*
TestTransport_AuthHeader verifies the bearer header is attached when a token
exists, and that a missing token is not an error at this layer.
*/
func TestTransport_AuthHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	transport, store := newTestTransport(server.URL)

	// Without a token: no header, still a clean envelope.
	envelope := transport.Request(context.Background(), http.MethodGet, "/", Options{Auth: true})
	require.True(t, envelope.Success)
	assert.Empty(t, gotAuth)

	// With a token: bearer header present.
	store.SetTokens(context.Background(), "tok123", "")
	envelope = transport.Request(context.Background(), http.MethodGet, "/", Options{Auth: true})
	require.True(t, envelope.Success)
	assert.Equal(t, "Bearer tok123", gotAuth)
}

/*
TestDecode verifies generic payload decoding and its failure modes.
*/
func TestDecode(t *testing.T) {
	type item struct {
		ID string `json:"id"`
	}

	t.Run("success", func(t *testing.T) {
		decoded, err := Decode[item](succeed(200, []byte(`{"id":"7"}`)))
		require.NoError(t, err)
		assert.Equal(t, "7", decoded.ID)
	})

	t.Run("empty_body", func(t *testing.T) {
		decoded, err := Decode[item](succeed(204, nil))
		require.NoError(t, err)
		assert.Zero(t, decoded)
	})

	t.Run("failure_passes_apperr", func(t *testing.T) {
		_, err := Decode[item](fail(404, apperr.FromStatus(404, "")))
		require.Error(t, err)
		assert.Equal(t, apperr.CodeNotFound, apperr.As(err).Code)
	})

	t.Run("shape_mismatch", func(t *testing.T) {
		_, err := Decode[item](succeed(200, []byte(`[1,2]`)))
		require.Error(t, err)
		assert.Equal(t, apperr.CodeParseError, apperr.As(err).Code)
	})
}
