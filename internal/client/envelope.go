// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

package client

import (
	"encoding/json"

	"github.com/townspark/townspark-go/internal/platform/apperr"
)

// # Response Envelope

// Envelope is the normalized outcome of every API call.
//
// # Invariant
//
// Exactly one of Data/Err is populated: Success implies Err == nil, failure
// implies Data == nil. Callers never see transport-specific error shapes.
type Envelope struct {
	// Success reports whether the server answered with a 2xx status.
	Success bool `json:"success"`
	// StatusCode is the HTTP status, or 0 when no response arrived.
	StatusCode int `json:"status_code"`
	// Data is the unwrapped response payload. Present only on success.
	Data json.RawMessage `json:"data,omitempty"`
	// Err describes the failure. Present only when Success is false.
	Err *apperr.AppError `json:"error,omitempty"`
}

// ErrorCode returns the machine-readable classification of a failed
// envelope, or "" for a successful one.
func (e *Envelope) ErrorCode() apperr.Code {
	if e.Err == nil {
		return ""
	}
	return e.Err.Code
}

// succeed builds a successful envelope around an unwrapped payload.
func succeed(status int, data json.RawMessage) *Envelope {
	return &Envelope{Success: true, StatusCode: status, Data: data}
}

// fail builds a failed envelope around an [apperr.AppError].
func fail(status int, ae *apperr.AppError) *Envelope {
	return &Envelope{Success: false, StatusCode: status, Err: ae}
}

// Decode unmarshals a successful envelope's payload into T.
//
// # Returns
//   - T: The decoded payload (zero value for empty/null bodies).
//   - error: The envelope's own [apperr.AppError] on failure, or PARSE_ERROR
//     when the payload does not match T.
func Decode[T any](envelope *Envelope) (T, error) {
	var out T

	if !envelope.Success {
		return out, envelope.Err
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return out, nil
	}

	if err := json.Unmarshal(envelope.Data, &out); err != nil {
		return out, apperr.ParseError(envelope.StatusCode, err)
	}

	return out, nil
}
