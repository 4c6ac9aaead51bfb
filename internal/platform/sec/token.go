// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

// Package sec provides client-side token inspection and the role model.
//
// # Architecture
//
// The SDK never verifies token signatures; that is the server's job. This
// package only *reads* the expiry claim of locally stored tokens so the
// session layer can refresh proactively instead of waiting for a 401.
package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// unverifiedParser decodes claims without signature validation. The token was
// issued by the backend we are about to call; trusting its exp claim locally
// is no worse than sending it.
var unverifiedParser = jwt.NewParser()

// TokenExpiry returns the expiry time embedded in a JWT access token.
//
// # Parameters
//   - tokenString: The raw JWT string.
//
// # Returns
//   - time.Time: The 'exp' claim.
//   - error: Malformed token or missing expiry claim.
func TokenExpiry(tokenString string) (time.Time, error) {
	token, _, err := unverifiedParser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("sec: malformed token: %w", err)
	}

	expiry, err := token.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, fmt.Errorf("sec: token has no expiry claim")
	}

	return expiry.Time, nil
}

// TokenExpiresWithin reports whether the token expires inside the given
// window. Unparseable tokens count as expiring: the server will reject them
// anyway, so treating them as stale triggers the recovery path sooner.
func TokenExpiresWithin(tokenString string, window time.Duration) bool {
	expiry, err := TokenExpiry(tokenString)
	if err != nil {
		return true
	}
	return time.Until(expiry) < window
}

// TruncateToken shortens a secret for log output. Only a short prefix is
// kept; enough to correlate log lines, never enough to replay.
func TruncateToken(tokenString string) string {
	const visible = 8
	if len(tokenString) <= visible {
		return tokenString
	}
	return tokenString[:visible] + "..."
}
