// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package user defines the profile snapshot shared by the credential store and
the session layer.

It defines the core domain entity (Record) and the derivation from the
server's boolean role flags to the SDK's [sec.Role] model.

# Architecture

This layer is the "Truth" of the client. The record is replaced wholesale on
every successful profile fetch; the only partial mutation is the explicit
local merge used for optimistic UI updates.
*/
package user

import (
	"github.com/townspark/townspark-go/internal/platform/sec"
)

// # Domain Entities

// Record represents the last-known profile snapshot of the logged-in user.
type Record struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Address      string `json:"address,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	IsStaff      bool   `json:"is_staff"`
	IsAdmin      bool   `json:"is_admin"`
}

// Role derives the effective authorization level from the boolean flags.
func (r *Record) Role() sec.Role {
	return sec.Derive(r.IsAdmin, r.IsStaff)
}

// # Optimistic Updates

// Partial carries the fields a caller may merge locally without a server
// round-trip. Nil pointers leave the corresponding field untouched.
type Partial struct {
	FullName     *string
	PhoneNumber  *string
	Address      *string
	ProfileImage *string
}

// Merge shallow-merges the partial fields into a copy of the record.
//
// # Consistency
//
// The merged snapshot may diverge from the server until the next refetch.
// That trade-off is deliberate: the UI reflects the user's edit immediately.
func (r Record) Merge(partial Partial) Record {
	if partial.FullName != nil {
		r.FullName = *partial.FullName
	}
	if partial.PhoneNumber != nil {
		r.PhoneNumber = *partial.PhoneNumber
	}
	if partial.Address != nil {
		r.Address = *partial.Address
	}
	if partial.ProfileImage != nil {
		r.ProfileImage = *partial.ProfileImage
	}
	return r
}
