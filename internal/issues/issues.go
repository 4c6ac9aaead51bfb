// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package issues is the thin domain client for civic-issue reports.

It carries no business logic; categorization, assignment, and status rules
live server-side. The package exists to exercise the transport end to end:
JSON bodies, query-string filters, and multipart photo uploads.
*/
package issues

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/townspark/townspark-go/internal/client"
	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/platform/validate"
)

// # Domain Entities

// Status tracks the server-side resolution lifecycle of a report.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusRejected   Status = "rejected"
)

// Issue represents one reported civic problem.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	ReporterID  string    `json:"reporter_id"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// # Service

// Service issues authenticated calls against the /issues/ endpoints.
type Service struct {
	transport *client.Transport
}

// NewService constructs the issues client.
func NewService(transport *client.Transport) *Service {
	return &Service{transport: transport}
}

// ReportInput holds the data for a new issue report.
type ReportInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

/*
Report files a new issue, optionally with a photo.

Description: With a photo the request is encoded as multipart form data
(scalar fields stringified alongside the file part); without one it is plain
JSON. The selection is driven solely by photo presence.

Parameters:
  - context: context.Context
  - input: ReportInput
  - photo: io.Reader (optional; nil skips the upload)
  - photoName: string (filename reported to the server)

Returns:
  - *Issue: The created report
  - error: VALIDATION_ERROR (local) or transport failures
*/
func (service *Service) Report(context context.Context, input ReportInput, photo io.Reader, photoName string) (*Issue, error) {
	v := &validate.Validator{}
	err := v.
		Required("title", input.Title).
		MaxLen("title", input.Title, 200).
		Required("description", input.Description).
		Required("category", input.Category).
		Err()
	if err != nil {
		return nil, err
	}

	options := client.Options{Auth: true, Data: input}
	if photo != nil {
		options.Files = map[string]client.File{
			"photo": {Name: photoName, Reader: photo},
		}
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointIssues, options)
	return decodeIssue(envelope)
}

// Filter narrows List results. Zero values are omitted from the query.
type Filter struct {
	// Statuses filters by resolution state; joined with commas on the wire.
	Statuses []Status
	Category string
	Page     int
	PageSize int
}

/*
List returns issues visible to the logged-in user.

Parameters:
  - context: context.Context
  - filter: Filter

Returns:
  - []Issue: Matching reports
  - error: Transport failures
*/
func (service *Service) List(context context.Context, filter Filter) ([]Issue, error) {
	params := map[string]any{}
	if len(filter.Statuses) > 0 {
		params["status"] = filter.Statuses
	}
	if filter.Category != "" {
		params["category"] = filter.Category
	}
	if filter.Page > 0 {
		params["page"] = filter.Page
	}
	if filter.PageSize > 0 {
		params["page_size"] = filter.PageSize
	}

	envelope := service.transport.Request(context, http.MethodGet, constants.EndpointIssues, client.Options{
		Auth:   true,
		Params: params,
	})

	return client.Decode[[]Issue](envelope)
}

// Get returns a single issue by ID.
func (service *Service) Get(context context.Context, id string) (*Issue, error) {
	envelope := service.transport.Request(context, http.MethodGet, constants.EndpointIssues+id+"/", client.Options{Auth: true})
	return decodeIssue(envelope)
}

/*
UpdateStatus moves an issue through its resolution lifecycle.

Description: A resolver (staff) operation; the server enforces the role.

Parameters:
  - context: context.Context
  - id: string
  - status: Status
  - note: string (optional resolution note)

Returns:
  - *Issue: The updated report
  - error: Transport failures (FORBIDDEN for non-staff callers)
*/
func (service *Service) UpdateStatus(context context.Context, id string, status Status, note string) (*Issue, error) {
	v := &validate.Validator{}
	err := v.
		Required("id", id).
		OneOf("status", string(status),
			string(StatusOpen), string(StatusInProgress), string(StatusResolved), string(StatusRejected)).
		Err()
	if err != nil {
		return nil, err
	}

	envelope := service.transport.Request(context, http.MethodPatch, constants.EndpointIssues+id+"/status/", client.Options{
		Auth: true,
		Data: map[string]string{"status": string(status), "note": note},
	})
	return decodeIssue(envelope)
}

// Delete removes an issue. An admin operation; the server enforces the role.
func (service *Service) Delete(context context.Context, id string) error {
	envelope := service.transport.Request(context, http.MethodDelete, constants.EndpointIssues+id+"/", client.Options{Auth: true})
	if !envelope.Success {
		return envelope.Err
	}
	return nil
}

// decodeIssue unwraps a single-issue envelope.
func decodeIssue(envelope *client.Envelope) (*Issue, error) {
	issue, err := client.Decode[*Issue](envelope)
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, fmt.Errorf("issues: empty response body")
	}
	return issue, nil
}
