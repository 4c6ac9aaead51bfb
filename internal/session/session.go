// Copyright (c) 2026 TownSpark. All rights reserved.
// Author: platform@townspark.app

/*
Package session implements the client-side authentication state machine.

It is the authoritative, application-wide notion of "who is logged in, with
what role", exposed as an observable, constructor-injected service rather
than a module-level singleton.

Architecture:

  - Service: Orchestrates login, registration, logout, and profile flows.
  - States: Uninitialized -> Checking -> Authenticated | Anonymous.
  - Roles: Pure derivations from the current profile snapshot.

The service owns the cached [user.Record]; the record is replaced wholesale
on every successful profile fetch, with local shallow merges as the only
exception.
*/
package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/townspark/townspark-go/internal/client"
	"github.com/townspark/townspark-go/internal/credstore"
	"github.com/townspark/townspark-go/internal/platform/apperr"
	"github.com/townspark/townspark-go/internal/platform/constants"
	"github.com/townspark/townspark-go/internal/platform/sec"
	"github.com/townspark/townspark-go/internal/platform/validate"
	"github.com/townspark/townspark-go/internal/user"
)

// # Session States

// State identifies where the session machine currently is.
type State string

const (
	// No Init call has happened yet.
	StateUninitialized State = "uninitialized"

	// A persisted token exists and the profile fetch is in flight.
	StateChecking State = "checking"

	// A user is logged in with a hydrated profile.
	StateAuthenticated State = "authenticated"

	// Nobody is logged in.
	StateAnonymous State = "anonymous"
)

// Snapshot is the immutable view handed to subscribers on every transition.
type Snapshot struct {
	State State
	User  *user.Record
}

// # Service

// Service drives the session lifecycle and exposes role predicates.
//
// # Concurrency
//
// Safe for concurrent use. Transitions hold the internal lock; subscriber
// callbacks run outside it to keep re-entrant reads safe.
type Service struct {
	transport *client.Transport
	store     credstore.Store

	mu          sync.RWMutex
	state       State
	current     *user.Record
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewService constructs the session service and wires the forced-logout
// callback of the transport's refresh coordinator to it.
func NewService(transport *client.Transport, store credstore.Store) *Service {
	service := &Service{
		transport:   transport,
		store:       store,
		state:       StateUninitialized,
		subscribers: map[int]func(Snapshot){},
	}

	// An irrecoverable refresh failure anywhere in the transport forces
	// this session to Anonymous.
	transport.OnSessionExpired(service.handleExpired)

	return service
}

// # Transitions

// transition swaps state and user atomically, then notifies subscribers.
func (service *Service) transition(state State, record *user.Record) {
	service.mu.Lock()
	service.state = state
	service.current = record
	callbacks := make([]func(Snapshot), 0, len(service.subscribers))
	for _, fn := range service.subscribers {
		callbacks = append(callbacks, fn)
	}
	service.mu.Unlock()

	snapshot := Snapshot{State: state, User: record}
	for _, fn := range callbacks {
		fn(snapshot)
	}
}

// handleExpired is the refresh coordinator's forced-logout path. The
// credential store is already cleared by the time this fires.
func (service *Service) handleExpired() {
	service.transition(StateAnonymous, nil)
}

/*
Init hydrates the session from persisted credentials.

Description: With no stored access token the session settles to Anonymous.
Otherwise it passes through Checking while fetching the current profile.
A 401 means "not logged in" and clears credentials; any other failure keeps
the cached snapshot (optimistic) and surfaces the error.

Parameters:
  - context: context.Context

Returns:
  - error: Profile fetch failures (nil for a clean Anonymous settle)
*/
func (service *Service) Init(context context.Context) error {
	if service.store.AccessToken(context) == "" {
		service.transition(StateAnonymous, nil)
		return nil
	}

	service.transition(StateChecking, service.store.User(context))

	record, err := service.fetchUser(context)
	if err != nil {
		if ae := apperr.As(err); ae != nil && ae.HTTPStatus == http.StatusUnauthorized {
			// Not logged in. Distinct from transient failures below.
			service.store.ClearTokens(context)
			service.transition(StateAnonymous, nil)
			return nil
		}

		// Transient failure: keep the cached snapshot for optimistic UI,
		// surface the error to the caller.
		if cached := service.store.User(context); cached != nil {
			service.transition(StateAuthenticated, cached)
		} else {
			service.transition(StateAnonymous, nil)
		}
		return err
	}

	service.transition(StateAuthenticated, record)
	return nil
}

// Close detaches all subscribers and resets the machine. The credential
// store is left untouched; Close is a lifecycle call, not a logout.
func (service *Service) Close() {
	service.mu.Lock()
	defer service.mu.Unlock()

	service.subscribers = map[int]func(Snapshot){}
	service.state = StateUninitialized
	service.current = nil
}

// # Authentication Flow

// loginPayload is the login endpoint's response body.
type loginPayload struct {
	Tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User *user.Record `json:"user"`
}

/*
Login validates credentials locally, authenticates, and hydrates the session.

Description: On success the token pair is persisted and the profile is
populated (inline from the login response when present, via a profile fetch
otherwise), transitioning to Authenticated.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *user.Record: The logged-in profile
  - error: VALIDATION_ERROR (local), or any transport failure
*/
func (service *Service) Login(context context.Context, email, password string) (*user.Record, error) {

	// Fail fast before touching the network.
	v := &validate.Validator{}
	if err := v.Required("email", email).Email("email", email).Required("password", password).Err(); err != nil {
		return nil, err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointLogin, client.Options{
		Data: map[string]string{"email": email, "password": password},
	})

	payload, err := client.Decode[loginPayload](envelope)
	if err != nil {
		return nil, err
	}

	service.store.SetTokens(context, payload.Tokens.Access, payload.Tokens.Refresh)

	// Prefer the inline profile; fall back to an explicit fetch.
	record := payload.User
	if record == nil {
		record, err = service.fetchUser(context)
		if err != nil {
			return nil, err
		}
	}

	service.store.StoreUser(context, record)
	service.transition(StateAuthenticated, record)
	return record, nil
}

/*
Logout ends the session.

Description: The server call is best-effort; local credentials are cleared
and the session becomes Anonymous even when it fails.

Parameters:
  - context: context.Context

Returns:
  - error: The server-side logout failure, for diagnostics only
*/
func (service *Service) Logout(context context.Context) error {
	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointLogout, client.Options{Auth: true})

	// Always clear locally, whatever the server said.
	service.store.ClearTokens(context)
	service.transition(StateAnonymous, nil)

	if !envelope.Success {
		return envelope.Err
	}
	return nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new citizen account.
type RegisterInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Address     string `json:"address,omitempty"`
}

// ResolverInput holds the data required to enroll a staff resolver account.
type ResolverInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	EmployeeID string `json:"employee_id"`
}

// registerPayload is the registration endpoints' response body. Tokens are
// optional: some deployments log the new account in inline.
type registerPayload struct {
	Tokens *struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
	User *user.Record `json:"user"`
}

/*
Register enrolls a new citizen account.

Description: Side-effecting only. When the backend returns tokens inline the
session is additionally populated, but Register by itself does not guarantee
an Authenticated state.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *user.Record: The created profile (may be nil if the backend omits it)
  - error: VALIDATION_ERROR (local) or transport failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*user.Record, error) {
	v := &validate.Validator{}
	err := v.
		Required("email", input.Email).
		Email("email", input.Email).
		Required("password", input.Password).
		MinLen("password", input.Password, 8).
		Required("full_name", input.FullName).
		Err()
	if err != nil {
		return nil, err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointRegister, client.Options{Data: input})
	return service.adoptRegistration(context, envelope)
}

/*
RegisterResolver enrolls a staff resolver account.

Parameters:
  - context: context.Context
  - input: ResolverInput

Returns:
  - *user.Record: The created profile (may be nil if the backend omits it)
  - error: VALIDATION_ERROR (local) or transport failures
*/
func (service *Service) RegisterResolver(context context.Context, input ResolverInput) (*user.Record, error) {
	v := &validate.Validator{}
	err := v.
		Required("email", input.Email).
		Email("email", input.Email).
		Required("password", input.Password).
		MinLen("password", input.Password, 8).
		Required("full_name", input.FullName).
		Required("department", input.Department).
		Err()
	if err != nil {
		return nil, err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointRegisterResolver, client.Options{Data: input})
	return service.adoptRegistration(context, envelope)
}

// adoptRegistration decodes a registration response and, when the backend
// returned tokens inline, populates the session.
func (service *Service) adoptRegistration(context context.Context, envelope *client.Envelope) (*user.Record, error) {
	payload, err := client.Decode[registerPayload](envelope)
	if err != nil {
		return nil, err
	}

	if payload.Tokens != nil && payload.Tokens.Access != "" {
		service.store.SetTokens(context, payload.Tokens.Access, payload.Tokens.Refresh)
		if payload.User != nil {
			service.store.StoreUser(context, payload.User)
			service.transition(StateAuthenticated, payload.User)
		}
	}

	return payload.User, nil
}

// # Password Management

// RequestPasswordReset initiates the forgot-password flow for an email.
func (service *Service) RequestPasswordReset(context context.Context, email string) error {
	v := &validate.Validator{}
	if err := v.Required("email", email).Email("email", email).Err(); err != nil {
		return err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointPasswordReset, client.Options{
		Data: map[string]string{"email": email},
	})
	if !envelope.Success {
		return envelope.Err
	}
	return nil
}

// ConfirmPasswordReset completes the forgot-password flow with the token
// the user received out of band.
func (service *Service) ConfirmPasswordReset(context context.Context, uid, token, newPassword string) error {
	v := &validate.Validator{}
	err := v.
		Required("uid", uid).
		Required("token", token).
		Required("new_password", newPassword).
		MinLen("new_password", newPassword, 8).
		Err()
	if err != nil {
		return err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointPasswordResetConfirm, client.Options{
		Data: map[string]string{"uid": uid, "token": token, "new_password": newPassword},
	})
	if !envelope.Success {
		return envelope.Err
	}
	return nil
}

// ChangePassword updates the password of the logged-in user.
func (service *Service) ChangePassword(context context.Context, currentPassword, newPassword string) error {
	v := &validate.Validator{}
	err := v.
		Required("current_password", currentPassword).
		Required("new_password", newPassword).
		MinLen("new_password", newPassword, 8).
		Err()
	if err != nil {
		return err
	}

	envelope := service.transport.Request(context, http.MethodPost, constants.EndpointSetPassword, client.Options{
		Auth: true,
		Data: map[string]string{"current_password": currentPassword, "new_password": newPassword},
	})
	if !envelope.Success {
		return envelope.Err
	}
	return nil
}

// # Profile Management

// fetchUser retrieves the current profile from the backend.
func (service *Service) fetchUser(context context.Context) (*user.Record, error) {
	envelope := service.transport.Request(context, http.MethodGet, constants.EndpointCurrentUser, client.Options{Auth: true})

	record, err := client.Decode[*user.Record](envelope)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperr.ParseError(envelope.StatusCode, nil)
	}
	return record, nil
}

// RefreshUser refetches the profile and replaces the snapshot wholesale.
func (service *Service) RefreshUser(context context.Context) (*user.Record, error) {
	record, err := service.fetchUser(context)
	if err != nil {
		return nil, err
	}

	service.store.StoreUser(context, record)
	service.transition(StateAuthenticated, record)
	return record, nil
}

// UpdateUserLocally shallow-merges fields into the cached profile without a
// server round-trip. The client may diverge from the server until the next
// refetch; that trade-off buys an immediately responsive UI.
func (service *Service) UpdateUserLocally(context context.Context, partial user.Partial) *user.Record {
	service.mu.Lock()
	if service.current == nil {
		service.mu.Unlock()
		return nil
	}
	merged := service.current.Merge(partial)
	service.mu.Unlock()

	service.store.StoreUser(context, &merged)
	service.transition(StateAuthenticated, &merged)
	return &merged
}

/*
DeleteAccount removes the account server-side and ends the session.

Parameters:
  - context: context.Context

Returns:
  - error: Deletion failures (local credentials persist on failure)
*/
func (service *Service) DeleteAccount(context context.Context) error {
	envelope := service.transport.Request(context, http.MethodDelete, constants.EndpointCurrentUser, client.Options{Auth: true})
	if !envelope.Success {
		return envelope.Err
	}

	service.store.ClearTokens(context)
	service.transition(StateAnonymous, nil)
	return nil
}

// # Observation

// State returns the current machine state.
func (service *Service) State() State {
	service.mu.RLock()
	defer service.mu.RUnlock()
	return service.state
}

// CurrentUser returns the current profile snapshot, or nil.
func (service *Service) CurrentUser() *user.Record {
	service.mu.RLock()
	defer service.mu.RUnlock()
	return service.current
}

// Subscribe registers a callback invoked on every transition. The returned
// function unsubscribes it.
func (service *Service) Subscribe(fn func(Snapshot)) func() {
	service.mu.Lock()
	id := service.nextSubID
	service.nextSubID++
	service.subscribers[id] = fn
	service.mu.Unlock()

	return func() {
		service.mu.Lock()
		delete(service.subscribers, id)
		service.mu.Unlock()
	}
}

// # Role Predicates

// IsAdmin reports whether the logged-in user is an administrator.
func (service *Service) IsAdmin() bool { return service.hasRole(sec.RoleAdmin) }

// IsStaff reports whether the logged-in user is a resolver (staff).
func (service *Service) IsStaff() bool { return service.hasRole(sec.RoleStaff) }

// IsCitizen reports whether the logged-in user is a plain citizen.
func (service *Service) IsCitizen() bool { return service.hasRole(sec.RoleCitizen) }

// HasRole reports whether the logged-in user holds exactly the given role.
func (service *Service) HasRole(role sec.Role) bool { return service.hasRole(role) }

func (service *Service) hasRole(role sec.Role) bool {
	service.mu.RLock()
	defer service.mu.RUnlock()

	if service.state != StateAuthenticated || service.current == nil {
		return false
	}
	return service.current.Role() == role
}
