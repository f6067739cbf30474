// Package store defines the collaborator contracts the validation engine
// consumes, plus memory and Redis implementations of the grant stores.
//
// One-time-use semantics: Take on the authorization-code store and Remove
// on the device-code store must be atomic with respect to lookup. The
// engine relies on the store for this; a naive get-then-remove performed
// by callers is not safe under concurrency.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// ErrNotFound is returned when a handle or id does not resolve.
var ErrNotFound = errors.New("store: not found")

// ClientStore resolves registered clients.
type ClientStore interface {
	// FindEnabledClientByID returns the enabled client with the given id,
	// or ErrNotFound. Disabled clients are treated as missing.
	FindEnabledClientByID(ctx context.Context, clientID string) (*model.Client, error)
}

// ResourceStore resolves identity and API resources.
type ResourceStore interface {
	// FindEnabledResourcesByScope returns every enabled resource matching
	// any of the scope names.
	FindEnabledResourcesByScope(ctx context.Context, scopeNames []string) (*model.Resources, error)

	// FindApiResourcesByName returns enabled API resources by resource name.
	FindApiResourcesByName(ctx context.Context, names []string) ([]model.ApiResource, error)
}

// AuthorizationCodeStore persists one-time authorization codes.
type AuthorizationCodeStore interface {
	// Store persists the code and returns its opaque handle.
	Store(ctx context.Context, code *model.AuthorizationCode) (string, error)

	// Take atomically fetches and removes the code. A second Take with the
	// same handle returns ErrNotFound.
	Take(ctx context.Context, handle string) (*model.AuthorizationCode, error)
}

// RefreshTokenStore persists refresh tokens.
type RefreshTokenStore interface {
	Store(ctx context.Context, token *model.RefreshToken) (string, error)
	Get(ctx context.Context, handle string) (*model.RefreshToken, error)
	Update(ctx context.Context, handle string, token *model.RefreshToken) error
	Remove(ctx context.Context, handle string) error
}

// ReferenceTokenStore persists reference access tokens.
type ReferenceTokenStore interface {
	Store(ctx context.Context, token *model.ReferenceToken) (string, error)
	Get(ctx context.Context, handle string) (*model.ReferenceToken, error)
	Remove(ctx context.Context, handle string) error
}

// DeviceCodeStore persists device-flow codes. The device_code handle is
// generated at Store time; the user_code is assigned by the caller.
type DeviceCodeStore interface {
	Store(ctx context.Context, code *model.DeviceCode) (string, error)
	Get(ctx context.Context, handle string) (*model.DeviceCode, error)
	FindByUserCode(ctx context.Context, userCode string) (*model.DeviceCode, string, error)
	Update(ctx context.Context, handle string, code *model.DeviceCode) error
	Remove(ctx context.Context, handle string) error
}

// ReplayCache remembers single-use token identifiers (jti).
type ReplayCache interface {
	Exists(ctx context.Context, purpose, id string) (bool, error)
	Add(ctx context.Context, purpose, id string, expiry time.Time) error
}

// ThrottleCache tracks the last poll instant per device code for the
// device-flow slow_down check.
type ThrottleCache interface {
	LastPoll(ctx context.Context, handle string) (time.Time, bool, error)
	SetLastPoll(ctx context.Context, handle string, at time.Time, ttl time.Duration) error
}

// ProfileService answers subject liveness questions.
type ProfileService interface {
	// IsActive reports whether the subject may still be issued tokens.
	// caller identifies the validation path asking (e.g. "authorization_code").
	IsActive(ctx context.Context, subjectID string, client *model.Client, caller string) (bool, error)
}

// UserStore resolves resource owners for the password grant.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindBySubject(ctx context.Context, subjectID string) (*model.User, error)
}
