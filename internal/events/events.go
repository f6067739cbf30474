// Package events carries fire-and-forget domain events raised by the
// validators: client/API authentication outcomes, code redemptions,
// refresh token usage and device polls.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event categories.
const (
	CategoryAuthentication = "authentication"
	CategoryGrant          = "grant"
	CategoryDevice         = "device"
)

// Event names.
const (
	ClientAuthenticationSuccess = "client_authentication_success"
	ClientAuthenticationFailure = "client_authentication_failure"
	ApiAuthenticationSuccess    = "api_authentication_success"
	ApiAuthenticationFailure    = "api_authentication_failure"
	UserLoginSuccess            = "user_login_success"
	UserLoginFailure            = "user_login_failure"
	AuthorizationCodeRedeemed   = "authorization_code_redeemed"
	RefreshTokenUsed            = "refresh_token_used"
	DeviceCodePolled            = "device_code_polled"
)

// Event is one domain event. Sinks must tolerate partially filled events.
type Event struct {
	ID        string
	Name      string
	Category  string
	Success   bool
	Time      time.Time
	ClientID  string
	SubjectID string
	Message   string
}

// Sink consumes events. Implementations must be safe for concurrent use
// and must never fail the request path.
type Sink interface {
	Raise(ctx context.Context, e Event)
}

// New builds an event with a fresh id and timestamp.
func New(name, category string, success bool) Event {
	return Event{
		ID:       uuid.NewString(),
		Name:     name,
		Category: category,
		Success:  success,
		Time:     time.Now().UTC(),
	}
}

// ClientAuthSuccess builds a successful client authentication event.
func ClientAuthSuccess(clientID string) Event {
	e := New(ClientAuthenticationSuccess, CategoryAuthentication, true)
	e.ClientID = clientID
	return e
}

// ClientAuthFailure builds a failed client authentication event.
func ClientAuthFailure(clientID, message string) Event {
	e := New(ClientAuthenticationFailure, CategoryAuthentication, false)
	e.ClientID = clientID
	e.Message = message
	return e
}

// NoopSink drops every event.
type NoopSink struct{}

func (NoopSink) Raise(ctx context.Context, e Event) {}

// MultiSink fans events out to several sinks.
type MultiSink []Sink

func (m MultiSink) Raise(ctx context.Context, e Event) {
	for _, s := range m {
		s.Raise(ctx, e)
	}
}
