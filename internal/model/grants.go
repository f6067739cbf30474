package model

import "time"

// AuthorizationCode is a one-time grant minted at authorize-request
// completion. It is deleted on first lookup, even if the rest of the
// redemption later fails.
type AuthorizationCode struct {
	ClientID            string    `json:"client_id"`
	SubjectID           string    `json:"subject_id"`
	SessionID           string    `json:"session_id,omitempty"`
	RequestedScopes     []string  `json:"requested_scopes"`
	RedirectURI         string    `json:"redirect_uri"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
	Nonce               string    `json:"nonce,omitempty"`
	IsOpenID            bool      `json:"is_openid"`
	CreationTime        time.Time `json:"creation_time"`
	Lifetime            int       `json:"lifetime"`
}

// IsExpired reports whether the code lifetime has elapsed.
func (c *AuthorizationCode) IsExpired(now time.Time) bool {
	return now.After(c.CreationTime.Add(time.Duration(c.Lifetime) * time.Second))
}

// RefreshToken is a long-lived grant. ConsumedTime is nil while the token
// is still usable; one-time-use clients get it set on rotation.
type RefreshToken struct {
	ClientID        string         `json:"client_id"`
	SubjectID       string         `json:"subject_id"`
	SessionID       string         `json:"session_id,omitempty"`
	Scopes          []string       `json:"scopes"`
	AccessTokenType string         `json:"access_token_type,omitempty"`
	Claims          map[string]any `json:"claims,omitempty"`
	CreationTime    time.Time      `json:"creation_time"`
	Lifetime        int            `json:"lifetime"`
	ConsumedTime    *time.Time     `json:"consumed_time,omitempty"`
	Version         int            `json:"version"`
}

// IsExpired reports whether the refresh token lifetime has elapsed.
// Lifetime 0 means the token never expires.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	if t.Lifetime == 0 {
		return false
	}
	return now.After(t.CreationTime.Add(time.Duration(t.Lifetime) * time.Second))
}

// DeviceCode is the state of one device-flow authorization. The device
// polls the token endpoint with the device_code handle while the user
// approves on a secondary device using UserCode.
type DeviceCode struct {
	UserCode         string    `json:"user_code"`
	ClientID         string    `json:"client_id"`
	SubjectID        string    `json:"subject_id,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
	RequestedScopes  []string  `json:"requested_scopes"`
	AuthorizedScopes []string  `json:"authorized_scopes,omitempty"`
	IsAuthorized     bool      `json:"is_authorized"`
	IsOpenID         bool      `json:"is_openid"`
	CreationTime     time.Time `json:"creation_time"`
	Lifetime         int       `json:"lifetime"`
}

// IsExpired reports whether the device code lifetime has elapsed.
func (d *DeviceCode) IsExpired(now time.Time) bool {
	return now.After(d.CreationTime.Add(time.Duration(d.Lifetime) * time.Second))
}

// ReferenceToken is a server-side access token record looked up by an
// opaque handle.
type ReferenceToken struct {
	ClientID     string         `json:"client_id"`
	SubjectID    string         `json:"subject_id,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	Scopes       []string       `json:"scopes"`
	Audiences    []string       `json:"audiences,omitempty"`
	Claims       map[string]any `json:"claims,omitempty"`
	CreationTime time.Time      `json:"creation_time"`
	Lifetime     int            `json:"lifetime"`
}

// IsExpired reports whether the reference token lifetime has elapsed.
func (t *ReferenceToken) IsExpired(now time.Time) bool {
	return now.After(t.CreationTime.Add(time.Duration(t.Lifetime) * time.Second))
}

// User is the minimal record consumed by the resource-owner password
// grant and the profile liveness check.
type User struct {
	SubjectID    string         `json:"subject_id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"password_hash,omitempty"`
	Active       bool           `json:"active"`
	Claims       map[string]any `json:"claims,omitempty"`
}
