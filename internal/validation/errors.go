// Package validation implements the protocol request validators: the
// stateful pipelines that turn raw, untrusted request parameters into
// policy-checked, strongly-typed requests, plus the inbound token
// validator.
//
// Validators never return Go errors for protocol failures; they return
// result values carrying standard OAuth2/OIDC error codes. Go errors are
// reserved for infrastructure faults (store unavailable) and contract
// violations, which propagate to the host.
package validation

// Standard OAuth2/OIDC error codes.
const (
	ErrInvalidRequest          = "invalid_request"
	ErrInvalidClient           = "invalid_client"
	ErrInvalidGrant            = "invalid_grant"
	ErrUnauthorizedClient      = "unauthorized_client"
	ErrUnsupportedGrantType    = "unsupported_grant_type"
	ErrUnsupportedResponseType = "unsupported_response_type"
	ErrInvalidScope            = "invalid_scope"
	ErrAccessDenied            = "access_denied"
	ErrAuthorizationPending    = "authorization_pending"
	ErrSlowDown                = "slow_down"
	ErrExpiredToken            = "expired_token"
	ErrInvalidToken            = "invalid_token"
	ErrInsufficientScope       = "insufficient_scope"
)

// AuthorizeRequestValidationResult is the outcome of authorize-request
// validation. When IsError is set and Request still carries a validated
// client and redirect URI, the error may be returned via redirect;
// otherwise it must be surfaced directly to avoid an open redirector.
type AuthorizeRequestValidationResult struct {
	Request          *ValidatedAuthorizeRequest
	IsError          bool
	Error            string
	ErrorDescription string
}

// TokenRequestValidationResult is the outcome of token-request
// validation.
type TokenRequestValidationResult struct {
	Request          *ValidatedTokenRequest
	IsError          bool
	Error            string
	ErrorDescription string

	// CustomResponse lets extension grants add response fields.
	CustomResponse map[string]any
}

func authorizeError(req *ValidatedAuthorizeRequest, code, description string) *AuthorizeRequestValidationResult {
	return &AuthorizeRequestValidationResult{Request: req, IsError: true, Error: code, ErrorDescription: description}
}

func tokenError(req *ValidatedTokenRequest, code, description string) *TokenRequestValidationResult {
	return &TokenRequestValidationResult{Request: req, IsError: true, Error: code, ErrorDescription: description}
}

func tokenSuccess(req *ValidatedTokenRequest) *TokenRequestValidationResult {
	return &TokenRequestValidationResult{Request: req}
}
