package validation

import (
	"net/url"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/model"
)

// ValidatedRequest is the mutable accumulator threaded through a
// validation pipeline. One instance is created per call and never
// shared across requests.
type ValidatedRequest struct {
	// Raw holds the request parameters as received.
	Raw url.Values

	ClientID string
	Client   *model.Client
	Secret   *model.ParsedSecret

	SubjectID string
	SessionID string

	Options *config.Options

	ValidatedResources *ResourceValidationResult
}

// ValidatedAuthorizeRequest accumulates the state of one authorize
// request as it moves through the validation stages.
type ValidatedAuthorizeRequest struct {
	ValidatedRequest

	ResponseType string
	GrantType    string
	ResponseMode string
	RedirectURI  string

	RequestedScopes []string
	IsOpenIDRequest bool

	State     string
	Nonce     string
	UILocales string
	Display   string
	LoginHint string
	MaxAge    *int
	Prompt    []string
	AcrValues []string
	IdP       string

	CodeChallenge       string
	CodeChallengeMethod string

	// RequestObject is the raw JAR JWT when one was supplied.
	RequestObject string
}

// NewValidatedAuthorizeRequest creates the accumulator for one call.
func NewValidatedAuthorizeRequest(raw url.Values, opts *config.Options) *ValidatedAuthorizeRequest {
	return &ValidatedAuthorizeRequest{
		ValidatedRequest: ValidatedRequest{Raw: cloneValues(raw), Options: opts},
	}
}

// ValidatedTokenRequest accumulates the state of one token request.
type ValidatedTokenRequest struct {
	ValidatedRequest

	GrantType string

	AuthorizationCode       *model.AuthorizationCode
	AuthorizationCodeHandle string

	RefreshToken       *model.RefreshToken
	RefreshTokenHandle string

	DeviceCode       *model.DeviceCode
	DeviceCodeHandle string

	UserName string
	Scopes   []string
}

// NewValidatedTokenRequest creates the accumulator for one call.
func NewValidatedTokenRequest(raw url.Values, opts *config.Options) *ValidatedTokenRequest {
	return &ValidatedTokenRequest{
		ValidatedRequest: ValidatedRequest{Raw: cloneValues(raw), Options: opts},
	}
}

// ValidatedEndSessionRequest is the outcome of end-session validation.
// SubjectID and Client come from the id_token_hint when one validated.
type ValidatedEndSessionRequest struct {
	ValidatedRequest

	PostLogoutRedirectURI string
	State                 string
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		cp := make([]string, len(vals))
		copy(cp, vals)
		out[k] = cp
	}
	return out
}
