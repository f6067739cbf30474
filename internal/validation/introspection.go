package validation

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// ErrUnsupportedTokenType is the RFC 7009 error for revocation requests
// with an unknown token_type_hint.
const ErrUnsupportedTokenType = "unsupported_token_type"

// IntrospectionValidationResult is the outcome of introspection request
// validation. IsActive=false with a FailureReason is a valid protocol
// answer, not an error; IsError marks malformed requests.
type IntrospectionValidationResult struct {
	IsActive      bool
	Claims        map[string]any
	Token         string
	FailureReason string

	IsError          bool
	Error            string
	ErrorDescription string
}

// IntrospectionRequestValidator validates RFC 7662 introspection
// requests from already-authenticated API resources.
type IntrospectionRequestValidator struct {
	tokens *TokenValidator
	opts   *config.Options
}

func NewIntrospectionRequestValidator(tokens *TokenValidator, opts *config.Options) *IntrospectionRequestValidator {
	return &IntrospectionRequestValidator{tokens: tokens, opts: opts}
}

// Validate resolves the presented token. expectedScope, when non-empty,
// requires the introspecting API's scope to appear among the token's
// scopes.
func (v *IntrospectionRequestValidator) Validate(ctx context.Context, parameters url.Values, expectedScope string) (*IntrospectionValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.introspection"))

	token := parameters.Get("token")
	if token == "" {
		return &IntrospectionValidationResult{
			IsError:          true,
			Error:            ErrInvalidRequest,
			ErrorDescription: "token is required",
		}, nil
	}

	result, err := v.tokens.ValidateAccessToken(ctx, token, expectedScope)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		log.Debug("introspected token inactive", logger.ProtocolError(result.Error))
		// Callers only see active=false; the reason collapses expiry
		// into the generic invalid-token outcome.
		reason := result.Error
		if reason == ErrExpiredToken {
			reason = ErrInvalidToken
		}
		return &IntrospectionValidationResult{Token: token, FailureReason: reason}, nil
	}

	return &IntrospectionValidationResult{
		IsActive: true,
		Claims:   result.Claims,
		Token:    token,
	}, nil
}

// RevocationValidationResult is the outcome of revocation request
// validation.
type RevocationValidationResult struct {
	Token         string
	TokenTypeHint string

	IsError          bool
	Error            string
	ErrorDescription string
}

// RevocationRequestValidator validates RFC 7009 revocation requests.
type RevocationRequestValidator struct {
	opts *config.Options
}

func NewRevocationRequestValidator(opts *config.Options) *RevocationRequestValidator {
	return &RevocationRequestValidator{opts: opts}
}

func (v *RevocationRequestValidator) Validate(ctx context.Context, parameters url.Values) (*RevocationValidationResult, error) {
	token := parameters.Get("token")
	if token == "" || len(token) > v.opts.InputLengths.Jwt {
		return &RevocationValidationResult{
			IsError:          true,
			Error:            ErrInvalidRequest,
			ErrorDescription: "token is required",
		}, nil
	}

	hint := parameters.Get("token_type_hint")
	switch hint {
	case "", "access_token", "refresh_token":
	default:
		return &RevocationValidationResult{
			IsError: true,
			Error:   ErrUnsupportedTokenType,
		}, nil
	}

	return &RevocationValidationResult{Token: token, TokenTypeHint: hint}, nil
}
