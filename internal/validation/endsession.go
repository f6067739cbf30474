package validation

import (
	"context"
	"net/url"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// EndSessionValidationResult is the outcome of end-session validation.
type EndSessionValidationResult struct {
	Request          *ValidatedEndSessionRequest
	IsError          bool
	Error            string
	ErrorDescription string
}

func endSessionError(req *ValidatedEndSessionRequest, code, description string) *EndSessionValidationResult {
	return &EndSessionValidationResult{Request: req, IsError: true, Error: code, ErrorDescription: description}
}

// EndSessionRequestValidator validates RP-initiated logout requests.
// Every parameter is optional, but a post_logout_redirect_uri is only
// honored when a valid id_token_hint identifies the client and the URI
// is registered for it.
type EndSessionRequestValidator struct {
	tokens   *TokenValidator
	redirect RedirectURIValidator
	opts     *config.Options
}

func NewEndSessionRequestValidator(tokens *TokenValidator, redirect RedirectURIValidator, opts *config.Options) *EndSessionRequestValidator {
	if redirect == nil {
		redirect = StrictRedirectURIValidator{}
	}
	return &EndSessionRequestValidator{tokens: tokens, redirect: redirect, opts: opts}
}

// Validate checks one end-session request. subjectID is the current
// session's subject, empty when anonymous.
func (v *EndSessionRequestValidator) Validate(ctx context.Context, parameters url.Values, subjectID string) (*EndSessionValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.end_session"))

	req := &ValidatedEndSessionRequest{
		ValidatedRequest: ValidatedRequest{Raw: cloneValues(parameters), Options: v.opts, SubjectID: subjectID},
	}
	req.State = parameters.Get("state")

	hint := parameters.Get("id_token_hint")
	if hint != "" {
		if len(hint) > v.opts.InputLengths.IDTokenHint {
			return endSessionError(req, ErrInvalidRequest, "id_token_hint too long"), nil
		}
		// Expired hints are fine; the session being closed may outlive
		// the token. Signature and issuer still have to check out.
		result, err := v.tokens.ValidateIdentityToken(ctx, hint, false)
		if err != nil {
			return nil, err
		}
		if result.IsError {
			log.Debug("id_token_hint rejected", logger.ProtocolError(result.Error))
			return endSessionError(req, ErrInvalidRequest, "invalid id_token_hint"), nil
		}

		req.Client = result.Client
		req.ClientID = result.Client.ClientID
		if sub, _ := result.Claims["sub"].(string); sub != "" {
			if subjectID != "" && sub != subjectID {
				log.Debug("id_token_hint subject does not match session",
					logger.SubjectID(subjectID))
				return endSessionError(req, ErrInvalidRequest, "id_token_hint subject mismatch"), nil
			}
			req.SubjectID = sub
		}
	}

	if uri := parameters.Get("post_logout_redirect_uri"); uri != "" {
		if len(uri) > v.opts.InputLengths.RedirectURI {
			return endSessionError(req, ErrInvalidRequest, "post_logout_redirect_uri too long"), nil
		}
		if req.Client == nil {
			log.Debug("post_logout_redirect_uri without id_token_hint")
			return endSessionError(req, ErrInvalidRequest, "post_logout_redirect_uri requires id_token_hint"), nil
		}
		ok, err := v.redirect.IsPostLogoutRedirectURIValid(ctx, uri, req.Client)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug("post_logout_redirect_uri not registered", logger.ClientID(req.ClientID))
			return endSessionError(req, ErrInvalidRequest, "invalid post_logout_redirect_uri"), nil
		}
		req.PostLogoutRedirectURI = uri
	}

	return &EndSessionValidationResult{Request: req}, nil
}
