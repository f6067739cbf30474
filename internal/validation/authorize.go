package validation

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// AuthorizeRequestValidatorDeps wires the collaborators of the authorize
// pipeline. Redirect and Custom may be nil; strict matching and a no-op
// hook are used then.
type AuthorizeRequestValidatorDeps struct {
	Clients       store.ClientStore
	Resources     *ResourceValidator
	Redirect      RedirectURIValidator
	RequestObject *RequestObjectValidator
	Custom        CustomAuthorizeRequestValidator
	Options       *config.Options
}

// AuthorizeRequestValidator runs the authorize-endpoint validation
// pipeline: client, request object, redirect binding, core parameters,
// scopes, optional parameters, custom hook. Stages run strictly in
// order and the first failure wins.
type AuthorizeRequestValidator struct {
	clients       store.ClientStore
	resources     *ResourceValidator
	redirect      RedirectURIValidator
	requestObject *RequestObjectValidator
	custom        CustomAuthorizeRequestValidator
	opts          *config.Options
}

func NewAuthorizeRequestValidator(d AuthorizeRequestValidatorDeps) *AuthorizeRequestValidator {
	if d.Redirect == nil {
		d.Redirect = StrictRedirectURIValidator{}
	}
	if d.Custom == nil {
		d.Custom = DefaultCustomAuthorizeRequestValidator{}
	}
	return &AuthorizeRequestValidator{
		clients:       d.Clients,
		resources:     d.Resources,
		redirect:      d.Redirect,
		requestObject: d.RequestObject,
		custom:        d.Custom,
		opts:          d.Options,
	}
}

// Validate checks one authorize request. subjectID/sessionID describe the
// already-authenticated browser session, empty when anonymous.
//
// Callers must only redirect errors when Request.RedirectURI survived
// validation; earlier failures have no trustworthy return address.
func (v *AuthorizeRequestValidator) Validate(ctx context.Context, parameters url.Values, subjectID, sessionID string) (*AuthorizeRequestValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.authorize"))

	req := NewValidatedAuthorizeRequest(parameters, v.opts)
	req.SubjectID = subjectID
	if v.opts.Endpoints.EnableCheckSession {
		req.SessionID = sessionID
	}

	if result, err := v.loadClient(ctx, req); result != nil || err != nil {
		return result, err
	}
	if result, err := v.loadRequestObject(ctx, req); result != nil || err != nil {
		return result, err
	}
	if result, err := v.validateClientBinding(ctx, req); result != nil || err != nil {
		return result, err
	}
	if result := v.validateCoreParameters(ctx, req); result != nil {
		return result, nil
	}
	if result, err := v.validateScopes(ctx, req); result != nil || err != nil {
		return result, err
	}
	if result := v.validateOptionalParameters(ctx, req); result != nil {
		return result, nil
	}

	result := &AuthorizeRequestValidationResult{Request: req}
	if err := v.custom.ValidateAuthorizeRequest(ctx, result); err != nil {
		log.Error("custom authorize validator failed", logger.Err(err))
		return authorizeError(req, ErrInvalidRequest, ""), nil
	}
	if !result.IsError {
		log.Debug("authorize request validated",
			logger.ClientID(req.ClientID),
			logger.ResponseType(req.ResponseType),
			logger.GrantType(req.GrantType))
	}
	return result, nil
}

// Stage 1: resolve the client.
func (v *AuthorizeRequestValidator) loadClient(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	clientID := req.Raw.Get("client_id")
	if clientID == "" || len(clientID) > v.opts.InputLengths.ClientID {
		return authorizeError(req, ErrInvalidRequest, "invalid client_id"), nil
	}
	req.ClientID = clientID

	client, err := v.clients.FindEnabledClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authorizeError(req, ErrUnauthorizedClient, "unknown client"), nil
		}
		return nil, err
	}
	req.Client = client
	return nil, nil
}

// Stages 2 and 3: load, verify and merge the request object.
func (v *AuthorizeRequestValidator) loadRequestObject(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	rawJWT, problem := v.requestObject.Load(ctx, req.Raw)
	if problem != "" {
		return authorizeError(req, ErrInvalidRequest, problem), nil
	}
	if rawJWT == "" {
		return nil, nil
	}

	merged, problem := v.requestObject.ValidateAndMerge(ctx, req.Client, req.Raw, rawJWT)
	if problem != "" {
		return authorizeError(req, ErrInvalidRequest, problem), nil
	}
	req.Raw = merged
	req.RequestObject = rawJWT
	return nil, nil
}

// Stage 4: protocol type and redirect binding.
func (v *AuthorizeRequestValidator) validateClientBinding(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	if req.Client.ProtocolType != model.ProtocolOIDC {
		return authorizeError(req, ErrUnauthorizedClient, "invalid protocol type"), nil
	}

	redirectURI := req.Raw.Get("redirect_uri")
	if redirectURI == "" || len(redirectURI) > v.opts.InputLengths.RedirectURI {
		return authorizeError(req, ErrInvalidRequest, "invalid redirect_uri"), nil
	}
	parsed, err := url.Parse(redirectURI)
	if err != nil || !parsed.IsAbs() {
		return authorizeError(req, ErrInvalidRequest, "malformed redirect_uri"), nil
	}

	ok, err := v.redirect.IsRedirectURIValid(ctx, redirectURI, req.Client)
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.From(ctx).Debug("redirect_uri not registered",
			logger.ClientID(req.ClientID), logger.String("redirect_uri", redirectURI))
		return authorizeError(req, ErrInvalidRequest, "invalid redirect_uri"), nil
	}
	req.RedirectURI = redirectURI
	return nil, nil
}

// Stage 5: response_type, grant mapping, response_mode, PKCE.
func (v *AuthorizeRequestValidator) validateCoreParameters(ctx context.Context, req *ValidatedAuthorizeRequest) *AuthorizeRequestValidationResult {
	responseType := req.Raw.Get("response_type")
	if responseType == "" {
		return authorizeError(req, ErrUnsupportedResponseType, "response_type is required")
	}
	normalized := normalizeResponseType(responseType)
	grantType, ok := responseTypeToGrantType[normalized]
	if !ok {
		return authorizeError(req, ErrUnsupportedResponseType, "unsupported response_type")
	}
	req.ResponseType = normalized
	req.GrantType = grantType

	if !req.Client.AllowsGrantType(grantType) {
		return authorizeError(req, ErrUnauthorizedClient, "grant type not allowed for client")
	}

	responseMode := req.Raw.Get("response_mode")
	if responseMode == "" {
		responseMode = defaultResponseModeForGrant[grantType]
	} else {
		allowed := false
		for _, m := range allowedResponseModesForGrant[grantType] {
			if m == responseMode {
				allowed = true
				break
			}
		}
		if !allowed {
			return authorizeError(req, ErrInvalidRequest, "invalid response_mode for response_type")
		}
	}
	req.ResponseMode = responseMode

	if grantType == model.GrantAuthorizationCode || grantType == model.GrantHybrid {
		if result := v.validatePKCE(req); result != nil {
			return result
		}
	}
	return nil
}

func (v *AuthorizeRequestValidator) validatePKCE(req *ValidatedAuthorizeRequest) *AuthorizeRequestValidationResult {
	challenge := req.Raw.Get("code_challenge")
	method := req.Raw.Get("code_challenge_method")

	if challenge == "" {
		if req.Client.RequirePKCE {
			return authorizeError(req, ErrInvalidRequest, "code_challenge is required")
		}
		if method != "" {
			return authorizeError(req, ErrInvalidRequest, "code_challenge_method without code_challenge")
		}
		return nil
	}

	lengths := v.opts.InputLengths
	if len(challenge) < lengths.CodeChallengeMinLength || len(challenge) > lengths.CodeChallengeMaxLength {
		return authorizeError(req, ErrInvalidRequest, "invalid code_challenge length")
	}

	if method == "" {
		method = model.CodeChallengePlain
	}
	switch method {
	case model.CodeChallengeS256:
	case model.CodeChallengePlain:
		if !req.Client.AllowPlainTextPKCE {
			return authorizeError(req, ErrInvalidRequest, "plain code_challenge_method not allowed")
		}
	default:
		return authorizeError(req, ErrInvalidRequest, "unsupported code_challenge_method")
	}

	req.CodeChallenge = challenge
	req.CodeChallengeMethod = method
	return nil
}

// Stage 6: scope resolution and response_type shape checks.
func (v *AuthorizeRequestValidator) validateScopes(ctx context.Context, req *ValidatedAuthorizeRequest) (*AuthorizeRequestValidationResult, error) {
	rawScope := req.Raw.Get("scope")
	if rawScope == "" || len(rawScope) > v.opts.InputLengths.Scope {
		return authorizeError(req, ErrInvalidScope, "invalid scope"), nil
	}
	requested := strings.Fields(rawScope)
	req.RequestedScopes = requested

	for _, s := range requested {
		if s == model.ScopeOpenID {
			req.IsOpenIDRequest = true
			break
		}
	}
	if responseTypeIncludes(req.ResponseType, "id_token") && !req.IsOpenIDRequest {
		return authorizeError(req, ErrInvalidScope, "openid scope is required for this response_type"), nil
	}

	validated, err := v.resources.ValidateRequestedResources(ctx, req.Client, requested)
	if err != nil {
		return nil, err
	}
	if !validated.Succeeded() {
		return authorizeError(req, ErrInvalidScope, "invalid scope"), nil
	}
	req.ValidatedResources = validated

	switch req.ResponseType {
	case "id_token":
		if validated.HasApiScopes() {
			return authorizeError(req, ErrInvalidScope, "resource scopes not allowed for id_token response"), nil
		}
		if !req.IsOpenIDRequest {
			return authorizeError(req, ErrInvalidScope, "openid scope is required"), nil
		}
	case "token":
		if req.IsOpenIDRequest || validated.HasIdentityScopes() {
			return authorizeError(req, ErrInvalidScope, "identity scopes not allowed for token response"), nil
		}
		if !validated.HasApiScopes() {
			return authorizeError(req, ErrInvalidScope, "resource scope is required for token response"), nil
		}
	}
	return nil, nil
}

// Stage 7: nonce, prompt, display, max_age, hints, acr_values.
func (v *AuthorizeRequestValidator) validateOptionalParameters(ctx context.Context, req *ValidatedAuthorizeRequest) *AuthorizeRequestValidationResult {
	lengths := v.opts.InputLengths

	nonce := req.Raw.Get("nonce")
	if len(nonce) > lengths.Nonce {
		return authorizeError(req, ErrInvalidRequest, "nonce too long")
	}
	if nonce == "" && req.IsOpenIDRequest &&
		(req.GrantType == model.GrantImplicit || req.GrantType == model.GrantHybrid) {
		return authorizeError(req, ErrInvalidRequest, "nonce is required for implicit and hybrid flows")
	}
	req.Nonce = nonce

	if prompt := req.Raw.Get("prompt"); prompt != "" {
		values := strings.Fields(prompt)
		for _, p := range values {
			if _, ok := supportedPromptModes[p]; !ok {
				return authorizeError(req, ErrInvalidRequest, "unsupported prompt value")
			}
		}
		if len(values) > 1 {
			for _, p := range values {
				if p == PromptNone {
					return authorizeError(req, ErrInvalidRequest, "prompt=none must not be combined")
				}
			}
		}
		req.Prompt = values
	}

	if display := req.Raw.Get("display"); display != "" {
		if _, ok := supportedDisplayModes[display]; ok {
			req.Display = display
		}
	}

	if maxAge := req.Raw.Get("max_age"); maxAge != "" {
		n, err := strconv.Atoi(maxAge)
		if err != nil || n < 0 {
			return authorizeError(req, ErrInvalidRequest, "invalid max_age")
		}
		req.MaxAge = &n
	}

	uiLocales := req.Raw.Get("ui_locales")
	if len(uiLocales) > lengths.UILocale {
		return authorizeError(req, ErrInvalidRequest, "ui_locales too long")
	}
	req.UILocales = uiLocales

	loginHint := req.Raw.Get("login_hint")
	if len(loginHint) > lengths.LoginHint {
		return authorizeError(req, ErrInvalidRequest, "login_hint too long")
	}
	req.LoginHint = loginHint

	if acr := req.Raw.Get("acr_values"); acr != "" {
		if len(acr) > lengths.AcrValues {
			return authorizeError(req, ErrInvalidRequest, "acr_values too long")
		}
		req.AcrValues, req.IdP = v.filterAcrValues(ctx, req.Client, strings.Fields(acr))
	}

	req.State = req.Raw.Get("state")
	return nil
}

// filterAcrValues extracts the idp: hint and drops it when the client
// restricts identity providers and the hint is not allowed.
func (v *AuthorizeRequestValidator) filterAcrValues(ctx context.Context, client *model.Client, values []string) (acr []string, idp string) {
	for _, value := range values {
		if !strings.HasPrefix(value, "idp:") {
			acr = append(acr, value)
			continue
		}
		hint := strings.TrimPrefix(value, "idp:")
		if !client.AllowsProvider(hint) {
			logger.From(ctx).Debug("idp hint not allowed for client",
				logger.ClientID(client.ClientID), logger.String("idp", hint))
			continue
		}
		idp = hint
		acr = append(acr, value)
	}
	return acr, idp
}
