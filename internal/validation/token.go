package validation

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/events"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// TokenRequestValidatorDeps wires the collaborators of the token
// pipeline. ResourceOwner, Extensions and Custom may be nil; rejecting
// and no-op defaults are used then.
type TokenRequestValidatorDeps struct {
	Codes         store.AuthorizationCodeStore
	RefreshTokens store.RefreshTokenStore
	Resources     *ResourceValidator
	Profile       store.ProfileService
	DeviceCodes   *DeviceCodeValidator
	ResourceOwner ResourceOwnerPasswordValidator
	Extensions    *ExtensionGrantRegistry
	Custom        CustomTokenRequestValidator
	Sink          events.Sink
	Clock         clock.Clock
	Options       *config.Options
}

// TokenRequestValidator dispatches on grant_type and runs the matching
// validation routine. Every routine is gated on the client being allowed
// that grant type; all routines funnel through the custom hook.
type TokenRequestValidator struct {
	codes         store.AuthorizationCodeStore
	refreshTokens store.RefreshTokenStore
	resources     *ResourceValidator
	profile       store.ProfileService
	deviceCodes   *DeviceCodeValidator
	resourceOwner ResourceOwnerPasswordValidator
	extensions    *ExtensionGrantRegistry
	custom        CustomTokenRequestValidator
	sink          events.Sink
	clk           clock.Clock
	opts          *config.Options
}

func NewTokenRequestValidator(d TokenRequestValidatorDeps) *TokenRequestValidator {
	if d.ResourceOwner == nil {
		d.ResourceOwner = NotSupportedResourceOwnerValidator{}
	}
	if d.Extensions == nil {
		d.Extensions = NewExtensionGrantRegistry()
	}
	if d.Custom == nil {
		d.Custom = DefaultCustomTokenRequestValidator{}
	}
	if d.Sink == nil {
		d.Sink = events.NoopSink{}
	}
	return &TokenRequestValidator{
		codes:         d.Codes,
		refreshTokens: d.RefreshTokens,
		resources:     d.Resources,
		profile:       d.Profile,
		deviceCodes:   d.DeviceCodes,
		resourceOwner: d.ResourceOwner,
		extensions:    d.Extensions,
		custom:        d.Custom,
		sink:          d.Sink,
		clk:           d.Clock,
		opts:          d.Options,
	}
}

// Validate checks one token request for an already-authenticated client.
func (v *TokenRequestValidator) Validate(ctx context.Context, parameters url.Values, client *model.Client) (*TokenRequestValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.token"), logger.ClientID(client.ClientID))

	req := NewValidatedTokenRequest(parameters, v.opts)
	req.ClientID = client.ClientID
	req.Client = client

	grantType := req.Raw.Get("grant_type")
	if grantType == "" || len(grantType) > v.opts.InputLengths.GrantType {
		return tokenError(req, ErrUnsupportedGrantType, "invalid grant_type"), nil
	}
	req.GrantType = grantType
	log = log.With(logger.GrantType(grantType))

	if !client.AllowsGrantType(grantType) {
		log.Debug("grant type not allowed for client")
		return tokenError(req, ErrUnauthorizedClient, "grant type not allowed for client"), nil
	}

	var (
		result *TokenRequestValidationResult
		err    error
	)
	switch grantType {
	case model.GrantAuthorizationCode:
		result, err = v.validateAuthorizationCode(ctx, req)
	case model.GrantClientCredentials:
		result, err = v.validateClientCredentials(ctx, req)
	case model.GrantPassword:
		result, err = v.validatePassword(ctx, req)
	case model.GrantRefreshToken:
		result, err = v.validateRefreshToken(ctx, req)
	case model.GrantDeviceCode:
		result, err = v.validateDeviceCode(ctx, req)
	default:
		result, err = v.validateExtensionGrant(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result.IsError {
		log.Debug("token request rejected", logger.ProtocolError(result.Error))
		return result, nil
	}

	if err := v.custom.ValidateTokenRequest(ctx, result); err != nil {
		log.Error("custom token validator failed", logger.Err(err))
		return tokenError(req, ErrInvalidGrant, ""), nil
	}
	return result, nil
}

// validateAuthorizationCode redeems a one-time authorization code. The
// code is consumed at lookup, before any further check, so a failed
// redemption still burns it.
func (v *TokenRequestValidator) validateAuthorizationCode(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.token"), logger.ClientID(req.ClientID))

	handle := req.Raw.Get("code")
	if handle == "" || len(handle) > v.opts.InputLengths.AuthorizationCode {
		return tokenError(req, ErrInvalidGrant, "invalid code"), nil
	}

	code, err := v.codes.Take(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("authorization code unknown or already redeemed")
			return tokenError(req, ErrInvalidGrant, "invalid code"), nil
		}
		return nil, err
	}
	req.AuthorizationCode = code
	req.AuthorizationCodeHandle = handle

	if code.ClientID != req.ClientID {
		log.Warn("authorization code bound to different client")
		return tokenError(req, ErrInvalidGrant, "invalid code"), nil
	}
	if code.IsExpired(v.clk.Now()) {
		log.Debug("authorization code expired")
		return tokenError(req, ErrInvalidGrant, "expired code"), nil
	}

	redirectURI := req.Raw.Get("redirect_uri")
	if redirectURI == "" || redirectURI != code.RedirectURI {
		log.Debug("redirect_uri does not match issuance")
		return tokenError(req, ErrInvalidGrant, "invalid redirect_uri"), nil
	}

	if len(code.RequestedScopes) == 0 {
		return tokenError(req, ErrInvalidGrant, "code carries no scopes"), nil
	}

	if result := v.validateCodeVerifier(req, code); result != nil {
		return result, nil
	}

	active, err := v.profile.IsActive(ctx, code.SubjectID, req.Client, model.GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}
	if !active {
		log.Debug("code subject no longer active", logger.SubjectID(code.SubjectID))
		return tokenError(req, ErrInvalidGrant, "inactive subject"), nil
	}

	req.SubjectID = code.SubjectID
	req.SessionID = code.SessionID
	req.Scopes = code.RequestedScopes

	e := events.New(events.AuthorizationCodeRedeemed, events.CategoryGrant, true)
	e.ClientID = req.ClientID
	e.SubjectID = code.SubjectID
	v.sink.Raise(ctx, e)

	return tokenSuccess(req), nil
}

func (v *TokenRequestValidator) validateCodeVerifier(req *ValidatedTokenRequest, code *model.AuthorizationCode) *TokenRequestValidationResult {
	verifier := req.Raw.Get("code_verifier")

	if code.CodeChallenge == "" {
		if req.Client.RequirePKCE {
			return tokenError(req, ErrInvalidGrant, "code was issued without required code_challenge")
		}
		if verifier != "" {
			return tokenError(req, ErrInvalidGrant, "unexpected code_verifier")
		}
		return nil
	}

	lengths := v.opts.InputLengths
	if !validCodeVerifierFormat(verifier, lengths.CodeVerifierMinLength, lengths.CodeVerifierMaxLength) {
		return tokenError(req, ErrInvalidGrant, "invalid code_verifier")
	}
	if !verifyCodeVerifier(code, verifier) {
		return tokenError(req, ErrInvalidGrant, "invalid code_verifier")
	}
	return nil
}

// validateClientCredentials resolves machine-to-machine scopes. Identity
// scopes and offline_access have no meaning without a user and fail the
// request.
func (v *TokenRequestValidator) validateClientCredentials(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	if result, err := v.resolveScopes(ctx, req, false); result != nil || err != nil {
		return result, err
	}

	for _, s := range req.Scopes {
		if s == model.ScopeOfflineAccess {
			return tokenError(req, ErrInvalidScope, "offline_access not allowed for client_credentials"), nil
		}
	}
	if req.ValidatedResources.HasIdentityScopes() || req.ValidatedResources.OfflineAccess {
		return tokenError(req, ErrInvalidScope, "identity scopes not allowed for client_credentials"), nil
	}
	return tokenSuccess(req), nil
}

// validatePassword checks resource owner credentials through the
// pluggable validator and re-checks the subject's liveness.
func (v *TokenRequestValidator) validatePassword(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	lengths := v.opts.InputLengths

	username := req.Raw.Get("username")
	password := req.Raw.Get("password")
	if username == "" || len(username) > lengths.UserName {
		return tokenError(req, ErrInvalidGrant, "invalid username"), nil
	}
	if len(password) > lengths.Password {
		return tokenError(req, ErrInvalidGrant, "invalid password"), nil
	}
	req.UserName = username

	owner, err := v.resourceOwner.ValidateResourceOwner(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if owner.IsError {
		code := owner.Error
		if code == "" {
			code = ErrInvalidGrant
		}
		return tokenError(req, code, owner.ErrorDescription), nil
	}

	active, err := v.profile.IsActive(ctx, owner.SubjectID, req.Client, model.GrantPassword)
	if err != nil {
		return nil, err
	}
	if !active {
		return tokenError(req, ErrInvalidGrant, "inactive subject"), nil
	}
	req.SubjectID = owner.SubjectID

	if result, err := v.resolveScopes(ctx, req, true); result != nil || err != nil {
		return result, err
	}
	return tokenSuccess(req), nil
}

// validateRefreshToken checks a refresh token handle: present, alive,
// unconsumed, bound to this client, and the client must still be allowed
// offline access.
func (v *TokenRequestValidator) validateRefreshToken(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.token"), logger.ClientID(req.ClientID))

	handle := req.Raw.Get("refresh_token")
	if handle == "" || len(handle) > v.opts.InputLengths.RefreshToken {
		return tokenError(req, ErrInvalidGrant, "invalid refresh_token"), nil
	}

	token, err := v.refreshTokens.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("unknown refresh token")
			return tokenError(req, ErrInvalidGrant, "invalid refresh_token"), nil
		}
		return nil, err
	}

	if token.IsExpired(v.clk.Now()) {
		log.Debug("refresh token expired")
		return tokenError(req, ErrInvalidGrant, "expired refresh_token"), nil
	}
	if token.ConsumedTime != nil {
		log.Warn("refresh token already consumed", logger.SubjectID(token.SubjectID))
		return tokenError(req, ErrInvalidGrant, "invalid refresh_token"), nil
	}
	if token.ClientID != req.ClientID {
		log.Warn("refresh token bound to different client")
		return tokenError(req, ErrInvalidGrant, "invalid refresh_token"), nil
	}
	if !req.Client.AllowOfflineAccess {
		log.Debug("client no longer allowed offline access")
		return tokenError(req, ErrInvalidGrant, "offline access revoked"), nil
	}

	active, err := v.profile.IsActive(ctx, token.SubjectID, req.Client, model.GrantRefreshToken)
	if err != nil {
		return nil, err
	}
	if !active {
		log.Debug("refresh token subject no longer active", logger.SubjectID(token.SubjectID))
		return tokenError(req, ErrInvalidGrant, "inactive subject"), nil
	}

	req.RefreshToken = token
	req.RefreshTokenHandle = handle
	req.SubjectID = token.SubjectID
	req.SessionID = token.SessionID
	req.Scopes = token.Scopes

	e := events.New(events.RefreshTokenUsed, events.CategoryGrant, true)
	e.ClientID = req.ClientID
	e.SubjectID = token.SubjectID
	v.sink.Raise(ctx, e)

	return tokenSuccess(req), nil
}

func (v *TokenRequestValidator) validateDeviceCode(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	handle := req.Raw.Get("device_code")
	if handle == "" || len(handle) > v.opts.InputLengths.DeviceCode {
		return tokenError(req, ErrInvalidGrant, "invalid device_code"), nil
	}

	result, err := v.deviceCodes.Validate(ctx, req.Client, handle)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return tokenError(req, result.Error, result.ErrorDescription), nil
	}

	code := result.DeviceCode
	req.DeviceCode = code
	req.DeviceCodeHandle = result.Handle
	req.SubjectID = code.SubjectID
	req.SessionID = code.SessionID
	req.Scopes = code.AuthorizedScopes
	return tokenSuccess(req), nil
}

func (v *TokenRequestValidator) validateExtensionGrant(ctx context.Context, req *ValidatedTokenRequest) (*TokenRequestValidationResult, error) {
	result, err := v.extensions.Validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return tokenError(req, result.Error, result.ErrorDescription), nil
	}

	if result.SubjectID != "" {
		active, err := v.profile.IsActive(ctx, result.SubjectID, req.Client, req.GrantType)
		if err != nil {
			return nil, err
		}
		if !active {
			return tokenError(req, ErrInvalidGrant, "inactive subject"), nil
		}
		req.SubjectID = result.SubjectID
	}

	if r, err := v.resolveScopes(ctx, req, result.SubjectID != ""); r != nil || err != nil {
		return r, err
	}

	out := tokenSuccess(req)
	out.CustomResponse = result.CustomResponse
	return out, nil
}

// resolveScopes validates the scope parameter, defaulting an omitted
// scope to the client's full allowed set. Omission means all scopes, not
// no scopes.
func (v *TokenRequestValidator) resolveScopes(ctx context.Context, req *ValidatedTokenRequest, includeOffline bool) (*TokenRequestValidationResult, error) {
	rawScope := req.Raw.Get("scope")
	if len(rawScope) > v.opts.InputLengths.Scope {
		return tokenError(req, ErrInvalidScope, "scope too long"), nil
	}

	var requested []string
	if rawScope != "" {
		requested = strings.Fields(rawScope)
	} else {
		if req.Client.AllowAllScopes {
			return tokenError(req, ErrInvalidScope, "scope is required"), nil
		}
		requested = append(requested, req.Client.AllowedScopes...)
		if includeOffline && req.Client.AllowOfflineAccess {
			requested = append(requested, model.ScopeOfflineAccess)
		}
	}
	if len(requested) == 0 {
		return tokenError(req, ErrInvalidScope, "no scopes available"), nil
	}

	validated, err := v.resources.ValidateRequestedResources(ctx, req.Client, requested)
	if err != nil {
		return nil, err
	}
	if !validated.Succeeded() {
		logger.From(ctx).Debug("token scope validation failed",
			logger.ClientID(req.ClientID), logger.Scopes(validated.InvalidScopes))
		return tokenError(req, ErrInvalidScope, "invalid scope"), nil
	}

	req.ValidatedResources = validated
	req.Scopes = validated.RawScopeValues()
	return nil, nil
}
