package validation

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/gatejohn/internal/events"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/secrets"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// ClientSecretValidationResult carries the authenticated client, or the
// protocol error when authentication failed.
type ClientSecretValidationResult struct {
	Client  *model.Client
	Secret  *model.ParsedSecret
	IsError bool
	Error   string
}

func clientAuthFailed() *ClientSecretValidationResult {
	return &ClientSecretValidationResult{IsError: true, Error: ErrInvalidClient}
}

// ClientSecretValidator authenticates a client against an incoming
// request: parse the credential, resolve the client, check the secret.
// Public clients (RequireClientSecret false) pass with identification
// alone.
type ClientSecretValidator struct {
	clients store.ClientStore
	parser  *secrets.SecretParser
	secrets *secrets.SecretValidator
	sink    events.Sink
}

func NewClientSecretValidator(clients store.ClientStore, parser *secrets.SecretParser, validator *secrets.SecretValidator, sink events.Sink) *ClientSecretValidator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &ClientSecretValidator{clients: clients, parser: parser, secrets: validator, sink: sink}
}

// Validate authenticates the request's client. Infrastructure faults
// return an error; every protocol failure maps to invalid_client without
// distinguishing unknown client from bad secret.
func (v *ClientSecretValidator) Validate(ctx context.Context, r *http.Request) (*ClientSecretValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.client"))

	parsed, err := v.parser.Parse(ctx, r)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		log.Debug("no client credential found in request")
		v.sink.Raise(ctx, events.ClientAuthFailure("", "no credential"))
		return clientAuthFailed(), nil
	}

	client, err := v.clients.FindEnabledClientByID(ctx, parsed.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("unknown or disabled client", logger.ClientID(parsed.ID))
			v.sink.Raise(ctx, events.ClientAuthFailure(parsed.ID, "unknown client"))
			return clientAuthFailed(), nil
		}
		return nil, err
	}

	if !client.RequireClientSecret {
		log.Debug("public client authenticated", logger.ClientID(client.ClientID))
		v.sink.Raise(ctx, events.ClientAuthSuccess(client.ClientID))
		return &ClientSecretValidationResult{Client: client, Secret: parsed}, nil
	}

	if parsed.Type == model.ParsedSecretNone {
		log.Debug("confidential client sent no secret", logger.ClientID(client.ClientID))
		v.sink.Raise(ctx, events.ClientAuthFailure(client.ClientID, "missing secret"))
		return clientAuthFailed(), nil
	}

	ok, err := v.secrets.Validate(ctx, client.Secrets, parsed)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("client secret invalid", logger.ClientID(client.ClientID))
		v.sink.Raise(ctx, events.ClientAuthFailure(client.ClientID, "invalid secret"))
		return clientAuthFailed(), nil
	}

	v.sink.Raise(ctx, events.ClientAuthSuccess(client.ClientID))
	return &ClientSecretValidationResult{Client: client, Secret: parsed}, nil
}

// ApiSecretValidationResult carries the authenticated API resource.
type ApiSecretValidationResult struct {
	Resource *model.ApiResource
	IsError  bool
	Error    string
}

// ApiSecretValidator authenticates API resources calling the
// introspection endpoint with their resource name and secret.
type ApiSecretValidator struct {
	resources store.ResourceStore
	parser    *secrets.SecretParser
	secrets   *secrets.SecretValidator
	sink      events.Sink
}

func NewApiSecretValidator(resources store.ResourceStore, parser *secrets.SecretParser, validator *secrets.SecretValidator, sink events.Sink) *ApiSecretValidator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &ApiSecretValidator{resources: resources, parser: parser, secrets: validator, sink: sink}
}

func (v *ApiSecretValidator) Validate(ctx context.Context, r *http.Request) (*ApiSecretValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.api"))

	fail := func(name, message string) *ApiSecretValidationResult {
		e := events.New(events.ApiAuthenticationFailure, events.CategoryAuthentication, false)
		e.ClientID = name
		e.Message = message
		v.sink.Raise(ctx, e)
		return &ApiSecretValidationResult{IsError: true, Error: ErrInvalidClient}
	}

	parsed, err := v.parser.Parse(ctx, r)
	if err != nil {
		return nil, err
	}
	if parsed == nil || parsed.Type == model.ParsedSecretNone {
		log.Debug("no api credential found in request")
		return fail("", "no credential"), nil
	}

	apis, err := v.resources.FindApiResourcesByName(ctx, []string{parsed.ID})
	if err != nil {
		return nil, err
	}
	if len(apis) == 0 {
		log.Debug("unknown api resource", logger.ClientID(parsed.ID))
		return fail(parsed.ID, "unknown api"), nil
	}
	api := apis[0]
	if !api.Enabled {
		log.Debug("api resource disabled", logger.ClientID(api.Name))
		return fail(api.Name, "disabled api"), nil
	}

	ok, err := v.secrets.Validate(ctx, api.Secrets, parsed)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("api secret invalid", logger.ClientID(api.Name))
		return fail(api.Name, "invalid secret"), nil
	}

	e := events.New(events.ApiAuthenticationSuccess, events.CategoryAuthentication, true)
	e.ClientID = api.Name
	v.sink.Raise(ctx, e)
	return &ApiSecretValidationResult{Resource: &api}, nil
}

// ScopeSecretValidationResult carries the authenticated scope.
type ScopeSecretValidationResult struct {
	Scope   *model.ApiScope
	IsError bool
	Error   string
}

// ScopeSecretValidator authenticates callers presenting a scope name and
// secret. The secret must match one registered on an enabled API
// resource exposing that scope.
type ScopeSecretValidator struct {
	resources store.ResourceStore
	parser    *secrets.SecretParser
	secrets   *secrets.SecretValidator
	sink      events.Sink
}

func NewScopeSecretValidator(resources store.ResourceStore, parser *secrets.SecretParser, validator *secrets.SecretValidator, sink events.Sink) *ScopeSecretValidator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &ScopeSecretValidator{resources: resources, parser: parser, secrets: validator, sink: sink}
}

func (v *ScopeSecretValidator) Validate(ctx context.Context, r *http.Request) (*ScopeSecretValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.scope"))

	fail := func(name, message string) *ScopeSecretValidationResult {
		e := events.New(events.ApiAuthenticationFailure, events.CategoryAuthentication, false)
		e.ClientID = name
		e.Message = message
		v.sink.Raise(ctx, e)
		return &ScopeSecretValidationResult{IsError: true, Error: ErrInvalidClient}
	}

	parsed, err := v.parser.Parse(ctx, r)
	if err != nil {
		return nil, err
	}
	if parsed == nil || parsed.Type == model.ParsedSecretNone {
		log.Debug("no scope credential found in request")
		return fail("", "no credential"), nil
	}

	snapshot, err := v.resources.FindEnabledResourcesByScope(ctx, []string{parsed.ID})
	if err != nil {
		return nil, err
	}
	apis := snapshot.FindApiResourcesByScope(parsed.ID)
	if len(apis) == 0 {
		log.Debug("unknown scope", logger.Scope(parsed.ID))
		return fail(parsed.ID, "unknown scope"), nil
	}

	var stored []model.Secret
	for _, api := range apis {
		stored = append(stored, api.Secrets...)
	}
	ok, err := v.secrets.Validate(ctx, stored, parsed)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("scope secret invalid", logger.Scope(parsed.ID))
		return fail(parsed.ID, "invalid secret"), nil
	}

	scope, _ := apis[0].FindScope(parsed.ID)
	e := events.New(events.ApiAuthenticationSuccess, events.CategoryAuthentication, true)
	e.ClientID = parsed.ID
	v.sink.Raise(ctx, e)
	return &ScopeSecretValidationResult{Scope: &scope}, nil
}
