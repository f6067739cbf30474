package validation

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/gatejohn/internal/events"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// CustomAuthorizeRequestValidator runs after the built-in authorize
// stages. It may flip a success into a failure by mutating the result,
// never the other way around.
type CustomAuthorizeRequestValidator interface {
	ValidateAuthorizeRequest(ctx context.Context, result *AuthorizeRequestValidationResult) error
}

// DefaultCustomAuthorizeRequestValidator accepts everything.
type DefaultCustomAuthorizeRequestValidator struct{}

func (DefaultCustomAuthorizeRequestValidator) ValidateAuthorizeRequest(ctx context.Context, result *AuthorizeRequestValidationResult) error {
	return nil
}

// CustomTokenRequestValidator runs after the built-in grant routine.
type CustomTokenRequestValidator interface {
	ValidateTokenRequest(ctx context.Context, result *TokenRequestValidationResult) error
}

// DefaultCustomTokenRequestValidator accepts everything.
type DefaultCustomTokenRequestValidator struct{}

func (DefaultCustomTokenRequestValidator) ValidateTokenRequest(ctx context.Context, result *TokenRequestValidationResult) error {
	return nil
}

// CustomTokenValidator runs after built-in inbound token validation.
type CustomTokenValidator interface {
	ValidateToken(ctx context.Context, result *TokenValidationResult) error
}

// DefaultCustomTokenValidator accepts everything.
type DefaultCustomTokenValidator struct{}

func (DefaultCustomTokenValidator) ValidateToken(ctx context.Context, result *TokenValidationResult) error {
	return nil
}

// ExtensionGrantResult is what an extension grant validator produces:
// either a subject (possibly anonymous) with extra claims, or an error.
type ExtensionGrantResult struct {
	SubjectID string
	Claims    map[string]any

	IsError          bool
	Error            string
	ErrorDescription string

	CustomResponse map[string]any
}

// ExtensionGrantValidator handles one non-standard grant type.
type ExtensionGrantValidator interface {
	GrantType() string
	ValidateExtensionGrant(ctx context.Context, req *ValidatedTokenRequest) (*ExtensionGrantResult, error)
}

// ExtensionGrantRegistry dispatches token requests with unknown grant
// types to registered validators.
type ExtensionGrantRegistry struct {
	byType map[string]ExtensionGrantValidator
}

func NewExtensionGrantRegistry(validators ...ExtensionGrantValidator) *ExtensionGrantRegistry {
	r := &ExtensionGrantRegistry{byType: make(map[string]ExtensionGrantValidator, len(validators))}
	for _, v := range validators {
		r.byType[v.GrantType()] = v
	}
	return r
}

// GrantTypes returns the registered custom grant types.
func (r *ExtensionGrantRegistry) GrantTypes() []string {
	out := make([]string, 0, len(r.byType))
	for gt := range r.byType {
		out = append(out, gt)
	}
	return out
}

// Validate runs the validator registered for the grant type. A missing
// validator reports unsupported_grant_type. Panics and errors from the
// extension are contained and converted to invalid_grant so third-party
// code can never crash or leak into the request path.
func (r *ExtensionGrantRegistry) Validate(ctx context.Context, req *ValidatedTokenRequest) (result *ExtensionGrantResult, err error) {
	v, ok := r.byType[req.GrantType]
	if !ok {
		return &ExtensionGrantResult{IsError: true, Error: ErrUnsupportedGrantType}, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.From(ctx).Error("extension grant validator panicked",
				logger.GrantType(req.GrantType), logger.Any("panic", rec))
			result = &ExtensionGrantResult{IsError: true, Error: ErrInvalidGrant}
			err = nil
		}
	}()

	result, err = v.ValidateExtensionGrant(ctx, req)
	if err != nil {
		logger.From(ctx).Error("extension grant validator failed",
			logger.GrantType(req.GrantType), logger.Err(err))
		return &ExtensionGrantResult{IsError: true, Error: ErrInvalidGrant}, nil
	}
	if result == nil {
		return &ExtensionGrantResult{IsError: true, Error: ErrInvalidGrant}, nil
	}
	return result, nil
}

// ResourceOwnerValidationResult is the outcome of a password grant
// credential check.
type ResourceOwnerValidationResult struct {
	SubjectID string
	Claims    map[string]any

	IsError          bool
	Error            string
	ErrorDescription string
}

// ResourceOwnerPasswordValidator checks resource owner credentials for
// the password grant.
type ResourceOwnerPasswordValidator interface {
	ValidateResourceOwner(ctx context.Context, username, password string) (*ResourceOwnerValidationResult, error)
}

// NotSupportedResourceOwnerValidator rejects every password grant. It is
// the default when no user store is wired.
type NotSupportedResourceOwnerValidator struct{}

func (NotSupportedResourceOwnerValidator) ValidateResourceOwner(ctx context.Context, username, password string) (*ResourceOwnerValidationResult, error) {
	return &ResourceOwnerValidationResult{
		IsError:          true,
		Error:            ErrUnsupportedGrantType,
		ErrorDescription: "resource owner password grant is not supported",
	}, nil
}

// BcryptResourceOwnerValidator resolves users from a store and compares
// bcrypt password hashes.
type BcryptResourceOwnerValidator struct {
	users store.UserStore
	sink  events.Sink
}

func NewBcryptResourceOwnerValidator(users store.UserStore, sink events.Sink) *BcryptResourceOwnerValidator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &BcryptResourceOwnerValidator{users: users, sink: sink}
}

func (v *BcryptResourceOwnerValidator) ValidateResourceOwner(ctx context.Context, username, password string) (*ResourceOwnerValidationResult, error) {
	fail := func(message string) *ResourceOwnerValidationResult {
		e := events.New(events.UserLoginFailure, events.CategoryAuthentication, false)
		e.Message = message
		v.sink.Raise(ctx, e)
		return &ResourceOwnerValidationResult{IsError: true, Error: ErrInvalidGrant}
	}

	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fail("unknown user"), nil
		}
		return nil, err
	}
	if !user.Active {
		return fail("user inactive"), nil
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return fail("bad password"), nil
	}

	e := events.New(events.UserLoginSuccess, events.CategoryAuthentication, true)
	e.SubjectID = user.SubjectID
	v.sink.Raise(ctx, e)

	claims := make(map[string]any, len(user.Claims))
	for k, val := range user.Claims {
		claims[k] = val
	}
	return &ResourceOwnerValidationResult{SubjectID: user.SubjectID, Claims: claims}, nil
}
