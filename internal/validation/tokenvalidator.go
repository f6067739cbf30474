package validation

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// TokenValidationResult is the outcome of inbound token validation.
type TokenValidationResult struct {
	Claims map[string]any
	Client *model.Client

	// ReferenceTokenHandle is set when the token was a reference handle.
	ReferenceToken       *model.ReferenceToken
	ReferenceTokenHandle string

	IsError bool
	Error   string
}

func tokenInvalid(code string) *TokenValidationResult {
	return &TokenValidationResult{IsError: true, Error: code}
}

// TokenValidatorDeps wires the collaborators of the inbound token
// validator.
type TokenValidatorDeps struct {
	Keystore        *keys.Keystore
	Clients         store.ClientStore
	ReferenceTokens store.ReferenceTokenStore
	Profile         store.ProfileService
	Custom          CustomTokenValidator
	Clock           clock.Clock
	Options         *config.Options
}

// TokenValidator validates tokens presented back to the server: JWT or
// reference access tokens, and identity tokens (end-session hints).
type TokenValidator struct {
	keystore        *keys.Keystore
	clients         store.ClientStore
	referenceTokens store.ReferenceTokenStore
	profile         store.ProfileService
	custom          CustomTokenValidator
	clk             clock.Clock
	opts            *config.Options
}

func NewTokenValidator(d TokenValidatorDeps) *TokenValidator {
	if d.Custom == nil {
		d.Custom = DefaultCustomTokenValidator{}
	}
	return &TokenValidator{
		keystore:        d.Keystore,
		clients:         d.Clients,
		referenceTokens: d.ReferenceTokens,
		profile:         d.Profile,
		custom:          d.Custom,
		clk:             d.Clock,
		opts:            d.Options,
	}
}

// ValidateAccessToken validates a JWT or reference access token. When
// expectedScope is non-empty the token must carry it.
func (v *TokenValidator) ValidateAccessToken(ctx context.Context, token, expectedScope string) (*TokenValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.access_token"))

	var (
		result *TokenValidationResult
		err    error
	)
	if strings.Contains(token, ".") {
		if len(token) > v.opts.InputLengths.Jwt {
			return tokenInvalid(ErrInvalidToken), nil
		}
		result, err = v.validateJWT(ctx, token, v.opts.Issuer+"/resources", true)
	} else {
		if len(token) > v.opts.InputLengths.TokenHandle {
			return tokenInvalid(ErrInvalidToken), nil
		}
		result, err = v.validateReferenceToken(ctx, token)
	}
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return result, nil
	}

	if r, err := v.checkPrincipals(ctx, result); r != nil || err != nil {
		return r, err
	}

	if expectedScope != "" && !scopeClaimContains(result.Claims, expectedScope) {
		log.Debug("expected scope missing", logger.Scope(expectedScope))
		return tokenInvalid(ErrInsufficientScope), nil
	}
	return result, nil
}

// ValidateIdentityToken validates an identity token issued by this
// server. validateLifetime is false only for post-hoc inspection of an
// id_token_hint at end-session.
func (v *TokenValidator) ValidateIdentityToken(ctx context.Context, token string, validateLifetime bool) (*TokenValidationResult, error) {
	if len(token) > v.opts.InputLengths.IDTokenHint {
		return tokenInvalid(ErrInvalidToken), nil
	}

	result, err := v.validateJWT(ctx, token, "", validateLifetime)
	if err != nil {
		return nil, err
	}
	if result.IsError {
		return result, nil
	}
	if r, err := v.checkPrincipals(ctx, result); r != nil || err != nil {
		return r, err
	}
	return result, nil
}

// validateJWT verifies signature, issuer, expiry and audience. An empty
// expectedAudience means the audience names the client itself and is
// checked by the caller through the client lookup.
func (v *TokenValidator) validateJWT(ctx context.Context, token, expectedAudience string, validateLifetime bool) (*TokenValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.jwt"))

	keyfunc := func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" {
			return v.keystore.PublicKeyByKID(kid)
		}
		active, err := v.keystore.Active()
		if err != nil {
			return nil, err
		}
		return active.Public, nil
	}

	options := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithTimeFunc(v.clk.Now),
		jwtv5.WithIssuer(v.opts.Issuer),
	}
	if expectedAudience != "" {
		options = append(options, jwtv5.WithAudience(expectedAudience))
	}
	if !validateLifetime {
		// Signature and claim extraction only.
		options = []jwtv5.ParserOption{
			jwtv5.WithValidMethods([]string{"EdDSA"}),
			jwtv5.WithoutClaimsValidation(),
		}
	}

	parsed, err := jwtv5.Parse(token, keyfunc, options...)
	if err != nil || !parsed.Valid {
		log.Debug("jwt rejected", logger.Err(err))
		return tokenInvalid(ErrInvalidToken), nil
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return tokenInvalid(ErrInvalidToken), nil
	}
	if !validateLifetime {
		if iss, _ := claims["iss"].(string); iss != v.opts.Issuer {
			return tokenInvalid(ErrInvalidToken), nil
		}
	}
	return &TokenValidationResult{Claims: map[string]any(claims)}, nil
}

// validateReferenceToken resolves the handle, checks expiry (removing
// dead entries from the store) and reconstructs the claim set.
func (v *TokenValidator) validateReferenceToken(ctx context.Context, handle string) (*TokenValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.reference_token"))

	token, err := v.referenceTokens.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("unknown reference token")
			return tokenInvalid(ErrInvalidToken), nil
		}
		return nil, err
	}

	if token.IsExpired(v.clk.Now()) {
		log.Debug("reference token expired, removing")
		if err := v.referenceTokens.Remove(ctx, handle); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return tokenInvalid(ErrExpiredToken), nil
	}

	claims := make(map[string]any, len(token.Claims)+7)
	for k, val := range token.Claims {
		claims[k] = val
	}
	claims["iss"] = v.opts.Issuer
	claims["nbf"] = token.CreationTime.Unix()
	claims["exp"] = token.CreationTime.Add(lifetimeSeconds(token.Lifetime)).Unix()
	claims["client_id"] = token.ClientID
	if token.SubjectID != "" {
		claims["sub"] = token.SubjectID
	}
	if len(token.Audiences) > 0 {
		claims["aud"] = token.Audiences
	} else {
		claims["aud"] = v.opts.Issuer + "/resources"
	}
	claims["scope"] = strings.Join(token.Scopes, " ")

	return &TokenValidationResult{
		Claims:               claims,
		ReferenceToken:       token,
		ReferenceTokenHandle: handle,
	}, nil
}

// checkPrincipals re-verifies the client still exists and the subject is
// still active, then runs the custom hook.
func (v *TokenValidator) checkPrincipals(ctx context.Context, result *TokenValidationResult) (*TokenValidationResult, error) {
	log := logger.From(ctx).With(logger.Component("validation.access_token"))

	clientID := clientIDFromClaims(result.Claims)
	if clientID == "" {
		return tokenInvalid(ErrInvalidToken), nil
	}
	client, err := v.clients.FindEnabledClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("token client unknown or disabled", logger.ClientID(clientID))
			return tokenInvalid(ErrInvalidToken), nil
		}
		return nil, err
	}
	result.Client = client

	if sub, _ := result.Claims["sub"].(string); sub != "" {
		active, err := v.profile.IsActive(ctx, sub, client, "token_validation")
		if err != nil {
			return nil, err
		}
		if !active {
			log.Debug("token subject no longer active", logger.SubjectID(sub))
			return tokenInvalid(ErrInvalidToken), nil
		}
	}

	if err := v.custom.ValidateToken(ctx, result); err != nil {
		log.Error("custom token validator failed", logger.Err(err))
		return tokenInvalid(ErrInvalidToken), nil
	}
	if result.IsError {
		return result, nil
	}
	return nil, nil
}

// clientIDFromClaims reads client_id, falling back to an aud value for
// identity tokens, where the audience names the client.
func clientIDFromClaims(claims map[string]any) string {
	if cid, _ := claims["client_id"].(string); cid != "" {
		return cid
	}
	switch aud := claims["aud"].(type) {
	case string:
		return aud
	case []string:
		if len(aud) > 0 {
			return aud[0]
		}
	case []any:
		if len(aud) > 0 {
			s, _ := aud[0].(string)
			return s
		}
	}
	return ""
}

func lifetimeSeconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// scopeClaimContains handles both the space-delimited string form and
// the array form of the scope claim.
func scopeClaimContains(claims map[string]any, want string) bool {
	switch scope := claims["scope"].(type) {
	case string:
		for _, s := range strings.Fields(scope) {
			if s == want {
				return true
			}
		}
	case []string:
		for _, s := range scope {
			if s == want {
				return true
			}
		}
	case []any:
		for _, raw := range scope {
			if s, _ := raw.(string); s == want {
				return true
			}
		}
	}
	return false
}
