// Package tokens issues the artifacts the validators later consume:
// authorization codes, JWT and reference access tokens, identity tokens,
// refresh tokens and device codes.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	"github.com/dropDatabas3/gatejohn/internal/store"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

// Response is the token endpoint success payload.
type Response struct {
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
	ExpiresIn     int    `json:"expires_in"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	IdentityToken string `json:"id_token,omitempty"`
	Scope         string `json:"scope,omitempty"`

	// Custom carries extension-grant response fields, merged by the
	// endpoint into the top-level JSON object.
	Custom map[string]any `json:"-"`
}

// DeviceAuthorization is the device-authorization endpoint payload.
type DeviceAuthorization struct {
	DeviceCode string `json:"device_code"`
	UserCode   string `json:"user_code"`
	ExpiresIn  int    `json:"expires_in"`
	Interval   int    `json:"interval"`
}

// Deps wires the issuance collaborators.
type Deps struct {
	Keystore           *keys.Keystore
	AuthorizationCodes store.AuthorizationCodeStore
	RefreshTokens      store.RefreshTokenStore
	ReferenceTokens    store.ReferenceTokenStore
	DeviceCodes        store.DeviceCodeStore
	Clock              clock.Clock
	Options            *config.Options
}

// Service mints tokens for validated requests.
type Service struct {
	keystore *keys.Keystore
	codes    store.AuthorizationCodeStore
	refresh  store.RefreshTokenStore
	refs     store.ReferenceTokenStore
	device   store.DeviceCodeStore
	clk      clock.Clock
	opts     *config.Options
}

func NewService(d Deps) *Service {
	return &Service{
		keystore: d.Keystore,
		codes:    d.AuthorizationCodes,
		refresh:  d.RefreshTokens,
		refs:     d.ReferenceTokens,
		device:   d.DeviceCodes,
		clk:      d.Clock,
		opts:     d.Options,
	}
}

// CreateAuthorizationCode mints and stores a one-time code for a
// successfully validated and consented authorize request.
func (s *Service) CreateAuthorizationCode(ctx context.Context, req *validation.ValidatedAuthorizeRequest) (string, error) {
	code := &model.AuthorizationCode{
		ClientID:            req.ClientID,
		SubjectID:           req.SubjectID,
		SessionID:           req.SessionID,
		RequestedScopes:     req.RequestedScopes,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Nonce:               req.Nonce,
		IsOpenID:            req.IsOpenIDRequest,
		CreationTime:        s.clk.Now(),
		Lifetime:            req.Client.AuthorizationCodeLifetime,
	}
	return s.codes.Store(ctx, code)
}

// StartDeviceFlow mints a device code plus the short user code typed on
// the secondary device.
func (s *Service) StartDeviceFlow(ctx context.Context, client *model.Client, scopes []string) (*DeviceAuthorization, error) {
	lifetime := client.DeviceCodeLifetime
	if lifetime <= 0 {
		lifetime = s.opts.DeviceFlow.Lifetime
	}

	userCode, err := generateUserCode(s.opts.DeviceFlow.UserCodeLength)
	if err != nil {
		return nil, err
	}

	isOpenID := false
	for _, sc := range scopes {
		if sc == model.ScopeOpenID {
			isOpenID = true
			break
		}
	}
	code := &model.DeviceCode{
		UserCode:        userCode,
		ClientID:        client.ClientID,
		RequestedScopes: scopes,
		IsOpenID:        isOpenID,
		CreationTime:    s.clk.Now(),
		Lifetime:        lifetime,
	}
	handle, err := s.device.Store(ctx, code)
	if err != nil {
		return nil, err
	}
	return &DeviceAuthorization{
		DeviceCode: handle,
		UserCode:   userCode,
		ExpiresIn:  lifetime,
		Interval:   s.opts.DeviceFlow.Interval,
	}, nil
}

// AuthorizeResponse carries the artifacts minted for a successful
// authorize request: a code, implicit/hybrid tokens, or both.
type AuthorizeResponse struct {
	Code          string
	AccessToken   string
	TokenType     string
	ExpiresIn     int
	IdentityToken string
	State         string
	Scope         string
}

// IssueAuthorizeResponse mints what the validated response_type asks
// for. Hybrid requests get both a code and front-channel tokens.
func (s *Service) IssueAuthorizeResponse(ctx context.Context, req *validation.ValidatedAuthorizeRequest) (*AuthorizeResponse, error) {
	resp := &AuthorizeResponse{State: req.State}

	parts := strings.Fields(req.ResponseType)
	withCode := scopesContain(parts, "code")
	withToken := scopesContain(parts, "token")
	withIDToken := scopesContain(parts, "id_token")

	scopes := req.RequestedScopes
	if req.ValidatedResources != nil {
		scopes = req.ValidatedResources.RawScopeValues()
	}

	if withCode {
		code, err := s.CreateAuthorizationCode(ctx, req)
		if err != nil {
			return nil, err
		}
		resp.Code = code
	}
	if withToken {
		accessToken, err := s.accessTokenFor(ctx, req.Client, req.SubjectID, req.SessionID, scopes)
		if err != nil {
			return nil, err
		}
		resp.AccessToken = accessToken
		resp.TokenType = "Bearer"
		resp.ExpiresIn = req.Client.AccessTokenLifetime
		resp.Scope = strings.Join(scopes, " ")
	}
	if withIDToken {
		idToken, err := s.identityTokenFor(ctx, req.Client, req.SubjectID, req.SessionID, req.Nonce, resp.AccessToken, resp.Code)
		if err != nil {
			return nil, err
		}
		resp.IdentityToken = idToken
	}
	return resp, nil
}

// IssueTokenResponse builds the token endpoint response for a validated
// token request: access token, identity token when the request is
// OpenID, and a refresh token when offline_access was granted.
func (s *Service) IssueTokenResponse(ctx context.Context, result *validation.TokenRequestValidationResult) (*Response, error) {
	req := result.Request
	log := logger.From(ctx).With(logger.Component("tokens"), logger.ClientID(req.ClientID), logger.GrantType(req.GrantType))

	accessToken, err := s.createAccessToken(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   req.Client.AccessTokenLifetime,
		Scope:       strings.Join(req.Scopes, " "),
		Custom:      result.CustomResponse,
	}

	if s.isOpenIDGrant(req) {
		idToken, err := s.createIdentityToken(ctx, req, accessToken)
		if err != nil {
			return nil, err
		}
		resp.IdentityToken = idToken
	}

	switch {
	case req.GrantType == model.GrantRefreshToken:
		handle, err := s.updateRefreshToken(ctx, req.RefreshTokenHandle, req.RefreshToken, req.Client)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = handle
	case scopesContain(req.Scopes, model.ScopeOfflineAccess):
		handle, err := s.createRefreshToken(ctx, req)
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = handle
	}

	log.Debug("token response issued", logger.SubjectID(req.SubjectID))
	return resp, nil
}

func (s *Service) isOpenIDGrant(req *validation.ValidatedTokenRequest) bool {
	switch {
	case req.AuthorizationCode != nil:
		return req.AuthorizationCode.IsOpenID
	case req.DeviceCode != nil:
		return req.DeviceCode.IsOpenID
	default:
		return req.SubjectID != "" && scopesContain(req.Scopes, model.ScopeOpenID)
	}
}

// createAccessToken issues the access token for a token request.
func (s *Service) createAccessToken(ctx context.Context, req *validation.ValidatedTokenRequest) (string, error) {
	return s.accessTokenFor(ctx, req.Client, req.SubjectID, req.SessionID, req.Scopes)
}

// createIdentityToken issues the id_token for a token request.
func (s *Service) createIdentityToken(ctx context.Context, req *validation.ValidatedTokenRequest, accessToken string) (string, error) {
	nonce := ""
	if req.AuthorizationCode != nil {
		nonce = req.AuthorizationCode.Nonce
	}
	return s.identityTokenFor(ctx, req.Client, req.SubjectID, req.SessionID, nonce, accessToken, "")
}

// accessTokenFor issues a signed JWT or, for reference-token clients,
// stores the claims server side and returns an opaque handle.
func (s *Service) accessTokenFor(ctx context.Context, client *model.Client, subjectID, sessionID string, scopes []string) (string, error) {
	now := s.clk.Now()
	lifetime := client.AccessTokenLifetime

	if client.AccessTokenType == model.AccessTokenReference {
		ref := &model.ReferenceToken{
			ClientID:     client.ClientID,
			SubjectID:    subjectID,
			SessionID:    sessionID,
			Scopes:       scopes,
			Audiences:    []string{s.opts.Issuer + "/resources"},
			CreationTime: now,
			Lifetime:     lifetime,
		}
		return s.refs.Store(ctx, ref)
	}

	claims := jwtv5.MapClaims{
		"iss":       s.opts.Issuer,
		"aud":       s.opts.Issuer + "/resources",
		"client_id": client.ClientID,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(time.Duration(lifetime) * time.Second).Unix(),
		"scope":     strings.Join(scopes, " "),
	}
	if subjectID != "" {
		claims["sub"] = subjectID
	}
	if sessionID != "" {
		claims["sid"] = sessionID
	}
	return s.sign(claims)
}

// identityTokenFor issues an id_token. at_hash and c_hash bind it to the
// access token and code per OIDC Core 3.3.2.11.
func (s *Service) identityTokenFor(ctx context.Context, client *model.Client, subjectID, sessionID, nonce, accessToken, code string) (string, error) {
	now := s.clk.Now()
	lifetime := client.IdentityTokenLifetime

	claims := jwtv5.MapClaims{
		"iss": s.opts.Issuer,
		"aud": client.ClientID,
		"sub": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(lifetime) * time.Second).Unix(),
	}
	if accessToken != "" {
		claims["at_hash"] = leftHalfHash(accessToken)
	}
	if code != "" {
		claims["c_hash"] = leftHalfHash(code)
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	if sessionID != "" {
		claims["sid"] = sessionID
	}
	return s.sign(claims)
}

// createRefreshToken stores a fresh refresh token. Absolute-expiration
// clients get the absolute lifetime; sliding clients start with the
// sliding window, still capped by a configured absolute bound.
func (s *Service) createRefreshToken(ctx context.Context, req *validation.ValidatedTokenRequest) (string, error) {
	client := req.Client

	lifetime := client.AbsoluteRefreshTokenLifetime
	if client.RefreshTokenExpiration == model.RefreshExpirationSliding {
		lifetime = client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && lifetime > client.AbsoluteRefreshTokenLifetime {
			lifetime = client.AbsoluteRefreshTokenLifetime
		}
	}

	token := &model.RefreshToken{
		ClientID:        req.ClientID,
		SubjectID:       req.SubjectID,
		SessionID:       req.SessionID,
		Scopes:          req.Scopes,
		AccessTokenType: client.AccessTokenType,
		CreationTime:    s.clk.Now(),
		Lifetime:        lifetime,
		Version:         1,
	}
	return s.refresh.Store(ctx, token)
}

// updateRefreshToken applies the rotation and sliding-lifetime rules
// after a successful refresh. One-time-use clients get a new handle and
// the old one is marked consumed; reuse clients keep theirs. Sliding
// expiration extends the lifetime from now, never past the absolute
// bound measured from creation.
func (s *Service) updateRefreshToken(ctx context.Context, handle string, token *model.RefreshToken, client *model.Client) (string, error) {
	now := s.clk.Now()
	needsStoreUpdate := false

	if client.RefreshTokenExpiration == model.RefreshExpirationSliding {
		newLifetime := int(now.Sub(token.CreationTime)/time.Second) + client.SlidingRefreshTokenLifetime
		if client.AbsoluteRefreshTokenLifetime > 0 && newLifetime > client.AbsoluteRefreshTokenLifetime {
			newLifetime = client.AbsoluteRefreshTokenLifetime
		}
		if newLifetime != token.Lifetime {
			token.Lifetime = newLifetime
			needsStoreUpdate = true
		}
	}

	if client.RefreshTokenUsage == model.RefreshUsageOneTime {
		consumed := *token
		consumedAt := now
		consumed.ConsumedTime = &consumedAt
		if err := s.refresh.Update(ctx, handle, &consumed); err != nil {
			return "", err
		}

		rotated := *token
		rotated.Version = token.Version + 1
		return s.refresh.Store(ctx, &rotated)
	}

	if needsStoreUpdate {
		if err := s.refresh.Update(ctx, handle, token); err != nil {
			return "", err
		}
	}
	return handle, nil
}

func (s *Service) sign(claims jwtv5.MapClaims) (string, error) {
	key, err := s.keystore.Active()
	if err != nil {
		return "", err
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tok.Header["kid"] = key.KID
	return tok.SignedString(key.Private)
}

// leftHalfHash is the OIDC at_hash/c_hash construction: base64url of
// the left half of the value's SHA-256 digest.
func leftHalfHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

// userCodeCharset omits vowels and lookalike characters so codes stay
// typeable and never spell anything.
const userCodeCharset = "BCDFGHJKLMNPQRSTVWXZ23456789"

func generateUserCode(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	var b strings.Builder
	max := big.NewInt(int64(len(userCodeCharset)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(userCodeCharset[n.Int64()])
	}
	return b.String(), nil
}

func scopesContain(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
