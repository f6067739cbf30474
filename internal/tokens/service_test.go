package tokens

import (
	"context"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

type serviceEnv struct {
	clk       *clock.Fixed
	keystore  *keys.Keystore
	codes     *store.MemoryAuthorizationCodeStore
	refreshes *store.MemoryRefreshTokenStore
	refs      *store.MemoryReferenceTokenStore
	devices   *store.MemoryDeviceCodeStore
	svc       *Service
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	clk := &clock.Fixed{T: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	opts := config.Default()
	keystore, err := keys.NewKeystore()
	require.NoError(t, err)

	codes := store.NewMemoryAuthorizationCodeStore(clk)
	refreshes := store.NewMemoryRefreshTokenStore(clk)
	refs := store.NewMemoryReferenceTokenStore(clk)
	devices := store.NewMemoryDeviceCodeStore(clk)

	svc := NewService(Deps{
		Keystore:           keystore,
		AuthorizationCodes: codes,
		RefreshTokens:      refreshes,
		ReferenceTokens:    refs,
		DeviceCodes:        devices,
		Clock:              clk,
		Options:            &opts,
	})
	return &serviceEnv{clk: clk, keystore: keystore, codes: codes, refreshes: refreshes, refs: refs, devices: devices, svc: svc}
}

func serviceTestClient() *model.Client {
	return &model.Client{
		ClientID:                     "web",
		Enabled:                      true,
		ProtocolType:                 model.ProtocolOIDC,
		AllowedGrantTypes:            []string{model.GrantAuthorizationCode, model.GrantRefreshToken, model.GrantPassword},
		AllowedScopes:                []string{"openid", "profile", "api1"},
		AllowOfflineAccess:           true,
		RedirectURIs:                 []string{"https://client.example.com/cb"},
		AccessTokenLifetime:          3600,
		IdentityTokenLifetime:        300,
		AuthorizationCodeLifetime:    300,
		AbsoluteRefreshTokenLifetime: 2592000,
		SlidingRefreshTokenLifetime:  1296000,
		RefreshTokenUsage:            model.RefreshUsageReUse,
		RefreshTokenExpiration:       model.RefreshExpirationAbsolute,
		AccessTokenType:              model.AccessTokenJWT,
	}
}

func passwordGrantResult(client *model.Client, scopes []string) *validation.TokenRequestValidationResult {
	req := &validation.ValidatedTokenRequest{
		GrantType: model.GrantPassword,
		Scopes:    scopes,
	}
	req.ClientID = client.ClientID
	req.Client = client
	req.SubjectID = "alice"
	req.SessionID = "sess-1"
	return &validation.TokenRequestValidationResult{Request: req}
}

func refreshGrantResult(client *model.Client, handle string, token *model.RefreshToken) *validation.TokenRequestValidationResult {
	req := &validation.ValidatedTokenRequest{
		GrantType:          model.GrantRefreshToken,
		RefreshToken:       token,
		RefreshTokenHandle: handle,
		Scopes:             token.Scopes,
	}
	req.ClientID = client.ClientID
	req.Client = client
	req.SubjectID = token.SubjectID
	return &validation.TokenRequestValidationResult{Request: req}
}

func parseUnverified(t *testing.T, token string) jwtv5.MapClaims {
	t.Helper()
	parsed, _, err := jwtv5.NewParser().ParseUnverified(token, jwtv5.MapClaims{})
	require.NoError(t, err)
	return parsed.Claims.(jwtv5.MapClaims)
}

func TestIssueTokenResponseWithOfflineAccess(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()

	resp, err := env.svc.IssueTokenResponse(context.Background(),
		passwordGrantResult(client, []string{"openid", "api1", "offline_access"}))
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, 3600, resp.ExpiresIn)
	require.NotEmpty(t, resp.RefreshToken)
	require.NotEmpty(t, resp.IdentityToken)
	require.Equal(t, "openid api1 offline_access", resp.Scope)

	claims := parseUnverified(t, resp.AccessToken)
	require.Equal(t, "alice", claims["sub"])
	require.Equal(t, "web", claims["client_id"])
	require.Equal(t, "openid api1 offline_access", claims["scope"])

	idClaims := parseUnverified(t, resp.IdentityToken)
	require.Equal(t, "web", idClaims["aud"])
	require.Equal(t, leftHalfHash(resp.AccessToken), idClaims["at_hash"])
}

func TestRefreshTokenSlidingLifetimeCappedByAbsolute(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()
	client.RefreshTokenExpiration = model.RefreshExpirationSliding
	client.SlidingRefreshTokenLifetime = 100
	client.AbsoluteRefreshTokenLifetime = 10

	// Initial issuance is already capped.
	resp, err := env.svc.IssueTokenResponse(context.Background(),
		passwordGrantResult(client, []string{"api1", "offline_access"}))
	require.NoError(t, err)
	stored, err := env.refreshes.Get(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, 10, stored.Lifetime)

	// A refresh 5 seconds in would extend to 105; the absolute bound wins.
	env.clk.Advance(5 * time.Second)
	resp2, err := env.svc.IssueTokenResponse(context.Background(),
		refreshGrantResult(client, resp.RefreshToken, stored))
	require.NoError(t, err)
	require.Equal(t, resp.RefreshToken, resp2.RefreshToken)

	stored, err = env.refreshes.Get(context.Background(), resp2.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, 10, stored.Lifetime)
}

func TestRefreshTokenOneTimeRotation(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()
	client.RefreshTokenUsage = model.RefreshUsageOneTime

	resp, err := env.svc.IssueTokenResponse(context.Background(),
		passwordGrantResult(client, []string{"api1", "offline_access"}))
	require.NoError(t, err)
	oldHandle := resp.RefreshToken
	oldToken, err := env.refreshes.Get(context.Background(), oldHandle)
	require.NoError(t, err)

	env.clk.Advance(time.Minute)
	resp2, err := env.svc.IssueTokenResponse(context.Background(),
		refreshGrantResult(client, oldHandle, oldToken))
	require.NoError(t, err)
	require.NotEqual(t, oldHandle, resp2.RefreshToken)

	consumed, err := env.refreshes.Get(context.Background(), oldHandle)
	require.NoError(t, err)
	require.NotNil(t, consumed.ConsumedTime)

	rotated, err := env.refreshes.Get(context.Background(), resp2.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, rotated.ConsumedTime)
	require.Equal(t, oldToken.Version+1, rotated.Version)
}

func TestRefreshTokenReuseKeepsHandle(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()

	resp, err := env.svc.IssueTokenResponse(context.Background(),
		passwordGrantResult(client, []string{"api1", "offline_access"}))
	require.NoError(t, err)

	token, err := env.refreshes.Get(context.Background(), resp.RefreshToken)
	require.NoError(t, err)

	env.clk.Advance(time.Minute)
	resp2, err := env.svc.IssueTokenResponse(context.Background(),
		refreshGrantResult(client, resp.RefreshToken, token))
	require.NoError(t, err)
	require.Equal(t, resp.RefreshToken, resp2.RefreshToken)

	kept, err := env.refreshes.Get(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, kept.ConsumedTime)
}

func TestReferenceTokenClientGetsOpaqueHandle(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()
	client.AccessTokenType = model.AccessTokenReference

	resp, err := env.svc.IssueTokenResponse(context.Background(),
		passwordGrantResult(client, []string{"api1"}))
	require.NoError(t, err)
	require.NotContains(t, resp.AccessToken, ".")

	ref, err := env.refs.Get(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", ref.SubjectID)
	require.Equal(t, []string{"api1"}, ref.Scopes)
}

func TestIssueAuthorizeResponseHybrid(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()

	req := &validation.ValidatedAuthorizeRequest{
		ResponseType:    "code id_token token",
		GrantType:       model.GrantHybrid,
		RedirectURI:     "https://client.example.com/cb",
		RequestedScopes: []string{"openid", "api1"},
		IsOpenIDRequest: true,
		State:           "st",
		Nonce:           "n-1",
	}
	req.ClientID = client.ClientID
	req.Client = client
	req.SubjectID = "alice"

	resp, err := env.svc.IssueAuthorizeResponse(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Code)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.IdentityToken)
	require.Equal(t, "st", resp.State)

	// The id_token binds both front-channel artifacts.
	idClaims := parseUnverified(t, resp.IdentityToken)
	require.Equal(t, leftHalfHash(resp.AccessToken), idClaims["at_hash"])
	require.Equal(t, leftHalfHash(resp.Code), idClaims["c_hash"])
	require.Equal(t, "n-1", idClaims["nonce"])

	// The code is redeemable.
	code, err := env.codes.Take(context.Background(), resp.Code)
	require.NoError(t, err)
	require.Equal(t, "alice", code.SubjectID)
	require.True(t, code.IsOpenID)
}

func TestStartDeviceFlow(t *testing.T) {
	env := newServiceEnv(t)
	client := serviceTestClient()
	client.DeviceCodeLifetime = 600

	auth, err := env.svc.StartDeviceFlow(context.Background(), client, []string{"openid", "api1"})
	require.NoError(t, err)
	require.NotEmpty(t, auth.DeviceCode)
	require.Equal(t, 600, auth.ExpiresIn)
	require.Len(t, auth.UserCode, 8)
	for _, r := range auth.UserCode {
		require.True(t, strings.ContainsRune(userCodeCharset, r), "unexpected user code rune %q", r)
	}

	code, err := env.devices.Get(context.Background(), auth.DeviceCode)
	require.NoError(t, err)
	require.True(t, code.IsOpenID)
	require.Equal(t, auth.UserCode, code.UserCode)

	found, handle, err := env.devices.FindByUserCode(context.Background(), auth.UserCode)
	require.NoError(t, err)
	require.Equal(t, auth.DeviceCode, handle)
	require.Equal(t, code.ClientID, found.ClientID)
}
