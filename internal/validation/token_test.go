package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/model"
	sectoken "github.com/dropDatabas3/gatejohn/internal/security/token"
)

const testVerifier = "0123456789abcdefghijklmnopqrstuvwxyz0123456789"

func (e *tokenTestEnv) storeCode(t *testing.T, code *model.AuthorizationCode) string {
	t.Helper()
	handle, err := e.codes.Store(context.Background(), code)
	require.NoError(t, err)
	return handle
}

func (e *tokenTestEnv) newCode() *model.AuthorizationCode {
	return &model.AuthorizationCode{
		ClientID:        "web",
		SubjectID:       "alice",
		SessionID:       "sess-1",
		RequestedScopes: []string{"openid", "profile"},
		RedirectURI:     "https://client.example.com/cb",
		IsOpenID:        true,
		CreationTime:    e.clk.Now(),
		Lifetime:        300,
	}
}

func TestTokenAuthorizationCodeSingleUse(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	handle := env.storeCode(t, env.newCode())

	request := params(
		"grant_type", "authorization_code",
		"code", handle,
		"redirect_uri", "https://client.example.com/cb",
	)

	result, err := env.validator.Validate(context.Background(), request, &client)
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)
	require.Equal(t, "alice", result.Request.SubjectID)
	require.Equal(t, []string{"openid", "profile"}, result.Request.Scopes)

	result, err = env.validator.Validate(context.Background(), request, &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenAuthorizationCodeBurnedOnFailedRedemption(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	handle := env.storeCode(t, env.newCode())

	// Wrong redirect_uri fails the redemption but still consumes the code.
	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", handle,
		"redirect_uri", "https://client.example.com/other",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)

	result, err = env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", handle,
		"redirect_uri", "https://client.example.com/cb",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenAuthorizationCodeExpired(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	handle := env.storeCode(t, env.newCode())

	env.clk.Advance(301 * time.Second)

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", handle,
		"redirect_uri", "https://client.example.com/cb",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenCodeVerifierS256(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()

	newChallengeCode := func() string {
		code := env.newCode()
		code.CodeChallenge = sectoken.SHA256Base64URL(testVerifier)
		code.CodeChallengeMethod = model.CodeChallengeS256
		return env.storeCode(t, code)
	}

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", newChallengeCode(),
		"redirect_uri", "https://client.example.com/cb",
		"code_verifier", testVerifier,
	), &client)
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)

	// A single flipped byte in the verifier must fail.
	mutated := testVerifier[:len(testVerifier)-1] + "X"
	result, err = env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", newChallengeCode(),
		"redirect_uri", "https://client.example.com/cb",
		"code_verifier", mutated,
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenCodeVerifierRequiredWhenChallengeStored(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	code := env.newCode()
	code.CodeChallenge = sectoken.SHA256Base64URL(testVerifier)
	code.CodeChallengeMethod = model.CodeChallengeS256
	handle := env.storeCode(t, code)

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "authorization_code",
		"code", handle,
		"redirect_uri", "https://client.example.com/cb",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenGrantTypeNotAllowedForClient(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "client_credentials",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrUnauthorizedClient, result.Error)
}

func TestTokenClientCredentialsRejectsIdentityScopes(t *testing.T) {
	env := newTokenTestEnv()
	client := testMachineClient()
	client.AllowedScopes = append(client.AllowedScopes, "openid")

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "client_credentials",
		"scope", "openid api1",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidScope, result.Error)
}

func TestTokenClientCredentialsScopeOmissionMeansAllAllowed(t *testing.T) {
	env := newTokenTestEnv()
	client := testMachineClient()

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "client_credentials",
	), &client)
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)
	require.ElementsMatch(t, []string{"api1", "api2"}, result.Request.Scopes)
}

func (e *tokenTestEnv) storeRefreshToken(t *testing.T, token *model.RefreshToken) string {
	t.Helper()
	handle, err := e.refreshes.Store(context.Background(), token)
	require.NoError(t, err)
	return handle
}

func (e *tokenTestEnv) newRefreshToken() *model.RefreshToken {
	return &model.RefreshToken{
		ClientID:     "web",
		SubjectID:    "alice",
		Scopes:       []string{"openid", "api1", "offline_access"},
		CreationTime: e.clk.Now(),
		Lifetime:     3600,
		Version:      1,
	}
}

func TestTokenRefreshTokenHappyPath(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	handle := env.storeRefreshToken(t, env.newRefreshToken())

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "refresh_token",
		"refresh_token", handle,
	), &client)
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)
	require.Equal(t, "alice", result.Request.SubjectID)
	require.Equal(t, handle, result.Request.RefreshTokenHandle)
	require.Equal(t, []string{"openid", "api1", "offline_access"}, result.Request.Scopes)
}

func TestTokenRefreshTokenConsumedRejected(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	token := env.newRefreshToken()
	consumed := env.clk.Now()
	token.ConsumedTime = &consumed
	handle := env.storeRefreshToken(t, token)

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "refresh_token",
		"refresh_token", handle,
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenRefreshTokenExpiredRejected(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	handle := env.storeRefreshToken(t, env.newRefreshToken())

	env.clk.Advance(3601 * time.Second)

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "refresh_token",
		"refresh_token", handle,
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenRefreshTokenZeroLifetimeNeverExpires(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	token := env.newRefreshToken()
	token.Lifetime = 0
	handle := env.storeRefreshToken(t, token)

	env.clk.Advance(365 * 24 * time.Hour)

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "refresh_token",
		"refresh_token", handle,
	), &client)
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)
	require.Equal(t, "alice", result.Request.SubjectID)
}

func TestTokenRefreshTokenWrongClientRejected(t *testing.T) {
	env := newTokenTestEnv()
	other := testWebClient()
	other.ClientID = "other"
	handle := env.storeRefreshToken(t, env.newRefreshToken())

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "refresh_token",
		"refresh_token", handle,
	), &other)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidGrant, result.Error)
}

func TestTokenUnknownGrantWithoutExtensionRejected(t *testing.T) {
	env := newTokenTestEnv()
	client := testWebClient()
	client.AllowedGrantTypes = append(client.AllowedGrantTypes, "urn:example:custom")

	result, err := env.validator.Validate(context.Background(), params(
		"grant_type", "urn:example:custom",
	), &client)
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrUnsupportedGrantType, result.Error)
}
