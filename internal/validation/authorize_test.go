package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

func TestAuthorizeCodeFlowSucceeds(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid profile",
		"state", "xyz",
	), "alice", "sess-1")
	require.NoError(t, err)
	require.False(t, result.IsError, "unexpected error: %s %s", result.Error, result.ErrorDescription)

	req := result.Request
	require.Equal(t, model.GrantAuthorizationCode, req.GrantType)
	require.Equal(t, ResponseModeQuery, req.ResponseMode)
	require.True(t, req.IsOpenIDRequest)
	require.Equal(t, "xyz", req.State)
	require.Equal(t, "alice", req.SubjectID)
	require.NotNil(t, req.ValidatedResources)
	require.True(t, req.ValidatedResources.HasIdentityScopes())
}

func TestAuthorizeResponseTypeOrderInsensitive(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	var grants []string
	var normalized []string
	for _, rt := range []string{"id_token token", "token id_token"} {
		result, err := v.Validate(context.Background(), params(
			"client_id", "web",
			"redirect_uri", "https://client.example.com/cb",
			"response_type", rt,
			"scope", "openid api1",
			"nonce", "n-1",
		), "alice", "")
		require.NoError(t, err)
		require.False(t, result.IsError, "response_type %q: %s", rt, result.ErrorDescription)
		grants = append(grants, result.Request.GrantType)
		normalized = append(normalized, result.Request.ResponseType)
	}
	require.Equal(t, grants[0], grants[1])
	require.Equal(t, model.GrantImplicit, grants[0])
	require.Equal(t, normalized[0], normalized[1])
}

func TestAuthorizePlainPKCERequiresOptIn(t *testing.T) {
	client := testWebClient()
	client.RequirePKCE = true
	v := newTestAuthorizeValidator(client)

	challenge := "plain-challenge-plain-challenge-plain-challenge-12"

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid",
		"code_challenge", challenge,
		"code_challenge_method", "plain",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidRequest, result.Error)

	// Same request with S256 passes.
	result, err = v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid",
		"code_challenge", challenge,
		"code_challenge_method", "S256",
	), "alice", "")
	require.NoError(t, err)
	require.False(t, result.IsError, result.ErrorDescription)
	require.Equal(t, model.CodeChallengeS256, result.Request.CodeChallengeMethod)
}

func TestAuthorizeMissingPKCERejectedWhenRequired(t *testing.T) {
	client := testWebClient()
	client.RequirePKCE = true
	v := newTestAuthorizeValidator(client)

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidRequest, result.Error)
}

func TestAuthorizeUnknownScopeFailsEntirely(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid profile unknown_scope",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidScope, result.Error)
	require.Nil(t, result.Request.ValidatedResources)
}

func TestAuthorizeNonceRequiredForImplicitOpenID(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "id_token",
		"scope", "openid",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidRequest, result.Error)
}

func TestAuthorizePromptNoneMustStandAlone(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "code",
		"scope", "openid",
		"prompt", "none login",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidRequest, result.Error)
}

func TestAuthorizeUnregisteredRedirectNotEchoed(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://evil.example.com/cb",
		"response_type", "code",
		"scope", "openid",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	// The failed URI must not survive on the request, or callers could
	// redirect errors to an attacker.
	require.Empty(t, result.Request.RedirectURI)
}

func TestAuthorizeTokenResponseNeedsResourceScopes(t *testing.T) {
	v := newTestAuthorizeValidator(testWebClient())

	result, err := v.Validate(context.Background(), params(
		"client_id", "web",
		"redirect_uri", "https://client.example.com/cb",
		"response_type", "token",
		"scope", "openid profile",
	), "alice", "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidScope, result.Error)
}
