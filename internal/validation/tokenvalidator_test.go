package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

type tokenValidatorEnv struct {
	clk      *clock.Fixed
	keystore *keys.Keystore
	refs     *store.MemoryReferenceTokenStore
	v        *TokenValidator
}

func newTokenValidatorEnv(t *testing.T) *tokenValidatorEnv {
	t.Helper()
	clk := testClock()
	opts := testOptions()
	keystore, err := keys.NewKeystore()
	require.NoError(t, err)
	refs := store.NewMemoryReferenceTokenStore(clk)

	v := NewTokenValidator(TokenValidatorDeps{
		Keystore:        keystore,
		Clients:         store.NewInMemoryClientStore([]model.Client{testWebClient()}),
		ReferenceTokens: refs,
		Profile:         store.AlwaysActiveProfileService{},
		Clock:           clk,
		Options:         opts,
	})
	return &tokenValidatorEnv{clk: clk, keystore: keystore, refs: refs, v: v}
}

func (e *tokenValidatorEnv) sign(t *testing.T, claims jwtv5.MapClaims) string {
	t.Helper()
	key, err := e.keystore.Active()
	require.NoError(t, err)
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	token.Header["kid"] = key.KID
	signed, err := token.SignedString(key.Private)
	require.NoError(t, err)
	return signed
}

func (e *tokenValidatorEnv) accessTokenClaims() jwtv5.MapClaims {
	opts := testOptions()
	now := e.clk.Now()
	return jwtv5.MapClaims{
		"iss":       opts.Issuer,
		"aud":       opts.Issuer + "/resources",
		"client_id": "web",
		"sub":       "alice",
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"scope":     "openid api1",
	}
}

func TestValidateAccessTokenJWT(t *testing.T) {
	env := newTokenValidatorEnv(t)
	token := env.sign(t, env.accessTokenClaims())

	result, err := env.v.ValidateAccessToken(context.Background(), token, "")
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "web", result.Client.ClientID)
	require.Equal(t, "alice", result.Claims["sub"])
}

func TestValidateAccessTokenExpectedScope(t *testing.T) {
	env := newTokenValidatorEnv(t)
	token := env.sign(t, env.accessTokenClaims())

	result, err := env.v.ValidateAccessToken(context.Background(), token, "api1")
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = env.v.ValidateAccessToken(context.Background(), token, "api2")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInsufficientScope, result.Error)
}

func TestValidateAccessTokenExpiredJWT(t *testing.T) {
	env := newTokenValidatorEnv(t)
	token := env.sign(t, env.accessTokenClaims())

	env.clk.Advance(2 * time.Hour)

	result, err := env.v.ValidateAccessToken(context.Background(), token, "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidToken, result.Error)
}

func TestValidateAccessTokenUnknownClient(t *testing.T) {
	env := newTokenValidatorEnv(t)
	claims := env.accessTokenClaims()
	claims["client_id"] = "ghost"
	token := env.sign(t, claims)

	result, err := env.v.ValidateAccessToken(context.Background(), token, "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrInvalidToken, result.Error)
}

func TestValidateReferenceToken(t *testing.T) {
	env := newTokenValidatorEnv(t)
	handle, err := env.refs.Store(context.Background(), &model.ReferenceToken{
		ClientID:     "web",
		SubjectID:    "alice",
		Scopes:       []string{"api1"},
		CreationTime: env.clk.Now(),
		Lifetime:     60,
	})
	require.NoError(t, err)

	result, err := env.v.ValidateAccessToken(context.Background(), handle, "api1")
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, handle, result.ReferenceTokenHandle)
	require.Equal(t, "alice", result.Claims["sub"])
	require.Equal(t, "api1", result.Claims["scope"])
}

func TestValidateReferenceTokenExpiredAndRemoved(t *testing.T) {
	env := newTokenValidatorEnv(t)
	handle, err := env.refs.Store(context.Background(), &model.ReferenceToken{
		ClientID:     "web",
		Scopes:       []string{"api1"},
		CreationTime: env.clk.Now(),
		Lifetime:     60,
	})
	require.NoError(t, err)

	env.clk.Advance(2 * time.Minute)

	result, err := env.v.ValidateAccessToken(context.Background(), handle, "")
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Equal(t, ErrExpiredToken, result.Error)

	// Dead entries are purged on sight.
	_, err = env.refs.Get(context.Background(), handle)
	require.True(t, errors.Is(err, store.ErrNotFound))
}

func TestValidateIdentityTokenSkipsLifetimeForHints(t *testing.T) {
	env := newTokenValidatorEnv(t)
	opts := testOptions()
	now := env.clk.Now()
	token := env.sign(t, jwtv5.MapClaims{
		"iss": opts.Issuer,
		"aud": "web",
		"sub": "alice",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(-time.Hour).Unix(),
	})

	// As a live token the expired id_token fails.
	result, err := env.v.ValidateIdentityToken(context.Background(), token, true)
	require.NoError(t, err)
	require.True(t, result.IsError)

	// As an end-session hint only the signature and issuer matter.
	result, err = env.v.ValidateIdentityToken(context.Background(), token, false)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "web", result.Client.ClientID)
	require.Equal(t, "alice", result.Claims["sub"])
}
