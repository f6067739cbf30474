package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

func TestIntrospectionActiveReferenceToken(t *testing.T) {
	env := newTokenValidatorEnv(t)
	v := NewIntrospectionRequestValidator(env.v, testOptions())

	handle, err := env.refs.Store(context.Background(), &model.ReferenceToken{
		ClientID:     "web",
		SubjectID:    "alice",
		Scopes:       []string{"api1"},
		CreationTime: env.clk.Now(),
		Lifetime:     60,
	})
	require.NoError(t, err)

	result, err := v.Validate(context.Background(), params("token", handle), "")
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.True(t, result.IsActive)
	require.Equal(t, "alice", result.Claims["sub"])
}

func TestIntrospectionExpiredTokenReportsInvalidToken(t *testing.T) {
	env := newTokenValidatorEnv(t)
	v := NewIntrospectionRequestValidator(env.v, testOptions())

	handle, err := env.refs.Store(context.Background(), &model.ReferenceToken{
		ClientID:     "web",
		Scopes:       []string{"api1"},
		CreationTime: env.clk.Now(),
		Lifetime:     60,
	})
	require.NoError(t, err)

	env.clk.Advance(2 * time.Minute)

	result, err := v.Validate(context.Background(), params("token", handle), "")
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.False(t, result.IsActive)
	require.Equal(t, ErrInvalidToken, result.FailureReason)
}
