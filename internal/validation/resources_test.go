package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

func TestResourceValidationAllOrNothing(t *testing.T) {
	v := NewResourceValidator(testResourceStore(), nil)
	client := testWebClient()

	result, err := v.ValidateRequestedResources(context.Background(), &client,
		[]string{"openid", "profile", "unknown_scope"})
	require.NoError(t, err)
	require.False(t, result.Succeeded())
	require.Equal(t, []string{"unknown_scope"}, result.InvalidScopes)

	// A failed validation carries no partial grant.
	require.Empty(t, result.Resources.IdentityResources)
	require.Empty(t, result.ApiScopes)
	require.Empty(t, result.ParsedScopes)
	require.False(t, result.OfflineAccess)
}

func TestResourceValidationScopeNotAllowedForClient(t *testing.T) {
	v := NewResourceValidator(testResourceStore(), nil)
	client := testWebClient() // api2 exists but is not in AllowedScopes

	result, err := v.ValidateRequestedResources(context.Background(), &client, []string{"api2"})
	require.NoError(t, err)
	require.False(t, result.Succeeded())
	require.Equal(t, []string{"api2"}, result.InvalidScopes)
}

func TestResourceValidationPartitionsScopes(t *testing.T) {
	v := NewResourceValidator(testResourceStore(), nil)
	client := testWebClient()

	result, err := v.ValidateRequestedResources(context.Background(), &client,
		[]string{"openid", "api1", "offline_access"})
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.True(t, result.HasIdentityScopes())
	require.True(t, result.HasApiScopes())
	require.True(t, result.OfflineAccess)
	require.ElementsMatch(t, []string{"openid", "api1", "offline_access"}, result.RawScopeValues())
}

func TestResourceValidationOfflineAccessGatedOnClient(t *testing.T) {
	v := NewResourceValidator(testResourceStore(), nil)
	client := testWebClient()
	client.AllowOfflineAccess = false

	result, err := v.ValidateRequestedResources(context.Background(), &client,
		[]string{"openid", "offline_access"})
	require.NoError(t, err)
	require.False(t, result.Succeeded())
	require.Equal(t, []string{model.ScopeOfflineAccess}, result.InvalidScopes)
}

func TestResourceValidationDeduplicatesApiResources(t *testing.T) {
	v := NewResourceValidator(testResourceStore(), nil)
	client := testMachineClient()

	// api1 and api2 belong to the same ApiResource; it appears once.
	result, err := v.ValidateRequestedResources(context.Background(), &client,
		[]string{"api1", "api2"})
	require.NoError(t, err)
	require.True(t, result.Succeeded())
	require.Len(t, result.Resources.ApiResources, 1)
	require.Len(t, result.ApiScopes, 2)
}
