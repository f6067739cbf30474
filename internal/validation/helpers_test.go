package validation

import (
	"net/url"
	"time"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

func testClock() *clock.Fixed {
	return &clock.Fixed{T: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func testOptions() *config.Options {
	cfg := config.Default()
	return &cfg
}

func testWebClient() model.Client {
	return model.Client{
		ClientID:            "web",
		Enabled:             true,
		ProtocolType:        model.ProtocolOIDC,
		RequireClientSecret: true,
		AllowedGrantTypes: []string{
			model.GrantAuthorizationCode,
			model.GrantImplicit,
			model.GrantHybrid,
			model.GrantRefreshToken,
		},
		AllowedScopes:             []string{"openid", "profile", "api1"},
		AllowOfflineAccess:        true,
		RedirectURIs:              []string{"https://client.example.com/cb"},
		AccessTokenLifetime:       3600,
		IdentityTokenLifetime:     300,
		AuthorizationCodeLifetime: 300,
		DeviceCodeLifetime:        300,
		RefreshTokenUsage:         model.RefreshUsageReUse,
		RefreshTokenExpiration:    model.RefreshExpirationAbsolute,
		AccessTokenType:           model.AccessTokenJWT,
	}
}

func testMachineClient() model.Client {
	return model.Client{
		ClientID:            "machine",
		Enabled:             true,
		ProtocolType:        model.ProtocolOIDC,
		RequireClientSecret: true,
		AllowedGrantTypes:   []string{model.GrantClientCredentials},
		AllowedScopes:       []string{"api1", "api2"},
		AccessTokenLifetime: 3600,
		AccessTokenType:     model.AccessTokenJWT,
	}
}

func testResourceStore() *store.InMemoryResourceStore {
	return store.NewInMemoryResourceStore(
		[]model.IdentityResource{
			{Name: "openid", Enabled: true},
			{Name: "profile", Enabled: true},
		},
		[]model.ApiResource{
			{
				Name:    "api",
				Enabled: true,
				Scopes:  []model.ApiScope{{Name: "api1"}, {Name: "api2"}},
			},
		},
	)
}

func newTestAuthorizeValidator(clients ...model.Client) *AuthorizeRequestValidator {
	clk := testClock()
	opts := testOptions()
	return NewAuthorizeRequestValidator(AuthorizeRequestValidatorDeps{
		Clients:       store.NewInMemoryClientStore(clients),
		Resources:     NewResourceValidator(testResourceStore(), nil),
		RequestObject: NewRequestObjectValidator(opts.RequestObject, nil, clk),
		Options:       opts,
	})
}

type tokenTestEnv struct {
	clk       *clock.Fixed
	opts      *config.Options
	codes     *store.MemoryAuthorizationCodeStore
	refreshes *store.MemoryRefreshTokenStore
	devices   *store.MemoryDeviceCodeStore
	throttle  *store.MemoryThrottleCache
	validator *TokenRequestValidator
}

func newTokenTestEnv() *tokenTestEnv {
	clk := testClock()
	opts := testOptions()

	codes := store.NewMemoryAuthorizationCodeStore(clk)
	refreshes := store.NewMemoryRefreshTokenStore(clk)
	devices := store.NewMemoryDeviceCodeStore(clk)
	throttle := store.NewMemoryThrottleCache()

	device := NewDeviceCodeValidator(devices, throttle, store.AlwaysActiveProfileService{}, nil, clk,
		time.Duration(opts.DeviceFlow.Interval)*time.Second)

	validator := NewTokenRequestValidator(TokenRequestValidatorDeps{
		Codes:         codes,
		RefreshTokens: refreshes,
		Resources:     NewResourceValidator(testResourceStore(), nil),
		Profile:       store.AlwaysActiveProfileService{},
		DeviceCodes:   device,
		Clock:         clk,
		Options:       opts,
	})

	return &tokenTestEnv{
		clk:       clk,
		opts:      opts,
		codes:     codes,
		refreshes: refreshes,
		devices:   devices,
		throttle:  throttle,
		validator: validator,
	}
}

func params(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}
