package endpoints

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/secrets"
	sectoken "github.com/dropDatabas3/gatejohn/internal/security/token"
	"github.com/dropDatabas3/gatejohn/internal/store"
	"github.com/dropDatabas3/gatejohn/internal/tokens"
	"github.com/dropDatabas3/gatejohn/internal/validation"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	clk := clock.System{}
	opts := config.Default()

	machine := model.Client{
		ClientID:            "machine",
		Enabled:             true,
		ProtocolType:        model.ProtocolOIDC,
		RequireClientSecret: true,
		Secrets: []model.Secret{
			{Type: model.SecretSharedSHA256, Value: sectoken.SHA256Base64URL("s3cret")},
		},
		AllowedGrantTypes:   []string{model.GrantClientCredentials},
		AllowedScopes:       []string{"api1", "api2"},
		AccessTokenLifetime: 3600,
		AccessTokenType:     model.AccessTokenJWT,
	}
	clients := store.NewInMemoryClientStore([]model.Client{machine})
	resources := store.NewInMemoryResourceStore(nil, []model.ApiResource{
		{Name: "api", Enabled: true, Scopes: []model.ApiScope{{Name: "api1"}, {Name: "api2"}}},
	})

	keystore, err := keys.NewKeystore()
	require.NoError(t, err)

	parser := secrets.NewSecretParser(
		secrets.NewBasicAuthenticationParser(opts.InputLengths),
		secrets.NewPostBodyParser(opts.InputLengths),
	)
	secretValidator := secrets.NewSecretValidator(clk,
		secrets.PlainTextSharedSecretValidator{},
		secrets.HashedSharedSecretValidator{},
	)

	clientValidator := validation.NewClientSecretValidator(clients, parser, secretValidator, nil)
	tokenValidator := validation.NewTokenRequestValidator(validation.TokenRequestValidatorDeps{
		Codes:         store.NewMemoryAuthorizationCodeStore(clk),
		RefreshTokens: store.NewMemoryRefreshTokenStore(clk),
		Resources:     validation.NewResourceValidator(resources, nil),
		Profile:       store.AlwaysActiveProfileService{},
		Clock:         clk,
		Options:       &opts,
	})
	issuer := tokens.NewService(tokens.Deps{
		Keystore:           keystore,
		AuthorizationCodes: store.NewMemoryAuthorizationCodeStore(clk),
		RefreshTokens:      store.NewMemoryRefreshTokenStore(clk),
		ReferenceTokens:    store.NewMemoryReferenceTokenStore(clk),
		DeviceCodes:        store.NewMemoryDeviceCodeStore(clk),
		Clock:              clk,
		Options:            &opts,
	})

	router := NewRouter(RouterDeps{
		Options:   &opts,
		Metrics:   prometheus.NewRegistry(),
		Token:     NewTokenHandler(clientValidator, tokenValidator, issuer),
		Discovery: NewDiscoveryHandler(keystore, &opts),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func postForm(t *testing.T, srv *httptest.Server, form url.Values) (int, map[string]any, http.Header) {
	t.Helper()
	resp, err := http.PostForm(srv.URL+"/connect/token", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body, resp.Header
}

func TestTokenEndpointClientCredentials(t *testing.T) {
	srv := newTestServer(t)

	status, body, headers := postForm(t, srv, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"machine"},
		"client_secret": {"s3cret"},
		"scope":         {"api1"},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Bearer", body["token_type"])
	require.Equal(t, "api1", body["scope"])
	require.NotEmpty(t, body["access_token"])
	require.NotContains(t, body, "refresh_token")
	require.Equal(t, "no-store", headers.Get("Cache-Control"))

	// Three JWT segments.
	require.Len(t, strings.Split(body["access_token"].(string), "."), 3)
}

func TestTokenEndpointBasicAuthentication(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/connect/token",
		strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("machine", "s3cret")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTokenEndpointRejectsBadSecret(t *testing.T) {
	srv := newTestServer(t)

	status, body, headers := postForm(t, srv, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"machine"},
		"client_secret": {"wrong"},
	})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "invalid_client", body["error"])
	require.Contains(t, headers.Get("WWW-Authenticate"), "Basic")
}

func TestTokenEndpointRejectsDisallowedScope(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := postForm(t, srv, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"machine"},
		"client_secret": {"s3cret"},
		"scope":         {"api1 admin"},
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "invalid_scope", body["error"])
}

func TestDiscoveryDocument(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/.well-known/openid-configuration")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Equal(t, config.Default().Issuer, doc["issuer"])
	require.Contains(t, doc, "token_endpoint")
	require.Contains(t, doc, "jwks_uri")

	jwksResp, err := http.Get(srv.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer jwksResp.Body.Close()
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(jwksResp.Body).Decode(&jwks))
	require.NotEmpty(t, jwks.Keys)
	require.Equal(t, "OKP", jwks.Keys[0]["kty"])
}
