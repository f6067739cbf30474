package endpoints

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
)

// DiscoveryHandler serves the OIDC discovery document and the JWKS.
type DiscoveryHandler struct {
	keystore *keys.Keystore
	opts     *config.Options
}

func NewDiscoveryHandler(keystore *keys.Keystore, opts *config.Options) *DiscoveryHandler {
	return &DiscoveryHandler{keystore: keystore, opts: opts}
}

func (h *DiscoveryHandler) Register(r chi.Router) {
	r.Get("/.well-known/openid-configuration", h.configuration)
	if h.opts.Endpoints.EnableJWKS {
		r.Get("/.well-known/jwks.json", h.jwks)
	}
}

func (h *DiscoveryHandler) configuration(w http.ResponseWriter, r *http.Request) {
	issuer := h.opts.Issuer
	ep := h.opts.Endpoints

	doc := map[string]any{
		"issuer":                                issuer,
		"response_types_supported":              []string{"code", "token", "id_token", "id_token token", "code id_token", "code token", "code id_token token"},
		"response_modes_supported":              []string{"query", "fragment", "form_post"},
		"grant_types_supported":                 []string{"authorization_code", "client_credentials", "password", "refresh_token", "implicit", "urn:ietf:params:oauth:grant-type:device_code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"code_challenge_methods_supported":      []string{"plain", "S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "private_key_jwt"},
		"request_parameter_supported":           h.opts.RequestObject.Enabled,
		"request_uri_parameter_supported":       h.opts.RequestObject.RequestURIEnabled,
	}
	if ep.EnableAuthorize {
		doc["authorization_endpoint"] = issuer + "/connect/authorize"
	}
	if ep.EnableToken {
		doc["token_endpoint"] = issuer + "/connect/token"
	}
	if ep.EnableIntrospection {
		doc["introspection_endpoint"] = issuer + "/connect/introspect"
	}
	if ep.EnableRevocation {
		doc["revocation_endpoint"] = issuer + "/connect/revocation"
	}
	if ep.EnableDeviceAuthorization {
		doc["device_authorization_endpoint"] = issuer + "/connect/deviceauthorization"
	}
	if ep.EnableEndSession {
		doc["end_session_endpoint"] = issuer + "/connect/endsession"
	}
	if ep.EnableJWKS {
		doc["jwks_uri"] = issuer + "/.well-known/jwks.json"
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DiscoveryHandler) jwks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(h.keystore.JWKSJSON())
}
