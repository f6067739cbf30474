package model

// IdentityResource maps an OIDC scope to a set of user claims
// (e.g. profile, email).
type IdentityResource struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Enabled     bool     `json:"enabled"`
	Required    bool     `json:"required"`
	UserClaims  []string `json:"user_claims,omitempty"`
}

// ApiScope is a scope exposed by one or more API resources.
type ApiScope struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	UserClaims  []string `json:"user_claims,omitempty"`
}

// ApiResource is a protected API. It exposes scopes and can hold its own
// secrets for introspection authentication.
type ApiResource struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name,omitempty"`
	Enabled     bool       `json:"enabled"`
	Scopes      []ApiScope `json:"scopes,omitempty"`
	Secrets     []Secret   `json:"secrets,omitempty"`
}

// FindScope returns the named scope of this API, if exposed.
func (a *ApiResource) FindScope(name string) (ApiScope, bool) {
	for _, s := range a.Scopes {
		if s.Name == name {
			return s, true
		}
	}
	return ApiScope{}, false
}

// Resources is a store snapshot of identity and API resources.
// Invariant: a scope name is unique across identity resources and API
// scopes within one snapshot.
type Resources struct {
	IdentityResources []IdentityResource `json:"identity_resources,omitempty"`
	ApiResources      []ApiResource      `json:"api_resources,omitempty"`
	OfflineAccess     bool               `json:"offline_access,omitempty"`
}

// FindIdentityResource returns the enabled identity resource with the
// given scope name.
func (r *Resources) FindIdentityResource(name string) (IdentityResource, bool) {
	for _, ir := range r.IdentityResources {
		if ir.Name == name && ir.Enabled {
			return ir, true
		}
	}
	return IdentityResource{}, false
}

// FindApiResourcesByScope returns every enabled API resource exposing the
// given scope name.
func (r *Resources) FindApiResourcesByScope(name string) []ApiResource {
	var out []ApiResource
	for _, ar := range r.ApiResources {
		if !ar.Enabled {
			continue
		}
		if _, ok := ar.FindScope(name); ok {
			out = append(out, ar)
		}
	}
	return out
}
