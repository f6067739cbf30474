package model

import "strings"

// Client is a registered application. Lifetimes are in seconds.
type Client struct {
	ClientID     string   `json:"client_id"`
	ClientName   string   `json:"client_name,omitempty"`
	Enabled      bool     `json:"enabled"`
	ProtocolType string   `json:"protocol_type"`
	Secrets      []Secret `json:"secrets,omitempty"`

	// RequireClientSecret is false for public clients; they still must have
	// a resolvable client record.
	RequireClientSecret bool `json:"require_client_secret"`

	AllowedGrantTypes []string `json:"allowed_grant_types"`

	// AllowAllScopes short-circuits the AllowedScopes list.
	AllowAllScopes     bool     `json:"allow_all_scopes"`
	AllowedScopes      []string `json:"allowed_scopes,omitempty"`
	AllowOfflineAccess bool     `json:"allow_offline_access"`

	RedirectURIs           []string `json:"redirect_uris,omitempty"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris,omitempty"`

	RequirePKCE        bool `json:"require_pkce"`
	AllowPlainTextPKCE bool `json:"allow_plain_text_pkce"`

	AccessTokenLifetime       int `json:"access_token_lifetime"`
	IdentityTokenLifetime     int `json:"identity_token_lifetime"`
	AuthorizationCodeLifetime int `json:"authorization_code_lifetime"`
	DeviceCodeLifetime        int `json:"device_code_lifetime"`

	// AbsoluteRefreshTokenLifetime of 0 means unbounded.
	AbsoluteRefreshTokenLifetime int    `json:"absolute_refresh_token_lifetime"`
	SlidingRefreshTokenLifetime  int    `json:"sliding_refresh_token_lifetime"`
	RefreshTokenUsage            string `json:"refresh_token_usage"`
	RefreshTokenExpiration       string `json:"refresh_token_expiration"`

	AccessTokenType string `json:"access_token_type"`

	// IdentityProviderRestrictions limits which upstream idp hints the
	// client may request via acr_values. Empty means no restriction.
	IdentityProviderRestrictions []string `json:"identity_provider_restrictions,omitempty"`
}

// AllowsGrantType reports whether the grant type is in the client allow-set.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range c.AllowedGrantTypes {
		if strings.EqualFold(g, grantType) {
			return true
		}
	}
	return false
}

// AllowsScope reports whether the client may request the named scope.
func (c *Client) AllowsScope(name string) bool {
	if c.AllowAllScopes {
		return true
	}
	for _, s := range c.AllowedScopes {
		if s == name {
			return true
		}
	}
	return false
}

// AllowsProvider reports whether the idp hint is permitted for this client.
// With no restrictions configured every provider is allowed.
func (c *Client) AllowsProvider(idp string) bool {
	if len(c.IdentityProviderRestrictions) == 0 {
		return true
	}
	for _, p := range c.IdentityProviderRestrictions {
		if p == idp {
			return true
		}
	}
	return false
}
