package model

// Protocol types.
const (
	ProtocolOIDC = "oidc"
)

// Grant types. The device grant uses its full URN on the wire.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantImplicit          = "implicit"
	GrantHybrid            = "hybrid"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// Reserved scopes.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

// Client assertion types.
const (
	ClientAssertionTypeJWTBearer = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
)

// Refresh token usage: rotate the handle on every use, or keep reusing it.
const (
	RefreshUsageOneTime = "one_time"
	RefreshUsageReUse   = "reuse"
)

// Refresh token expiration behavior.
const (
	RefreshExpirationAbsolute = "absolute"
	RefreshExpirationSliding  = "sliding"
)

// Access token representation.
const (
	AccessTokenJWT       = "jwt"
	AccessTokenReference = "reference"
)

// PKCE code challenge methods.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// Token type hints accepted by introspection/revocation.
const (
	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)
