package model

import (
	"crypto/x509"
	"time"
)

// Stored secret types.
const (
	SecretSharedPlain  = "shared_secret"
	SecretSharedSHA256 = "shared_secret_sha256"
	SecretSharedSHA512 = "shared_secret_sha512"
	SecretSharedBcrypt = "shared_secret_bcrypt"
	SecretJWK          = "jwk"
	SecretX509Name     = "x509_name"
	SecretX509Thumb    = "x509_thumbprint"
)

// Parsed secret types (what a request actually carried).
const (
	ParsedSecretShared    = "shared_secret"
	ParsedSecretJWTBearer = "jwt_bearer"
	ParsedSecretX509Cert  = "x509_certificate"
	ParsedSecretNone      = "none"
)

// Secret is a credential registered for a client, API resource or scope.
type Secret struct {
	Type        string     `json:"type"`
	Value       string     `json:"value"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	Description string     `json:"description,omitempty"`
}

// IsExpired reports whether the secret expired before now.
// Secrets without an expiration never expire.
func (s Secret) IsExpired(now time.Time) bool {
	return s.Expiration != nil && s.Expiration.Before(now)
}

// ParsedSecret is a credential extracted from an incoming request.
// Exactly one of Credential or Certificate is set, except for type
// ParsedSecretNone which carries only the id.
type ParsedSecret struct {
	// ID is typically the client_id.
	ID          string
	Credential  string
	Certificate *x509.Certificate
	Type        string
}
