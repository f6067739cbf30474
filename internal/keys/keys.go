// Package keys holds the server signing keystore and helpers for
// resolving client-registered public keys.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dropDatabas3/gatejohn/internal/model"
)

// ErrKeyNotFound is returned when no key matches the requested kid.
var ErrKeyNotFound = errors.New("keys: key not found")

// SigningKey is one Ed25519 key pair. Retired keys keep validating old
// tokens but are never used to sign.
type SigningKey struct {
	KID     string
	Alg     string // "EdDSA"
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
	Retired bool
}

// Keystore keeps the active signing key plus any retired keys.
type Keystore struct {
	mu   sync.RWMutex
	keys []SigningKey
}

// NewKeystore creates a keystore with one freshly generated active key.
func NewKeystore() (*Keystore, error) {
	ks := &Keystore{}
	if _, err := ks.Rotate(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Rotate generates a new active key and retires the previous one.
func (ks *Keystore) Rotate() (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", err
	}
	kid := uuid.NewString()
	ks.mu.Lock()
	defer ks.mu.Unlock()
	for i := range ks.keys {
		ks.keys[i].Retired = true
	}
	ks.keys = append(ks.keys, SigningKey{KID: kid, Alg: "EdDSA", Private: priv, Public: pub})
	return kid, nil
}

// Active returns the current signing key.
func (ks *Keystore) Active() (SigningKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	for i := len(ks.keys) - 1; i >= 0; i-- {
		if !ks.keys[i].Retired {
			return ks.keys[i], nil
		}
	}
	return SigningKey{}, ErrKeyNotFound
}

// PublicKeyByKID returns the public key for a kid, active or retired.
func (ks *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	for _, k := range ks.keys {
		if k.KID == kid {
			return k.Public, nil
		}
	}
	return nil, ErrKeyNotFound
}

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

type jwksDoc struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON returns the public key set as a JWKS document.
func (ks *Keystore) JWKSJSON() []byte {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	doc := jwksDoc{Keys: make([]jwk, 0, len(ks.keys))}
	for _, k := range ks.keys {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "OKP",
			Crv: "Ed25519",
			Kid: k.KID,
			Alg: k.Alg,
			Use: "sig",
			X:   base64.RawURLEncoding.EncodeToString(k.Public),
		})
	}
	b, _ := json.Marshal(doc)
	return b
}

// ClientPublicKeys resolves the verification keys a client registered as
// secrets of type jwk. Values may be a PEM PKIX block (RSA, ECDSA or
// Ed25519) or a bare base64url Ed25519 public key.
func ClientPublicKeys(client *model.Client) ([]any, error) {
	var out []any
	for _, s := range client.Secrets {
		if s.Type != model.SecretJWK {
			continue
		}
		key, err := ParsePublicKey(s.Value)
		if err != nil {
			return nil, fmt.Errorf("keys: client %s: %w", client.ClientID, err)
		}
		out = append(out, key)
	}
	return out, nil
}

// ParsePublicKey decodes a registered verification key value.
func ParsePublicKey(value string) (any, error) {
	if block, _ := pem.Decode([]byte(value)); block != nil {
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PEM public key: %w", err)
		}
		return key, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, errors.New("unrecognized public key encoding")
	}
	return ed25519.PublicKey(raw), nil
}
