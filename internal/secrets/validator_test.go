package secrets

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

const assertionAudience = "https://op.example.com/connect/token"

func signedAssertion(t *testing.T, priv ed25519.PrivateKey, clientID, jti string, exp time.Time) string {
	t.Helper()
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, jwtv5.MapClaims{
		"iss": clientID,
		"sub": clientID,
		"aud": assertionAudience,
		"jti": jti,
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestPrivateKeyJWTAssertionJTISingleUse(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	stored := []model.Secret{
		{Type: model.SecretJWK, Value: base64.RawURLEncoding.EncodeToString(pub)},
	}
	v := NewPrivateKeyJWTValidator(assertionAudience, store.NewMemoryReplayCache(clk), clk)

	assertion := signedAssertion(t, priv, "web", "jti-1", clk.Now().Add(time.Minute))
	parsed := &model.ParsedSecret{ID: "web", Type: model.ParsedSecretJWTBearer, Credential: assertion}

	ok, err := v.Validate(context.Background(), stored, parsed)
	require.NoError(t, err)
	require.True(t, ok)

	// Same jti again: replayed, rejected.
	ok, err = v.Validate(context.Background(), stored, parsed)
	require.NoError(t, err)
	require.False(t, ok)

	// A fresh jti is accepted again.
	fresh := signedAssertion(t, priv, "web", "jti-2", clk.Now().Add(time.Minute))
	ok, err = v.Validate(context.Background(), stored, &model.ParsedSecret{
		ID: "web", Type: model.ParsedSecretJWTBearer, Credential: fresh,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPrivateKeyJWTAssertionSignedByUnknownKeyRejected(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	stored := []model.Secret{
		{Type: model.SecretJWK, Value: base64.RawURLEncoding.EncodeToString(pub)},
	}
	v := NewPrivateKeyJWTValidator(assertionAudience, store.NewMemoryReplayCache(clk), clk)

	assertion := signedAssertion(t, otherPriv, "web", "jti-1", clk.Now().Add(time.Minute))
	ok, err := v.Validate(context.Background(), stored, &model.ParsedSecret{
		ID: "web", Type: model.ParsedSecretJWTBearer, Credential: assertion,
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSecretValidatorSkipsExpiredSecrets(t *testing.T) {
	clk := &clock.Fixed{T: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
	v := NewSecretValidator(clk, PlainTextSharedSecretValidator{})

	expired := clk.Now().Add(-time.Hour)
	stored := []model.Secret{
		{Type: model.SecretSharedPlain, Value: "s3cret", Expiration: &expired},
	}
	parsed := &model.ParsedSecret{ID: "web", Type: model.ParsedSecretShared, Credential: "s3cret"}

	ok, err := v.Validate(context.Background(), stored, parsed)
	require.NoError(t, err)
	require.False(t, ok)

	// The same credential against an unexpired copy passes.
	live := clk.Now().Add(time.Hour)
	stored = append(stored, model.Secret{Type: model.SecretSharedPlain, Value: "s3cret", Expiration: &live})
	ok, err = v.Validate(context.Background(), stored, parsed)
	require.NoError(t, err)
	require.True(t, ok)
}
