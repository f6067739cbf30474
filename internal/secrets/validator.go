package secrets

import (
	"context"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
	"github.com/dropDatabas3/gatejohn/internal/store"
)

// Validator checks a parsed secret against stored candidates.
// Returning (false, nil) means "not mine or no match"; the orchestrator
// moves on to the next validator.
type Validator interface {
	Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error)
}

// SecretValidator filters expired stored secrets and stops at the first
// validator reporting success.
type SecretValidator struct {
	validators []Validator
	clk        clock.Clock
}

func NewSecretValidator(clk clock.Clock, validators ...Validator) *SecretValidator {
	return &SecretValidator{validators: validators, clk: clk}
}

func (v *SecretValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	log := logger.From(ctx).With(logger.Component("secrets.validator"))

	now := v.clk.Now()
	candidates := make([]model.Secret, 0, len(stored))
	for _, s := range stored {
		if s.IsExpired(now) {
			log.Debug("skipping expired secret", logger.String("description", s.Description))
			continue
		}
		candidates = append(candidates, s)
	}
	if len(candidates) == 0 || parsed == nil {
		return false, nil
	}

	for _, validator := range v.validators {
		ok, err := validator.Validate(ctx, candidates, parsed)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	log.Debug("no validator accepted the parsed secret", logger.String("secret_type", parsed.Type))
	return false, nil
}

// PlainTextSharedSecretValidator compares shared secrets stored in
// plaintext. All comparisons are constant time.
type PlainTextSharedSecretValidator struct{}

func (PlainTextSharedSecretValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	if parsed.Type != model.ParsedSecretShared || parsed.Credential == "" {
		return false, nil
	}
	for _, s := range stored {
		if s.Type != model.SecretSharedPlain {
			continue
		}
		if tokens.ConstantTimeEquals(s.Value, parsed.Credential) {
			return true, nil
		}
	}
	return false, nil
}

// HashedSharedSecretValidator compares shared secrets stored as
// sha256/sha512 base64url digests or bcrypt hashes.
type HashedSharedSecretValidator struct{}

func (HashedSharedSecretValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	if parsed.Type != model.ParsedSecretShared || parsed.Credential == "" {
		return false, nil
	}
	for _, s := range stored {
		switch s.Type {
		case model.SecretSharedSHA256:
			if tokens.ConstantTimeEquals(s.Value, tokens.SHA256Base64URL(parsed.Credential)) {
				return true, nil
			}
		case model.SecretSharedSHA512:
			if tokens.ConstantTimeEquals(s.Value, tokens.SHA512Base64URL(parsed.Credential)) {
				return true, nil
			}
		case model.SecretSharedBcrypt:
			if bcrypt.CompareHashAndPassword([]byte(s.Value), []byte(parsed.Credential)) == nil {
				return true, nil
			}
		}
	}
	return false, nil
}

// PrivateKeyJWTValidator verifies a client assertion signed with a
// registered key. The jti is single use: replays inside the assertion
// lifetime are rejected through the replay cache.
type PrivateKeyJWTValidator struct {
	audience string
	replay   store.ReplayCache
	clk      clock.Clock
}

// replayPurpose namespaces assertion jti values in the replay cache.
const replayPurpose = "client_assertion"

// jtiGrace keeps a jti blocked a while past assertion expiry to absorb
// clock skew between parties.
const jtiGrace = 5 * time.Minute

func NewPrivateKeyJWTValidator(audience string, replay store.ReplayCache, clk clock.Clock) *PrivateKeyJWTValidator {
	return &PrivateKeyJWTValidator{audience: audience, replay: replay, clk: clk}
}

func (v *PrivateKeyJWTValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	if parsed.Type != model.ParsedSecretJWTBearer || parsed.Credential == "" {
		return false, nil
	}
	log := logger.From(ctx).With(logger.Component("secrets.private_key_jwt"))

	var verificationKeys []any
	for _, s := range stored {
		if s.Type != model.SecretJWK {
			continue
		}
		key, err := keys.ParsePublicKey(s.Value)
		if err != nil {
			log.Warn("unparsable registered key", logger.Err(err))
			continue
		}
		verificationKeys = append(verificationKeys, key)
	}
	if len(verificationKeys) == 0 {
		return false, nil
	}

	claims, ok := v.verify(parsed.Credential, verificationKeys)
	if !ok {
		log.Debug("assertion signature invalid")
		return false, nil
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	if iss == "" || iss != parsed.ID || sub != parsed.ID {
		log.Debug("assertion issuer/subject mismatch")
		return false, nil
	}
	if v.audience != "" && !audienceContains(claims, v.audience) {
		log.Debug("assertion audience mismatch")
		return false, nil
	}

	expf, ok := claims["exp"].(float64)
	if !ok {
		log.Debug("assertion missing exp")
		return false, nil
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		log.Debug("assertion missing jti")
		return false, nil
	}

	seen, err := v.replay.Exists(ctx, replayPurpose, jti)
	if err != nil {
		return false, err
	}
	if seen {
		log.Warn("assertion jti replayed")
		return false, nil
	}
	expiry := time.Unix(int64(expf), 0).Add(jtiGrace)
	if err := v.replay.Add(ctx, replayPurpose, jti, expiry); err != nil {
		return false, err
	}
	return true, nil
}

func (v *PrivateKeyJWTValidator) verify(assertion string, verificationKeys []any) (jwtv5.MapClaims, bool) {
	methods := jwtv5.WithValidMethods([]string{"EdDSA", "RS256", "RS384", "RS512", "ES256", "ES384", "PS256"})
	for _, key := range verificationKeys {
		tok, err := jwtv5.Parse(assertion,
			func(t *jwtv5.Token) (any, error) { return key, nil },
			methods,
			jwtv5.WithTimeFunc(v.clk.Now),
			jwtv5.WithExpirationRequired(),
		)
		if err != nil || !tok.Valid {
			continue
		}
		if claims, ok := tok.Claims.(jwtv5.MapClaims); ok {
			return claims, true
		}
	}
	return nil, false
}

func audienceContains(claims jwtv5.MapClaims, want string) bool {
	auds, err := claims.GetAudience()
	if err != nil {
		return false
	}
	for _, a := range auds {
		if a == want {
			return true
		}
	}
	return false
}

// X509NameValidator matches the certificate subject common name against
// stored x509_name secrets.
type X509NameValidator struct{}

func (X509NameValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	if parsed.Type != model.ParsedSecretX509Cert || parsed.Certificate == nil {
		return false, nil
	}
	name := parsed.Certificate.Subject.CommonName
	for _, s := range stored {
		if s.Type == model.SecretX509Name && s.Value == name {
			return true, nil
		}
	}
	return false, nil
}

// X509ThumbprintValidator matches the sha256 thumbprint of the
// certificate against stored x509_thumbprint secrets (hex, any case).
type X509ThumbprintValidator struct{}

func (X509ThumbprintValidator) Validate(ctx context.Context, stored []model.Secret, parsed *model.ParsedSecret) (bool, error) {
	if parsed.Type != model.ParsedSecretX509Cert || parsed.Certificate == nil {
		return false, nil
	}
	thumb := tokens.SHA256Hex(string(parsed.Certificate.Raw))
	for _, s := range stored {
		if s.Type == model.SecretX509Thumb && strings.EqualFold(s.Value, thumb) {
			return true, nil
		}
	}
	return false, nil
}
