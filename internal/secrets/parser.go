// Package secrets parses credentials from incoming requests and
// validates them against stored secrets.
//
// Parsers and validators are registered lists behind two orchestrators.
// Each parser independently decides applicability: a request that simply
// is not in its format yields (nil, nil), never an error. Errors are
// reserved for infrastructure faults.
package secrets

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// Parser extracts a credential from a request.
type Parser interface {
	Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error)
}

// SecretParser runs all registered parsers and returns the best match:
// the first result actually carrying a secret wins immediately; a
// client-id-only result is kept as fallback.
type SecretParser struct {
	parsers []Parser
}

func NewSecretParser(parsers ...Parser) *SecretParser {
	return &SecretParser{parsers: parsers}
}

func (p *SecretParser) Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error) {
	log := logger.From(ctx).With(logger.Component("secrets.parser"))

	var best *model.ParsedSecret
	for _, parser := range p.parsers {
		parsed, err := parser.Parse(ctx, r)
		if err != nil {
			return nil, err
		}
		if parsed == nil {
			continue
		}
		if parsed.Type != model.ParsedSecretNone {
			log.Debug("secret found", logger.String("secret_type", parsed.Type))
			return parsed, nil
		}
		if best == nil {
			best = parsed
		}
	}
	if best != nil {
		log.Debug("client id found, no secret")
	}
	return best, nil
}

// BasicAuthenticationParser reads client_id/client_secret from the
// Authorization: Basic header, form-urldecoded per RFC 6749 §2.3.1.
type BasicAuthenticationParser struct {
	lengths config.InputLengthRestrictions
}

func NewBasicAuthenticationParser(lengths config.InputLengthRestrictions) *BasicAuthenticationParser {
	return &BasicAuthenticationParser{lengths: lengths}
}

func (p *BasicAuthenticationParser) Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Basic") {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, nil
	}
	idx := strings.Index(string(raw), ":")
	if idx < 0 {
		return nil, nil
	}

	id, err := url.QueryUnescape(string(raw[:idx]))
	if err != nil || id == "" {
		return nil, nil
	}
	secret, err := url.QueryUnescape(string(raw[idx+1:]))
	if err != nil {
		return nil, nil
	}

	if len(id) > p.lengths.ClientID || len(secret) > p.lengths.ClientSecret {
		return nil, nil
	}

	if secret == "" {
		return &model.ParsedSecret{ID: id, Type: model.ParsedSecretNone}, nil
	}
	return &model.ParsedSecret{ID: id, Credential: secret, Type: model.ParsedSecretShared}, nil
}

// PostBodyParser reads client_id/client_secret from the POST body.
type PostBodyParser struct {
	lengths config.InputLengthRestrictions
}

func NewPostBodyParser(lengths config.InputLengthRestrictions) *PostBodyParser {
	return &PostBodyParser{lengths: lengths}
}

func (p *PostBodyParser) Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error) {
	if r.Method != http.MethodPost {
		return nil, nil
	}
	id := r.PostFormValue("client_id")
	if id == "" || len(id) > p.lengths.ClientID {
		return nil, nil
	}
	secret := r.PostFormValue("client_secret")
	if len(secret) > p.lengths.ClientSecret {
		return nil, nil
	}

	if secret == "" {
		return &model.ParsedSecret{ID: id, Type: model.ParsedSecretNone}, nil
	}
	return &model.ParsedSecret{ID: id, Credential: secret, Type: model.ParsedSecretShared}, nil
}

// JWTBearerParser reads a client_assertion of type jwt-bearer. The
// assertion is parsed unverified here only to extract the issuer as the
// client id; signature checks happen in the validator.
type JWTBearerParser struct {
	lengths config.InputLengthRestrictions
}

func NewJWTBearerParser(lengths config.InputLengthRestrictions) *JWTBearerParser {
	return &JWTBearerParser{lengths: lengths}
}

func (p *JWTBearerParser) Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error) {
	if r.Method != http.MethodPost {
		return nil, nil
	}
	if r.PostFormValue("client_assertion_type") != model.ClientAssertionTypeJWTBearer {
		return nil, nil
	}
	assertion := r.PostFormValue("client_assertion")
	if assertion == "" || len(assertion) > p.lengths.Jwt {
		return nil, nil
	}

	issuer, ok := unverifiedIssuer(assertion)
	if !ok || len(issuer) > p.lengths.ClientID {
		return nil, nil
	}
	return &model.ParsedSecret{ID: issuer, Credential: assertion, Type: model.ParsedSecretJWTBearer}, nil
}

// MutualTLSParser reads the client certificate presented during the TLS
// handshake. The client id still arrives as a form parameter.
type MutualTLSParser struct {
	lengths config.InputLengthRestrictions
}

func NewMutualTLSParser(lengths config.InputLengthRestrictions) *MutualTLSParser {
	return &MutualTLSParser{lengths: lengths}
}

func (p *MutualTLSParser) Parse(ctx context.Context, r *http.Request) (*model.ParsedSecret, error) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return nil, nil
	}
	id := r.PostFormValue("client_id")
	if id == "" || len(id) > p.lengths.ClientID {
		return nil, nil
	}
	return &model.ParsedSecret{
		ID:          id,
		Certificate: r.TLS.PeerCertificates[0],
		Type:        model.ParsedSecretX509Cert,
	}, nil
}
