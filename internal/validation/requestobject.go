package validation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/config"
	"github.com/dropDatabas3/gatejohn/internal/keys"
	"github.com/dropDatabas3/gatejohn/internal/model"
	"github.com/dropDatabas3/gatejohn/internal/observability/logger"
)

// requestObjectSigningMethods lists the accepted algorithms for signed
// authorization requests. "none" is never accepted.
var requestObjectSigningMethods = []string{"EdDSA", "RS256", "RS384", "RS512", "ES256", "ES384", "PS256"}

// RequestObjectValidator loads and verifies JWT authorization requests
// (the request / request_uri parameters) and merges their claims into
// the outer parameter set.
type RequestObjectValidator struct {
	cfg  config.RequestObject
	http *http.Client
	clk  clock.Clock
}

func NewRequestObjectValidator(cfg config.RequestObject, httpClient *http.Client, clk clock.Clock) *RequestObjectValidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	return &RequestObjectValidator{cfg: cfg, http: httpClient, clk: clk}
}

// Load resolves the raw request object from the request parameters.
// It returns the JWT (empty when neither parameter is present) and a
// non-empty problem description on protocol failure.
func (v *RequestObjectValidator) Load(ctx context.Context, raw url.Values) (string, string) {
	inline := raw.Get("request")
	byRef := raw.Get("request_uri")

	if inline == "" && byRef == "" {
		return "", ""
	}
	if !v.cfg.Enabled {
		return "", "request objects are not supported"
	}
	if inline != "" && byRef != "" {
		return "", "request and request_uri are mutually exclusive"
	}

	if inline != "" {
		if int64(len(inline)) > v.cfg.MaxSizeBytes {
			return "", "request object too large"
		}
		return inline, ""
	}

	if !v.cfg.RequestURIEnabled {
		return "", "request_uri is not supported"
	}
	jwt, err := v.fetch(ctx, byRef)
	if err != nil {
		logger.From(ctx).Debug("request_uri fetch failed", logger.Err(err))
		return "", "could not fetch request_uri"
	}
	return jwt, ""
}

func (v *RequestObjectValidator) fetch(ctx context.Context, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request_uri returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, v.cfg.MaxSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > v.cfg.MaxSizeBytes {
		return "", fmt.Errorf("request object exceeds %d bytes", v.cfg.MaxSizeBytes)
	}
	return string(body), nil
}

// ValidateAndMerge verifies the request object signature against the
// client's registered keys, cross-checks the binding claims and merges
// the remaining claims into the outer parameter set. A parameter present
// in both places must match byte for byte.
//
// It returns the merged parameter set, or a non-empty problem
// description on failure.
func (v *RequestObjectValidator) ValidateAndMerge(ctx context.Context, client *model.Client, raw url.Values, rawJWT string) (url.Values, string) {
	log := logger.From(ctx).With(logger.Component("validation.request_object"), logger.ClientID(client.ClientID))

	verificationKeys, err := keys.ClientPublicKeys(client)
	if err != nil || len(verificationKeys) == 0 {
		log.Debug("client has no usable request object keys", logger.Err(err))
		return nil, "client has no registered keys for signed requests"
	}

	claims, ok := v.verify(rawJWT, verificationKeys)
	if !ok {
		log.Debug("request object signature invalid")
		return nil, "invalid request object signature"
	}

	if cid, _ := claims["client_id"].(string); cid != "" && cid != client.ClientID {
		return nil, "client_id in request object does not match"
	}
	if rt, _ := claims["response_type"].(string); rt != "" {
		outer := raw.Get("response_type")
		if outer != "" && normalizeResponseType(outer) != normalizeResponseType(rt) {
			return nil, "response_type in request object does not match"
		}
	}

	merged := cloneValues(raw)
	for name, value := range claims {
		switch name {
		case "iss", "aud", "exp", "nbf", "iat", "jti", "request", "request_uri":
			continue
		}
		str, ok := claimToString(value)
		if !ok {
			continue
		}
		if outer := merged.Get(name); outer != "" && outer != str {
			log.Debug("request object parameter conflict", logger.String("parameter", name))
			return nil, "parameter mismatch between request object and query"
		}
		merged.Set(name, str)
	}
	return merged, ""
}

func (v *RequestObjectValidator) verify(rawJWT string, verificationKeys []any) (jwtv5.MapClaims, bool) {
	methods := jwtv5.WithValidMethods(requestObjectSigningMethods)
	for _, key := range verificationKeys {
		tok, err := jwtv5.Parse(rawJWT,
			func(t *jwtv5.Token) (any, error) { return key, nil },
			methods,
			jwtv5.WithTimeFunc(v.clk.Now),
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

func claimToString(value any) (string, bool) {
	switch t := value.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
