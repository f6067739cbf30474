package logger

import (
	"time"

	"go.uber.org/zap"
)

// Standard fields - HTTP.

// RequestID creates a field for the request id.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method creates a field for the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path creates a field for the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status creates a field for the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration creates a field for the request duration.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Standard fields - protocol.

// ClientID creates a field for the OAuth client id.
func ClientID(v string) zap.Field {
	return zap.String("client_id", v)
}

// SubjectID creates a field for the authenticated subject.
func SubjectID(v string) zap.Field {
	return zap.String("subject_id", v)
}

// GrantType creates a field for the grant type of a token request.
func GrantType(v string) zap.Field {
	return zap.String("grant_type", v)
}

// Scope creates a field for a space-delimited scope string.
func Scope(v string) zap.Field {
	return zap.String("scope", v)
}

// Scopes creates a field for a scope list.
func Scopes(v []string) zap.Field {
	return zap.Strings("scopes", v)
}

// ResponseType creates a field for the authorize response_type.
func ResponseType(v string) zap.Field {
	return zap.String("response_type", v)
}

// TokenType creates a field for a token type (access_token, refresh_token...).
func TokenType(v string) zap.Field {
	return zap.String("token_type", v)
}

// ProtocolError creates a field for an OAuth2/OIDC error code.
func ProtocolError(v string) zap.Field {
	return zap.String("protocol_error", v)
}

// Standard fields - system.

// Component creates a field for the component/module.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op creates a field for the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer creates a field for the layer (endpoint, validator, store).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err creates a field for an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Generic fields.

// Count creates a field for a count.
func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// String creates a generic string field.
func String(key, v string) zap.Field {
	return zap.String(key, v)
}

// Int creates a generic int field.
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}

// Bool creates a generic bool field.
func Bool(key string, v bool) zap.Field {
	return zap.Bool(key, v)
}

// Any creates a generic field for any value.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}
