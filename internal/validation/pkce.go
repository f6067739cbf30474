package validation

import (
	"github.com/dropDatabas3/gatejohn/internal/model"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
)

// verifyCodeVerifier transforms the presented verifier with the stored
// challenge method and compares it to the stored challenge.
func verifyCodeVerifier(code *model.AuthorizationCode, verifier string) bool {
	switch code.CodeChallengeMethod {
	case model.CodeChallengePlain:
		return tokens.ConstantTimeEquals(code.CodeChallenge, verifier)
	case model.CodeChallengeS256:
		return tokens.ConstantTimeEquals(code.CodeChallenge, tokens.SHA256Base64URL(verifier))
	default:
		return false
	}
}

// validCodeVerifierFormat checks the RFC 7636 length bounds.
func validCodeVerifierFormat(verifier string, min, max int) bool {
	return len(verifier) >= min && len(verifier) <= max
}
