package secrets

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// unverifiedIssuer extracts the iss claim without verifying the
// signature. Only used to pick the client id out of an assertion before
// the real validation runs.
func unverifiedIssuer(assertion string) (string, bool) {
	token, _, err := jwtv5.NewParser().ParseUnverified(assertion, jwtv5.MapClaims{})
	if err != nil {
		return "", false
	}
	claims, ok := token.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", false
	}
	iss, _ := claims["iss"].(string)
	return iss, iss != ""
}
