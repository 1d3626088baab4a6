package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Subject extracts the "sub" claim from an access token without verifying the
// signature. The client treats tokens as opaque for every other purpose, but
// the subject is the authoritative key for cached user identity, so it is
// read from the token rather than trusted from response payloads.
func Subject(accessToken string) (string, error) {
	claims, err := Claims(accessToken)
	if err != nil {
		return "", errors.Wrap(err, "[Subject] Claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("[Subject] token has no subject")
	}
	return sub, nil
}

// Claims parses the claims of a JWT access token without signature
// verification. Verification is the backend's job; the client only needs to
// read identity hints out of its own token.
func Claims(accessToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, errors.Wrap(err, "[Claims] ParseUnverified")
	}
	return claims, nil
}
