package principal

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// GrantedScopes works out which scopes the authorization server granted.
// Preference order: the token response scope field, the scope/scp claim of
// a JWT access token, then the requested scopes.
//
// The access token is read without signature verification; it was received
// directly from the token endpoint and is never used to authenticate anyone.
func GrantedScopes(responseScope, accessToken string, requested []string) []string {
	if scopes := strings.Fields(responseScope); len(scopes) > 0 {
		return scopes
	}
	if scopes := accessTokenScopes(accessToken); len(scopes) > 0 {
		return scopes
	}
	return append([]string(nil), requested...)
}

func accessTokenScopes(accessToken string) []string {
	if strings.Count(accessToken, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	if scopes := stringsClaim(claims, "scope"); len(scopes) > 0 {
		return scopes
	}
	return stringsClaim(claims, "scp")
}
