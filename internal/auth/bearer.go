package auth

import "strings"

const bearerPrefix = "Bearer "

// ExtractBearerToken pulls the token out of an Authorization header value.
// The scheme is the case-sensitive literal "Bearer" followed by a single
// space; anything else (Basic, basic, extra whitespace, empty token) yields
// false so the caller falls through to anonymous handling.
func ExtractBearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
