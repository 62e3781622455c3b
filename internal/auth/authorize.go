package auth

import "strings"

const bearerPrefix = "bearer "

// Guard applies the two-stage check to protected operations: authentication
// of the bearer token, then authorization of the decoded role.
type Guard struct {
	tokens *TokenManager
}

// NewGuard returns a Guard verifying tokens with tm.
func NewGuard(tm *TokenManager) *Guard {
	return &Guard{tokens: tm}
}

// Authenticate extracts the bearer token from an Authorization header value
// and decodes the identity it carries.
func (g *Guard) Authenticate(header string) (Identity, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Identity{}, err
	}
	return g.tokens.Parse(token)
}

// Authorize reports ErrForbiddenRole when the identity's role is not in allowed.
func (g *Guard) Authorize(id Identity, allowed RoleSet) error {
	if !allowed.Contains(id.Role) {
		return ErrForbiddenRole
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, strings.TrimSpace(bearerPrefix)) {
		return "", ErrMissingToken
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" || token == "null" || token == "undefined" {
		return "", ErrMissingToken
	}
	return token, nil
}
