package kernel

import "strings"

// AuthContext is what the auth middleware stores for a verified bearer token.
type AuthContext struct {
	UserID   UserID   `json:"user_id"`
	TenantID TenantID `json:"tenant_id"`

	// Realm is the IdP realm that issued the token
	Realm    string   `json:"realm"`
	Issuer   string   `json:"issuer"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Scopes   []string `json:"scopes"`

	// Token is the raw bearer token
	Token string `json:"-"`
}

// IsValid reports whether the context identifies a subject.
func (ac *AuthContext) IsValid() bool {
	return ac != nil && !ac.UserID.IsEmpty()
}

// HasScope checks exact scopes, the "*" wildcard and "prefix:*" wildcards.
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope || s == "*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(s, ":*"); ok && strings.HasPrefix(scope, prefix+":") {
			return true
		}
	}
	return false
}

func (ac *AuthContext) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if ac.HasScope(scope) {
			return true
		}
	}
	return false
}

type ContextKey string

const (
	AuthContextKey   ContextKey = "auth_context"
	TenantContextKey ContextKey = "tenant_id"
	UserContextKey   ContextKey = "user_id"
	RequestIDKey     ContextKey = "request_id"
)
