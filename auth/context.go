// Package auth carries verified session claims through request contexts.
package auth

import (
	"context"
	"strings"
	"time"
)

type ctxKey int

const claimsKey ctxKey = iota

// Claims contains the verified session token details we care about.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	Scope     string
	Raw       map[string]any
}

// Email returns the email claim, if present.
func (c *Claims) Email() string {
	return readStringClaim(c.Raw, "email")
}

// Name returns the display name from the token, checking user_metadata when
// the top-level claim is absent.
func (c *Claims) Name() string {
	if n := readStringClaim(c.Raw, "name"); n != "" {
		return n
	}
	if md, ok := c.Raw["user_metadata"].(map[string]any); ok {
		if n := readStringClaim(md, "full_name"); n != "" {
			return n
		}
		return readStringClaim(md, "name")
	}
	return ""
}

// WithClaims stores auth claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims from a context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// UserID returns the session subject, or "" when the request is anonymous.
func UserID(ctx context.Context) string {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	val, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
