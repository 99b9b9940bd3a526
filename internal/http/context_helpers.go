package httpx

import (
	"context"

	domainauth "github.com/milestono/api/internal/domain/auth"
)

type principalKey struct{}

// WithPrincipal attaches the authenticated session. A nil session leaves ctx untouched.
func WithPrincipal(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, session)
}

// PrincipalFromContext returns the session attached by RequireAuth or OptionalAuth.
func PrincipalFromContext(ctx context.Context) (*domainauth.Session, bool) {
	session, ok := ctx.Value(principalKey{}).(*domainauth.Session)
	return session, ok && session != nil
}
