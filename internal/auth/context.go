package auth

import "context"

type principalContextKey struct{}

// ContextWithPrincipal returns a child context carrying the principal. The
// authentication middleware attaches it once per request; handlers read it
// back through PrincipalFromContext.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext reports the principal attached to ctx, if any. A
// missing principal means the request never passed authentication.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
