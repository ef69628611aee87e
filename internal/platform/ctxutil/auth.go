package ctxutil

import "context"

type authDataKey struct{}

// AuthData carries the authenticated caller's identity, extracted from the
// bearer token by middleware.AuthMiddleware. NodeID is empty for an admin
// token.
type AuthData struct {
	NodeID string
	Role   string
}

func WithAuthData(ctx context.Context, ad *AuthData) context.Context {
	return context.WithValue(ctx, authDataKey{}, ad)
}

func GetAuthData(ctx context.Context) *AuthData {
	val := ctx.Value(authDataKey{})
	if ad, ok := val.(*AuthData); ok {
		return ad
	}
	return nil
}
