package service

import (
	"context"

	"github.com/iliyamo/krisefikser/internal/model"
)

type identityKey struct{}

// WithIdentity binds the authenticated caller to ctx.  The binding lives as
// long as the request context does.
func WithIdentity(ctx context.Context, p model.UserProfile) context.Context {
	return context.WithValue(ctx, identityKey{}, p)
}

// IdentityFrom returns the caller bound by WithIdentity.
func IdentityFrom(ctx context.Context) (model.UserProfile, bool) {
	p, ok := ctx.Value(identityKey{}).(model.UserProfile)
	return p, ok
}
