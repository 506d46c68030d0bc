package actor

import (
	"context"
)

// Actor identifies who is performing a mutation. It is set by the auth
// middleware and threaded through context into every service and the audit
// hooks. Outside a request (schedulers, migrations) the zero Actor stands for
// the system.
type Actor struct {
	UserID     uint
	Username   string
	ScreenName string
	FullName   string
	Role       string
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.UserID != 0
}

// DisplayName returns the preferred label for the actor, falling back to
// "system" when no request actor is present.
func (a Actor) DisplayName() string {
	for _, v := range []string{a.ScreenName, a.Username} {
		if v != "" {
			return v
		}
	}
	return "system"
}

// IsSystem reports whether the actor stands in for background processing.
func (a Actor) IsSystem() bool {
	return a.UserID == 0
}
