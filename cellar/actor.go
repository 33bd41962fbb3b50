// actor.go - Caller identity carried in context.
//
// The ledger assumes every call is pre-authorized; it never authenticates.
// The identity token still travels explicitly in the context (never a
// process-wide variable) so bookings can be stamped with who recorded them.
package cellar

import "context"

type actorKey struct{}

// WithActor returns a context carrying the caller's identity token.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the identity token from the context, or "" when the
// caller did not attach one.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
