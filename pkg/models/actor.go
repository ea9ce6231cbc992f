package models

import "context"

// ActorKind says what kind of identity performed an operation.
type ActorKind string

// Actor kind constants.
const (
	ActorSupervisor ActorKind = "supervisor"
	ActorEnumerator ActorKind = "enumerator"
	ActorSystem     ActorKind = "system"
	ActorAnonymous  ActorKind = "anonymous"
)

// Actor carries the acting identity through operations. It is resolved by
// middleware from an opaque credential (or defaults to anonymous for field
// submissions) and passed explicitly; the engine never infers identity from
// ambient session state.
type Actor struct {
	Kind  ActorKind
	ID    *int64
	Label string
}

// Anonymous is the actor used for unauthenticated field submissions.
func Anonymous() Actor {
	return Actor{Kind: ActorAnonymous, Label: "anonymous"}
}

// actorKey is the context key for storing the acting identity.
type actorKey struct{}

// WithActor returns a new context with the acting identity attached.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// GetActor retrieves the acting identity from the context.
// Returns the actor and true if present, otherwise a zero value and false.
func GetActor(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActorOrAnonymous retrieves the acting identity, defaulting to anonymous.
func ActorOrAnonymous(ctx context.Context) Actor {
	if a, ok := GetActor(ctx); ok {
		return a
	}
	return Anonymous()
}
