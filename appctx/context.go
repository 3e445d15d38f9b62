package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeyWorkbenchId   = ContextKey("WorkbenchId")
	ContextKeyActorId       = ContextKey("ActorId")
	ContextKeyActorName     = ContextKey("ActorName")
	ContextKeyCorrelationId = ContextKey("CorrelationId")

	// ContextKeyReferenceTime pins "today" for deadline and burn-rate derivation.
	ContextKeyReferenceTime = ContextKey("ReferenceTime")

	// ContextKeyIsAdmin is true for platform operators. Used for workbench-scope bypass.
	ContextKeyIsAdmin = ContextKey("IsAdmin")

	// ContextKeySkipWorkbenchScope forces workbench scoping off for the request.
	// Use sparingly (cli/outbox only).
	ContextKeySkipWorkbenchScope = ContextKey("SkipWorkbenchScope")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func GetBool(ctx context.Context, key ContextKey) (bool, bool) {
	v, ok := ctx.Value(key).(bool)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
