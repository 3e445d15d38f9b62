package utils

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_engine/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyWorkbenchId   = appctx.ContextKeyWorkbenchId
	ContextKeyActorId       = appctx.ContextKeyActorId
	ContextKeyActorName     = appctx.ContextKeyActorName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyReferenceTime = appctx.ContextKeyReferenceTime

	ContextKeyIsAdmin            = appctx.ContextKeyIsAdmin
	ContextKeySkipWorkbenchScope = appctx.ContextKeySkipWorkbenchScope
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetWorkbenchIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyWorkbenchId)
}

func GetActorIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorId)
}

func GetActorNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyActorName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

// GetReferenceTimeFromContext returns the pinned "now", or the wall clock.
func GetReferenceTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ContextKeyReferenceTime).(time.Time); ok && !v.IsZero() {
		return v
	}
	return time.Now()
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetWorkbenchIdInContext(ctx context.Context, workbenchId string) context.Context {
	return appctx.Set(ctx, ContextKeyWorkbenchId, workbenchId)
}

func SetActorIdInContext(ctx context.Context, actorId string) context.Context {
	return appctx.Set(ctx, ContextKeyActorId, actorId)
}

func SetActorNameInContext(ctx context.Context, actorName string) context.Context {
	return appctx.Set(ctx, ContextKeyActorName, actorName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetReferenceTimeInContext(ctx context.Context, t time.Time) context.Context {
	return appctx.Set(ctx, ContextKeyReferenceTime, t)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func SetSkipWorkbenchScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipWorkbenchScope, skip)
}

// Actor returns the identity stamped on audit rows. Both id and name are required for writes.
func Actor(ctx context.Context) (id string, name string, err error) {
	id, _ = GetActorIdFromContext(ctx)
	name, _ = GetActorNameFromContext(ctx)
	if id == "" {
		return "", "", &ValidationError{Field: "actor", Message: "actor is required"}
	}
	if name == "" {
		name = id
	}
	return id, name, nil
}
