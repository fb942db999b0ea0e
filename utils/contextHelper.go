package utils

import (
	"context"

	"github.com/mmdatafocus/fiscal_review/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyReviewerId    = appctx.ContextKeyReviewerId
	ContextKeyReviewerName  = appctx.ContextKeyReviewerName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

// reviewer identity is set by the session/auth middlewares only;
// workflow code receives it as an explicit argument
func GetReviewerIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyReviewerId)
}

func GetReviewerNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyReviewerName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetReviewerIdInContext(ctx context.Context, reviewerId string) context.Context {
	return appctx.Set(ctx, ContextKeyReviewerId, reviewerId)
}

func SetReviewerNameInContext(ctx context.Context, reviewerName string) context.Context {
	return appctx.Set(ctx, ContextKeyReviewerName, reviewerName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
