package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxClientID ctxKey = iota
	ctxScope
)

func WithIdentity(ctx context.Context, clientID, scope string) context.Context {
	ctx = context.WithValue(ctx, ctxClientID, clientID)
	ctx = context.WithValue(ctx, ctxScope, scope)
	return ctx
}

func ClientID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxClientID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("client_id not in context")
}

func Scope(ctx context.Context) (string, error) {
	v := ctx.Value(ctxScope)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("scope not in context")
}
