package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxSubject ctxKey = iota
	ctxAccountID
	ctxRole
)

func WithIdentity(ctx context.Context, subject, accountID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxSubject, subject)
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

// WithAccount replaces the account scope, used once an admin picks one.
func WithAccount(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxAccountID, accountID)
}

func Subject(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxSubject).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("subject not in context")
}

func AccountID(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxAccountID).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("account_id not in context")
}

func Role(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxRole).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
