package grpc

import (
	"context"
	"errors"
)

type contextKey string

const (
	subjectKey   contextKey = "auth_subject"
	tokenIDKey   contextKey = "auth_token_id"
	requestIDKey contextKey = "request_id"
)

var (
	ErrNoSubjectInContext   = errors.New("no subject in context")
	ErrNoTokenIDInContext   = errors.New("no token id in context")
	ErrNoRequestIDInContext = errors.New("no request id in context")
)

// WithSubject adds the bearer token's subject to the context. The value
// comes from a structural parse only and must not be trusted for
// authorization decisions.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext extracts the unverified subject from context.
func SubjectFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(subjectKey).(string)
	if !ok || subject == "" {
		return "", ErrNoSubjectInContext
	}
	return subject, nil
}

// WithTokenID adds the access token id to the context.
func WithTokenID(ctx context.Context, tokenID string) context.Context {
	return context.WithValue(ctx, tokenIDKey, tokenID)
}

// TokenIDFromContext extracts the access token id from context.
func TokenIDFromContext(ctx context.Context) (string, error) {
	tokenID, ok := ctx.Value(tokenIDKey).(string)
	if !ok || tokenID == "" {
		return "", ErrNoTokenIDInContext
	}
	return tokenID, nil
}

// WithRequestID adds the request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}
