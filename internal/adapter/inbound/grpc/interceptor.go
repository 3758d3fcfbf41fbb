package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

// UnaryServerRecovery converts handler panics into internal errors.
func UnaryServerRecovery(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered in handler",
					zap.Any("panic", r),
					zap.String("method", info.FullMethod),
					zap.Stack("stack"),
				)
				resp = nil
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// StreamServerRecovery is the stream counterpart of UnaryServerRecovery.
func StreamServerRecovery(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered in handler",
					zap.Any("panic", r),
					zap.String("method", info.FullMethod),
					zap.Stack("stack"),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

// UnaryServerRequestID propagates the caller's request id, minting one
// when the request carries none, and echoes it as a response header.
func UnaryServerRequestID() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incomingRequestID(ctx)
		ctx = WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))
		return handler(ctx, req)
	}
}

// StreamServerRequestID is the stream counterpart of UnaryServerRequestID.
func StreamServerRequestID() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		requestID := incomingRequestID(ctx)
		_ = ss.SetHeader(metadata.Pairs(requestIDHeader, requestID))
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: WithRequestID(ctx, requestID)})
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(requestIDHeader); len(values) > 0 && values[0] != "" {
			return values[0]
		}
	}
	return uuid.NewString()
}

// UnaryServerLogging logs each request with its method, duration, and
// resulting status code.
func UnaryServerLogging(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logRequest(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerLogging is the stream counterpart of UnaryServerLogging.
func StreamServerLogging(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logRequest(ss.Context(), logger, info.FullMethod, start, err)
		return err
	}
}

func logRequest(ctx context.Context, logger *zap.Logger, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
		zap.String("code", status.Code(err).String()),
	}
	if requestID, ctxErr := RequestIDFromContext(ctx); ctxErr == nil {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		logger.Warn("request failed", fields...)
		return
	}
	logger.Info("request completed", fields...)
}

// BuildUnaryInterceptors builds the complete unary interceptor chain.
// Recovery runs outermost, then request id, logging, error mapping, and
// the guard just ahead of the handler.
func BuildUnaryInterceptors(logger *zap.Logger, guard *Guard) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		UnaryServerRecovery(logger),
		UnaryServerRequestID(),
		UnaryServerLogging(logger),
		UnaryServerErrors(),
		guard.Unary(),
	}
}

// BuildStreamInterceptors builds the complete stream interceptor chain.
func BuildStreamInterceptors(logger *zap.Logger, guard *Guard) []grpc.StreamServerInterceptor {
	return []grpc.StreamServerInterceptor{
		StreamServerRecovery(logger),
		StreamServerRequestID(),
		StreamServerLogging(logger),
		StreamServerErrors(),
		guard.Stream(),
	}
}
