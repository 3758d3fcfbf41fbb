package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
)

// toStatus converts a domain error to a gRPC status error. Errors that
// already carry a status pass through unchanged; anything without a
// domain classification becomes an opaque internal error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(interface{ GRPCStatus() *status.Status }); ok {
		return err
	}

	var domainErr *domainerror.Error
	if !errors.As(err, &domainErr) {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(codeForKind(domainErr.Kind()), domainErr.Message())
}

func codeForKind(kind domainerror.Kind) codes.Code {
	switch kind {
	case domainerror.KindValidation:
		return codes.InvalidArgument
	case domainerror.KindUnauthorized:
		return codes.Unauthenticated
	case domainerror.KindForbidden:
		return codes.PermissionDenied
	case domainerror.KindNotFound:
		return codes.NotFound
	case domainerror.KindConflict:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

// UnaryServerErrors maps domain errors returned by handlers to gRPC
// status errors and attaches the machine-readable code as trailer
// metadata.
func UnaryServerErrors() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		var domainErr *domainerror.Error
		if errors.As(err, &domainErr) {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorCodeHeader, string(domainErr.Code())))
		}
		return nil, toStatus(err)
	}
}

// StreamServerErrors is the stream counterpart of UnaryServerErrors.
func StreamServerErrors() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		if err == nil {
			return nil
		}
		var domainErr *domainerror.Error
		if errors.As(err, &domainErr) {
			ss.SetTrailer(metadata.Pairs(ErrorCodeHeader, string(domainErr.Code())))
		}
		return toStatus(err)
	}
}
