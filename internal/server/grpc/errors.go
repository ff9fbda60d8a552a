package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// statusMapping is checked in order; the first sentinel err matches decides
// the code, and the sentinel's text becomes the message.
var statusMapping = []struct {
	err  error
	code codes.Code
}{
	{common.ErrInvalidInput, codes.InvalidArgument},
	{common.ErrUserExists, codes.AlreadyExists},
	{common.ErrAccountDisabled, codes.PermissionDenied},
	{common.ErrForbidden, codes.PermissionDenied},
	{common.ErrUnauthenticated, codes.Unauthenticated},
	{common.ErrWrongKind, codes.InvalidArgument},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrTokenRevoked, codes.Unauthenticated},
	{common.ErrRefreshTokenExpired, codes.Unauthenticated},
	{common.ErrUnknownToken, codes.Unauthenticated},
	{common.ErrAccountUnavailable, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	for _, m := range statusMapping {
		if errors.Is(err, m.err) {
			return status.Error(m.code, m.err.Error())
		}
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
