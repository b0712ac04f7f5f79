package grpc

import (
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// unauthenticated errors keep their sentinel text as the status message so
// clients can tell an expired token from a reused one.
var unauthenticated = []error{
	common.ErrReuseDetected,
	common.ErrTokenExpired,
	common.ErrTokenRevoked,
	common.ErrTokenInvalid,
	common.ErrInvalidCredentials,
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, target := range unauthenticated {
		if errors.Is(err, target) {
			return status.Error(codes.Unauthenticated, target.Error())
		}
	}
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrUsernameTaken):
		return status.Error(codes.AlreadyExists, common.ErrUsernameTaken.Error())
	case errors.Is(err, common.ErrTokenNotFound):
		return status.Error(codes.NotFound, common.ErrTokenNotFound.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, common.ErrForbidden.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
