package grpc

import (
	"context"
	"errors"

	"github.com/JrMarcco/jsignage/internal/errs"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus 把业务错误转换为 grpc 状态码
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, errs.ErrInvalidParam):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrChannelClosed), errors.Is(err, errs.ErrNoRate):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrVersionConflict):
		code = codes.Aborted
	case errors.Is(err, errs.ErrOrderNotFound), errors.Is(err, errs.ErrChannelConfigNotFound):
		code = codes.NotFound
	case errors.Is(err, errs.ErrDuplicateRequest):
		code = codes.AlreadyExists
	case errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrSubmitterNotFound):
		code = codes.Unauthenticated
	case errors.Is(err, errs.ErrPermissionDenied):
		code = codes.PermissionDenied
	case errors.Is(err, errs.ErrSubscriberLimit), errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, errs.ErrSubscriptionClosed):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
