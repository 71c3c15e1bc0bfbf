package httperr

import (
	"context"
	"errors"
	"net/http"

	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/gin-gonic/gin"
)

// 错误原因码，客户端据此展示提示
const (
	ReasonInvalidParam     = "invalid_param"
	ReasonInvalidChannel   = "invalid_channel"
	ReasonInvalidDuration  = "invalid_duration"
	ReasonSystemClosed     = "system_closed"
	ReasonChannelClosed    = "channel_closed"
	ReasonNoRate           = "no_rate"
	ReasonVersionConflict  = "version_conflict"
	ReasonDuplicateRequest = "duplicate_request"
	ReasonNotFound         = "not_found"
	ReasonUnauthenticated  = "unauthenticated"
	ReasonPermissionDenied = "permission_denied"
	ReasonSubscriberLimit  = "subscriber_limit"
	ReasonRateLimited      = "rate_limited"
	ReasonTimeout          = "timeout"
	ReasonInternal         = "internal"
)

type Response struct {
	Status int `json:"-"`
	Error  struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
	Detail any `json:"detail,omitempty"`
}

// FromError 把业务错误转换为 http 响应
func FromError(err error) Response {
	status, reason := classify(err)

	resp := Response{Status: status}
	resp.Error.Reason = reason
	if status == http.StatusInternalServerError {
		resp.Error.Message = "internal server error"
		return resp
	}
	resp.Error.Message = err.Error()
	return resp
}

func classify(err error) (int, string) {
	switch {
	// 系统关闭需要在渠道关闭之前判断
	case errors.Is(err, errs.ErrSystemClosed):
		return http.StatusConflict, ReasonSystemClosed
	case errors.Is(err, errs.ErrChannelClosed):
		return http.StatusConflict, ReasonChannelClosed
	case errors.Is(err, errs.ErrInvalidDuration):
		return http.StatusBadRequest, ReasonInvalidDuration
	case errors.Is(err, errs.ErrInvalidChannel):
		return http.StatusBadRequest, ReasonInvalidChannel
	case errors.Is(err, errs.ErrInvalidParam):
		return http.StatusBadRequest, ReasonInvalidParam
	case errors.Is(err, errs.ErrNoRate):
		return http.StatusConflict, ReasonNoRate
	case errors.Is(err, errs.ErrVersionConflict):
		return http.StatusConflict, ReasonVersionConflict
	case errors.Is(err, errs.ErrDuplicateRequest):
		return http.StatusConflict, ReasonDuplicateRequest
	case errors.Is(err, errs.ErrOrderNotFound), errors.Is(err, errs.ErrChannelConfigNotFound):
		return http.StatusNotFound, ReasonNotFound
	case errors.Is(err, errs.ErrUnauthenticated), errors.Is(err, errs.ErrSubmitterNotFound):
		return http.StatusUnauthorized, ReasonUnauthenticated
	case errors.Is(err, errs.ErrPermissionDenied):
		return http.StatusForbidden, ReasonPermissionDenied
	case errors.Is(err, errs.ErrSubscriberLimit):
		return http.StatusServiceUnavailable, ReasonSubscriberLimit
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, ReasonRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ReasonTimeout
	default:
		return http.StatusInternalServerError, ReasonInternal
	}
}

// AbortWithError 中断请求并写出错误响应，原始错误保留在 c.Errors 中供日志使用
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		panic("AbortWithError: err cannot be nil")
	}

	resp := FromError(err)
	_ = c.Error(&gin.Error{
		Err:  err,
		Type: gin.ErrorTypePublic,
		Meta: resp,
	})
	c.AbortWithStatusJSON(resp.Status, resp)
}
