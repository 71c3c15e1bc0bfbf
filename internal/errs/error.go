package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParam       = errors.New("[jsignage] invalid param")
	ErrInvalidChannel     = fmt.Errorf("%w: invalid channel", ErrInvalidParam)
	ErrInvalidDuration    = fmt.Errorf("%w: invalid duration", ErrInvalidParam)
	ErrInvalidBirthDate   = fmt.Errorf("%w: invalid birth date", ErrInvalidParam)
	ErrInvalidSessionId   = fmt.Errorf("%w: invalid session id", ErrInvalidParam)
	ErrMissingSubmitterId = fmt.Errorf("%w: missing submitter id", ErrInvalidParam)

	// ErrChannelClosed 渠道关闭，系统关闭同样属于渠道关闭
	ErrChannelClosed = errors.New("[jsignage] channel closed")
	ErrSystemClosed  = fmt.Errorf("%w: system closed", ErrChannelClosed)

	ErrVersionConflict       = errors.New("[jsignage] config version conflict")
	ErrChannelConfigNotFound = errors.New("[jsignage] channel config not found")
	ErrOrderNotFound         = errors.New("[jsignage] order not found")
	ErrDuplicateRequest      = errors.New("[jsignage] duplicate request")
	ErrNoRate                = errors.New("[jsignage] no rate for channel")

	ErrSubscriberLimit    = errors.New("[jsignage] subscriber limit exceeded")
	ErrSubscriptionClosed = errors.New("[jsignage] subscription closed")
	ErrSubscriberStalled  = fmt.Errorf("%w: subscriber stalled", ErrSubscriptionClosed)
	ErrHeartbeatTimeout   = fmt.Errorf("%w: heartbeat timeout", ErrSubscriptionClosed)
	ErrSessionReplaced    = fmt.Errorf("%w: session replaced", ErrSubscriptionClosed)
	ErrBroadcasterClosed  = fmt.Errorf("%w: broadcaster closed", ErrSubscriptionClosed)

	ErrUnauthenticated   = errors.New("[jsignage] unauthenticated")
	ErrPermissionDenied  = errors.New("[jsignage] permission denied")
	ErrSubmitterNotFound = errors.New("[jsignage] submitter not found")
	ErrRateLimited       = errors.New("[jsignage] too many requests")

	ErrInvalidBufferSize = errors.New("[jsignage] buffer size must be greater than zero")
)
