package order

import (
	"github.com/JrMarcco/jsignage/internal/domain"
)

const (
	ReasonMissingQueueNumber = "missing_queue_number"
	ReasonMissingChannel     = "missing_channel"
	ReasonMissingDuration    = "missing_duration"
	ReasonMissingPrice       = "missing_price"
	ReasonInvalidChannel     = "invalid_channel"
	ReasonInvalidDuration    = "invalid_duration"
	ReasonMissingEndTime     = "missing_display_end_time"
)

// Reconciliation 客户端缓存回执的校验结果
type Reconciliation struct {
	StillValid bool                  `json:"still_valid"`
	Window     *domain.DisplayWindow `json:"window,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// Reconcile 校验客户端缓存的回执并重新推导展示窗口。
//
// 缺少排队号、渠道、时长或价格时整条缓存作废。
// 开始时间始终由结束时间减去时长得到，客户端缓存的开始时间被忽略。
// 没有结束时间的缓存仍然有效，只是无法给出窗口。
// 纯函数，不访问存储与网络。
func Reconcile(cached domain.CachedOrder) Reconciliation {
	switch {
	case cached.QueueNumber == nil:
		return invalid(ReasonMissingQueueNumber)
	case cached.Channel == nil || *cached.Channel == "":
		return invalid(ReasonMissingChannel)
	case cached.DurationMinutes == nil:
		return invalid(ReasonMissingDuration)
	case cached.Price == nil:
		return invalid(ReasonMissingPrice)
	}

	if !domain.Channel(*cached.Channel).Validate() {
		return invalid(ReasonInvalidChannel)
	}
	if *cached.DurationMinutes <= 0 {
		return invalid(ReasonInvalidDuration)
	}

	if cached.DisplayEndTime == nil || cached.DisplayEndTime.IsZero() {
		return Reconciliation{StillValid: true, Reason: ReasonMissingEndTime}
	}

	window := domain.OrderRecord{
		DisplayEndTime:  *cached.DisplayEndTime,
		DurationMinutes: *cached.DurationMinutes,
	}.Window()
	return Reconciliation{
		StillValid: true,
		Window:     &window,
	}
}

func invalid(reason string) Reconciliation {
	return Reconciliation{StillValid: false, Reason: reason}
}
