package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord 排队记录，由 QueueScheduler 创建。
//
// 开始时间不单独保存，始终由结束时间与时长推导。
type OrderRecord struct {
	QueueNumber     uint64
	RequestId       string
	SubmitterId     string
	Channel         Channel
	DisplayEndTime  time.Time
	DurationMinutes int
	Price           decimal.Decimal
	FeeWaived       bool
	CreatedAt       int64
}

func (o OrderRecord) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

func (o OrderRecord) DisplayStartTime() time.Time {
	return o.DisplayEndTime.Add(-o.Duration())
}

func (o OrderRecord) Window() DisplayWindow {
	return DisplayWindow{
		Start: o.DisplayStartTime(),
		End:   o.DisplayEndTime,
	}
}

// Receipt 返回给投稿人的回执
func (o OrderRecord) Receipt() Receipt {
	return Receipt{
		QueueNumber:      o.QueueNumber,
		Channel:          o.Channel,
		DisplayStartTime: o.DisplayStartTime(),
		DisplayEndTime:   o.DisplayEndTime,
		DurationMinutes:  o.DurationMinutes,
		Price:            o.Price,
		FeeWaived:        o.FeeWaived,
	}
}

// DisplayWindow 展示时间窗口 [Start, End)
type DisplayWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w DisplayWindow) Overlaps(other DisplayWindow) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Receipt 排队回执
type Receipt struct {
	QueueNumber      uint64          `json:"queue_number"`
	Channel          Channel         `json:"channel"`
	DisplayStartTime time.Time       `json:"display_start_time"`
	DisplayEndTime   time.Time       `json:"display_end_time"`
	DurationMinutes  int             `json:"duration_minutes"`
	Price            decimal.Decimal `json:"price"`
	FeeWaived        bool            `json:"fee_waived"`
}

// CachedOrder 客户端缓存的回执。
//
// 字段均为可选，用于判断缓存是否缺失必要字段。
type CachedOrder struct {
	QueueNumber      *uint64          `json:"queue_number,omitempty"`
	Channel          *string          `json:"channel,omitempty"`
	DurationMinutes  *int             `json:"duration_minutes,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	FeeWaived        *bool            `json:"fee_waived,omitempty"`
	DisplayStartTime *time.Time       `json:"display_start_time,omitempty"`
	DisplayEndTime   *time.Time       `json:"display_end_time,omitempty"`
}
