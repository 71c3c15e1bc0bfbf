package handler

import (
	"github.com/JrMarcco/jsignage/internal/domain"
)

type SubmitOrderRequest struct {
	Channel         string `json:"channel"`
	DurationMinutes int    `json:"duration_minutes"`
}

// UpdateConfigRequest 整体替换渠道配置，ExpectedVersion 不为空时做版本比较
type UpdateConfigRequest struct {
	domain.ChannelConfig

	ExpectedVersion *uint64 `json:"expected_version,omitempty"`
}

type CheckBirthdayResponse struct {
	IsBirthday bool `json:"is_birthday"`
}

type HistoryResponse struct {
	Snapshots []domain.ConfigSnapshot `json:"snapshots"`
}
