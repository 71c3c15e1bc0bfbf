package grpc

import (
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/service/order"
)

type GetConfigRequest struct{}

type ConfigResponse struct {
	Snapshot domain.ConfigSnapshot `json:"snapshot"`
}

type SetConfigRequest struct {
	Config          domain.ChannelConfig `json:"config"`
	ExpectedVersion *uint64              `json:"expected_version,omitempty"`
}

type SubmitRequest struct {
	RequestId       string `json:"request_id"`
	Channel         string `json:"channel"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ReceiptResponse struct {
	Receipt domain.Receipt `json:"receipt"`
}

type LookupRequest struct {
	QueueNumber uint64 `json:"queue_number"`
}

type ReconcileRequest struct {
	Order domain.CachedOrder `json:"order"`
}

type ReconcileResponse struct {
	Result order.Reconciliation `json:"result"`
}

type SubscribeConfigRequest struct {
	SessionId string `json:"session_id"`
}
