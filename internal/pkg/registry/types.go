package registry

import (
	"context"
	"io"
)

// Registry 服务实例注册中心
type Registry interface {
	Register(ctx context.Context, si ServiceInstance) error
	Unregister(ctx context.Context, si ServiceInstance) error
	ListService(ctx context.Context, serviceName string) ([]ServiceInstance, error)

	io.Closer
}

// ServiceInstance 服务实例，GrpcAddr 作为实例唯一标识。
type ServiceInstance struct {
	Name      string `json:"name"`
	GrpcAddr  string `json:"grpc_addr"`
	HttpAddr  string `json:"http_addr"`
	Group     string `json:"group"`
	StartedAt int64  `json:"started_at"`
}
