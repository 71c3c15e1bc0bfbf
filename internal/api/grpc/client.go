package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// SignageServiceClient SignageService 客户端，调用时固定使用 json 编码
type SignageServiceClient struct {
	cc grpc.ClientConnInterface
}

func (c *SignageServiceClient) GetConfig(ctx context.Context, req *GetConfigRequest, opts ...grpc.CallOption) (*ConfigResponse, error) {
	resp := new(ConfigResponse)
	if err := c.cc.Invoke(ctx, GetConfigMethod, req, resp, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SignageServiceClient) SetConfig(ctx context.Context, req *SetConfigRequest, opts ...grpc.CallOption) (*ConfigResponse, error) {
	resp := new(ConfigResponse)
	if err := c.cc.Invoke(ctx, SetConfigMethod, req, resp, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SignageServiceClient) Submit(ctx context.Context, req *SubmitRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	resp := new(ReceiptResponse)
	if err := c.cc.Invoke(ctx, SubmitMethod, req, resp, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SignageServiceClient) Lookup(ctx context.Context, req *LookupRequest, opts ...grpc.CallOption) (*ReceiptResponse, error) {
	resp := new(ReceiptResponse)
	if err := c.cc.Invoke(ctx, LookupMethod, req, resp, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SignageServiceClient) Reconcile(ctx context.Context, req *ReconcileRequest, opts ...grpc.CallOption) (*ReconcileResponse, error) {
	resp := new(ReconcileResponse)
	if err := c.cc.Invoke(ctx, ReconcileMethod, req, resp, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *SignageServiceClient) SubscribeConfig(ctx context.Context, req *SubscribeConfigRequest, opts ...grpc.CallOption) (*ConfigClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], SubscribeConfigMethod, c.callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	if err = stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err = stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ConfigClientStream{ClientStream: stream}, nil
}

func (c *SignageServiceClient) callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func NewSignageServiceClient(cc grpc.ClientConnInterface) *SignageServiceClient {
	return &SignageServiceClient{cc: cc}
}

type ConfigClientStream struct {
	grpc.ClientStream
}

func (s *ConfigClientStream) Recv() (*ConfigResponse, error) {
	resp := new(ConfigResponse)
	if err := s.ClientStream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
