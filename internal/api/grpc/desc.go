package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "jsignage.v1.SignageService"

	GetConfigMethod       = "/" + ServiceName + "/GetConfig"
	SetConfigMethod       = "/" + ServiceName + "/SetConfig"
	SubmitMethod          = "/" + ServiceName + "/Submit"
	LookupMethod          = "/" + ServiceName + "/Lookup"
	ReconcileMethod       = "/" + ServiceName + "/Reconcile"
	SubscribeConfigMethod = "/" + ServiceName + "/SubscribeConfig"
)

// PublicMethods 不需要访问令牌的方法
var PublicMethods = []string{
	GetConfigMethod,
	ReconcileMethod,
	SubscribeConfigMethod,
}

type SignageServiceServer interface {
	GetConfig(ctx context.Context, req *GetConfigRequest) (*ConfigResponse, error)
	SetConfig(ctx context.Context, req *SetConfigRequest) (*ConfigResponse, error)
	Submit(ctx context.Context, req *SubmitRequest) (*ReceiptResponse, error)
	Lookup(ctx context.Context, req *LookupRequest) (*ReceiptResponse, error)
	Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error)
	SubscribeConfig(req *SubscribeConfigRequest, stream ConfigStream) error
}

// ConfigStream 服务端推送配置快照的流
type ConfigStream interface {
	Send(resp *ConfigResponse) error
	grpc.ServerStream
}

type configStream struct {
	grpc.ServerStream
}

func (s *configStream) Send(resp *ConfigResponse) error {
	return s.ServerStream.SendMsg(resp)
}

func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(srv SignageServiceServer, ctx context.Context, req *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SignageServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SignageServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeConfigHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeConfigRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(SignageServiceServer).SubscribeConfig(in, &configStream{ServerStream: stream})
}

// ServiceDesc 手写的服务描述，消息使用 json 编码
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SignageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetConfig",
			Handler:    unaryHandler(GetConfigMethod, SignageServiceServer.GetConfig),
		}, {
			MethodName: "SetConfig",
			Handler:    unaryHandler(SetConfigMethod, SignageServiceServer.SetConfig),
		}, {
			MethodName: "Submit",
			Handler:    unaryHandler(SubmitMethod, SignageServiceServer.Submit),
		}, {
			MethodName: "Lookup",
			Handler:    unaryHandler(LookupMethod, SignageServiceServer.Lookup),
		}, {
			MethodName: "Reconcile",
			Handler:    unaryHandler(ReconcileMethod, SignageServiceServer.Reconcile),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SubscribeConfig",
			Handler:       subscribeConfigHandler,
			ServerStreams: true,
		},
	},
	Metadata: "jsignage/v1/signage.proto",
}

func RegisterSignageServiceServer(s grpc.ServiceRegistrar, srv SignageServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
