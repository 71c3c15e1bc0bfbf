package jwt

import (
	"context"

	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationKey = "authorization"

// Builder 构建校验访问令牌的拦截器，校验通过后投稿人写入 context
type Builder struct {
	verifier      *authn.Verifier
	publicMethods map[string]struct{}
}

func (b *Builder) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if b.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		ctx, err := b.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (b *Builder) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if b.isPublic(info.FullMethod) {
			return handler(srv, ss)
		}

		ctx, err := b.authenticate(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

func (b *Builder) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	vals := md.Get(authorizationKey)
	if len(vals) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing authorization")
	}

	submitter, err := b.verifier.VerifyHeader(vals[0])
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return authn.WithSubmitter(ctx, submitter), nil
}

func (b *Builder) isPublic(fullMethod string) bool {
	_, ok := b.publicMethods[fullMethod]
	return ok
}

func NewBuilder(verifier *authn.Verifier, publicMethods []string) *Builder {
	pm := make(map[string]struct{}, len(publicMethods))
	for _, m := range publicMethods {
		pm[m] = struct{}{}
	}
	return &Builder{
		verifier:      verifier,
		publicMethods: pm,
	}
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
