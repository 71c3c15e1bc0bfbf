package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/authn"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/JrMarcco/jsignage/internal/service/channelconf"
	"github.com/JrMarcco/jsignage/internal/service/order"
	"github.com/JrMarcco/jsignage/internal/service/submission"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/peer"
)

var _ SignageServiceServer = (*SignageServer)(nil)

type SignageServer struct {
	store         channelconf.Store
	updater       channelconf.Updater
	submissionSvc submission.Service
	broadcaster   broadcast.Broadcaster

	logger *zap.Logger
}

func (s *SignageServer) GetConfig(_ context.Context, _ *GetConfigRequest) (*ConfigResponse, error) {
	return &ConfigResponse{Snapshot: s.store.Get().EffectiveSnapshot()}, nil
}

func (s *SignageServer) SetConfig(ctx context.Context, req *SetConfigRequest) (*ConfigResponse, error) {
	submitter, err := authn.ExtractSubmitter(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if !submitter.Role.IsAdmin() {
		return nil, toStatus(errs.ErrPermissionDenied)
	}

	snapshot, err := s.updater.Update(ctx, req.Config, req.ExpectedVersion)
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info(
		"[jsignage] channel config updated by admin",
		zap.String("admin_id", submitter.Id),
		zap.Uint64("version", snapshot.Version),
	)
	return &ConfigResponse{Snapshot: snapshot}, nil
}

func (s *SignageServer) Submit(ctx context.Context, req *SubmitRequest) (*ReceiptResponse, error) {
	submitter, err := authn.ExtractSubmitter(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	record, err := s.submissionSvc.Submit(ctx, domain.Submission{
		RequestId:       req.RequestId,
		Channel:         domain.Channel(req.Channel),
		SubmitterId:     submitter.Id,
		DurationMinutes: req.DurationMinutes,
		BirthDate:       submitter.BirthDate,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReceiptResponse{Receipt: record.Receipt()}, nil
}

func (s *SignageServer) Lookup(ctx context.Context, req *LookupRequest) (*ReceiptResponse, error) {
	submitter, err := authn.ExtractSubmitter(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	record, err := s.submissionSvc.Lookup(ctx, submitter, req.QueueNumber)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReceiptResponse{Receipt: record.Receipt()}, nil
}

func (s *SignageServer) Reconcile(_ context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	return &ReconcileResponse{Result: order.Reconcile(req.Order)}, nil
}

func (s *SignageServer) SubscribeConfig(req *SubscribeConfigRequest, stream ConfigStream) error {
	sessionId := sessionIdOf(stream.Context(), req.SessionId)

	// 连接断开时 stream.Context() 被取消，订阅随之结束
	sub, err := s.broadcaster.Subscribe(stream.Context(), sessionId)
	if err != nil {
		return toStatus(err)
	}
	defer sub.Close()

	for snapshot := range sub.C() {
		if err = stream.Send(&ConfigResponse{Snapshot: snapshot.EffectiveSnapshot()}); err != nil {
			s.logger.Warn(
				"[jsignage] failed to push config to grpc subscriber",
				zap.Error(err),
				zap.String("session_id", sessionId),
			)
			return err
		}
	}

	err = sub.Err()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return toStatus(err)
}

// sessionIdOf 客户端提供的会话 id 按对端地址隔离，只有同一来源的重连才会替换旧订阅
func sessionIdOf(ctx context.Context, id string) string {
	if id == "" {
		id = uuid.NewString()
	}

	host := "unknown"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		host = p.Addr.String()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	return "grpc:" + host + ":" + id
}

func NewSignageServer(
	store channelconf.Store,
	updater channelconf.Updater,
	submissionSvc submission.Service,
	broadcaster broadcast.Broadcaster,
	logger *zap.Logger,
) *SignageServer {
	return &SignageServer{
		store:         store,
		updater:       updater,
		submissionSvc: submissionSvc,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}
