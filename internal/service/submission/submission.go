package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/idempotent"
	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/service/channelconf"
	"github.com/JrMarcco/jsignage/internal/service/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service 投稿服务，负责幂等与权限，排队规则由 QueueScheduler 决定
type Service interface {
	// Submit 受理投稿。request id 重复时返回第一次受理的记录
	Submit(ctx context.Context, sub domain.Submission) (domain.OrderRecord, error)
	// Lookup 查询排队记录，投稿人只能查询自己的记录
	Lookup(ctx context.Context, submitter domain.Submitter, queueNumber uint64) (domain.OrderRecord, error)
}

var _ Service = (*DefaultService)(nil)

type DefaultService struct {
	store     channelconf.Store
	scheduler schedule.QueueScheduler
	orderRepo repository.OrderRepo

	idempotent idempotent.Strategy
	logger     *zap.Logger
}

func (s *DefaultService) Submit(ctx context.Context, sub domain.Submission) (domain.OrderRecord, error) {
	if sub.RequestId == "" {
		sub.RequestId = uuid.NewString()
	}

	key := idempotentKey(sub)
	exists, err := s.idempotent.Exists(ctx, key)
	if err != nil {
		// 幂等标记不可用时仍由数据库唯一索引兜底
		s.logger.Warn("[jsignage] idempotent check failed", zap.Error(err), zap.String("request_id", sub.RequestId))
	}
	if exists {
		return s.findExisting(ctx, sub)
	}

	order, err := s.scheduler.Accept(ctx, sub, s.store.Get().ChannelConfig)
	if err != nil {
		if errors.Is(err, errs.ErrDuplicateRequest) {
			return s.findExisting(ctx, sub)
		}

		if relErr := s.idempotent.Release(context.WithoutCancel(ctx), key); relErr != nil {
			s.logger.Error(
				"[jsignage] failed to release idempotent key",
				zap.Error(relErr),
				zap.String("request_id", sub.RequestId),
			)
		}
		return domain.OrderRecord{}, err
	}
	return order, nil
}

// idempotentKey request id 由客户端生成，按投稿人隔离
func idempotentKey(sub domain.Submission) string {
	return sub.SubmitterId + ":" + sub.RequestId
}

// findExisting 查询同一投稿人同一 request id 已受理的记录，第一次请求仍在处理中时返回 errs.ErrDuplicateRequest
func (s *DefaultService) findExisting(ctx context.Context, sub domain.Submission) (domain.OrderRecord, error) {
	order, err := s.orderRepo.FindByRequestId(ctx, sub.SubmitterId, sub.RequestId)
	if err != nil {
		if errors.Is(err, errs.ErrOrderNotFound) {
			return domain.OrderRecord{}, fmt.Errorf("%w: request %s is in progress", errs.ErrDuplicateRequest, sub.RequestId)
		}
		return domain.OrderRecord{}, err
	}
	return order, nil
}

func (s *DefaultService) Lookup(ctx context.Context, submitter domain.Submitter, queueNumber uint64) (domain.OrderRecord, error) {
	order, err := s.orderRepo.FindByQueueNumber(ctx, queueNumber)
	if err != nil {
		return domain.OrderRecord{}, err
	}

	if !submitter.Role.IsAdmin() && order.SubmitterId != submitter.Id {
		return domain.OrderRecord{}, errs.ErrPermissionDenied
	}
	return order, nil
}

func NewDefaultService(
	store channelconf.Store,
	scheduler schedule.QueueScheduler,
	orderRepo repository.OrderRepo,
	idempotent idempotent.Strategy,
	logger *zap.Logger,
) *DefaultService {
	return &DefaultService{
		store:      store,
		scheduler:  scheduler,
		orderRepo:  orderRepo,
		idempotent: idempotent,
		logger:     logger,
	}
}
