package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/repository/cache"
	"github.com/JrMarcco/jsignage/internal/repository/dao"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderRepo interface {
	// Create 持久化排队记录，同一投稿人的 request id 重复时返回 errs.ErrDuplicateRequest
	Create(ctx context.Context, order domain.OrderRecord) error
	// FindLast 返回队尾记录，队列为空时返回 errs.ErrOrderNotFound
	FindLast(ctx context.Context) (domain.OrderRecord, error)
	FindByQueueNumber(ctx context.Context, queueNumber uint64) (domain.OrderRecord, error)
	FindByRequestId(ctx context.Context, submitterId, requestId string) (domain.OrderRecord, error)
}

var _ OrderRepo = (*DefaultOrderRepo)(nil)

type DefaultOrderRepo struct {
	dao        dao.OrderDAO
	localCache cache.OrderCache
	logger     *zap.Logger
}

func (r *DefaultOrderRepo) Create(ctx context.Context, order domain.OrderRecord) error {
	if err := r.dao.Insert(ctx, r.toEntity(order)); err != nil {
		if dao.IsDuplicateErr(err) {
			return fmt.Errorf("%w: request id %s", errs.ErrDuplicateRequest, order.RequestId)
		}
		return fmt.Errorf("[jsignage] failed to create order: %w", err)
	}

	r.refreshLocalCache(ctx, order)
	return nil
}

func (r *DefaultOrderRepo) FindLast(ctx context.Context) (domain.OrderRecord, error) {
	entity, err := r.dao.FindLast(ctx)
	if err != nil {
		return domain.OrderRecord{}, r.wrapErr(err)
	}
	return r.toDomain(entity), nil
}

func (r *DefaultOrderRepo) FindByQueueNumber(ctx context.Context, queueNumber uint64) (domain.OrderRecord, error) {
	order, err := r.localCache.Get(ctx, queueNumber)
	if err == nil {
		return order, nil
	}

	entity, err := r.dao.FindByQueueNumber(ctx, queueNumber)
	if err != nil {
		return domain.OrderRecord{}, r.wrapErr(err)
	}

	order = r.toDomain(entity)
	r.refreshLocalCache(ctx, order)
	return order, nil
}

func (r *DefaultOrderRepo) FindByRequestId(ctx context.Context, submitterId, requestId string) (domain.OrderRecord, error) {
	entity, err := r.dao.FindByRequestId(ctx, submitterId, requestId)
	if err != nil {
		return domain.OrderRecord{}, r.wrapErr(err)
	}
	return r.toDomain(entity), nil
}

func (r *DefaultOrderRepo) refreshLocalCache(ctx context.Context, order domain.OrderRecord) {
	if lcErr := r.localCache.Set(ctx, order); lcErr != nil {
		r.logger.Error(
			"[jsignage] failed to refresh order local cache",
			zap.Error(lcErr),
			zap.Uint64("queue_number", order.QueueNumber),
		)
	}
}

func (r *DefaultOrderRepo) wrapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.ErrOrderNotFound
	}
	return fmt.Errorf("[jsignage] failed to query order: %w", err)
}

func (r *DefaultOrderRepo) toDomain(entity dao.Order) domain.OrderRecord {
	return domain.OrderRecord{
		QueueNumber:     entity.QueueNumber,
		RequestId:       entity.RequestId,
		SubmitterId:     entity.SubmitterId,
		Channel:         domain.Channel(entity.Channel),
		DisplayEndTime:  time.UnixMilli(entity.DisplayEndTime),
		DurationMinutes: entity.DurationMinutes,
		Price:           entity.Price,
		FeeWaived:       entity.FeeWaived,
		CreatedAt:       entity.CreatedAt,
	}
}

func (r *DefaultOrderRepo) toEntity(order domain.OrderRecord) dao.Order {
	return dao.Order{
		QueueNumber:     order.QueueNumber,
		RequestId:       order.RequestId,
		SubmitterId:     order.SubmitterId,
		Channel:         order.Channel.String(),
		DurationMinutes: order.DurationMinutes,
		DisplayEndTime:  order.DisplayEndTime.UnixMilli(),
		Price:           order.Price,
		FeeWaived:       order.FeeWaived,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.CreatedAt,
	}
}

func NewDefaultOrderRepo(
	dao dao.OrderDAO,
	localCache cache.OrderCache,
	logger *zap.Logger,
) *DefaultOrderRepo {
	return &DefaultOrderRepo{
		dao:        dao,
		localCache: localCache,
		logger:     logger,
	}
}
