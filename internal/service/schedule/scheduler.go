package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/lock"
	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/service/birthday"
	"github.com/JrMarcco/jsignage/internal/service/pricing"
	"go.uber.org/zap"
)

// QueueScheduler 受理投稿并分配排队号与展示时间窗口。
//
// 排队号严格递增且连续，展示窗口 [start, end) 互不重叠。
type QueueScheduler interface {
	Accept(ctx context.Context, sub domain.Submission, cfg domain.ChannelConfig) (domain.OrderRecord, error)
}

var _ QueueScheduler = (*DefaultQueueScheduler)(nil)

type DefaultQueueScheduler struct {
	locker    lock.Locker
	orderRepo repository.OrderRepo

	evaluator birthday.Evaluator
	pricer    pricing.Pricer

	// maxDuration 单次投稿最长展示分钟数，<= 0 表示不限制
	maxDuration int

	now    func() time.Time
	logger *zap.Logger
}

func (s *DefaultQueueScheduler) Accept(ctx context.Context, sub domain.Submission, cfg domain.ChannelConfig) (domain.OrderRecord, error) {
	if err := s.validate(sub, cfg); err != nil {
		return domain.OrderRecord{}, err
	}

	if err := s.locker.Lock(ctx); err != nil {
		return domain.OrderRecord{}, fmt.Errorf("[jsignage] failed to acquire queue lock: %w", err)
	}
	defer func() {
		// 记录已经落库时 ctx 被取消也要释放锁
		if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("[jsignage] failed to release queue lock", zap.Error(err))
		}
	}()

	now := s.now().Truncate(time.Millisecond)

	queueNumber := uint64(1)
	start := now

	last, err := s.orderRepo.FindLast(ctx)
	switch {
	case err == nil:
		queueNumber = last.QueueNumber + 1
		if last.DisplayEndTime.After(start) {
			start = last.DisplayEndTime
		}
	case errors.Is(err, errs.ErrOrderNotFound):
	default:
		return domain.OrderRecord{}, err
	}

	order := domain.OrderRecord{
		QueueNumber:     queueNumber,
		RequestId:       sub.RequestId,
		SubmitterId:     sub.SubmitterId,
		Channel:         sub.Channel,
		DurationMinutes: sub.DurationMinutes,
		CreatedAt:       now.UnixMilli(),
	}
	order.DisplayEndTime = start.Add(order.Duration())

	if sub.Channel.IsBirthday() && s.evaluator.IsEligibleAt(sub.BirthDate, now) {
		order.FeeWaived = true
	} else {
		order.Price, err = s.pricer.Price(sub.Channel, sub.DurationMinutes)
		if err != nil {
			return domain.OrderRecord{}, err
		}
	}

	if err = s.orderRepo.Create(ctx, order); err != nil {
		return domain.OrderRecord{}, err
	}

	s.logger.Info(
		"[jsignage] submission accepted",
		zap.Uint64("queue_number", order.QueueNumber),
		zap.String("channel", order.Channel.String()),
		zap.String("submitter_id", order.SubmitterId),
		zap.Time("display_end_time", order.DisplayEndTime),
		zap.Bool("fee_waived", order.FeeWaived),
	)
	return order, nil
}

// validate 按固定顺序校验：系统开关、渠道、渠道开关、时长、投稿人
func (s *DefaultQueueScheduler) validate(sub domain.Submission, cfg domain.ChannelConfig) error {
	if !cfg.SystemEnabled {
		return errs.ErrSystemClosed
	}
	if !sub.Channel.Validate() {
		return fmt.Errorf("%w: %q", errs.ErrInvalidChannel, sub.Channel)
	}
	if !cfg.IsOpen(sub.Channel) {
		return fmt.Errorf("%w: %s", errs.ErrChannelClosed, sub.Channel)
	}
	if sub.DurationMinutes <= 0 || (s.maxDuration > 0 && sub.DurationMinutes > s.maxDuration) {
		return fmt.Errorf("%w: %d minutes", errs.ErrInvalidDuration, sub.DurationMinutes)
	}
	if sub.SubmitterId == "" {
		return errs.ErrMissingSubmitterId
	}
	return nil
}

func NewDefaultQueueScheduler(
	locker lock.Locker,
	orderRepo repository.OrderRepo,
	evaluator birthday.Evaluator,
	pricer pricing.Pricer,
	maxDuration int,
	now func() time.Time,
	logger *zap.Logger,
) *DefaultQueueScheduler {
	if now == nil {
		now = time.Now
	}
	return &DefaultQueueScheduler{
		locker:      locker,
		orderRepo:   orderRepo,
		evaluator:   evaluator,
		pricer:      pricer,
		maxDuration: maxDuration,
		now:         now,
		logger:      logger,
	}
}
