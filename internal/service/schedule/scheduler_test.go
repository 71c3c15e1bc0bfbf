package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/lock"
	"github.com/JrMarcco/jsignage/internal/repository"
	"github.com/JrMarcco/jsignage/internal/service/birthday"
	"github.com/JrMarcco/jsignage/internal/service/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var _ repository.OrderRepo = (*memOrderRepo)(nil)

type memOrderRepo struct {
	mu        sync.Mutex
	orders    []domain.OrderRecord
	createErr error
}

func (r *memOrderRepo) Create(_ context.Context, order domain.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, o := range r.orders {
		if o.SubmitterId == order.SubmitterId && o.RequestId == order.RequestId {
			return errs.ErrDuplicateRequest
		}
	}
	r.orders = append(r.orders, order)
	return nil
}

func (r *memOrderRepo) FindLast(_ context.Context) (domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.orders) == 0 {
		return domain.OrderRecord{}, errs.ErrOrderNotFound
	}
	return r.orders[len(r.orders)-1], nil
}

func (r *memOrderRepo) FindByQueueNumber(_ context.Context, queueNumber uint64) (domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.QueueNumber == queueNumber {
			return o, nil
		}
	}
	return domain.OrderRecord{}, errs.ErrOrderNotFound
}

func (r *memOrderRepo) FindByRequestId(_ context.Context, submitterId, requestId string) (domain.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.SubmitterId == submitterId && o.RequestId == requestId {
			return o, nil
		}
	}
	return domain.OrderRecord{}, errs.ErrOrderNotFound
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var (
	baseTime = time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)
	openAll  = domain.ChannelConfig{SystemEnabled: true, ImageEnabled: true, TextEnabled: true, BirthdayEnabled: true}
)

func newTestScheduler(repo repository.OrderRepo, c *clock) *DefaultQueueScheduler {
	rate, err := pricing.ParseRate("1", "1")
	if err != nil {
		panic(err)
	}
	pricer := pricing.NewRateTable(map[domain.Channel]pricing.Rate{
		domain.ChannelImage:    rate,
		domain.ChannelText:     rate,
		domain.ChannelBirthday: rate,
	})

	return NewDefaultQueueScheduler(
		lock.NewLocalLocker(),
		repo,
		birthday.NewDefaultEvaluator(time.UTC, c.Now),
		pricer,
		60,
		c.Now,
		zap.NewNop(),
	)
}

func submission(requestId string, channel domain.Channel, minutes int) domain.Submission {
	return domain.Submission{
		RequestId:       requestId,
		Channel:         channel,
		SubmitterId:     "u-" + requestId,
		DurationMinutes: minutes,
	}
}

func TestDefaultQueueScheduler_Reject(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		cfg     domain.ChannelConfig
		sub     domain.Submission
		wantErr error
	}{
		{
			name:    "system closed overrides channel flags",
			cfg:     domain.ChannelConfig{SystemEnabled: false, ImageEnabled: true, TextEnabled: true, BirthdayEnabled: true},
			sub:     submission("r1", domain.ChannelImage, 5),
			wantErr: errs.ErrSystemClosed,
		}, {
			name:    "system closed checked before invalid duration",
			cfg:     domain.ChannelConfig{},
			sub:     submission("r1", domain.ChannelImage, 0),
			wantErr: errs.ErrSystemClosed,
		}, {
			name:    "unknown channel",
			cfg:     openAll,
			sub:     submission("r1", domain.Channel("video"), 5),
			wantErr: errs.ErrInvalidChannel,
		}, {
			name:    "channel closed",
			cfg:     domain.ChannelConfig{SystemEnabled: true, ImageEnabled: true, TextEnabled: false, BirthdayEnabled: true},
			sub:     submission("r1", domain.ChannelText, 5),
			wantErr: errs.ErrChannelClosed,
		}, {
			name:    "channel closed checked before invalid duration",
			cfg:     domain.ChannelConfig{SystemEnabled: true},
			sub:     submission("r1", domain.ChannelText, -1),
			wantErr: errs.ErrChannelClosed,
		}, {
			name:    "zero duration",
			cfg:     openAll,
			sub:     submission("r1", domain.ChannelImage, 0),
			wantErr: errs.ErrInvalidDuration,
		}, {
			name:    "negative duration",
			cfg:     openAll,
			sub:     submission("r1", domain.ChannelImage, -5),
			wantErr: errs.ErrInvalidDuration,
		}, {
			name:    "duration above limit",
			cfg:     openAll,
			sub:     submission("r1", domain.ChannelImage, 61),
			wantErr: errs.ErrInvalidDuration,
		}, {
			name: "missing submitter",
			cfg:  openAll,
			sub: domain.Submission{
				RequestId:       "r1",
				Channel:         domain.ChannelImage,
				DurationMinutes: 5,
			},
			wantErr: errs.ErrMissingSubmitterId,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo := &memOrderRepo{}
			s := newTestScheduler(repo, &clock{now: baseTime})

			_, err := s.Accept(t.Context(), tc.sub, tc.cfg)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, repo.orders)
		})
	}
}

func TestDefaultQueueScheduler_ChannelClosedScenario(t *testing.T) {
	t.Parallel()

	cfg := domain.ChannelConfig{SystemEnabled: true, ImageEnabled: true, TextEnabled: false, BirthdayEnabled: true}
	c := &clock{now: baseTime}
	s := newTestScheduler(&memOrderRepo{}, c)

	_, err := s.Accept(t.Context(), submission("text-1", domain.ChannelText, 5), cfg)
	assert.ErrorIs(t, err, errs.ErrChannelClosed)
	assert.NotErrorIs(t, err, errs.ErrSystemClosed)

	first, err := s.Accept(t.Context(), submission("image-1", domain.ChannelImage, 5), cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.QueueNumber)
	assert.Equal(t, baseTime, first.DisplayStartTime())
	assert.Equal(t, baseTime.Add(5*time.Minute), first.DisplayEndTime)

	c.Set(baseTime.Add(time.Minute))
	second, err := s.Accept(t.Context(), submission("image-2", domain.ChannelImage, 10), cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.QueueNumber)
	assert.Equal(t, baseTime.Add(5*time.Minute), second.DisplayStartTime())
	assert.Equal(t, baseTime.Add(15*time.Minute), second.DisplayEndTime)
	assert.True(t, second.Price.Equal(decimal.NewFromInt(10)))
	assert.False(t, second.FeeWaived)
}

func TestDefaultQueueScheduler_IdleQueueStartsNow(t *testing.T) {
	t.Parallel()

	c := &clock{now: baseTime}
	s := newTestScheduler(&memOrderRepo{}, c)

	_, err := s.Accept(t.Context(), submission("r1", domain.ChannelImage, 5), openAll)
	require.NoError(t, err)

	// 上一条已经播完，新投稿从当前时间开始
	later := baseTime.Add(time.Hour).Add(123456 * time.Microsecond)
	c.Set(later)
	order, err := s.Accept(t.Context(), submission("r2", domain.ChannelText, 3), openAll)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), order.QueueNumber)
	assert.Equal(t, later.Truncate(time.Millisecond), order.DisplayStartTime())
	assert.Equal(t, later.Truncate(time.Millisecond).UnixMilli(), order.CreatedAt)
}

func TestDefaultQueueScheduler_Birthday(t *testing.T) {
	t.Parallel()

	today := &domain.BirthDate{Year: 1990, Month: baseTime.Month(), Day: baseTime.Day()}
	other := &domain.BirthDate{Year: 1990, Month: baseTime.Month(), Day: baseTime.Day() + 1}

	tcs := []struct {
		name          string
		channel       domain.Channel
		birthDate     *domain.BirthDate
		wantPrice     decimal.Decimal
		wantFeeWaived bool
	}{
		{
			name:          "birthday today",
			channel:       domain.ChannelBirthday,
			birthDate:     today,
			wantPrice:     decimal.Zero,
			wantFeeWaived: true,
		}, {
			name:          "birthday not today",
			channel:       domain.ChannelBirthday,
			birthDate:     other,
			wantPrice:     decimal.NewFromInt(5),
			wantFeeWaived: false,
		}, {
			name:          "no birth date",
			channel:       domain.ChannelBirthday,
			birthDate:     nil,
			wantPrice:     decimal.NewFromInt(5),
			wantFeeWaived: false,
		}, {
			name:          "birthday today on image channel",
			channel:       domain.ChannelImage,
			birthDate:     today,
			wantPrice:     decimal.NewFromInt(5),
			wantFeeWaived: false,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestScheduler(&memOrderRepo{}, &clock{now: baseTime})
			sub := submission("r1", tc.channel, 5)
			sub.BirthDate = tc.birthDate

			order, err := s.Accept(t.Context(), sub, openAll)
			require.NoError(t, err)
			assert.True(t, tc.wantPrice.Equal(order.Price), "got price %s", order.Price)
			assert.Equal(t, tc.wantFeeWaived, order.FeeWaived)
		})
	}
}

func TestDefaultQueueScheduler_PersistFailure(t *testing.T) {
	t.Parallel()

	repo := &memOrderRepo{}
	c := &clock{now: baseTime}
	s := newTestScheduler(repo, c)

	_, err := s.Accept(t.Context(), submission("r1", domain.ChannelImage, 5), openAll)
	require.NoError(t, err)

	createErr := errors.New("db down")
	repo.mu.Lock()
	repo.createErr = createErr
	repo.mu.Unlock()

	_, err = s.Accept(t.Context(), submission("r2", domain.ChannelImage, 5), openAll)
	assert.ErrorIs(t, err, createErr)

	repo.mu.Lock()
	repo.createErr = nil
	repo.mu.Unlock()

	// 失败的受理不占用排队号和时间窗口
	order, err := s.Accept(t.Context(), submission("r3", domain.ChannelImage, 5), openAll)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), order.QueueNumber)
	assert.Equal(t, baseTime.Add(5*time.Minute), order.DisplayStartTime())
}

func TestDefaultQueueScheduler_BirthdayUsesAcceptTime(t *testing.T) {
	t.Parallel()

	rate, err := pricing.ParseRate("1", "1")
	require.NoError(t, err)

	// 受理时刻是生日当天，评估器自身的时钟还停在前一天
	c := &clock{now: baseTime}
	stale := func() time.Time { return baseTime.Add(-24 * time.Hour) }
	s := NewDefaultQueueScheduler(
		lock.NewLocalLocker(),
		&memOrderRepo{},
		birthday.NewDefaultEvaluator(time.UTC, stale),
		pricing.NewRateTable(map[domain.Channel]pricing.Rate{domain.ChannelBirthday: rate}),
		0,
		c.Now,
		zap.NewNop(),
	)

	sub := submission("r1", domain.ChannelBirthday, 5)
	sub.BirthDate = &domain.BirthDate{Year: 1990, Month: baseTime.Month(), Day: baseTime.Day()}

	order, err := s.Accept(t.Context(), sub, openAll)
	require.NoError(t, err)
	assert.True(t, order.FeeWaived)
	assert.True(t, order.Price.IsZero())
}

func TestDefaultQueueScheduler_NoRate(t *testing.T) {
	t.Parallel()

	c := &clock{now: baseTime}
	s := NewDefaultQueueScheduler(
		lock.NewLocalLocker(),
		&memOrderRepo{},
		birthday.NewDefaultEvaluator(time.UTC, c.Now),
		pricing.NewRateTable(nil),
		0,
		c.Now,
		zap.NewNop(),
	)

	_, err := s.Accept(t.Context(), submission("r1", domain.ChannelText, 5), openAll)
	assert.ErrorIs(t, err, errs.ErrNoRate)
}

func TestDefaultQueueScheduler_LockCanceled(t *testing.T) {
	t.Parallel()

	locker := lock.NewLocalLocker()
	require.NoError(t, locker.Lock(t.Context()))

	c := &clock{now: baseTime}
	s := NewDefaultQueueScheduler(
		locker,
		&memOrderRepo{},
		birthday.NewDefaultEvaluator(time.UTC, c.Now),
		pricing.NewRateTable(nil),
		0,
		c.Now,
		zap.NewNop(),
	)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Accept(ctx, submission("r1", domain.ChannelText, 5), openAll)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultQueueScheduler_Concurrent(t *testing.T) {
	t.Parallel()

	const submissions = 100

	repo := &memOrderRepo{}
	s := newTestScheduler(repo, &clock{now: baseTime})

	var eg errgroup.Group
	for i := 0; i < submissions; i++ {
		eg.Go(func() error {
			_, err := s.Accept(t.Context(), submission(fmt.Sprintf("r%d", i), domain.ChannelImage, i%7+1), openAll)
			return err
		})
	}
	require.NoError(t, eg.Wait())

	orders := append([]domain.OrderRecord(nil), repo.orders...)
	require.Len(t, orders, submissions)
	sort.Slice(orders, func(i, j int) bool { return orders[i].QueueNumber < orders[j].QueueNumber })

	for i, o := range orders {
		assert.Equal(t, uint64(i+1), o.QueueNumber)
		if i == 0 {
			continue
		}
		assert.False(t, orders[i-1].Window().Overlaps(o.Window()))
		assert.Equal(t, orders[i-1].DisplayEndTime, o.DisplayStartTime())
	}
}
