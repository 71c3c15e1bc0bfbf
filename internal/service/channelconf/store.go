package channelconf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JrMarcco/easy-kit/slice"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/ringbuffer"
	"github.com/JrMarcco/jsignage/internal/repository"
	"go.uber.org/zap"
)

// Publisher 配置变更的下游，通常是广播器
type Publisher interface {
	Publish(snapshot domain.ConfigSnapshot)
}

// Store 渠道配置的唯一持有者。
//
// 读取无锁，修改串行执行。每次修改先持久化，成功后才替换内存快照并发布。
type Store interface {
	Get() domain.ConfigSnapshot
	// Set 整体替换配置，版本号加一
	Set(ctx context.Context, cfg domain.ChannelConfig) (domain.ConfigSnapshot, error)
	// CompareAndSet 当前版本等于 expected 时才替换，否则返回 errs.ErrVersionConflict
	CompareAndSet(ctx context.Context, expected uint64, cfg domain.ChannelConfig) (domain.ConfigSnapshot, error)
	// Apply 安装外部确定版本号的快照（集群模式下版本号为 etcd revision），旧版本被忽略
	Apply(ctx context.Context, snapshot domain.ConfigSnapshot) (bool, error)
	// History 按版本倒序返回最近的快照
	History() []domain.ConfigSnapshot
}

var _ Store = (*DefaultStore)(nil)

type DefaultStore struct {
	mu      sync.Mutex
	current atomic.Pointer[domain.ConfigSnapshot]

	repo      repository.ChannelConfigRepo
	publisher Publisher
	history   *ringbuffer.RingBuffer[domain.ConfigSnapshot]

	now    func() time.Time
	logger *zap.Logger
}

func (s *DefaultStore) Get() domain.ConfigSnapshot {
	return *s.current.Load()
}

func (s *DefaultStore) Set(ctx context.Context, cfg domain.ChannelConfig) (domain.ConfigSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curr := s.current.Load()
	return s.install(ctx, domain.ConfigSnapshot{
		ChannelConfig: cfg,
		Version:       curr.Version + 1,
		UpdatedAt:     s.now().UnixMilli(),
	})
}

func (s *DefaultStore) CompareAndSet(ctx context.Context, expected uint64, cfg domain.ChannelConfig) (domain.ConfigSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	curr := s.current.Load()
	if curr.Version != expected {
		return domain.ConfigSnapshot{}, fmt.Errorf(
			"%w: expected version %d, current version %d", errs.ErrVersionConflict, expected, curr.Version,
		)
	}

	return s.install(ctx, domain.ConfigSnapshot{
		ChannelConfig: cfg,
		Version:       curr.Version + 1,
		UpdatedAt:     s.now().UnixMilli(),
	})
}

func (s *DefaultStore) Apply(ctx context.Context, snapshot domain.ConfigSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !snapshot.NewerThan(*s.current.Load()) {
		return false, nil
	}
	if snapshot.UpdatedAt == 0 {
		snapshot.UpdatedAt = s.now().UnixMilli()
	}

	if _, err := s.install(ctx, snapshot); err != nil {
		return false, err
	}
	return true, nil
}

// install 持久化并替换快照，调用方需要持有 mu
func (s *DefaultStore) install(ctx context.Context, snapshot domain.ConfigSnapshot) (domain.ConfigSnapshot, error) {
	if err := s.repo.Save(ctx, snapshot); err != nil {
		return domain.ConfigSnapshot{}, err
	}

	s.current.Store(&snapshot)
	s.history.Add(snapshot)
	s.publisher.Publish(snapshot)

	s.logger.Info(
		"[jsignage] channel config updated",
		zap.Uint64("version", snapshot.Version),
		zap.Bool("system_enabled", snapshot.SystemEnabled),
		zap.Bool("image_enabled", snapshot.ImageEnabled),
		zap.Bool("text_enabled", snapshot.TextEnabled),
		zap.Bool("birthday_enabled", snapshot.BirthdayEnabled),
	)
	return snapshot, nil
}

func (s *DefaultStore) History() []domain.ConfigSnapshot {
	items := s.history.Items()
	// 最新的在前
	return slice.Map(items, func(idx int, _ domain.ConfigSnapshot) domain.ConfigSnapshot {
		return items[len(items)-1-idx]
	})
}

// NewDefaultStore 从仓储加载最新快照，没有任何快照时使用 defaults 作为版本 0。
//
// 初始快照会立即发布，保证订阅方总能拿到一个快照。
func NewDefaultStore(
	ctx context.Context,
	repo repository.ChannelConfigRepo,
	publisher Publisher,
	defaults domain.ChannelConfig,
	historySize int,
	now func() time.Time,
	logger *zap.Logger,
) (*DefaultStore, error) {
	if now == nil {
		now = time.Now
	}

	history, err := ringbuffer.NewRingBuffer[domain.ConfigSnapshot](historySize)
	if err != nil {
		return nil, err
	}

	s := &DefaultStore{
		repo:      repo,
		publisher: publisher,
		history:   history,
		now:       now,
		logger:    logger,
	}

	initial, err := repo.Latest(ctx)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrChannelConfigNotFound):
		initial = domain.ConfigSnapshot{
			ChannelConfig: defaults,
			Version:       0,
			UpdatedAt:     now().UnixMilli(),
		}
	default:
		return nil, err
	}

	persisted, err := repo.History(ctx, historySize)
	if err != nil {
		return nil, err
	}
	for i := len(persisted) - 1; i >= 0; i-- {
		history.Add(persisted[i])
	}

	s.current.Store(&initial)
	publisher.Publish(initial)
	return s, nil
}
