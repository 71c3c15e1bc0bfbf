package broadcast

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/bitring"
	"github.com/JrMarcco/jsignage/internal/pkg/ringbuffer"
	"github.com/JrMarcco/jsignage/internal/pkg/semaphore"
	"github.com/JrMarcco/jsignage/internal/pkg/sharding"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Broadcaster 渠道配置广播。
//
// 新订阅会立即收到最新快照，之后每次配置变更都会推送给所有在线订阅。
// 发布永远不会被慢订阅阻塞。
type Broadcaster interface {
	Subscribe(ctx context.Context, sessionId string, opts ...SubscribeOption) (*Subscription, error)
	// Publish 发布快照，版本不高于当前最新版本的快照会被忽略
	Publish(snapshot domain.ConfigSnapshot)
	Latest() (domain.ConfigSnapshot, bool)
	Stats() Stats
	UpdateMaxSubscribers(maxCnt int)

	// Start 启动心跳回收
	Start(ctx context.Context) error
	Close() error
}

type Stats struct {
	Subscribers    int           `json:"subscribers"`
	MaxSubscribers int           `json:"max_subscribers"`
	LatestVersion  uint64        `json:"latest_version"`
	Published      uint64        `json:"published"`
	Delivered      uint64        `json:"delivered"`
	Coalesced      uint64        `json:"coalesced"`
	Dropped        uint64        `json:"dropped"`
	AvgFanOut      time.Duration `json:"avg_fan_out_ns"`
}

type Config struct {
	// ReapInterval 心跳回收间隔，<= 0 表示不回收
	ReapInterval time.Duration

	// 最近 StallWindow 次投递中连续 StallConsecutive 次覆盖未读快照，
	// 或覆盖比例超过 StallRate 时判定订阅卡住。StallWindow <= 0 表示不检查。
	StallWindow      int
	StallConsecutive int
	StallRate        float64

	LatencyWindow int
}

type shard struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func (sh *shard) snapshot() []*Subscription {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	res := make([]*Subscription, 0, len(sh.subs))
	for _, sub := range sh.subs {
		res = append(res, sub)
	}
	return res
}

var _ Broadcaster = (*DefaultBroadcaster)(nil)

type DefaultBroadcaster struct {
	strategy sharding.HashStrategy
	shards   []*shard

	sem    *semaphore.MaxCntSemaphore
	latest atomic.Pointer[domain.ConfigSnapshot]

	cfg       Config
	latencies *ringbuffer.RingBuffer[time.Duration]

	published atomic.Uint64
	delivered atomic.Uint64
	coalesced atomic.Uint64
	dropped   atomic.Uint64

	closed    atomic.Bool
	stopCh    chan struct{}
	closeOnce sync.Once

	logger *zap.Logger
}

func (b *DefaultBroadcaster) Subscribe(ctx context.Context, sessionId string, opts ...SubscribeOption) (*Subscription, error) {
	if b.closed.Load() {
		return nil, errs.ErrBroadcasterClosed
	}
	if sessionId == "" {
		return nil, errs.ErrInvalidSessionId
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := b.sem.TryAcquire(); err != nil {
		return nil, err
	}

	var stalls *bitring.BitRing
	if b.cfg.StallWindow > 0 {
		stalls = bitring.NewBitRing(b.cfg.StallWindow, b.cfg.StallConsecutive, b.cfg.StallRate)
	}
	sub := newSubscription(sessionId, stalls, b.cfg.StallWindow, opts...)
	sub.onClose = b.remove

	// 先注册再补发最新快照，注册之后的发布一定能被该订阅看到
	sh := b.shardOf(sessionId)
	sh.mu.Lock()
	old := sh.subs[sessionId]
	sh.subs[sessionId] = sub
	sh.mu.Unlock()

	if old != nil {
		old.closeWith(errs.ErrSessionReplaced)
		b.logger.Info("[jsignage] subscription replaced", zap.String("session_id", sessionId))
	}

	if b.closed.Load() {
		sub.closeWith(errs.ErrBroadcasterClosed)
		return nil, errs.ErrBroadcasterClosed
	}

	sub.setStopAfterFunc(context.AfterFunc(ctx, func() {
		sub.closeWith(fmt.Errorf("%w: %w", errs.ErrSubscriptionClosed, context.Cause(ctx)))
	}))

	if latest := b.latest.Load(); latest != nil {
		if delivered, _, _ := sub.offer(*latest); delivered {
			b.delivered.Add(1)
		}
	}
	return sub, nil
}

func (b *DefaultBroadcaster) Publish(snapshot domain.ConfigSnapshot) {
	for {
		curr := b.latest.Load()
		if curr != nil && snapshot.Version <= curr.Version {
			return
		}
		if b.latest.CompareAndSwap(curr, &snapshot) {
			break
		}
	}

	start := time.Now()

	var eg errgroup.Group
	for _, idx := range b.strategy.BroadCast() {
		sh := b.shards[idx]
		eg.Go(func() error {
			b.fanOut(sh, snapshot)
			return nil
		})
	}
	_ = eg.Wait()

	b.latencies.Add(time.Since(start))
	b.published.Add(1)
}

func (b *DefaultBroadcaster) fanOut(sh *shard, snapshot domain.ConfigSnapshot) {
	for _, sub := range sh.snapshot() {
		delivered, coalesced, stalled := sub.offer(snapshot)
		if delivered {
			b.delivered.Add(1)
		}
		if coalesced {
			b.coalesced.Add(1)
		}
		if stalled && sub.closeWith(errs.ErrSubscriberStalled) {
			b.dropped.Add(1)
			b.logger.Warn(
				"[jsignage] drop stalled subscription",
				zap.String("session_id", sub.SessionId()),
				zap.Uint64("version", snapshot.Version),
			)
		}
	}
}

func (b *DefaultBroadcaster) Latest() (domain.ConfigSnapshot, bool) {
	latest := b.latest.Load()
	if latest == nil {
		return domain.ConfigSnapshot{}, false
	}
	return *latest, true
}

func (b *DefaultBroadcaster) Stats() Stats {
	stats := Stats{
		MaxSubscribers: b.sem.MaxCnt(),
		Published:      b.published.Load(),
		Delivered:      b.delivered.Load(),
		Coalesced:      b.coalesced.Load(),
		Dropped:        b.dropped.Load(),
		AvgFanOut:      ringbuffer.AvgDuration(b.latencies),
	}
	if latest := b.latest.Load(); latest != nil {
		stats.LatestVersion = latest.Version
	}

	for _, sh := range b.shards {
		sh.mu.RLock()
		stats.Subscribers += len(sh.subs)
		sh.mu.RUnlock()
	}
	return stats
}

func (b *DefaultBroadcaster) UpdateMaxSubscribers(maxCnt int) {
	b.sem.UpdateMaxCnt(maxCnt)
	b.logger.Info("[jsignage] max subscribers updated", zap.Int("max_subscribers", maxCnt))
}

func (b *DefaultBroadcaster) Start(ctx context.Context) error {
	if b.cfg.ReapInterval <= 0 {
		return nil
	}

	go func() {
		ticker := time.NewTicker(b.cfg.ReapInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case now := <-ticker.C:
				b.reap(now)
			}
		}
	}()
	return nil
}

// reap 回收心跳超时的订阅
func (b *DefaultBroadcaster) reap(now time.Time) int {
	cnt := 0
	for _, sh := range b.shards {
		for _, sub := range sh.snapshot() {
			if !sub.idleTimeout(now) {
				continue
			}
			if sub.closeWith(errs.ErrHeartbeatTimeout) {
				cnt++
				b.dropped.Add(1)
				b.logger.Info("[jsignage] reap idle subscription", zap.String("session_id", sub.SessionId()))
			}
		}
	}
	return cnt
}

func (b *DefaultBroadcaster) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)

		for _, sh := range b.shards {
			for _, sub := range sh.snapshot() {
				sub.closeWith(errs.ErrBroadcasterClosed)
			}
		}
	})
	return nil
}

func (b *DefaultBroadcaster) remove(sub *Subscription) {
	sh := b.shardOf(sub.SessionId())
	sh.mu.Lock()
	if sh.subs[sub.SessionId()] == sub {
		delete(sh.subs, sub.SessionId())
	}
	sh.mu.Unlock()

	b.sem.Release()
}

func (b *DefaultBroadcaster) shardOf(sessionId string) *shard {
	return b.shards[b.strategy.Shard(sessionId)]
}

func NewDefaultBroadcaster(
	strategy sharding.HashStrategy,
	sem *semaphore.MaxCntSemaphore,
	cfg Config,
	logger *zap.Logger,
) *DefaultBroadcaster {
	const defaultLatencyWindow = 128

	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = defaultLatencyWindow
	}
	latencies, err := ringbuffer.NewRingBuffer[time.Duration](cfg.LatencyWindow)
	if err != nil {
		panic(err)
	}

	shards := make([]*shard, strategy.Shards())
	for i := range shards {
		shards[i] = &shard{subs: make(map[string]*Subscription)}
	}

	return &DefaultBroadcaster{
		strategy:  strategy,
		shards:    shards,
		sem:       sem,
		cfg:       cfg,
		latencies: latencies,
		stopCh:    make(chan struct{}),
		logger:    logger,
	}
}
