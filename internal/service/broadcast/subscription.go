package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/bitring"
)

// SubscribeOption 订阅选项
type SubscribeOption func(s *Subscription)

// WithHeartbeatTimeout 设置心跳超时，超过 d 没有 Touch 的订阅会被回收。
//
// d <= 0 表示不检查心跳。
func WithHeartbeatTimeout(d time.Duration) SubscribeOption {
	return func(s *Subscription) {
		s.heartbeatTimeout = d
	}
}

// Subscription 单个会话的配置订阅。
//
// 内部是一个只有一个槽位的信箱，新快照会覆盖尚未被取走的旧快照，
// 所以消费方看到的版本严格递增，但中间版本可能被跳过。
type Subscription struct {
	sessionId string

	mu          sync.Mutex
	mailbox     chan domain.ConfigSnapshot
	lastVersion uint64
	offered     int
	closed      bool
	err         error

	done chan struct{}

	heartbeatTimeout time.Duration
	lastSeen         atomic.Int64

	stalls      *bitring.BitRing
	stallWindow int

	stopAfterFunc func() bool
	onClose       func(s *Subscription)
}

// C 返回快照通道，订阅结束后通道会被关闭
func (s *Subscription) C() <-chan domain.ConfigSnapshot {
	return s.mailbox
}

// Done 订阅结束并从广播中移除后关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err 返回订阅结束的原因，订阅未结束时返回 nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) SessionId() string {
	return s.sessionId
}

// Touch 刷新心跳时间，由传输层在收到客户端数据时调用
func (s *Subscription) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Close 主动结束订阅，未投递的快照会被丢弃
func (s *Subscription) Close() {
	s.closeWith(errs.ErrSubscriptionClosed)
}

// offer 非阻塞地投递快照。
//
// 返回值 coalesced 表示信箱里还有未被取走的快照并被覆盖，
// stalled 表示订阅因为持续积压被判定为卡住。
func (s *Subscription) offer(snapshot domain.ConfigSnapshot) (delivered bool, coalesced bool, stalled bool) {
	s.mu.Lock()

	if s.closed || (s.offered > 0 && snapshot.Version <= s.lastVersion) {
		s.mu.Unlock()
		return false, false, false
	}

	select {
	case <-s.mailbox:
		coalesced = true
	default:
	}
	// 持有锁且槽位已清空，写入不会阻塞
	s.mailbox <- snapshot
	s.lastVersion = snapshot.Version
	s.offered++

	if s.stalls != nil {
		s.stalls.Add(coalesced)
		stalled = coalesced && s.offered >= s.stallWindow && s.stalls.ShouldTrigger()
	}
	s.mu.Unlock()

	return true, coalesced, stalled
}

func (s *Subscription) idleTimeout(now time.Time) bool {
	if s.heartbeatTimeout <= 0 {
		return false
	}
	return now.Sub(time.Unix(0, s.lastSeen.Load())) > s.heartbeatTimeout
}

// closeWith 结束订阅，只有第一次调用生效
func (s *Subscription) closeWith(reason error) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	s.err = reason

	select {
	case <-s.mailbox:
	default:
	}
	close(s.mailbox)
	stop := s.stopAfterFunc
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if s.onClose != nil {
		s.onClose(s)
	}
	close(s.done)
	return true
}

func (s *Subscription) setStopAfterFunc(stop func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAfterFunc = stop
}

func newSubscription(sessionId string, stalls *bitring.BitRing, stallWindow int, opts ...SubscribeOption) *Subscription {
	s := &Subscription{
		sessionId:   sessionId,
		mailbox:     make(chan domain.ConfigSnapshot, 1),
		done:        make(chan struct{}),
		stalls:      stalls,
		stallWindow: stallWindow,
	}
	s.Touch()

	for _, opt := range opts {
		opt(s)
	}
	return s
}
