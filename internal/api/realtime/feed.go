package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/service/broadcast"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeConfigUpdate = "config_update"
	TypePing         = "ping"
	TypePong         = "pong"

	defaultHeartbeatTimeout = 60 * time.Second
	defaultWriteTimeout     = 10 * time.Second
)

// Envelope 实时推送的消息格式
type Envelope struct {
	Type    string                 `json:"type"`
	Payload *domain.ConfigSnapshot `json:"payload,omitempty"`
}

type Config struct {
	// HeartbeatTimeout 超过该时长没有收到任何客户端帧（包括 pong）时断开 WebSocket 连接
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	// PingInterval WebSocket 服务端 ping 间隔，<= 0 时取心跳超时的三分之一
	PingInterval time.Duration `mapstructure:"ping_interval"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SockJSHeartbeat sockjs 服务端心跳间隔，<= 0 使用库默认值
	SockJSHeartbeat time.Duration `mapstructure:"sockjs_heartbeat"`
}

// transport 一条实时连接，Send 不要求并发安全
type transport interface {
	Recv() ([]byte, error)
	Send(data []byte) error
	// Close 以 reason 作为关闭原因断开连接
	Close(reason error) error
	Name() string
}

// pinger 需要服务端主动发送传输层心跳的连接
type pinger interface {
	Ping() error
}

// Feed 把配置广播推送到 SockJS 与 WebSocket 连接
type Feed struct {
	broadcaster broadcast.Broadcaster
	cfg         Config
	logger      *zap.Logger
}

// serve 推送订阅内容直到订阅或连接关闭
func (f *Feed) serve(sub *broadcast.Subscription, t transport) {
	c := &conn{transport: t}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		f.readLoop(sub, c)
	}()

	if p, ok := t.(pinger); ok {
		go f.pingLoop(sub, c, p)
	}

	for snapshot := range sub.C() {
		effective := snapshot.EffectiveSnapshot()
		if err := c.sendEnvelope(Envelope{Type: TypeConfigUpdate, Payload: &effective}); err != nil {
			f.logger.Warn(
				"[jsignage] failed to push config to realtime subscriber",
				zap.Error(err),
				zap.String("session_id", sub.SessionId()),
				zap.String("transport", t.Name()),
			)
			sub.Close()
			break
		}
	}

	reason := sub.Err()
	if err := t.Close(reason); err != nil {
		f.logger.Debug("[jsignage] failed to close realtime connection", zap.Error(err))
	}
	<-readDone

	f.logger.Info(
		"[jsignage] realtime subscriber disconnected",
		zap.String("session_id", sub.SessionId()),
		zap.String("transport", t.Name()),
		zap.NamedError("reason", reason),
	)
}

func (f *Feed) readLoop(sub *broadcast.Subscription, c *conn) {
	// 连接断开后关闭订阅，写循环随之结束
	defer sub.Close()

	for {
		data, err := c.Recv()
		if err != nil {
			return
		}
		sub.Touch()
		// 控制帧
		if len(data) == 0 {
			continue
		}

		var env Envelope
		if err = json.Unmarshal(data, &env); err != nil {
			f.logger.Debug(
				"[jsignage] ignored malformed realtime message",
				zap.Error(err),
				zap.String("session_id", sub.SessionId()),
			)
			continue
		}
		if env.Type != TypePing {
			continue
		}

		pong := Envelope{Type: TypePong}
		if latest, ok := f.broadcaster.Latest(); ok {
			effective := latest.EffectiveSnapshot()
			pong.Payload = &effective
		}
		if err = c.sendEnvelope(pong); err != nil {
			return
		}
	}
}

func (f *Feed) pingLoop(sub *broadcast.Subscription, c *conn, p pinger) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := p.Ping()
			c.mu.Unlock()
			if err != nil {
				f.logger.Debug(
					"[jsignage] failed to ping realtime subscriber",
					zap.Error(err),
					zap.String("session_id", sub.SessionId()),
				)
				sub.Close()
				return
			}
		}
	}
}

// subscribe 订阅的生命周期由连接决定，不跟随请求 context。
// heartbeatTimeout <= 0 时由传输层自己判断连接存活。
func (f *Feed) subscribe(sessionId string, heartbeatTimeout time.Duration) (*broadcast.Subscription, error) {
	return f.broadcaster.Subscribe(context.Background(), sessionId, broadcast.WithHeartbeatTimeout(heartbeatTimeout))
}

func NewFeed(broadcaster broadcast.Broadcaster, cfg Config, logger *zap.Logger) *Feed {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.HeartbeatTimeout {
		cfg.PingInterval = cfg.HeartbeatTimeout / 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &Feed{
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
}

// conn 串行化同一连接上的写入
type conn struct {
	transport

	mu sync.Mutex
}

func (c *conn) sendEnvelope(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Send(data)
}

// sessionIdOf 从 session_id 查询参数获取会话 id，没有时生成一个。
//
// 会话 id 由客户端提供，按传输方式与客户端 IP 隔离，
// 只有同一来源的重连才会替换旧连接。
func sessionIdOf(r *http.Request, transportName string) string {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		id = uuid.NewString()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return transportName + ":" + host + ":" + id
}

// closeReason 返回给客户端的关闭原因
func closeReason(reason error) string {
	switch {
	case reason == nil:
		return "closed"
	case errors.Is(reason, errs.ErrHeartbeatTimeout):
		return "heartbeat timeout"
	case errors.Is(reason, errs.ErrSubscriberStalled):
		return "subscriber stalled"
	case errors.Is(reason, errs.ErrSessionReplaced):
		return "session replaced"
	case errors.Is(reason, errs.ErrBroadcasterClosed):
		return "server shutting down"
	case errors.Is(reason, errs.ErrSubscriberLimit):
		return "subscriber limit exceeded"
	case errors.Is(reason, errs.ErrInvalidParam):
		return "invalid session"
	default:
		return "closed"
	}
}
