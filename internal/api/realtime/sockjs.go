package realtime

import (
	"errors"
	"net/http"

	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/igm/sockjs-go/sockjs"
	"go.uber.org/zap"
)

// sockjs 应用层关闭码
const (
	sockjsStatusClosed          uint32 = 3000
	sockjsStatusSubscriberLimit uint32 = 4001
	sockjsStatusInvalidSession  uint32 = 4002
)

var _ transport = (*sockjsTransport)(nil)

type sockjsTransport struct {
	session sockjs.Session
}

func (t *sockjsTransport) Recv() ([]byte, error) {
	msg, err := t.session.Recv()
	if err != nil {
		return nil, err
	}
	return []byte(msg), nil
}

func (t *sockjsTransport) Send(data []byte) error {
	return t.session.Send(string(data))
}

func (t *sockjsTransport) Close(reason error) error {
	return t.session.Close(sockjsStatusClosed, closeReason(reason))
}

func (t *sockjsTransport) Name() string {
	return "sockjs"
}

// SockJSHandler 挂载在 prefix 下的 SockJS 配置推送入口
func (f *Feed) SockJSHandler(prefix string) http.Handler {
	opts := sockjs.DefaultOptions
	if f.cfg.SockJSHeartbeat > 0 {
		opts.HeartbeatDelay = f.cfg.SockJSHeartbeat
	}
	return sockjs.NewHandler(prefix, opts, f.handleSockJS)
}

// handleSockJS 会话存活由 sockjs 自身的心跳与断开超时判断，不再叠加应用层心跳超时
func (f *Feed) handleSockJS(session sockjs.Session) {
	sessionId := sessionIdOf(session.Request(), "sockjs")

	sub, err := f.subscribe(sessionId, 0)
	if err != nil {
		f.logger.Warn(
			"[jsignage] failed to subscribe sockjs session",
			zap.Error(err),
			zap.String("session_id", sessionId),
		)

		status := sockjsStatusInvalidSession
		if errors.Is(err, errs.ErrSubscriberLimit) {
			status = sockjsStatusSubscriberLimit
		}
		_ = session.Close(status, closeReason(err))
		return
	}

	f.serve(sub, &sockjsTransport{session: session})
}
