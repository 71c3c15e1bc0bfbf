package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JrMarcco/jsignage/internal/api/web/httperr"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

var (
	_ transport = (*wsTransport)(nil)
	_ pinger    = (*wsTransport)(nil)
)

// wsTransport 服务端定期发送 ping，客户端的 pong 或任意消息都会刷新读超时。
// 控制帧以空消息的形式从 Recv 返回。
type wsTransport struct {
	conn             net.Conn
	reader           *wsutil.Reader
	control          wsutil.FrameHandlerFunc
	heartbeatTimeout time.Duration
	writeTimeout     time.Duration

	// 回复控制帧与推送消息可能并发写
	wmu sync.Mutex
}

func (t *wsTransport) Recv() ([]byte, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.heartbeatTimeout)); err != nil {
		return nil, err
	}

	hdr, err := t.reader.NextFrame()
	if err != nil {
		return nil, err
	}
	if hdr.OpCode.IsControl() {
		if err = t.control(hdr, t.reader); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
		return nil, t.reader.Discard()
	}
	return io.ReadAll(t.reader)
}

func (t *wsTransport) Send(data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerText(t.conn, data)
}

func (t *wsTransport) Ping() error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return ws.WriteFrame(t.conn, ws.NewPingFrame(nil))
}

func (t *wsTransport) Close(reason error) error {
	code := ws.StatusNormalClosure
	switch {
	case errors.Is(reason, errs.ErrBroadcasterClosed):
		code = ws.StatusGoingAway
	case errors.Is(reason, errs.ErrSubscriberStalled), errors.Is(reason, errs.ErrHeartbeatTimeout):
		code = ws.StatusPolicyViolation
	}

	t.wmu.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	body := ws.NewCloseFrameBody(code, closeReason(reason))
	_ = ws.WriteFrame(t.conn, ws.NewCloseFrame(body))
	t.wmu.Unlock()

	return t.conn.Close()
}

func (t *wsTransport) Name() string {
	return "websocket"
}

// Write 供控制帧回复使用
func (t *wsTransport) Write(p []byte) (int, error) {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return 0, err
	}
	return t.conn.Write(p)
}

func newWsTransport(conn net.Conn, heartbeatTimeout, writeTimeout time.Duration) *wsTransport {
	t := &wsTransport{
		conn:             conn,
		heartbeatTimeout: heartbeatTimeout,
		writeTimeout:     writeTimeout,
	}
	t.control = wsutil.ControlFrameHandler(t, ws.StateServerSide)
	t.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: t.control,
	}
	return t
}

// WsHandler 原生 WebSocket 配置推送入口，订阅失败时不升级连接
func (f *Feed) WsHandler() http.Handler {
	return http.HandlerFunc(f.handleWs)
}

func (f *Feed) handleWs(w http.ResponseWriter, r *http.Request) {
	sessionId := sessionIdOf(r, "websocket")

	sub, err := f.subscribe(sessionId, f.cfg.HeartbeatTimeout)
	if err != nil {
		f.logger.Warn(
			"[jsignage] failed to subscribe websocket session",
			zap.Error(err),
			zap.String("session_id", sessionId),
		)

		resp := httperr.FromError(err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(resp.Status)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	netConn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		f.logger.Warn(
			"[jsignage] failed to upgrade websocket connection",
			zap.Error(err),
			zap.String("session_id", sessionId),
		)
		sub.Close()
		return
	}

	f.serve(sub, newWsTransport(netConn, f.cfg.HeartbeatTimeout, f.cfg.WriteTimeout))
}
