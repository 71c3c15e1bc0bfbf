package etcdwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/JrMarcco/easy-kit/retry"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Source etcd 读取与监听能力，*clientv3.Client 满足该接口
type Source interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Watch(ctx context.Context, key string, opts ...clientv3.OpOption) clientv3.WatchChan
}

// HandleFunc 处理 key 的最新值，删除事件不会触发
type HandleFunc func(ctx context.Context, kv *mvccpb.KeyValue)

// Watcher 监听单个 key。
//
// 启动时先读取当前值，再从下一个 revision 开始监听。
// 监听中断（例如 revision 被压缩）后按重试策略重新读取并监听，
// 成功同步过一次后重试次数清零，重试次数耗尽时 Run 返回错误。
type Watcher struct {
	src      Source
	key      string
	handle   HandleFunc
	strategy retry.Strategy
	logger   *zap.Logger
}

func (w *Watcher) Run(ctx context.Context) error {
	var retried int32
	for {
		synced, err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if synced {
			retried = 0
		}

		interval, ok := w.strategy.NextWithRetried(retried)
		if !ok {
			return fmt.Errorf("[jsignage] etcd watch on %s gave up after %d retries: %w", w.key, retried, err)
		}
		retried++

		w.logger.Warn(
			"[jsignage] etcd watch interrupted, retrying",
			zap.String("key", w.key),
			zap.Int32("retried", retried),
			zap.Duration("interval", interval),
			zap.Error(err),
		)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// watchOnce 返回的 synced 表示本轮已读到当前值并开始监听
func (w *Watcher) watchOnce(ctx context.Context) (bool, error) {
	resp, err := w.src.Get(ctx, w.key)
	if err != nil {
		return false, fmt.Errorf("[jsignage] failed to get etcd key %s: %w", w.key, err)
	}
	for _, kv := range resp.Kvs {
		w.handle(ctx, kv)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wch := w.src.Watch(watchCtx, w.key, clientv3.WithRev(resp.Header.Revision+1))
	for wresp := range wch {
		if err = wresp.Err(); err != nil {
			return true, err
		}
		for _, ev := range wresp.Events {
			if ev.Type == mvccpb.PUT {
				w.handle(ctx, ev.Kv)
			}
		}
	}
	return true, fmt.Errorf("[jsignage] etcd watch channel closed: %s", w.key)
}

func NewWatcher(src Source, key string, handle HandleFunc, strategy retry.Strategy, logger *zap.Logger) *Watcher {
	return &Watcher{
		src:      src,
		key:      key,
		handle:   handle,
		strategy: strategy,
		logger:   logger,
	}
}
