package lock

import (
	"context"

	"go.etcd.io/etcd/client/v3/concurrency"
)

var _ Locker = (*EtcdLocker)(nil)

// EtcdLocker 跨实例互斥锁。
//
// concurrency.Mutex 不能被同一进程内的多个 goroutine 并发使用，
// 所以先获取进程内的锁再获取 etcd 锁。
type EtcdLocker struct {
	local *LocalLocker
	mu    *concurrency.Mutex
}

func (l *EtcdLocker) Lock(ctx context.Context) error {
	if err := l.local.Lock(ctx); err != nil {
		return err
	}
	if err := l.mu.Lock(ctx); err != nil {
		_ = l.local.Unlock(ctx)
		return err
	}
	return nil
}

func (l *EtcdLocker) Unlock(ctx context.Context) error {
	defer func() { _ = l.local.Unlock(ctx) }()
	return l.mu.Unlock(ctx)
}

func NewEtcdLocker(session *concurrency.Session, key string) *EtcdLocker {
	return &EtcdLocker{
		local: NewLocalLocker(),
		mu:    concurrency.NewMutex(session, key),
	}
}
