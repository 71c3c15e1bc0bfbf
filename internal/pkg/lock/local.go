package lock

import (
	"context"
)

var _ Locker = (*LocalLocker)(nil)

// LocalLocker 进程内互斥锁，等待期间可以被 ctx 取消
type LocalLocker struct {
	ch chan struct{}
}

func (l *LocalLocker) Lock(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *LocalLocker) Unlock(_ context.Context) error {
	select {
	case <-l.ch:
		return nil
	default:
		panic("[jsignage] unlock of unlocked locker")
	}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{ch: make(chan struct{}, 1)}
}
