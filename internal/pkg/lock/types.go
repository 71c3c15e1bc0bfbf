package lock

import "context"

// Locker 支持 context 的互斥锁
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}
