package idempotent

import "context"

// Strategy 幂等策略
type Strategy interface {
	// Exists 标记 key，key 已被标记过时返回 true
	Exists(ctx context.Context, key string) (bool, error)
	// Release 释放标记，处理失败后允许同一个 key 重试
	Release(ctx context.Context, key string) error
}
