package sharding

import (
	"github.com/cespare/xxhash/v2"
)

// HashStrategy 基于 xxhash 的分片策略，把 key 稳定地映射到固定数量的分片上。
type HashStrategy struct {
	shards uint64
}

// Shard 返回 key 所在分片下标
func (h HashStrategy) Shard(key string) int {
	return int(xxhash.Sum64String(key) % h.shards)
}

// Shards 返回分片数量
func (h HashStrategy) Shards() int {
	return int(h.shards)
}

// BroadCast 返回全部分片下标
func (h HashStrategy) BroadCast() []int {
	res := make([]int, 0, h.shards)
	for i := uint64(0); i < h.shards; i++ {
		res = append(res, int(i))
	}
	return res
}

func NewHashStrategy(shards int) HashStrategy {
	if shards <= 0 {
		shards = 1
	}
	return HashStrategy{shards: uint64(shards)}
}
