package sharding

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStrategy_Shard(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name       string
		shards     int
		wantShards int
	}{
		{name: "single shard", shards: 1, wantShards: 1},
		{name: "non positive falls back to one", shards: 0, wantShards: 1},
		{name: "multiple shards", shards: 16, wantShards: 16},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewHashStrategy(tc.shards)
			assert.Equal(t, tc.wantShards, s.Shards())
			assert.Len(t, s.BroadCast(), tc.wantShards)

			for i := 0; i < 256; i++ {
				key := fmt.Sprintf("session-%d", i)
				idx := s.Shard(key)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, tc.wantShards)
				// 同一个 key 始终落在同一个分片
				assert.Equal(t, idx, s.Shard(key))
			}
		})
	}
}

func TestHashStrategy_Spread(t *testing.T) {
	t.Parallel()

	s := NewHashStrategy(8)
	hit := make(map[int]int)
	for i := 0; i < 1024; i++ {
		hit[s.Shard(fmt.Sprintf("session-%d", i))]++
	}
	assert.Len(t, hit, 8)
}
