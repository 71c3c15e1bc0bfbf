package local

import (
	"context"
	"fmt"

	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/repository/cache"
	gcache "github.com/patrickmn/go-cache"
)

var _ cache.OrderCache = (*OrderLocalCache)(nil)

type OrderLocalCache struct {
	c *gcache.Cache
}

func (lc *OrderLocalCache) Get(_ context.Context, queueNumber uint64) (domain.OrderRecord, error) {
	val, ok := lc.c.Get(cache.OrderKey(queueNumber))
	if !ok {
		return domain.OrderRecord{}, cache.ErrOrderCacheMiss
	}

	order, ok := val.(domain.OrderRecord)
	if !ok {
		return domain.OrderRecord{}, fmt.Errorf("[jsignage] unexpected order cache value type: %T", val)
	}
	return order, nil
}

func (lc *OrderLocalCache) Set(_ context.Context, order domain.OrderRecord) error {
	lc.c.Set(cache.OrderKey(order.QueueNumber), order, gcache.DefaultExpiration)
	return nil
}

func NewOrderLocalCache(c *gcache.Cache) *OrderLocalCache {
	return &OrderLocalCache{
		c: c,
	}
}
