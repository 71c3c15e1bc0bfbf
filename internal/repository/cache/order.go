package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/JrMarcco/jsignage/internal/domain"
)

var ErrOrderCacheMiss = errors.New("[jsignage] order cache miss")

// OrderCache 排队记录缓存，记录创建后不可变，可以放心缓存
type OrderCache interface {
	Get(ctx context.Context, queueNumber uint64) (domain.OrderRecord, error)
	Set(ctx context.Context, order domain.OrderRecord) error
}

func OrderKey(queueNumber uint64) string {
	return fmt.Sprintf("order:%d", queueNumber)
}
