package channelconf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JrMarcco/easy-kit/retry"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/pkg/etcdwatch"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Updater 管理端修改渠道配置的入口。
//
// expected 不为 nil 时只有当前版本等于 expected 才会修改。
type Updater interface {
	Update(ctx context.Context, cfg domain.ChannelConfig, expected *uint64) (domain.ConfigSnapshot, error)
}

var _ Updater = (*LocalUpdater)(nil)

// LocalUpdater 单实例模式，直接修改本地 Store
type LocalUpdater struct {
	store Store
}

func (u *LocalUpdater) Update(ctx context.Context, cfg domain.ChannelConfig, expected *uint64) (domain.ConfigSnapshot, error) {
	if expected == nil {
		return u.store.Set(ctx, cfg)
	}
	return u.store.CompareAndSet(ctx, *expected, cfg)
}

func NewLocalUpdater(store Store) *LocalUpdater {
	return &LocalUpdater{
		store: store,
	}
}

// etcdValue 写入 etcd 的配置内容，版本号使用 key 的 ModRevision
type etcdValue struct {
	domain.ChannelConfig
	UpdatedAt int64 `json:"updated_at"`
}

// DecodeSnapshot 把 etcd 中的配置还原为快照
func DecodeSnapshot(kv *mvccpb.KeyValue) (domain.ConfigSnapshot, error) {
	var val etcdValue
	if err := json.Unmarshal(kv.Value, &val); err != nil {
		return domain.ConfigSnapshot{}, fmt.Errorf("[jsignage] failed to decode channel config %s: %w", kv.Key, err)
	}
	return domain.ConfigSnapshot{
		ChannelConfig: val.ChannelConfig,
		Version:       uint64(kv.ModRevision),
		UpdatedAt:     val.UpdatedAt,
	}, nil
}

var _ Updater = (*EtcdUpdater)(nil)

// EtcdUpdater 集群模式，配置写入 etcd 后在本地生效，其它实例通过 EtcdWatcher 同步
type EtcdUpdater struct {
	kv    clientv3.KV
	key   string
	store Store
	now   func() time.Time
}

func (u *EtcdUpdater) Update(ctx context.Context, cfg domain.ChannelConfig, expected *uint64) (domain.ConfigSnapshot, error) {
	updatedAt := u.now().UnixMilli()
	val, err := json.Marshal(etcdValue{ChannelConfig: cfg, UpdatedAt: updatedAt})
	if err != nil {
		return domain.ConfigSnapshot{}, err
	}

	txn := u.kv.Txn(ctx)
	if expected != nil {
		txn = txn.If(clientv3.Compare(clientv3.ModRevision(u.key), "=", int64(*expected)))
	}
	resp, err := txn.Then(clientv3.OpPut(u.key, string(val))).Commit()
	if err != nil {
		return domain.ConfigSnapshot{}, fmt.Errorf("[jsignage] failed to write channel config to etcd: %w", err)
	}
	if !resp.Succeeded {
		return domain.ConfigSnapshot{}, fmt.Errorf("%w: expected version %d", errs.ErrVersionConflict, *expected)
	}

	snapshot := domain.ConfigSnapshot{
		ChannelConfig: cfg,
		Version:       uint64(resp.Header.Revision),
		UpdatedAt:     updatedAt,
	}
	// watcher 可能已经先一步应用了同一版本
	if _, err = u.store.Apply(ctx, snapshot); err != nil {
		return domain.ConfigSnapshot{}, err
	}
	return snapshot, nil
}

func NewEtcdUpdater(kv clientv3.KV, key string, store Store) *EtcdUpdater {
	return &EtcdUpdater{
		kv:    kv,
		key:   key,
		store: store,
		now:   time.Now,
	}
}

// EtcdWatcher 把 etcd 中的配置同步到本地 Store
type EtcdWatcher struct {
	watcher *etcdwatch.Watcher
}

func (w *EtcdWatcher) Run(ctx context.Context) error {
	return w.watcher.Run(ctx)
}

func NewEtcdWatcher(
	src etcdwatch.Source,
	key string,
	store Store,
	strategy retry.Strategy,
	logger *zap.Logger,
) *EtcdWatcher {
	handle := func(ctx context.Context, kv *mvccpb.KeyValue) {
		snapshot, err := DecodeSnapshot(kv)
		if err != nil {
			logger.Error("[jsignage] invalid channel config in etcd", zap.Error(err))
			return
		}

		applied, err := store.Apply(ctx, snapshot)
		if err != nil {
			logger.Error(
				"[jsignage] failed to apply channel config from etcd",
				zap.Error(err),
				zap.Uint64("version", snapshot.Version),
			)
			return
		}
		if applied {
			logger.Info("[jsignage] channel config synced from etcd", zap.Uint64("version", snapshot.Version))
		}
	}

	return &EtcdWatcher{
		watcher: etcdwatch.NewWatcher(src, key, handle, strategy, logger),
	}
}
