package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/JrMarcco/easy-kit/slice"
	"github.com/JrMarcco/jsignage/internal/domain"
	"github.com/JrMarcco/jsignage/internal/errs"
	"github.com/JrMarcco/jsignage/internal/repository/cache"
	"github.com/JrMarcco/jsignage/internal/repository/dao"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChannelConfigRepo interface {
	// Latest 返回最新的快照，没有任何快照时返回 errs.ErrChannelConfigNotFound
	Latest(ctx context.Context) (domain.ConfigSnapshot, error)
	Save(ctx context.Context, snapshot domain.ConfigSnapshot) error
	// History 按版本倒序返回最近 limit 个快照
	History(ctx context.Context, limit int) ([]domain.ConfigSnapshot, error)
}

var _ ChannelConfigRepo = (*DefaultChannelConfigRepo)(nil)

type DefaultChannelConfigRepo struct {
	dao        dao.ChannelConfigDAO
	redisCache cache.ChannelConfigCache
	logger     *zap.Logger
}

func (r *DefaultChannelConfigRepo) Latest(ctx context.Context) (domain.ConfigSnapshot, error) {
	snapshot, err := r.redisCache.Get(ctx)
	if err == nil {
		return snapshot, nil
	}
	if !errors.Is(err, cache.ErrChannelConfigCacheMiss) {
		r.logger.Warn("[jsignage] failed to get channel config from redis", zap.Error(err))
	}

	entity, err := r.dao.Latest(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ConfigSnapshot{}, errs.ErrChannelConfigNotFound
		}
		return domain.ConfigSnapshot{}, fmt.Errorf("[jsignage] failed to load latest channel config: %w", err)
	}

	snapshot = r.toDomain(entity)
	if rcErr := r.redisCache.Set(ctx, snapshot); rcErr != nil {
		r.logger.Error(
			"[jsignage] failed to refresh channel config redis cache",
			zap.Error(rcErr),
			zap.Uint64("version", snapshot.Version),
		)
	}
	return snapshot, nil
}

func (r *DefaultChannelConfigRepo) Save(ctx context.Context, snapshot domain.ConfigSnapshot) error {
	if err := r.dao.Insert(ctx, r.toEntity(snapshot)); err != nil {
		return fmt.Errorf("[jsignage] failed to save channel config: %w", err)
	}

	// 缓存写入失败不影响保存结果，缓存只会被更高的版本覆盖
	if rcErr := r.redisCache.Set(ctx, snapshot); rcErr != nil {
		r.logger.Error(
			"[jsignage] failed to refresh channel config redis cache",
			zap.Error(rcErr),
			zap.Uint64("version", snapshot.Version),
		)
	}
	return nil
}

func (r *DefaultChannelConfigRepo) History(ctx context.Context, limit int) ([]domain.ConfigSnapshot, error) {
	entities, err := r.dao.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("[jsignage] failed to list channel config history: %w", err)
	}

	return slice.Map(entities, func(_ int, src dao.ChannelConfigSnapshot) domain.ConfigSnapshot {
		return r.toDomain(src)
	}), nil
}

func (r *DefaultChannelConfigRepo) toDomain(entity dao.ChannelConfigSnapshot) domain.ConfigSnapshot {
	return domain.ConfigSnapshot{
		ChannelConfig: domain.ChannelConfig{
			SystemEnabled:   entity.SystemEnabled,
			ImageEnabled:    entity.ImageEnabled,
			TextEnabled:     entity.TextEnabled,
			BirthdayEnabled: entity.BirthdayEnabled,
		},
		Version:   entity.Version,
		UpdatedAt: entity.UpdatedAt,
	}
}

func (r *DefaultChannelConfigRepo) toEntity(snapshot domain.ConfigSnapshot) dao.ChannelConfigSnapshot {
	return dao.ChannelConfigSnapshot{
		Version:         snapshot.Version,
		SystemEnabled:   snapshot.SystemEnabled,
		ImageEnabled:    snapshot.ImageEnabled,
		TextEnabled:     snapshot.TextEnabled,
		BirthdayEnabled: snapshot.BirthdayEnabled,
		CreatedAt:       snapshot.UpdatedAt,
		UpdatedAt:       snapshot.UpdatedAt,
	}
}

func NewDefaultChannelConfigRepo(
	dao dao.ChannelConfigDAO,
	redisCache cache.ChannelConfigCache,
	logger *zap.Logger,
) *DefaultChannelConfigRepo {
	return &DefaultChannelConfigRepo{
		dao:        dao,
		redisCache: redisCache,
		logger:     logger,
	}
}
