package dao

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelConfigSnapshot 渠道配置快照实体，每个版本一行
type ChannelConfigSnapshot struct {
	Version         uint64 `gorm:"primaryKey;autoIncrement:false"`
	SystemEnabled   bool
	ImageEnabled    bool
	TextEnabled     bool
	BirthdayEnabled bool
	CreatedAt       int64 `gorm:"autoCreateTime:milli"`
	UpdatedAt       int64 `gorm:"autoUpdateTime:milli"`
}

func (s ChannelConfigSnapshot) TableName() string {
	return "channel_config_snapshot"
}

type ChannelConfigDAO interface {
	// Insert 写入快照，版本已存在时忽略（集群模式下多个实例会写入同一个版本）
	Insert(ctx context.Context, snapshot ChannelConfigSnapshot) error
	Latest(ctx context.Context) (ChannelConfigSnapshot, error)
	// List 按版本倒序返回最近 limit 个快照
	List(ctx context.Context, limit int) ([]ChannelConfigSnapshot, error)
}

var _ ChannelConfigDAO = (*DefaultChannelConfigDAO)(nil)

type DefaultChannelConfigDAO struct {
	db *gorm.DB
}

func (d *DefaultChannelConfigDAO) Insert(ctx context.Context, snapshot ChannelConfigSnapshot) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&snapshot).Error
}

func (d *DefaultChannelConfigDAO) Latest(ctx context.Context) (ChannelConfigSnapshot, error) {
	var snapshot ChannelConfigSnapshot
	err := d.db.WithContext(ctx).Order("version DESC").First(&snapshot).Error
	if err != nil {
		return ChannelConfigSnapshot{}, err
	}
	return snapshot, nil
}

func (d *DefaultChannelConfigDAO) List(ctx context.Context, limit int) ([]ChannelConfigSnapshot, error) {
	var snapshots []ChannelConfigSnapshot
	err := d.db.WithContext(ctx).Order("version DESC").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}

func NewDefaultChannelConfigDAO(db *gorm.DB) *DefaultChannelConfigDAO {
	return &DefaultChannelConfigDAO{
		db: db,
	}
}
