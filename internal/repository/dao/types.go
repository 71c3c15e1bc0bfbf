package dao

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateErr 判断是否唯一键冲突。
//
// 开启 TranslateError 后驱动会返回 gorm.ErrDuplicatedKey，
// 未开启或驱动不支持时退化为匹配错误信息。
func IsDuplicateErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

// InitTables 自动建表
func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&ChannelConfigSnapshot{},
		&Order{},
	)
}
