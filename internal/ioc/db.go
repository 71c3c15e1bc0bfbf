package ioc

import (
	"time"

	"github.com/JrMarcco/jsignage/internal/repository/dao"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DBFxOpt = fx.Provide(
	InitDB,
)

func InitDB(logger *zap.Logger) *gorm.DB {
	type config struct {
		DSN             string        `mapstructure:"dsn"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		AutoMigrate     bool          `mapstructure:"auto_migrate"`
	}

	cfg := &config{}
	if err := viper.UnmarshalKey("db", cfg); err != nil {
		panic(err)
	}

	// TranslateError 开启后唯一键冲突统一为 gorm.ErrDuplicatedKey
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		panic(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.AutoMigrate {
		if err = dao.InitTables(db); err != nil {
			panic(err)
		}
		logger.Info("[jsignage] database tables migrated")
	}
	return db
}
