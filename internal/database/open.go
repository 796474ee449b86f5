package database

import (
	"fmt"
	"time"

	"github.com/BaSui01/monitorflow/config"
	"github.com/BaSui01/monitorflow/types"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dialector 按驱动名返回 GORM 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := cfg.DSN()
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		if dsn == "" {
			return nil, types.NewError(types.ErrInvalidInput, "sqlite database name is empty")
		}
		return sqlite.Open(dsn), nil
	case "":
		return nil, types.NewError(types.ErrInvalidInput, "database driver not configured")
	default:
		return nil, types.NewError(types.ErrInvalidInput,
			fmt.Sprintf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", cfg.Driver))
	}
}

// Open 打开审计库并启动连接池管理
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*PoolManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	logger.Info("database connected", zap.String("driver", cfg.Driver))

	return NewPoolManager(db, PoolConfigFrom(cfg), logger)
}

// PoolConfigFrom 由数据库配置推导连接池配置
func PoolConfigFrom(cfg config.DatabaseConfig) PoolConfig {
	pc := DefaultPoolConfig()
	if cfg.MaxOpenConns > 0 {
		pc.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		pc.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	// sqlite 单写者
	if cfg.Driver == "sqlite" {
		pc.MaxOpenConns = 1
		pc.MaxIdleConns = 1
		pc.ConnMaxIdleTime = 0
		pc.ConnMaxLifetime = time.Duration(0)
	}
	return pc
}
