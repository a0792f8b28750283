// Package database 负责建立业务数据库与 Redis 的连接。
package database

import (
	"fmt"
	"strings"
	"time"

	"sql-smart-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的方言名称，与 gorm Dialector.Name() 一致。
const (
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

// DetectDialect 根据连接串判断方言：postgres:// 与 postgresql:// 走 Postgres，其余视为 MySQL DSN。
func DetectDialect(url string) string {
	lower := strings.ToLower(strings.TrimSpace(url))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectMySQL
}

func dialector(url string) gorm.Dialector {
	if DetectDialect(url) == DialectPostgres {
		return postgres.Open(url)
	}
	// 不在打开时查询版本，保证数据库不可达时 Open 仍然成功
	return mysql.New(mysql.Config{DSN: url, SkipInitializeWithVersion: true})
}

// Open 创建数据库连接池并配置参数。连接是惰性的：不 ping 也不查询，
// 数据库不可达的错误在第一次查询时返回，由调用方的 context 限定等待时间。
func Open(url string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(url), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	log.Infof("%s 连接池已创建", db.Dialector.Name())
	return db, nil
}

// Close 关闭底层连接池。
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
