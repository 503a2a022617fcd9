// Package postgres 提供数据访问层的初始化
// 负责建立 PostgreSQL 连接、自动迁移表结构、初始化 Repository 层
package postgres

import (
	"fmt"

	"qu2data_server/internal/config"
	"qu2data_server/internal/dao/postgres/repository"
	"qu2data_server/internal/model"

	"go.uber.org/zap"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 连接失败或迁移失败直接 Fatal 退出，服务不允许在无库状态下启动
func Init() *repository.Repositories {
	conf := config.GetConfig()

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		conf.PostgresConfig.Host,
		conf.PostgresConfig.Port,
		conf.PostgresConfig.User,
		conf.PostgresConfig.Password,
		conf.PostgresConfig.DatabaseName,
		conf.PostgresConfig.SslMode,
	)

	db, err := gorm.Open(postgresdriver.Open(dsn), &gorm.Config{})
	if err != nil {
		zap.L().Fatal(err.Error())
	}

	if err := Migrate(db); err != nil {
		zap.L().Fatal(err.Error())
	}

	return repository.NewRepositories(db)
}

// Migrate 自动迁移表结构
// 表不存在则建表，字段变更则补列，不删除存量字段和数据
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Group{},
		&model.GroupMember{},
		&model.Message{},
		&model.Attachment{},
		&model.ConversationStatus{},
	)
}
