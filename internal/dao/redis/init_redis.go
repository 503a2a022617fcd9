// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"strconv"

	"qu2data_server/internal/config"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

var cacheService AsyncCacheService

// Init 初始化 Redis 连接并创建缓存服务实例
func Init() {
	conf := config.GetConfig()
	addr := conf.RedisConfig.Host + ":" + strconv.Itoa(conf.RedisConfig.Port)

	redisClient = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: conf.RedisConfig.Password,
		DB:       conf.RedisConfig.Db,
		// 连接池：空闲连接数与 Worker 数量匹配
		PoolSize:     50,
		MinIdleConns: 15,
	})

	cacheService = NewRedisCache(redisClient, 15, 3000)
}

// GetCacheService 获取缓存服务实例，供依赖注入使用
func GetCacheService() AsyncCacheService {
	return cacheService
}
