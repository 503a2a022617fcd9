// Package https_server 提供 HTTP 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件、静态资源和路由
package https_server

import (
	"qu2data_server/internal/config"
	"qu2data_server/internal/handler"
	"qu2data_server/internal/infrastructure/logger"
	"qu2data_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 初始化 HTTP 服务器并返回 Gin 引擎实例
// handlers: 通过依赖注入传入的 handler 聚合对象
// 配置顺序：
//  1. 创建 Gin 引擎（空白，不含默认中间件）
//  2. 注册日志和恢复中间件
//  3. 配置 CORS 跨域规则
//  4. 映射附件静态资源目录
//  5. 注册业务路由
func Init(handlers *handler.Handlers) *gin.Engine {
	engine := gin.New()

	// Zap 日志中间件替代 Gin 默认日志
	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	// CORS 跨域规则，来源白名单来自配置
	corsConfig := cors.DefaultConfig()
	origins := config.GetConfig().CorsConfig.AllowedOrigins
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	// 附件静态目录，storagePath 里的文件名直接可访问
	engine.Static("/uploads", config.GetConfig().UploadsConfig.Dir)

	rt := router.NewRouter(handlers)
	rt.RegisterRoutes(engine)

	return engine
}
