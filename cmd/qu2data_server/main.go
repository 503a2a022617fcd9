package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qu2data_server/internal/config"
	"qu2data_server/internal/dao/postgres"
	myredis "qu2data_server/internal/dao/redis"
	"qu2data_server/internal/handler"
	"qu2data_server/internal/https_server"
	"qu2data_server/internal/infrastructure/filestore"
	"qu2data_server/internal/infrastructure/idp"
	"qu2data_server/internal/infrastructure/logger"
	"qu2data_server/internal/service"
	groupsvc "qu2data_server/internal/service/group"
	messagesvc "qu2data_server/internal/service/message"
	"qu2data_server/internal/service/push"
	usersvc "qu2data_server/internal/service/user"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化校验器翻译（前端面向法语用户）
	if err := handler.InitTrans("fr"); err != nil {
		zap.L().Fatal("校验器翻译初始化失败", zap.Error(err))
	}

	// 4. 初始化数据库
	repos := postgres.Init()
	zap.L().Info("数据库初始化成功")

	// 5. 初始化 Redis
	myredis.Init()
	cache := myredis.GetCacheService()
	zap.L().Info("Redis 初始化成功")

	// 6. 附件存储
	store, err := filestore.NewStore(conf.UploadsConfig.Dir)
	if err != nil {
		zap.L().Fatal("附件目录初始化失败", zap.Error(err))
	}

	// 7. 身份提供方客户端
	provider := idp.NewKeycloakProvider(&conf.KeycloakConfig)

	// 8. 推送层
	// Hub 始终运行；kafka 模式下发布经 Kafka 中转再回流到 Hub，
	// 多实例部署时每个节点都能收到全量推送
	hub := push.NewHub()
	go hub.Start()

	var notifier push.Notifier = hub
	var relay *push.KafkaRelay
	if conf.KafkaConfig.MessageMode == "kafka" {
		relay = push.NewKafkaRelay(hub, &conf.KafkaConfig)
		relay.Start()
		notifier = relay
		zap.L().Info("Kafka 推送中转已启动")
	}
	gateway := push.NewGateway(hub, cache, repos.GroupMember)

	// 9. Service 层（依赖注入）
	services := &service.Services{
		Message: messagesvc.NewMessageService(repos, cache, provider, store, notifier),
		User:    usersvc.NewUserService(repos, provider),
		Group:   groupsvc.NewGroupService(repos),
	}
	zap.L().Info("Service 层初始化成功")

	// 10. Handler 与 HTTP 服务器
	handlers := handler.NewHandlers(services, gateway)
	engine := https_server.Init(handlers)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}

	go func() {
		zap.L().Info("服务器启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 信号监听，收到终止信号后优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown", zap.Error(err))
	}

	if relay != nil {
		relay.Close()
	}
	hub.Close()

	zap.L().Info("服务器已关闭")
}
