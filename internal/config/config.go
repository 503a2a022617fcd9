// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 8000
}

// PostgresConfig PostgreSQL 数据库连接配置
type PostgresConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 默认 5432
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
	SslMode      string `toml:"sslMode"` // disable / require
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"` // 默认 6379
	Password string `toml:"password"`
	Db       int    `toml:"db"`
}

// KeycloakConfig 外部身份提供方（Keycloak）配置
// 本地库只保存 subject id，用户的姓名/邮箱等展示字段全部实时向 IdP 查询
type KeycloakConfig struct {
	BaseUrl        string `toml:"baseUrl"`        // 如 "http://localhost:8080"
	Realm          string `toml:"realm"`          // realm 名称
	ClientId       string `toml:"clientId"`       // service account 客户端
	ClientSecret   string `toml:"clientSecret"`   // client-credentials 凭据
	AdminUser      string `toml:"adminUser"`      // 管理账号（备用登录方式）
	AdminPassword  string `toml:"adminPassword"`  //
	TimeoutSeconds int    `toml:"timeoutSeconds"` // 单次请求超时，推荐 3-5 秒
}

// SmtpConfig 邮件发送配置
// 邮件自动化本身由外部服务承担，这里仅保留配置面
type SmtpConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// UploadsConfig 附件存储配置
type UploadsConfig struct {
	Dir string `toml:"dir"` // 附件落盘目录，默认 "uploads"
}

// CorsConfig 跨域配置
type CorsConfig struct {
	AllowedOrigins []string `toml:"allowedOrigins"` // 默认 http://localhost:3000
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig 推送中转配置
// messageMode 为 "channel" 时推送全部走进程内 Hub，"kafka" 时经由 Kafka 中转
// 以便多实例部署下各节点都能收到待推送的消息
type KafkaConfig struct {
	MessageMode string `toml:"messageMode"` // "channel" 或 "kafka"
	HostPort    string `toml:"hostPort"`    // 如 "localhost:9092"
	PushTopic   string `toml:"pushTopic"`   // 推送中转主题
	Partition   int    `toml:"partition"`
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig     `toml:"mainConfig"`
	PostgresConfig `toml:"postgresConfig"`
	RedisConfig    `toml:"redisConfig"`
	KeycloakConfig `toml:"keycloakConfig"`
	SmtpConfig     `toml:"smtpConfig"`
	UploadsConfig  `toml:"uploadsConfig"`
	CorsConfig     `toml:"corsConfig"`
	LogConfig      `toml:"logConfig"`
	KafkaConfig    `toml:"kafkaConfig"`
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	if config == nil {
		config = new(Config)
	}
	paths := []string{
		"configs/config_local.toml", // 本地开发配置（优先）
		"configs/config.toml",
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			applyDefaults(config)
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// applyDefaults 填充缺省值，保证配置文件缺项时行为可预期
func applyDefaults(c *Config) {
	if c.UploadsConfig.Dir == "" {
		c.UploadsConfig.Dir = "uploads"
	}
	if len(c.CorsConfig.AllowedOrigins) == 0 {
		c.CorsConfig.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.KeycloakConfig.TimeoutSeconds == 0 {
		c.KeycloakConfig.TimeoutSeconds = 5
	}
	if c.KafkaConfig.MessageMode == "" {
		c.KafkaConfig.MessageMode = "channel"
	}
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // 忽略加载错误，使用默认值
		applyDefaults(config)
	}
	return config
}
