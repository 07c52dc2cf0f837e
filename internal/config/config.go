package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// IndexConfig 定义全文索引任务队列配置
type IndexConfig struct {
	DelayedKey       string        // 延迟任务有序集合的键名
	ReadyKey         string        // 就绪任务列表的键名
	EnqueueDelay     time.Duration // 入队延迟，等待存储一致性，默认 3s
	DispatchInterval time.Duration // 到期任务搬运周期，默认 1s
	Workers          int           // 异步投递协程数，默认 4
	QueueSize        int           // 投递任务缓冲大小，默认 256
}

// TruncationRuleConfig 针对特定对方机构的正文截断规则
type TruncationRuleConfig struct {
	Counterparty string // 对方机构名称
	Marker       string // 截断标记，标记及其后的内容被丢弃
}

// IgnoreRuleConfig 上传附件的忽略规则
type IgnoreRuleConfig struct {
	ContentType string // 声明的内容类型
	Extension   string // 文件名后缀（不含点）
}

// AttachmentConfig 定义附件存储与入库配置
type AttachmentConfig struct {
	StoragePath   string           // 附件字节内容的根目录
	MaxUploadSize int64            // 单个上传的最大字节数
	IgnoreRules   []IgnoreRuleConfig // 静默丢弃的上传类型（如签名旁文件）
}

// NormalizerConfig 定义正文清洗配置
type NormalizerConfig struct {
	TruncationRules []TruncationRuleConfig // 机构特例截断规则，按顺序求值
}

// GatewayConfig 定义外部案件系统客户端配置
type GatewayConfig struct {
	BaseURL string        // 案件服务根地址
	Secret  string        // 请求签名密钥
	Timeout time.Duration // 请求超时，默认 10s
}

// MailInConfig 定义入站邮件接收配置
type MailInConfig struct {
	Enabled  bool   // 是否启动入站 SMTP 接收
	BindAddr string // SMTP 监听地址，默认 ":2525"
	Domain   string // HELO/EHLO 使用的域名
	MaxConns int    // 最大并发连接数，默认 50
	MaxRate  int    // 每秒最大新建连接数，默认 10
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server     ServerConfig     // HTTP 服务器配置
	CORS       CORSConfig       // 跨域配置
	Log        LogConfig        // 日志配置
	Database   DatabaseConfig   // 数据库配置
	Redis      RedisConfig      // Redis 配置
	Index      IndexConfig      // 索引队列配置
	Attachment AttachmentConfig // 附件配置
	Normalizer NormalizerConfig // 正文清洗配置
	Gateway    GatewayConfig    // 案件系统客户端配置
	MailIn     MailInConfig     // 入站邮件配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: COMMTRACK_
// 例如: COMMTRACK_SERVER_HOST, COMMTRACK_DATABASE_DSN
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("commtrack")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("index.delayed_key", "commtrack:index:delayed")
	viper.SetDefault("index.ready_key", "commtrack:index:ready")
	viper.SetDefault("index.enqueue_delay", "3s")
	viper.SetDefault("index.dispatch_interval", "1s")
	viper.SetDefault("index.workers", 4)
	viper.SetDefault("index.queue_size", 256)
	viper.SetDefault("attachment.storage_path", "./data/attachments")
	viper.SetDefault("attachment.max_upload_size", 50*1024*1024)
	// 密码学签名旁文件对用户没有意义，静默丢弃
	viper.SetDefault("attachment.ignore_rules", "application/x-pkcs7-signature:p7s")
	viper.SetDefault("normalizer.truncation_rules", "")
	viper.SetDefault("gateway.base_url", "http://localhost:9090")
	viper.SetDefault("gateway.secret", "")
	viper.SetDefault("gateway.timeout", "10s")
	viper.SetDefault("mailin.enabled", false)
	viper.SetDefault("mailin.bind_addr", ":2525")
	viper.SetDefault("mailin.domain", "comms.local")
	viper.SetDefault("mailin.max_conns", 50)
	viper.SetDefault("mailin.max_rate", 10)

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	enqueueDelay, err := time.ParseDuration(viper.GetString("index.enqueue_delay"))
	if err != nil {
		return nil, fmt.Errorf("invalid index.enqueue_delay: %w", err)
	}

	dispatchInterval, err := time.ParseDuration(viper.GetString("index.dispatch_interval"))
	if err != nil {
		dispatchInterval = time.Second
	}

	gatewayTimeout, err := time.ParseDuration(viper.GetString("gateway.timeout"))
	if err != nil {
		gatewayTimeout = 10 * time.Second
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	truncationRules, err := ParseTruncationRules(viper.GetString("normalizer.truncation_rules"))
	if err != nil {
		return nil, err
	}

	ignoreRules, err := ParseIgnoreRules(viper.GetString("attachment.ignore_rules"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Index: IndexConfig{
			DelayedKey:       viper.GetString("index.delayed_key"),
			ReadyKey:         viper.GetString("index.ready_key"),
			EnqueueDelay:     enqueueDelay,
			DispatchInterval: dispatchInterval,
			Workers:          viper.GetInt("index.workers"),
			QueueSize:        viper.GetInt("index.queue_size"),
		},
		Attachment: AttachmentConfig{
			StoragePath:   viper.GetString("attachment.storage_path"),
			MaxUploadSize: viper.GetInt64("attachment.max_upload_size"),
			IgnoreRules:   ignoreRules,
		},
		Normalizer: NormalizerConfig{
			TruncationRules: truncationRules,
		},
		Gateway: GatewayConfig{
			BaseURL: viper.GetString("gateway.base_url"),
			Secret:  viper.GetString("gateway.secret"),
			Timeout: gatewayTimeout,
		},
		MailIn: MailInConfig{
			Enabled:  viper.GetBool("mailin.enabled"),
			BindAddr: viper.GetString("mailin.bind_addr"),
			Domain:   viper.GetString("mailin.domain"),
			MaxConns: viper.GetInt("mailin.max_conns"),
			MaxRate:  viper.GetInt("mailin.max_rate"),
		},
	}

	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Index.QueueSize <= 0 {
		cfg.Index.QueueSize = 256
	}

	return cfg, nil
}

// ParseTruncationRules 解析机构截断规则配置。
//
// 格式: "机构名=>标记|机构名=>标记"，规则之间用竖线分隔。
// 机构特例是配置数据而不是代码，新机构上线不需要改动程序。
func ParseTruncationRules(value string) ([]TruncationRuleConfig, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	parts := strings.Split(value, "|")
	rules := make([]TruncationRuleConfig, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		fields := strings.SplitN(part, "=>", 2)
		if len(fields) != 2 || strings.TrimSpace(fields[0]) == "" || fields[1] == "" {
			return nil, fmt.Errorf("invalid truncation rule %q, expected \"counterparty=>marker\"", part)
		}
		rules = append(rules, TruncationRuleConfig{
			Counterparty: strings.TrimSpace(fields[0]),
			Marker:       fields[1],
		})
	}
	return rules, nil
}

// ParseIgnoreRules 解析附件忽略规则配置。
//
// 格式: "内容类型:后缀,内容类型:后缀"，任意一侧可以留空。
func ParseIgnoreRules(value string) ([]IgnoreRuleConfig, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	rules := make([]IgnoreRuleConfig, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		rule := IgnoreRuleConfig{ContentType: strings.TrimSpace(fields[0])}
		if len(fields) == 2 {
			rule.Extension = strings.TrimSpace(fields[1])
		}
		if rule.ContentType == "" && rule.Extension == "" {
			return nil, fmt.Errorf("invalid ignore rule %q, expected \"content-type:extension\"", part)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：当前目录的 .env，其次父目录的 .env。
// 文件不存在时静默失败，已存在的环境变量优先级更高。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
