package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

// DefaultJWTSecret 仅用于本地开发；生产环境必须覆盖。
const DefaultJWTSecret = "dev-jwt-secret-change-me"

// Config 保存进程级配置（内置默认值 + 配置文件 + 少量环境变量机密）。
// 三个服务（lostfound / auction / auth）共用同一结构，各取所需字段。
type Config struct {
	Env        string
	HTTPAddr   string
	LogLevel   string
	MySQL      MySQLConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Oracle     OracleConfig
	Similarity SimilarityConfig
	Pagination PaginationConfig
	Auction    AuctionConfig
	Notify     NotifyConfig
	Limits     LimitConfig
	Security   SecurityConfig
}

type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Params   string
}

func (m MySQLConfig) DSN() string {
	port := m.Port
	if port == 0 {
		port = 3306
	}
	host := m.Host
	if host == "" {
		host = "127.0.0.1"
	}
	db := m.DBName
	if db == "" {
		db = "lostfound"
	}
	params := m.Params
	if params == "" {
		params = "parseTime=true&loc=Local&charset=utf8mb4,utf8"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", m.User, m.Password, host, port, db, params)
}

func (m MySQLConfig) DSNMasked() string {
	masked := m
	if masked.Password != "" {
		masked.Password = "******"
	}
	return masked.DSN()
}

// RedisConfig 中 Addr 为空表示不使用 Redis（限流退化为进程内，通知与黑名单关闭）。
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// JWTConfig 为令牌签发与校验的共享密钥配置（HS256）。
// auth 服务用它签发，其它服务用同一密钥本地校验。
type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

// OracleConfig 定义外部文本相似度打分服务（OpenAI 兼容的 Chat Completions 接口）。
type OracleConfig struct {
	// 关闭时使用本地词法打分（无需 API Key，适合开发环境）
	Enable    bool
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	// 单次调用超时
	Timeout time.Duration
	// 并发打分的 worker 数
	Workers int
}

type SimilarityConfig struct {
	DefaultTopK int
}

type PaginationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type AuctionConfig struct {
	// lost_found 服务的失物详情地址前缀，拼接 ID 后用于存在性校验
	LostItemsURL    string
	DefaultDuration time.Duration
	UpstreamTimeout time.Duration
}

type NotifyConfig struct {
	Enable  bool
	Channel string
}

type LimitConfig struct {
	LoginPerMinute int
	BidPerMinute   int
	Window         time.Duration
}

type SecurityConfig struct {
	HSTS struct {
		Enabled           bool
		MaxAgeSeconds     int
		IncludeSubdomains bool
	}
}

// Defaults 返回开发友好的默认配置。
func Defaults() Config {
	cfg := Config{
		Env:        "dev",
		HTTPAddr:   ":8000",
		LogLevel:   "info",
		MySQL:      MySQLConfig{Host: "127.0.0.1", Port: 3306, User: "root", Password: "123456", DBName: "lostfound", Params: "parseTime=true&loc=Local&charset=utf8mb4,utf8"},
		Redis:      RedisConfig{Addr: "127.0.0.1:6379"},
		JWT:        JWTConfig{Secret: DefaultJWTSecret, AccessTokenTTL: 30 * time.Minute},
		Oracle:     OracleConfig{Enable: false, Endpoint: "https://api.openai.com/v1/chat/completions", Model: "gpt-3.5-turbo", MaxTokens: 10, Timeout: 15 * time.Second, Workers: 4},
		Similarity: SimilarityConfig{DefaultTopK: 5},
		Pagination: PaginationConfig{DefaultLimit: 10, MaxLimit: 100},
		Auction:    AuctionConfig{LostItemsURL: "http://lostfound_service:8000/lost_items/", DefaultDuration: 4 * time.Hour, UpstreamTimeout: 5 * time.Second},
		Notify:     NotifyConfig{Enable: false, Channel: "auction.events"},
		Limits:     LimitConfig{LoginPerMinute: 10, BidPerMinute: 30, Window: time.Minute},
	}
	cfg.Security.HSTS.Enabled = true
	cfg.Security.HSTS.MaxAgeSeconds = 31536000
	cfg.Security.HSTS.IncludeSubdomains = true
	return cfg
}

// Load 生成配置：默认值 → 配置文件（path 为空时按 config.yaml/yml/json 顺序查找）→ 环境变量机密。
// 配置文件解析失败会返回错误；文件不存在则忽略。
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = FirstExisting("config.yaml", "config.yml", "config.json")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}
	// .env 只承载机密，不存在时忽略
	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv 用环境变量覆盖机密类字段，避免把密钥写进配置文件。
func applyEnv(cfg *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOST_ITEMS_SERVICE_URL"); v != "" {
		cfg.Auction.LostItemsURL = v
	}
}

// Validate 做生产环境基线检查。
func (c Config) Validate() error {
	if c.Env != "prod" {
		return nil
	}
	if c.JWT.Secret == "" || c.JWT.Secret == DefaultJWTSecret {
		return errors.New("insecure jwt.secret in prod")
	}
	if c.MySQL.Password == "" || c.MySQL.Password == "123456" {
		return errors.New("insecure mysql.password in prod")
	}
	if c.Oracle.Enable && c.Oracle.APIKey == "" {
		return errors.New("oracle enabled but oracle.api_key is empty")
	}
	return nil
}

// 配置文件格式：YAML 或 JSON。仅非零值会覆盖现有字段。
func loadFromFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var fm fileModel
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(b, &fm); err != nil {
			return err
		}
	} else if ext == ".json" || ext == "" {
		if err := json.Unmarshal(b, &fm); err != nil {
			return err
		}
	} else {
		return errors.New("unsupported config file format")
	}
	fm.apply(cfg)
	return nil
}

// --- 配置文件模型与合并逻辑 ---

type fileModel struct {
	Env        string          `yaml:"env" json:"env"`
	HTTPAddr   string          `yaml:"http_addr" json:"http_addr"`
	LogLevel   string          `yaml:"log_level" json:"log_level"`
	MySQL      *fileMySQL      `yaml:"mysql" json:"mysql"`
	Redis      *fileRedis      `yaml:"redis" json:"redis"`
	JWT        *fileJWT        `yaml:"jwt" json:"jwt"`
	Oracle     *fileOracle     `yaml:"oracle" json:"oracle"`
	Similarity *fileSimilarity `yaml:"similarity" json:"similarity"`
	Pagination *filePagination `yaml:"pagination" json:"pagination"`
	Auction    *fileAuction    `yaml:"auction" json:"auction"`
	Notify     *fileNotify     `yaml:"notify" json:"notify"`
	Limits     *fileLimits     `yaml:"limits" json:"limits"`
	Security   *fileSecurity   `yaml:"security" json:"security"`
}

type fileMySQL struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	DBName   string `yaml:"db" json:"db"`
	Params   string `yaml:"params" json:"params"`
}
type fileRedis struct {
	// 指针：允许显式写 addr: "" 关闭 Redis
	Addr     *string `yaml:"addr" json:"addr"`
	DB       int     `yaml:"db" json:"db"`
	Password string  `yaml:"password" json:"password"`
}
type fileJWT struct {
	Secret         string `yaml:"secret" json:"secret"`
	AccessTokenTTL string `yaml:"access_token_ttl" json:"access_token_ttl"`
}
type fileOracle struct {
	Enable    *bool  `yaml:"enable" json:"enable"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	APIKey    string `yaml:"api_key" json:"api_key"`
	Model     string `yaml:"model" json:"model"`
	MaxTokens int    `yaml:"max_tokens" json:"max_tokens"`
	Timeout   string `yaml:"timeout" json:"timeout"`
	Workers   int    `yaml:"workers" json:"workers"`
}
type fileSimilarity struct {
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
}
type filePagination struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`
}
type fileAuction struct {
	LostItemsURL    string `yaml:"lost_items_url" json:"lost_items_url"`
	DefaultDuration string `yaml:"default_duration" json:"default_duration"`
	UpstreamTimeout string `yaml:"upstream_timeout" json:"upstream_timeout"`
}
type fileNotify struct {
	Enable  *bool  `yaml:"enable" json:"enable"`
	Channel string `yaml:"channel" json:"channel"`
}
type fileLimits struct {
	LoginPerMinute int    `yaml:"login_per_minute" json:"login_per_minute"`
	BidPerMinute   int    `yaml:"bid_per_minute" json:"bid_per_minute"`
	Window         string `yaml:"window" json:"window"`
}
type fileSecurity struct {
	HSTS struct {
		Enabled           *bool `yaml:"enabled" json:"enabled"`
		MaxAge            int   `yaml:"max_age" json:"max_age"`
		IncludeSubdomains *bool `yaml:"include_subdomains" json:"include_subdomains"`
	} `yaml:"hsts" json:"hsts"`
}

// setDuration 解析 Go duration 字符串，非法值保持原值。
func setDuration(dst *time.Duration, s string) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

func (fm *fileModel) apply(cfg *Config) {
	if fm.Env != "" {
		cfg.Env = fm.Env
	}
	if fm.HTTPAddr != "" {
		cfg.HTTPAddr = fm.HTTPAddr
	}
	if fm.LogLevel != "" {
		cfg.LogLevel = fm.LogLevel
	}
	if fm.MySQL != nil {
		if fm.MySQL.Host != "" {
			cfg.MySQL.Host = fm.MySQL.Host
		}
		if fm.MySQL.Port != 0 {
			cfg.MySQL.Port = fm.MySQL.Port
		}
		if fm.MySQL.User != "" {
			cfg.MySQL.User = fm.MySQL.User
		}
		if fm.MySQL.Password != "" {
			cfg.MySQL.Password = fm.MySQL.Password
		}
		if fm.MySQL.DBName != "" {
			cfg.MySQL.DBName = fm.MySQL.DBName
		}
		if fm.MySQL.Params != "" {
			cfg.MySQL.Params = fm.MySQL.Params
		}
	}
	if fm.Redis != nil {
		if fm.Redis.Addr != nil {
			cfg.Redis.Addr = *fm.Redis.Addr
		}
		if fm.Redis.DB != 0 {
			cfg.Redis.DB = fm.Redis.DB
		}
		if fm.Redis.Password != "" {
			cfg.Redis.Password = fm.Redis.Password
		}
	}
	if fm.JWT != nil {
		if fm.JWT.Secret != "" {
			cfg.JWT.Secret = fm.JWT.Secret
		}
		setDuration(&cfg.JWT.AccessTokenTTL, fm.JWT.AccessTokenTTL)
	}
	if fm.Oracle != nil {
		if fm.Oracle.Enable != nil {
			cfg.Oracle.Enable = *fm.Oracle.Enable
		}
		if fm.Oracle.Endpoint != "" {
			cfg.Oracle.Endpoint = fm.Oracle.Endpoint
		}
		if fm.Oracle.APIKey != "" {
			cfg.Oracle.APIKey = fm.Oracle.APIKey
		}
		if fm.Oracle.Model != "" {
			cfg.Oracle.Model = fm.Oracle.Model
		}
		if fm.Oracle.MaxTokens != 0 {
			cfg.Oracle.MaxTokens = fm.Oracle.MaxTokens
		}
		setDuration(&cfg.Oracle.Timeout, fm.Oracle.Timeout)
		if fm.Oracle.Workers != 0 {
			cfg.Oracle.Workers = fm.Oracle.Workers
		}
	}
	if fm.Similarity != nil && fm.Similarity.DefaultTopK > 0 {
		cfg.Similarity.DefaultTopK = fm.Similarity.DefaultTopK
	}
	if fm.Pagination != nil {
		if fm.Pagination.DefaultLimit > 0 {
			cfg.Pagination.DefaultLimit = fm.Pagination.DefaultLimit
		}
		if fm.Pagination.MaxLimit > 0 {
			cfg.Pagination.MaxLimit = fm.Pagination.MaxLimit
		}
	}
	if fm.Auction != nil {
		if fm.Auction.LostItemsURL != "" {
			cfg.Auction.LostItemsURL = fm.Auction.LostItemsURL
		}
		setDuration(&cfg.Auction.DefaultDuration, fm.Auction.DefaultDuration)
		setDuration(&cfg.Auction.UpstreamTimeout, fm.Auction.UpstreamTimeout)
	}
	if fm.Notify != nil {
		if fm.Notify.Enable != nil {
			cfg.Notify.Enable = *fm.Notify.Enable
		}
		if fm.Notify.Channel != "" {
			cfg.Notify.Channel = fm.Notify.Channel
		}
	}
	if fm.Limits != nil {
		if fm.Limits.LoginPerMinute != 0 {
			cfg.Limits.LoginPerMinute = fm.Limits.LoginPerMinute
		}
		if fm.Limits.BidPerMinute != 0 {
			cfg.Limits.BidPerMinute = fm.Limits.BidPerMinute
		}
		setDuration(&cfg.Limits.Window, fm.Limits.Window)
	}
	if fm.Security != nil {
		if fm.Security.HSTS.Enabled != nil {
			cfg.Security.HSTS.Enabled = *fm.Security.HSTS.Enabled
		}
		if fm.Security.HSTS.MaxAge != 0 {
			cfg.Security.HSTS.MaxAgeSeconds = fm.Security.HSTS.MaxAge
		}
		if fm.Security.HSTS.IncludeSubdomains != nil {
			cfg.Security.HSTS.IncludeSubdomains = *fm.Security.HSTS.IncludeSubdomains
		}
	}
}

// FirstExisting 按顺序返回第一个存在的文件路径；若都不存在则返回空字符串。
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
