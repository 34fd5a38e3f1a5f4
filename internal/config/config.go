// Package config 提供配置加载和管理功能
package config

import (
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Engine        EngineConfig        `yaml:"engine" mapstructure:"engine"`
	Autosave      AutosaveConfig      `yaml:"autosave" mapstructure:"autosave"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// StorageConfig 项目持久化配置
type StorageConfig struct {
	// Driver 可选 sqlite / postgres / memory
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	// WriteQueueSize 单写者队列容量
	WriteQueueSize int `yaml:"write_queue_size" mapstructure:"write_queue_size"`
}

// SQLiteConfig 本地 SQLite 配置
type SQLiteConfig struct {
	Path        string        `yaml:"path" mapstructure:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout" mapstructure:"busy_timeout"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	// AuditTTL 审计报告缓存时长
	AuditTTL time.Duration `yaml:"audit_ttl" mapstructure:"audit_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	// Timeout 单次生成调用的超时
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DefaultTemperature float64       `yaml:"default_temperature" mapstructure:"default_temperature"`
	// JSONModeBlocklist 不接受 response_format 的提供商
	JSONModeBlocklist []string `yaml:"json_mode_blocklist" mapstructure:"json_mode_blocklist"`
}

// ProviderConfig LLM 提供商配置
// 所有提供商均通过 OpenAI 兼容接口访问；FastModel / DeepModel 对应两档模型。
type ProviderConfig struct {
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	FastModel string `yaml:"fast_model" mapstructure:"fast_model"`
	DeepModel string `yaml:"deep_model" mapstructure:"deep_model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// EngineConfig 写作引擎参数
type EngineConfig struct {
	EstimatedTotalChapters   int   `yaml:"estimated_total_chapters" mapstructure:"estimated_total_chapters"`
	DefaultProgressIncrement int   `yaml:"default_progress_increment" mapstructure:"default_progress_increment"`
	BatchSizes               []int `yaml:"batch_sizes" mapstructure:"batch_sizes"`
	// EarlyPhaseChapters 前 N 章属于“开篇期”，大纲需以场景与对话隐式展开世界观
	EarlyPhaseChapters int `yaml:"early_phase_chapters" mapstructure:"early_phase_chapters"`
	PrevContextRunes   int `yaml:"prev_context_runes" mapstructure:"prev_context_runes"`
	MemoryWindow       int `yaml:"memory_window" mapstructure:"memory_window"`
	MemoryExcerptRunes int `yaml:"memory_excerpt_runes" mapstructure:"memory_excerpt_runes"`
	MemoryMaxRunes     int `yaml:"memory_max_runes" mapstructure:"memory_max_runes"`
	MemorySyncInterval int `yaml:"memory_sync_interval" mapstructure:"memory_sync_interval"`
	StyleSampleRunes   int `yaml:"style_sample_runes" mapstructure:"style_sample_runes"`
}

// AutosaveConfig 自动保存配置
type AutosaveConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Spec robfig/cron 表达式，例如 "@every 2m"
	Spec string `yaml:"spec" mapstructure:"spec"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// RateLimitConfig 生成类接口限流配置
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Limit   int           `yaml:"limit" mapstructure:"limit"`
	Window  time.Duration `yaml:"window" mapstructure:"window"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Provider 返回指定提供商配置；name 为空时使用默认提供商
func (c *LLMConfig) Provider(name string) (string, ProviderConfig, bool) {
	if name == "" {
		name = c.DefaultProvider
	}
	p, ok := c.Providers[name]
	return name, p, ok
}

// SupportsJSONMode 判断提供商是否接受 response_format
func (c *LLMConfig) SupportsJSONMode(provider string) bool {
	for _, p := range c.JSONModeBlocklist {
		if p == provider {
			return false
		}
	}
	return true
}
