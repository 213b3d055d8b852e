package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 Okto 后端的顶层配置结构。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	News     NewsConfig     `yaml:"news"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr                   string   `yaml:"addr"`
	CORSOrigins            []string `yaml:"cors_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig SQLite 配置。
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig 访问令牌配置。
type AuthConfig struct {
	SecretKey                string `yaml:"secret_key"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes"`
}

// NewsConfig 新闻抓取与缓存配置。
type NewsConfig struct {
	APIKey                  string       `yaml:"api_key"`
	BaseURL                 string       `yaml:"base_url"`
	Query                   string       `yaml:"query"`
	PageSize                int          `yaml:"page_size"`
	TimeoutSeconds          int          `yaml:"timeout_seconds"`
	FreshnessHours          int          `yaml:"freshness_hours"`
	MaxAgeHours             int          `yaml:"max_age_hours"`
	RetentionDays           int          `yaml:"retention_days"`
	EvictionIntervalMinutes int          `yaml:"eviction_interval_minutes"`
	RSSFeeds                []FeedSource `yaml:"rss_feeds"`
}

// FeedSource 一个补充的 RSS/Atom 订阅源。
type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Timeout 返回单次外部请求的超时时间。
func (n NewsConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// FreshnessWindow 返回隐式刷新判断使用的新鲜度窗口。
func (n NewsConfig) FreshnessWindow() time.Duration {
	return time.Duration(n.FreshnessHours) * time.Hour
}

// MaxAge 返回新闻流读取窗口。
func (n NewsConfig) MaxAge() time.Duration {
	return time.Duration(n.MaxAgeHours) * time.Hour
}

// Retention 返回缓存文章的物理保留时长。
func (n NewsConfig) Retention() time.Duration {
	return time.Duration(n.RetentionDays) * 24 * time.Hour
}

// EvictionInterval 返回清理任务的执行间隔。
func (n NewsConfig) EvictionInterval() time.Duration {
	return time.Duration(n.EvictionIntervalMinutes) * time.Minute
}

// AccessTokenTTL 返回访问令牌有效期。
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，展开环境变量并填充默认值。
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置之间的约束。
func (c *Config) Validate() error {
	if c.News.MaxAgeHours > c.News.RetentionDays*24 {
		return fmt.Errorf("news.retention_days (%d) 不能短于 news.max_age_hours (%d)",
			c.News.RetentionDays, c.News.MaxAgeHours)
	}
	if c.News.PageSize > 100 {
		return fmt.Errorf("news.page_size 不能超过 100: %d", c.News.PageSize)
	}
	for i, f := range c.News.RSSFeeds {
		if f.URL == "" {
			return fmt.Errorf("news.rss_feeds[%d] 缺少 url", i)
		}
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 10
	}

	cfg.Database.Path = expandHome(cfg.Database.Path)

	if cfg.Auth.AccessTokenExpireMinutes == 0 {
		cfg.Auth.AccessTokenExpireMinutes = 30
	}

	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = "https://newsapi.org/v2"
	}
	if cfg.News.Query == "" {
		cfg.News.Query = "finance economy stock market"
	}
	if cfg.News.PageSize == 0 {
		cfg.News.PageSize = 30
	}
	if cfg.News.TimeoutSeconds == 0 {
		cfg.News.TimeoutSeconds = 10
	}
	if cfg.News.FreshnessHours == 0 {
		cfg.News.FreshnessHours = 6
	}
	if cfg.News.MaxAgeHours == 0 {
		cfg.News.MaxAgeHours = 24
	}
	if cfg.News.RetentionDays == 0 {
		cfg.News.RetentionDays = 30
	}
	if cfg.News.EvictionIntervalMinutes == 0 {
		cfg.News.EvictionIntervalMinutes = 60
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.File = expandHome(cfg.Log.File)

	// 环境变量展开后两端常带空白
	cfg.News.APIKey = strings.TrimSpace(cfg.News.APIKey)
	cfg.Auth.SecretKey = strings.TrimSpace(cfg.Auth.SecretKey)
}

// expandHome 展开 ~/ 前缀，Go 不会自动处理。
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	if home == "" {
		return path
	}
	return home + path[1:]
}
