package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/damoang/angple-cms/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config 애플리케이션 설정
type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	JWT         JWTConfig      `yaml:"jwt"`
	CORS        CORSConfig     `yaml:"cors"`
	Workflow    WorkflowConfig `yaml:"workflow"`
	Cache       CacheConfig    `yaml:"cache"`
	Jobs        JobsConfig     `yaml:"jobs"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Mode            string        `yaml:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN MySQL DSN
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"events_channel"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

type WorkflowConfig struct {
	PreviewTTL         time.Duration `yaml:"preview_ttl"`
	PreviewPath        string        `yaml:"preview_path"`
	PostPublishTimeout time.Duration `yaml:"post_publish_timeout"`
}

// PartitionConfig overrides one cache partition. Omitted fields keep the default.
type PartitionConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	MaxSize int           `yaml:"max_size"`
	Enabled *bool         `yaml:"enabled"`
}

type CacheConfig struct {
	Partitions map[string]PartitionConfig `yaml:"partitions"`
}

// Overrides merges the configured partitions onto the cache defaults
func (c CacheConfig) Overrides() map[string]cache.Config {
	defaults := cache.DefaultConfigs()
	out := make(map[string]cache.Config, len(c.Partitions))
	for name, p := range c.Partitions {
		cfg, ok := defaults[name]
		if !ok {
			cfg = cache.Config{TTL: 5 * time.Minute, MaxSize: 100, Enabled: true}
		}
		if p.TTL > 0 {
			cfg.TTL = p.TTL
		}
		if p.MaxSize > 0 {
			cfg.MaxSize = p.MaxSize
		}
		if p.Enabled != nil {
			cfg.Enabled = *p.Enabled
		}
		out[name] = cfg
	}
	return out
}

type JobsConfig struct {
	PreviewPurgeInterval time.Duration `yaml:"preview_purge_interval"`
	CacheSweepInterval   time.Duration `yaml:"cache_sweep_interval"`
}

// IsDevelopment 개발 환경 여부
func (c *Config) IsDevelopment() bool {
	switch c.Environment {
	case "", "local", "dev", "development":
		return true
	}
	return false
}

// Load 설정 파일 로드. 파일이 없으면 기본값 + 환경변수만 사용
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logger.Warn("config file %s not found, using defaults and environment", path)
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnv 환경변수 우선 적용
func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "APP_ENV")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled, _ = strconv.ParseBool(v)
	}

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "angple:content:events"
	}
	if cfg.Workflow.PreviewTTL == 0 {
		cfg.Workflow.PreviewTTL = 24 * time.Hour
	}
	if cfg.Workflow.PreviewPath == "" {
		cfg.Workflow.PreviewPath = "/preview/"
	}
	if cfg.Workflow.PostPublishTimeout == 0 {
		cfg.Workflow.PostPublishTimeout = 30 * time.Second
	}
	if cfg.Jobs.PreviewPurgeInterval == 0 {
		cfg.Jobs.PreviewPurgeInterval = time.Hour
	}
	if cfg.Jobs.CacheSweepInterval == 0 {
		cfg.Jobs.CacheSweepInterval = time.Minute
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved 최종 설정 출력 (비밀값 마스킹)
func LogResolved(cfg *Config) {
	l := logger.GetLogger()
	l.Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Server.Port).
		Str("db", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)).
		Str("db_password", mask(cfg.Database.Password)).
		Bool("redis", cfg.Redis.Enabled).
		Str("redis_addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)).
		Str("jwt_secret", mask(cfg.JWT.Secret)).
		Dur("preview_ttl", cfg.Workflow.PreviewTTL).
		Str("preview_path", cfg.Workflow.PreviewPath).
		Msg("config resolved")
}

func mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
