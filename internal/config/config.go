package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 为所有环境变量的统一前缀，例如 SITECMS_DATABASE_DSN。
const EnvPrefix = "SITECMS"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	DatabaseDSN       string
	SessionSecret     string
	GinMode           string
	AssetDir          string
	MediaRoot         string
	FilesRoot         string
	StaticBaseURL     string
	MaxUploadBytes    int64
	RelatedLimit      int
	TokenTTL          time.Duration
	SuperRootUserName string
	SuperRootPassword string

	Logging   LoggingConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
}

// LoggingConfig 控制 zap 日志的级别与输出格式。
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// RedisConfig 为空 URL 时缓存关闭。
type RedisConfig struct {
	URL string
	TTL time.Duration
}

// Enabled reports whether a redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// TelemetryConfig holds tracing and metrics exporter settings.
type TelemetryConfig struct {
	Enabled           bool
	JaegerURL         string
	PrometheusEnabled bool
	ServiceName       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("database_dsn", "sitecms.db")
	v.SetDefault("session_secret", "sitecms-dev-secret")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("asset_dir", "web/static")
	v.SetDefault("media_root", "uploads")
	v.SetDefault("files_root", "files")
	v.SetDefault("static_base_url", "/static")
	v.SetDefault("max_upload_bytes", 20<<20)
	v.SetDefault("related_limit", 3)
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("telemetry_enabled", false)
	v.SetDefault("jaeger_url", "")
	v.SetDefault("prometheus_enabled", false)
	v.SetDefault("service_name", "sitecms")
	v.SetDefault("super_root_user_name", "")
	v.SetDefault("super_root_password", "")
}

// Load 从环境变量与可选的 config.yaml 读取配置，并为缺失项提供默认值。
// configFile 非空时只读取该文件；否则在当前目录与 /etc/sitecms 中查找。
func Load(configFile string) (AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sitecms")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return AppConfig{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	cfg := AppConfig{
		ListenAddr:        strings.TrimSpace(v.GetString("listen_addr")),
		DatabaseDSN:       strings.TrimSpace(v.GetString("database_dsn")),
		SessionSecret:     strings.TrimSpace(v.GetString("session_secret")),
		GinMode:           strings.TrimSpace(v.GetString("gin_mode")),
		AssetDir:          strings.TrimSpace(v.GetString("asset_dir")),
		MediaRoot:         cleanRoot(v.GetString("media_root")),
		FilesRoot:         cleanRoot(v.GetString("files_root")),
		StaticBaseURL:     strings.TrimRight(strings.TrimSpace(v.GetString("static_base_url")), "/"),
		MaxUploadBytes:    v.GetInt64("max_upload_bytes"),
		RelatedLimit:      v.GetInt("related_limit"),
		TokenTTL:          v.GetDuration("token_ttl"),
		SuperRootUserName: strings.TrimSpace(v.GetString("super_root_user_name")),
		SuperRootPassword: strings.TrimSpace(v.GetString("super_root_password")),
		Logging: LoggingConfig{
			Level:  strings.TrimSpace(v.GetString("log_level")),
			Format: strings.TrimSpace(v.GetString("log_format")),
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(v.GetString("redis_url")),
			TTL: v.GetDuration("cache_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry_enabled"),
			JaegerURL:         strings.TrimSpace(v.GetString("jaeger_url")),
			PrometheusEnabled: v.GetBool("prometheus_enabled"),
			ServiceName:       strings.TrimSpace(v.GetString("service_name")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置项之间的约束。
func (c AppConfig) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("database_dsn is required")
	}
	if c.AssetDir == "" {
		return errors.New("asset_dir is required")
	}
	if c.MediaRoot == "" || c.FilesRoot == "" {
		return errors.New("media_root and files_root are required")
	}
	if c.MediaRoot == c.FilesRoot {
		return errors.New("media_root and files_root must differ")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.RelatedLimit <= 0 {
		return errors.New("related_limit must be positive")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	return nil
}

// cleanRoot 将根目录规范为不带首尾斜杠的相对路径段。
func cleanRoot(raw string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return ""
	}
	return cleaned
}
