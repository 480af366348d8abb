package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTSecret         string
	JWTAccessTTL      time.Duration
	JWTRefreshTTL     time.Duration
	PasswordMinLength int
	ResetTokenTTL     time.Duration
	MaxSessions       int
	OpenRegistration  bool
}

type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	QueueSize int
}

type FrontendConfig struct {
	BaseURL       string
	ResetPath     string
	DefaultLocale string
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Mail             MailConfig
	Frontend         FrontendConfig
	Archive          ArchiveConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("AUTHGRID")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Environment == "production" && cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("security.jwtsecret is required in production")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.passwordminlength", 8)
	v.SetDefault("security.resettokenttl", "30m")
	v.SetDefault("security.maxsessions", 10)
	v.SetDefault("security.openregistration", false)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@authgrid.local")
	v.SetDefault("mail.queuesize", 256)

	v.SetDefault("frontend.baseurl", "http://localhost:3000")
	v.SetDefault("frontend.resetpath", "/reset-password")
	v.SetDefault("frontend.defaultlocale", "en")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "authgrid-audit")
	v.SetDefault("archive.usessl", false)
	v.SetDefault("archive.region", "us-east-1")
}
