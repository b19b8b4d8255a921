package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Minio    MinioConfig    `mapstructure:"minio"`
	Lockout  LockoutConfig  `mapstructure:"lockout"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type StripeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	AuditBucket     string `mapstructure:"audit_bucket"`
}

type LockoutConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
}

type JobsConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	DowngradeInterval      time.Duration `mapstructure:"downgrade_interval"`
	ReconcileInterval      time.Duration `mapstructure:"reconcile_interval"`
	ArchiveInterval        time.Duration `mapstructure:"archive_interval"`
	AuditRetention         time.Duration `mapstructure:"audit_retention"`
	PendingPaymentExpiry   time.Duration `mapstructure:"pending_payment_expiry"`
	PendingPaymentInterval time.Duration `mapstructure:"pending_payment_interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("jwt.access_token_ttl", time.Hour)
	viper.SetDefault("jwt.refresh_token_ttl", 168*time.Hour)

	viper.SetDefault("stripe.base_url", "https://api.stripe.com/v1")

	viper.SetDefault("minio.audit_bucket", "shopsuite-audit-archive")

	viper.SetDefault("lockout.max_attempts", 5)
	viper.SetDefault("lockout.window", 15*time.Minute)

	viper.SetDefault("jobs.enabled", true)
	viper.SetDefault("jobs.downgrade_interval", time.Hour)
	viper.SetDefault("jobs.reconcile_interval", 15*time.Minute)
	viper.SetDefault("jobs.archive_interval", 24*time.Hour)
	viper.SetDefault("jobs.audit_retention", 90*24*time.Hour)
	viper.SetDefault("jobs.pending_payment_expiry", 24*time.Hour)
	viper.SetDefault("jobs.pending_payment_interval", time.Hour)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load reads configuration from the given file, environment variables and
// defaults, in that order of precedence. A missing file is not an error so
// container deployments can run on env vars alone.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
