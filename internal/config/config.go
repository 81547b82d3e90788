package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "SOCIALLY"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabasePath      = "socially.db"
	defaultLogLevel          = "info"
	defaultAuthIssuer        = "socially-auth"
	defaultAuthAudience      = "socially-api"
	defaultTokenTTL          = 24 * time.Hour
	defaultEditWindow        = 5 * time.Minute
	defaultVanishTTL         = 30 * 24 * time.Hour
	defaultVanishReadTTL     = time.Hour
	defaultReaperInterval    = 5 * time.Minute
	defaultReaperSampleRate  = 100
	defaultFCMEndpoint       = "https://fcm.googleapis.com/fcm/send"
	defaultPushTimeout       = 5 * time.Second
	defaultPushRatePerSecond = 50
	defaultPresenceTTL       = 5 * time.Minute
	defaultS3Region          = "us-east-1"

	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	SigningSecret string
	TokenIssuer   string
	TokenAudience string
	TokenTTL      time.Duration

	EditWindow       time.Duration
	VanishTTL        time.Duration
	VanishReadTTL    time.Duration
	DeletedRetention time.Duration

	ReaperInterval   time.Duration
	ReaperSampleRate int

	FCMServerKey      string
	FCMEndpoint       string
	PushTimeout       time.Duration
	PushRatePerSecond float64

	RedisAddress string
	PresenceTTL  time.Duration

	S3 S3Config
}

// S3Config locates the media bucket; an empty Bucket disables media release.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("messages.edit_window", defaultEditWindow)
	configViper.SetDefault("messages.vanish_ttl", defaultVanishTTL)
	configViper.SetDefault("messages.vanish_read_ttl", defaultVanishReadTTL)
	configViper.SetDefault("messages.deleted_retention", time.Duration(0))
	configViper.SetDefault("reaper.interval", defaultReaperInterval)
	configViper.SetDefault("reaper.sample_rate", defaultReaperSampleRate)
	configViper.SetDefault("push.fcm_server_key", "")
	configViper.SetDefault("push.fcm_endpoint", defaultFCMEndpoint)
	configViper.SetDefault("push.timeout", defaultPushTimeout)
	configViper.SetDefault("push.rate_per_second", defaultPushRatePerSecond)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("redis.presence_ttl", defaultPresenceTTL)
	configViper.SetDefault("media.s3.bucket", "")
	configViper.SetDefault("media.s3.region", defaultS3Region)
	configViper.SetDefault("media.s3.endpoint", "")
	configViper.SetDefault("media.s3.access_key", "")
	configViper.SetDefault("media.s3.secret_key", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		LogLevel:          configViper.GetString("log.level"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenIssuer:       configViper.GetString("auth.issuer"),
		TokenAudience:     configViper.GetString("auth.audience"),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		EditWindow:        configViper.GetDuration("messages.edit_window"),
		VanishTTL:         configViper.GetDuration("messages.vanish_ttl"),
		VanishReadTTL:     configViper.GetDuration("messages.vanish_read_ttl"),
		DeletedRetention:  configViper.GetDuration("messages.deleted_retention"),
		ReaperInterval:    configViper.GetDuration("reaper.interval"),
		ReaperSampleRate:  configViper.GetInt("reaper.sample_rate"),
		FCMServerKey:      configViper.GetString("push.fcm_server_key"),
		FCMEndpoint:       configViper.GetString("push.fcm_endpoint"),
		PushTimeout:       configViper.GetDuration("push.timeout"),
		PushRatePerSecond: configViper.GetFloat64("push.rate_per_second"),
		RedisAddress:      configViper.GetString("redis.address"),
		PresenceTTL:       configViper.GetDuration("redis.presence_ttl"),
		S3: S3Config{
			Bucket:    configViper.GetString("media.s3.bucket"),
			Region:    configViper.GetString("media.s3.region"),
			Endpoint:  configViper.GetString("media.s3.endpoint"),
			AccessKey: configViper.GetString("media.s3.access_key"),
			SecretKey: configViper.GetString("media.s3.secret_key"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case DatabaseDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.EditWindow <= 0 {
		return fmt.Errorf("messages.edit_window must be positive")
	}
	if c.VanishTTL <= 0 || c.VanishReadTTL <= 0 {
		return fmt.Errorf("messages.vanish_ttl and messages.vanish_read_ttl must be positive")
	}
	if c.DeletedRetention < 0 {
		return fmt.Errorf("messages.deleted_retention must not be negative")
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("reaper.interval must be positive")
	}
	if c.ReaperSampleRate < 0 {
		return fmt.Errorf("reaper.sample_rate must not be negative")
	}
	if c.S3.Bucket != "" && strings.TrimSpace(c.S3.Region) == "" {
		return fmt.Errorf("media.s3.region is required when media.s3.bucket is set")
	}
	return nil
}
