// Package settings loads deployment configuration for the procureauth
// server and CLI from an optional YAML file, an optional .env file and the
// process environment, in increasing order of precedence.
//
// Keys are dotted (jwt.access_secret); the matching environment variable
// upper-cases the key and replaces dots with underscores (JWT_ACCESS_SECRET).
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	Server   ServerSettings   `mapstructure:"server"`
	Database DatabaseSettings `mapstructure:"database"`
	Redis    RedisSettings    `mapstructure:"redis"`
	JWT      JWTSettings      `mapstructure:"jwt"`
	MFA      MFASettings      `mapstructure:"mfa"`
	Audit    AuditSettings    `mapstructure:"audit"`
	Log      LogSettings      `mapstructure:"log"`
	Otel     OtelSettings     `mapstructure:"otel"`
}

type ServerSettings struct {
	Port            int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	Production      bool          `mapstructure:"production"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0s"`
}

type DatabaseSettings struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

// RedisSettings is optional. Without a URL revocations and MFA counters
// stay in process memory.
type RedisSettings struct {
	URL string `mapstructure:"url"`
}

type JWTSettings struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	MFASecret     string        `mapstructure:"mfa_secret"`
	Issuer        string        `mapstructure:"issuer"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
}

type MFASettings struct {
	Issuer      string        `mapstructure:"issuer"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown"`
}

type AuditSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// OtelSettings enables OTLP metric export when Endpoint is set.
type OtelSettings struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	Interval    time.Duration `mapstructure:"interval"`
	ServiceName string        `mapstructure:"service_name"`
}

type loadOptions struct {
	configFile string
	envFile    string
}

type Option func(*loadOptions)

// WithConfigFile reads path instead of searching for config.yml.
func WithConfigFile(path string) Option {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile loads path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

var searchPaths = []string{"./config.yml", "./config/config.yml", "./cmd/procureauth/config.yml"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.production", false)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "procureauth.db")
	v.SetDefault("redis.url", "")
	v.SetDefault("jwt.access_secret", "")
	v.SetDefault("jwt.refresh_secret", "")
	v.SetDefault("jwt.mfa_secret", "")
	v.SetDefault("jwt.issuer", "procureauth")
	v.SetDefault("jwt.access_ttl", 4*time.Hour)
	v.SetDefault("jwt.refresh_ttl", 30*24*time.Hour)
	v.SetDefault("mfa.issuer", "ProcureERP")
	v.SetDefault("mfa.max_attempts", 5)
	v.SetDefault("mfa.cooldown", 15*time.Minute)
	v.SetDefault("audit.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatJSON)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", false)
	v.SetDefault("otel.interval", 30*time.Second)
	v.SetDefault("otel.service_name", "procureauth")
}

// Load resolves settings. A missing config file or .env file is not an
// error; a malformed one is.
func Load(opts ...Option) (*Settings, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	envFile := lo.envFile
	if envFile == "" && fileExists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("settings: load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := lo.configFile
	if configFile == "" {
		for _, p := range searchPaths {
			if fileExists(p) {
				configFile = p
				break
			}
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("settings: read %s: %w", configFile, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("settings: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

var settingsValidator = validator.New()

func (s *Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("settings: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

// EngineConfig maps the deployment settings onto the library config. Key
// material is validated later by Builder.Build.
func (s *Settings) EngineConfig() procureauth.Config {
	cfg := procureauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(s.JWT.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(s.JWT.RefreshSecret)
	cfg.JWT.MFASecret = []byte(s.JWT.MFASecret)
	cfg.JWT.Issuer = s.JWT.Issuer
	if s.JWT.AccessTTL > 0 {
		cfg.JWT.AccessTTL = s.JWT.AccessTTL
	}
	if s.JWT.RefreshTTL > 0 {
		cfg.JWT.RefreshTTL = s.JWT.RefreshTTL
	}
	if s.MFA.Issuer != "" {
		cfg.TOTP.Issuer = s.MFA.Issuer
	}
	if s.MFA.MaxAttempts > 0 {
		cfg.MFA.MaxFailedAttempts = s.MFA.MaxAttempts
	}
	if s.MFA.Cooldown > 0 {
		cfg.MFA.Cooldown = s.MFA.Cooldown
	}
	cfg.Audit.Enabled = s.Audit.Enabled
	return cfg
}

// LoggerConfig returns the logger settings.
func (s *Settings) LoggerConfig() logger.Config {
	return logger.Config{
		Level:     s.Log.Level,
		Format:    s.Log.Format,
		Timestamp: true,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
