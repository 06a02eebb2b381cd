package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	iauth "github.com/contactly/contactly/internal/auth"
	"github.com/contactly/contactly/internal/avatar"
	"github.com/contactly/contactly/internal/database"
	"github.com/contactly/contactly/internal/ratelimit"
	"github.com/contactly/contactly/pkg/mail"
)

// Config is the root application configuration, loaded from an optional YAML
// file with CONTACTLY_* environment overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Email     EmailConfig     `mapstructure:"email"`
	Avatar    AvatarConfig    `mapstructure:"avatar"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	BaseURL     string   `mapstructure:"base_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	VerifyTokenTTL time.Duration `mapstructure:"verify_token_ttl"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

type AvatarConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given file (optional) and the
// environment. Missing values fall back to development defaults.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CONTACTLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/contactly.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "contactly")
	v.SetDefault("auth.access_token_ttl", iauth.DefaultAccessTokenTTL)
	v.SetDefault("auth.verify_token_ttl", iauth.DefaultVerifyTokenTTL)

	v.SetDefault("rate_limit.requests", ratelimit.DefaultRequests)
	v.SetDefault("rate_limit.window", ratelimit.DefaultWindow)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.port", 587)

	v.SetDefault("avatar.enabled", false)
	v.SetDefault("avatar.folder", "contactly/avatars")

	v.SetDefault("logging.level", "info")
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must be set (CONTACTLY_AUTH_JWT_SECRET)")
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("rate_limit.requests must not be negative")
	}
	return nil
}

// Addr returns the host:port the HTTP server binds to.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenConfig converts the auth section into the token service configuration.
func (c *AuthConfig) TokenConfig() iauth.TokenConfig {
	return iauth.TokenConfig{
		Secret:         c.JWTSecret,
		Issuer:         c.Issuer,
		AccessTokenTTL: c.AccessTokenTTL,
		VerifyTokenTTL: c.VerifyTokenTTL,
	}
}

// LimiterConfig converts the rate limit section into limiter configuration.
func (c *RateLimitConfig) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		Requests: c.Requests,
		Window:   c.Window,
	}
}

// DatabaseConfig converts the database section for the database package.
func (c *DatabaseConfig) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Host,
		Port:     c.Port,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
	}
}

// SMTPSettings converts the email section for the mail package.
func (c *EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.Enabled,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
		UseTLS:   c.UseTLS,
	}
}

// UploaderConfig converts the avatar section for the avatar package.
func (c *AvatarConfig) UploaderConfig() avatar.Config {
	return avatar.Config{
		Enabled:   c.Enabled,
		CloudName: c.CloudName,
		APIKey:    c.APIKey,
		APISecret: c.APISecret,
		Folder:    c.Folder,
	}
}
