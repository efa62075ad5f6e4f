package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds server configuration values.
type Config struct {
	Addr              string         `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration  `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration  `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string         `mapstructure:"log_format" yaml:"log_format"`
	AllowedOrigins    []string       `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	StatsInterval     string         `mapstructure:"stats_interval" yaml:"stats_interval"`
	Chat              ChatConfig     `mapstructure:"chat" yaml:"chat"`
	Store             StoreConfig    `mapstructure:"store" yaml:"store"`
	Identity          IdentityConfig `mapstructure:"identity" yaml:"identity"`
	WS                WSConfig       `mapstructure:"ws" yaml:"ws"`
}

// ChatConfig covers message limits and the long-poll wait.
type ChatConfig struct {
	LongPollTimeout time.Duration `mapstructure:"long_poll_timeout" yaml:"long_poll_timeout"`
	MaxTextLen      int           `mapstructure:"max_text_len" yaml:"max_text_len"`
	MaxSenderLen    int           `mapstructure:"max_sender_len" yaml:"max_sender_len"`
}

// StoreConfig selects the message log backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// IdentityConfig controls the anonymous identity cookie.
type IdentityConfig struct {
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	Secret       string        `mapstructure:"secret" yaml:"secret"`
	TTL          time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie" yaml:"secure_cookie"`
}

// WSConfig tunes the live-socket endpoint.
type WSConfig struct {
	MaxMessageBytes int64  `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	FramesPerMinute int    `mapstructure:"frames_per_minute" yaml:"frames_per_minute"`
	Greeting        string `mapstructure:"greeting" yaml:"greeting"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":3000",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		AllowedOrigins: []string{
			"http://127.0.0.1:5500",
			"http://localhost:3000",
		},
		StatsInterval: "@every 1m",
		Chat: ChatConfig{
			LongPollTimeout: 30 * time.Second,
			MaxTextLen:      300,
			MaxSenderLen:    50,
		},
		Store: StoreConfig{
			Driver: "memory",
			DSN:    ":memory:",
		},
		Identity: IdentityConfig{
			CookieName: "userId",
			TTL:        365 * 24 * time.Hour,
		},
		WS: WSConfig{
			MaxMessageBytes: 1 << 16,
			FramesPerMinute: 120,
			Greeting:        "Hello from WebSocket server!",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.StatsInterval != "" {
		c.StatsInterval = other.StatsInterval
	}
	if other.Chat.LongPollTimeout != 0 {
		c.Chat.LongPollTimeout = other.Chat.LongPollTimeout
	}
	if other.Chat.MaxTextLen != 0 {
		c.Chat.MaxTextLen = other.Chat.MaxTextLen
	}
	if other.Chat.MaxSenderLen != 0 {
		c.Chat.MaxSenderLen = other.Chat.MaxSenderLen
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.DSN != "" {
		c.Store.DSN = other.Store.DSN
	}
	if other.Identity.Secret != "" {
		c.Identity.Secret = other.Identity.Secret
	}
}

// Validate reports every setting that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Chat.LongPollTimeout <= 0 {
		errs = append(errs, fmt.Errorf("chat.long_poll_timeout must be positive, got %s", c.Chat.LongPollTimeout))
	}
	if c.Chat.MaxTextLen <= 0 || c.Chat.MaxSenderLen <= 0 {
		errs = append(errs, errors.New("chat length limits must be positive"))
	}
	if c.Store.Driver != "memory" && c.Store.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite", c.Store.Driver))
	}
	if c.Identity.CookieName == "" {
		errs = append(errs, errors.New("identity.cookie_name is required"))
	}
	return errors.Join(errs...)
}
