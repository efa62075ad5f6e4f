package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "WIRECHAT"
	envConfigDefaultPath = "WIRECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
	dotEnvFile           = ".env"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < .env / env vars < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Str("path", dotEnvFile).Msg("failed to load env file")
	}

	configPath := resolveConfigPath(explicitPath)
	v := newViper(cfg, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	// decode into a zero value: defaults live in viper, and a pre-filled
	// slice would keep default entries past the end of a shorter list
	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	return loaded, configPath, nil
}

// Watch re-reads the config file on every change and hands the result to
// onChange. It returns immediately; watching lasts for the process lifetime.
func Watch(logger *zerolog.Logger, path string, onChange func(Config)) error {
	v := newViper(Default(), path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			if logger != nil {
				logger.Warn().Err(err).Str("path", ev.Name).Msg("ignoring unreadable config change")
			}
			return
		}
		if logger != nil {
			logger.Info().Str("path", ev.Name).Msg("config reloaded")
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(cfg Config, configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("allowed_origins", cfg.AllowedOrigins)
	v.SetDefault("stats_interval", cfg.StatsInterval)
	v.SetDefault("chat.long_poll_timeout", cfg.Chat.LongPollTimeout)
	v.SetDefault("chat.max_text_len", cfg.Chat.MaxTextLen)
	v.SetDefault("chat.max_sender_len", cfg.Chat.MaxSenderLen)
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.dsn", cfg.Store.DSN)
	v.SetDefault("identity.cookie_name", cfg.Identity.CookieName)
	v.SetDefault("identity.secret", cfg.Identity.Secret)
	v.SetDefault("identity.ttl", cfg.Identity.TTL)
	v.SetDefault("identity.secure_cookie", cfg.Identity.SecureCookie)
	v.SetDefault("ws.max_message_bytes", cfg.WS.MaxMessageBytes)
	v.SetDefault("ws.frames_per_minute", cfg.WS.FramesPerMinute)
	v.SetDefault("ws.greeting", cfg.WS.Greeting)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	return v
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Marshal renders cfg as yaml, the same format Load reads.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
