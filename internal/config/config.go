package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CaptureConfig struct {
	BaseURL         string
	Timeout         time.Duration
	RefreshCooldown time.Duration
}

type StreamConfig struct {
	URL            string
	ReconnectDelay time.Duration
}

type StorageConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level string
}

type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Capture CaptureConfig
	Stream  StreamConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

// Load reads configuration from an optional config file and ZONAVERDE_*
// environment variables, falling back to defaults suitable for local use.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("backend.base_url", "http://localhost:8000/api")
	v.SetDefault("backend.timeout", "10s")
	v.SetDefault("capture.base_url", "http://localhost:8000/api")
	v.SetDefault("capture.timeout", "30s")
	v.SetDefault("capture.refresh_cooldown", "3s")
	v.SetDefault("stream.url", "ws://localhost:8000/api/plate/ws")
	v.SetDefault("stream.reconnect_delay", "2s")
	v.SetDefault("storage.path", "zona-verde.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("ZONAVERDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:        v.GetString("server.addr"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.base_url"), "/"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		Capture: CaptureConfig{
			BaseURL:         strings.TrimRight(v.GetString("capture.base_url"), "/"),
			Timeout:         v.GetDuration("capture.timeout"),
			RefreshCooldown: v.GetDuration("capture.refresh_cooldown"),
		},
		Stream: StreamConfig{
			URL:            v.GetString("stream.url"),
			ReconnectDelay: v.GetDuration("stream.reconnect_delay"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url is required")
	}
	if cfg.Stream.URL == "" {
		return nil, fmt.Errorf("stream.url is required")
	}

	return cfg, nil
}
