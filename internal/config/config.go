package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DRIFTPAD"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "driftpad.db"
	defaultLogLevel      = "info"
	defaultSessionBuffer = 16
)

// AppConfig captures runtime configuration for the relay/API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SessionBuffer int
}

// ClientConfig captures runtime configuration for the terminal client.
type ClientConfig struct {
	ServerURL      string
	RoomID         string
	LogLevel       string
	BroadcastDelay time.Duration
	SaveDelay      time.Duration
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("relay.session_buffer", defaultSessionBuffer)
}

// ApplyClientDefaults configures defaults and env bindings for the terminal client.
func ApplyClientDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("server.url", "http://localhost:8080")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("debounce.broadcast_ms", 300)
	configViper.SetDefault("debounce.save_ms", 1000)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SessionBuffer: configViper.GetInt("relay.session_buffer"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadClient parses terminal client configuration from viper.
func LoadClient(configViper *viper.Viper) (ClientConfig, error) {
	cfg := ClientConfig{
		ServerURL:      configViper.GetString("server.url"),
		RoomID:         configViper.GetString("room.id"),
		LogLevel:       configViper.GetString("log.level"),
		BroadcastDelay: time.Duration(configViper.GetInt("debounce.broadcast_ms")) * time.Millisecond,
		SaveDelay:      time.Duration(configViper.GetInt("debounce.save_ms")) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return ClientConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SessionBuffer <= 0 {
		return fmt.Errorf("relay.session_buffer must be positive")
	}
	return nil
}

func (c ClientConfig) validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if strings.TrimSpace(c.RoomID) == "" {
		return fmt.Errorf("room.id is required")
	}
	if c.BroadcastDelay <= 0 {
		return fmt.Errorf("debounce.broadcast_ms must be positive")
	}
	if c.SaveDelay <= 0 {
		return fmt.Errorf("debounce.save_ms must be positive")
	}
	return nil
}
