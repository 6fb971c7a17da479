// Package config provides Viper-based configuration loading for the relay server.
//
// All settings have working defaults and can be overridden through RELAY_*
// environment variables (the listen port additionally honors plain PORT, which
// is what most container platforms inject).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level relay configuration.
type Config struct {
	// Port is the TCP port the HTTP/WebSocket listener binds to.
	Port int `mapstructure:"port"`
	// NameMax is the maximum player display-name length in runes.
	NameMax int `mapstructure:"name_max"`
	// LobbyKeyMax is the maximum normalized named-lobby key length.
	LobbyKeyMax int `mapstructure:"lobby_key_max"`
	// LobbyNameMax is the maximum display name length for created lobbies.
	LobbyNameMax int `mapstructure:"lobby_name_max"`
	// ChatMax is the maximum chat message length in runes; longer text is truncated.
	ChatMax int `mapstructure:"chat_max"`
	// MaxLobbySize is advertised in lobby listings. It is not enforced on join.
	MaxLobbySize int `mapstructure:"max_lobby_size"`
	// LivenessInterval is the probe period for idle-connection detection.
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	// OutboundQueue is the per-connection outbound message buffer depth.
	// A full queue means the next message for that peer is dropped.
	OutboundQueue int `mapstructure:"outbound_queue"`
}

// Addr returns the ":port" listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	var errs []string

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port must be in [1, 65535], got %d", c.Port))
	}
	if c.NameMax < 1 {
		errs = append(errs, "name_max must be positive")
	}
	if c.LobbyKeyMax < 1 {
		errs = append(errs, "lobby_key_max must be positive")
	}
	if c.LobbyNameMax < 1 {
		errs = append(errs, "lobby_name_max must be positive")
	}
	if c.ChatMax < 1 {
		errs = append(errs, "chat_max must be positive")
	}
	if c.MaxLobbySize < 1 {
		errs = append(errs, "max_lobby_size must be positive")
	}
	if c.LivenessInterval <= 0 {
		errs = append(errs, "liveness_interval must be positive")
	}
	if c.OutboundQueue < 1 {
		errs = append(errs, "outbound_queue must be positive")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load builds a Config from defaults and environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 3001)
	v.SetDefault("name_max", 16)
	v.SetDefault("lobby_key_max", 20)
	v.SetDefault("lobby_name_max", 30)
	v.SetDefault("chat_max", 200)
	v.SetDefault("max_lobby_size", 50)
	v.SetDefault("liveness_interval", 20*time.Second)
	v.SetDefault("outbound_queue", 32)

	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Hosting platforms hand out the port as plain PORT.
	if err := v.BindEnv("port", "RELAY_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("binding port env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
