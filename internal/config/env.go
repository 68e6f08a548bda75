package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may come from the environment
// (or a .env file loaded by the caller). Non-empty values win over the file.
type envOverrides struct {
	Token    string `env:"RELAYBOT_TOKEN"`
	Prefix   string `env:"RELAYBOT_PREFIX"`
	Timezone string `env:"RELAYBOT_TIMEZONE"`
	GuildID  string `env:"RELAYBOT_GUILD_ID"`
	LogLevel string `env:"RELAYBOT_LOG_LEVEL"`
}

// ApplyEnv overlays process environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	o.apply(cfg)
	return nil
}

func applyEnvFrom(cfg *Config, environ map[string]string) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	o.apply(cfg)
	return nil
}

func (o envOverrides) apply(cfg *Config) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Bot.Token, o.Token)
	set(&cfg.Bot.Prefix, o.Prefix)
	set(&cfg.Bot.Timezone, o.Timezone)
	set(&cfg.Bot.GuildID, o.GuildID)
	set(&cfg.Logging.Level, o.LogLevel)
}
