package config

import (
	"fmt"
	"strings"
	"time"

	logx "relaybot/pkg/logx"
)

const (
	DefaultPrefix            = "!"
	DefaultTimezone          = "UTC"
	DefaultWorkers           = 4
	DefaultAutocompleteLimit = 25
	DefaultCommandTimeout    = 30 * time.Second
	DefaultButtonTimeout     = 5 * time.Minute
	DefaultDeniedMessage     = "You don't have permission to use this command."
	DefaultNotOwnerMessage   = "This button is not for you."
)

type Config struct {
	Bot     BotConfig     `json:"bot"`
	Buttons ButtonsConfig `json:"buttons"`
	Logging LoggingConfig `json:"logging"`
	Utility UtilityConfig `json:"utility"`
}

// BotConfig holds the dispatch settings. Timeouts are Go duration strings or
// "never".
type BotConfig struct {
	Token    string `json:"token,omitempty"`
	Prefix   string `json:"prefix"`
	Timezone string `json:"timezone,omitempty"`

	// GuildID scopes published structured commands to one guild.
	// Empty publishes them globally.
	GuildID         string `json:"guild_id,omitempty"`
	PublishCommands bool   `json:"publish_commands,omitempty"`

	DeniedMessage     string `json:"denied_message,omitempty"`
	Workers           int    `json:"workers,omitempty"`
	CommandTimeout    string `json:"command_timeout,omitempty"`
	AutocompleteLimit int    `json:"autocomplete_limit,omitempty"`
}

type ButtonsConfig struct {
	DefaultTimeout  string `json:"default_timeout,omitempty"`
	NotOwnerMessage string `json:"not_owner_message,omitempty"`
}

// UtilityConfig configures the bundled utility command group. DigestTimes
// are daily "HH:MM" times in the bot time zone.
type UtilityConfig struct {
	AnnounceChannel string   `json:"announce_channel,omitempty"`
	DigestTimes     []string `json:"digest_times,omitempty"`
}

type LoggingConfig struct {
	Level   string           `json:"level"`
	Console bool             `json:"console"`
	File    LogFileConfig    `json:"file"`
	Channel LogChannelConfig `json:"channel"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LogChannelConfig struct {
	Enabled    bool   `json:"enabled"`
	ChannelID  string `json:"channel_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// ApplyDefaults fills zero values. Prefix is defaulted by Decode when the key
// is missing, so an explicit empty prefix still fails validation.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Bot.Timezone) == "" {
		c.Bot.Timezone = DefaultTimezone
	}
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = DefaultWorkers
	}
	if c.Bot.AutocompleteLimit <= 0 {
		c.Bot.AutocompleteLimit = DefaultAutocompleteLimit
	}
	if strings.TrimSpace(c.Bot.DeniedMessage) == "" {
		c.Bot.DeniedMessage = DefaultDeniedMessage
	}
	if strings.TrimSpace(c.Buttons.NotOwnerMessage) == "" {
		c.Buttons.NotOwnerMessage = DefaultNotOwnerMessage
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		return fmt.Errorf("bot.prefix: must not be empty")
	}
	if strings.ContainsAny(c.Bot.Prefix, " \t\r\n") {
		return fmt.Errorf("bot.prefix: must not contain whitespace")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseTimeout("bot.command_timeout", c.Bot.CommandTimeout, DefaultCommandTimeout); err != nil {
		return err
	}
	if _, err := parseTimeout("buttons.default_timeout", c.Buttons.DefaultTimeout, DefaultButtonTimeout); err != nil {
		return err
	}
	if !logx.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	if c.Logging.Channel.Enabled && strings.TrimSpace(c.Logging.Channel.ChannelID) == "" {
		return fmt.Errorf("logging.channel.channel_id: required when the channel sink is enabled")
	}
	return nil
}

// Location resolves the bot time zone used for clock-time tasks.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Bot.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("bot.timezone: %w", err)
	}
	return loc, nil
}

// CommandTimeout is the per-handler deadline, or Never for none.
func (c *Config) CommandTimeout() time.Duration {
	d, err := parseTimeout("bot.command_timeout", c.Bot.CommandTimeout, DefaultCommandTimeout)
	if err != nil {
		return DefaultCommandTimeout
	}
	return d
}

// ButtonTimeout is the expiry for buttons registered without their own
// timeout, or Never to keep them until unregistered.
func (c *Config) ButtonTimeout() time.Duration {
	d, err := parseTimeout("buttons.default_timeout", c.Buttons.DefaultTimeout, DefaultButtonTimeout)
	if err != nil {
		return DefaultButtonTimeout
	}
	return d
}

// LogConfig converts the logging block for logx.Service.Apply.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
		Channel: logx.ChannelConfig{
			Enabled:    c.Logging.Channel.Enabled,
			ChannelID:  c.Logging.Channel.ChannelID,
			MinLevel:   c.Logging.Channel.MinLevel,
			RatePerSec: c.Logging.Channel.RatePerSec,
		},
	}
}
