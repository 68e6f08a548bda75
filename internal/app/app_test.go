package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relaybot/internal/config"
)

func TestBotOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Bot.Prefix = "?"
	cfg.Bot.Timezone = "Europe/Berlin"
	cfg.Bot.CommandTimeout = "5s"
	cfg.Buttons.DefaultTimeout = "90s"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	opts := botOptions(cfg)
	assert.Equal(t, "?", opts.Prefix)
	require.NotNil(t, opts.Location)
	assert.Equal(t, "Europe/Berlin", opts.Location.String())
	assert.Equal(t, 5*time.Second, opts.CommandTimeout)
	assert.Equal(t, 90*time.Second, opts.ButtonTimeout)
	assert.Equal(t, config.DefaultWorkers, opts.Workers)
	assert.Equal(t, config.DefaultAutocompleteLimit, opts.AutocompleteLimit)
	assert.Equal(t, config.DefaultDeniedMessage, opts.DeniedMessage)
	assert.Equal(t, config.DefaultNotOwnerMessage, opts.NotOwnerMessage)
	assert.Nil(t, opts.Publisher)
}

func TestSettingsFallBackOnBadZone(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Bot.Timezone = "Not/AZone"
	s := settings(cfg)
	assert.Nil(t, s.Location)
	assert.Equal(t, config.DefaultCommandTimeout, s.CommandTimeout)
	assert.Equal(t, config.DefaultButtonTimeout, s.ButtonTimeout)
}

func TestNeverTimeoutsReachTheBot(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Bot.Prefix = "!"
	cfg.Bot.CommandTimeout = "off"
	cfg.Buttons.DefaultTimeout = "never"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	opts := botOptions(cfg)
	assert.Negative(t, int64(opts.ButtonTimeout))
	assert.Negative(t, int64(opts.CommandTimeout))
}
