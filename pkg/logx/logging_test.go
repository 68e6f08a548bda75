package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	t.Parallel()

	var l Logger
	require.True(t, l.IsZero())
	l.Info("dropped", String("k", "v"))
	require.False(t, l.With(String("comp", "x")).IsZero())
}

func TestLoggerWritesFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, "debug").With(String("comp", "dispatch"))
	l.Warn("command failed", String("command", "ping"), Err(errors.New("boom")), Int("attempt", 2))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["level"])
	assert.Equal(t, "command failed", rec["message"])
	assert.Equal(t, "dispatch", rec["comp"])
	assert.Equal(t, "ping", rec["command"])
	assert.Equal(t, "boom", rec["err"])
	assert.EqualValues(t, 2, rec["attempt"])
	assert.Contains(t, rec["caller"], "logging_test.go")
}

func TestLoggerLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, "warn")
	l.Info("quiet")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestValidLevel(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"", true},
		{"debug", true},
		{" Warning ", true},
		{"verbose", false},
	} {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ValidLevel(tc.in))
		})
	}
}

func TestFormatChannelRecord(t *testing.T) {
	t.Parallel()

	out := formatChannelRecord([]byte(`{"level":"error","message":"task failed","time":"x","task":"digest","err":"timeout"}`))
	assert.True(t, strings.HasPrefix(out, "```\nERROR task failed"))
	assert.Contains(t, out, "\nerr=timeout\ntask=digest")
	assert.NotContains(t, out, "time=")

	long := formatChannelRecord([]byte(strings.Repeat("x", 5000)))
	assert.LessOrEqual(t, len(long), maxChannelMessage+8)
	assert.Empty(t, formatChannelRecord([]byte("  ")))

	wide := formatChannelRecord([]byte(`{"level":"warn","message":"` + strings.Repeat("é", 3000) + `"}`))
	assert.True(t, utf8.ValidString(wide))
	assert.LessOrEqual(t, utf8.RuneCountInString(wide), maxChannelMessage+8)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		maxN int
		want string
	}{
		{"héllo", 0, "héllo"},
		{"héllo", 5, "héllo"},
		{"ééé", 2, "éé"},
		{strings.Repeat("日", 12), 10, strings.Repeat("日", 7) + "..."},
	}
	for _, tc := range tests {
		got := truncate(tc.in, tc.maxN)
		assert.Equal(t, tc.want, got)
		assert.True(t, utf8.ValidString(got))
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendChannelMessage(_ context.Context, channelID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, channelID+"|"+text)
	return nil
}

func (r *recordingSender) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func TestServiceChannelSinkForwardsWarnings(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	svc, log := NewService(Config{
		Level:   "debug",
		Console: false,
		File:    FileConfig{Enabled: true, Path: t.TempDir() + "/bot.log"},
		Channel: ChannelConfig{Enabled: true, ChannelID: "c1", MinLevel: "warn", RatePerSec: 10},
	}, nil)
	t.Cleanup(func() { _ = svc.Close() })
	svc.SetSender(sender)

	log.Info("not forwarded")
	log.Warn("forwarded", String("comp", "scheduler"))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 5*time.Millisecond)
	got := sender.messages()[0]
	assert.True(t, strings.HasPrefix(got, "c1|```\nWARN forwarded"))
	assert.Contains(t, got, "comp=scheduler")
}
