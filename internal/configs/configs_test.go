package configs

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(New())
	require.NoError(t, err)

	want := &AppConfig{
		Environment:    "development",
		LogLevel:       "info",
		ServerURL:      "http://localhost:8080",
		SocketPath:     "/ws",
		RequestTimeout: 10 * time.Second,
		CredentialFile: DefaultCredentialFile(),
		TypingTTL:      2 * time.Second,
		TypingTick:     100 * time.Millisecond,
		TypingRate:     4,
		TypingBurst:    2,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "ws://localhost:8080/ws", cfg.SocketURL())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CHATLINE_ENVIRONMENT", "Production")
	t.Setenv("CHATLINE_SERVER_URL", "https://chat.example.com/")
	t.Setenv("CHATLINE_SOCKET_PATH", "events")
	t.Setenv("CHATLINE_TYPING_TTL", "3s")
	t.Setenv("CHATLINE_TYPING_BURST", "5")

	cfg, err := LoadConfig(New())
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, "/events", cfg.SocketPath)
	assert.Equal(t, "wss://chat.example.com/events", cfg.SocketURL())
	assert.Equal(t, 3*time.Second, cfg.TypingTTL)
	assert.Equal(t, 5, cfg.TypingBurst)
}

func TestBindFlagsOverride(t *testing.T) {
	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))

	require.NoError(t, fs.Parse([]string{"--server-url", "http://10.0.0.2:9000", "--request-timeout", "3s"}))

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]struct {
		key   string
		value any
	}{
		"environment":      {KeyEnvironment, "staging"},
		"log level":        {KeyLogLevel, "loud"},
		"scheme":           {KeyServerURL, "ftp://example.com"},
		"no host":          {KeyServerURL, "http://"},
		"timeout":          {KeyRequestTimeout, "0s"},
		"credential file":  {KeyCredentialFile, ""},
		"tick exceeds ttl": {KeyTypingTick, "5s"},
		"rate":             {KeyTypingRate, 0},
		"burst":            {KeyTypingBurst, 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.value)

			cfg, err := LoadConfig(v)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
