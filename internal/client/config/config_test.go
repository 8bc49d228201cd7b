package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var cfg Config
	cfg.LoadDefaults()

	require.Equal(t, "http://127.0.0.1:8080", cfg.BaseURL)
	require.Equal(t, "libris.db", cfg.DatabaseFile)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
	require.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}

func TestParseJsonOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"base_url": "https://library.example.org",
		"online_check_interval": "7s"
	}`), 0o600))

	orig := os.Args
	os.Args = []string{"client", "-config", path}
	t.Cleanup(func() { os.Args = orig })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	require.Equal(t, "https://library.example.org", cfg.BaseURL)
	require.Equal(t, 7*time.Second, cfg.OnlineCheckInterval)
	// Keys absent from the file keep their defaults.
	require.Equal(t, "libris.db", cfg.DatabaseFile)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestParseFlagsOverride(t *testing.T) {
	orig := os.Args
	os.Args = []string{"client", "-a", "https://flags.example.org", "-i", "9", "-d", "alt.db"}
	t.Cleanup(func() { os.Args = orig })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	require.Equal(t, "https://flags.example.org", cfg.BaseURL)
	require.Equal(t, "alt.db", cfg.DatabaseFile)
	require.Equal(t, 9*time.Second, cfg.OnlineCheckInterval)
}
