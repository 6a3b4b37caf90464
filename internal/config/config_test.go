package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "twinsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[sim]
tick_rate = "50ms"

[database]
driver = "sqlite"
dsn = "file:twin.db"

[exchange]
password_hash = "$2a$10$abc"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.Sim.TickRate)
	assert.Equal(t, 2, cfg.Sim.Layers, "untouched keys keep their default")
	assert.True(t, cfg.Sim.Adaptive)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file:twin.db", cfg.Database.DSN)
	assert.Equal(t, "$2a$10$abc", cfg.Exchange.PasswordHash)
	assert.Equal(t, 60*time.Second, cfg.Exchange.ReadTimeout)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.NotZero(t, cfg.StartTime)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"driver":    "[database]\ndriver = \"oracle\"\n",
		"tick rate": "[sim]\ntick_rate = \"0s\"\n",
		"layers":    "[sim]\nlayers = 0\n",
		"syntax":    "[sim\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.Equal(t, "none", cfg.Database.Driver)
	assert.Equal(t, 20*time.Millisecond, cfg.Sim.TickRate)
}
