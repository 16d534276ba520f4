package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "1234567890:ABCdef"
openai:
  base_url: "https://openrouter.ai/api/v1"
  token: "sk-test"
  model: "openai/gpt-4o-mini"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "data/telemind.db", cfg.DB.Path)
	assert.Equal(t, time.Second, cfg.Engine.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Engine.ReminderInterval())
	assert.False(t, cfg.Telegram.DisableTyping)
}

func TestLoadFileExplicitValues(t *testing.T) {
	path := writeConfig(t, `
db:
  path: "/tmp/other.db"
telegram:
  token: "1234567890:ABCdef"
  disable_typing: true
openai:
  base_url: "https://openrouter.ai/api/v1"
  token: "sk-test"
  model: "openai/gpt-4o-mini"
engine:
  poll_interval_sec: 5
  reminder_interval_sec: 30
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.DB.Path)
	assert.True(t, cfg.Telegram.DisableTyping)
	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.Engine.ReminderInterval())
}

func TestLoadFileMissingTelegramToken(t *testing.T) {
	path := writeConfig(t, `
openai:
  base_url: "https://openrouter.ai/api/v1"
  token: "sk-test"
  model: "openai/gpt-4o-mini"
`)

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := writeConfig(t, "telegram: [broken")

	_, err := LoadFile(path)
	assert.Error(t, err)
}
