package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleYAML = `
server:
  host: 127.0.0.1
  port: 9090
  read_timeout: 15s
logging:
  level: debug
pipeline:
  workers: 3
  queue_size: 20
model:
  base_url: https://api.example.com/v1
  api_key: sk-test
  model: gpt-test
wechat:
  app_id: wx-app
  app_secret: wx-secret
extractor:
  user_agent: contentpipe-test
`

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Address())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Std())
	// Settings absent from the file keep their defaults.
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, 20, cfg.Pipeline.QueueSize)
	assert.Equal(t, "https://api.example.com/v1", cfg.Model.BaseURL)
	assert.Equal(t, "gpt-test", cfg.Model.Model)
	assert.True(t, cfg.WeChat.Enabled())
	assert.Equal(t, "contentpipe-test", cfg.Extractor.UserAgent)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfigFile(t, `
model:
  base_url: https://api.example.com/v1
  model: gpt-test
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Std())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.False(t, cfg.WeChat.Enabled())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("MODEL_API_KEY", "sk-env")
	t.Setenv("MODEL_NAME", "gpt-env")
	t.Setenv("WECHAT_APP_ID", "wx-env")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("EXTRACTOR_USER_AGENT", "env-agent")

	cfg, err := Load(writeConfigFile(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout.Std())
	assert.Equal(t, "sk-env", cfg.Model.APIKey)
	assert.Equal(t, "gpt-env", cfg.Model.Model)
	assert.Equal(t, "wx-env", cfg.WeChat.AppID)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, "env-agent", cfg.Extractor.UserAgent)
}

func TestLoad_EnvOnlyWithMissingFile(t *testing.T) {
	t.Setenv("MODEL_BASE_URL", "https://env.example.com/v1")
	t.Setenv("MODEL_NAME", "gpt-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/v1", cfg.Model.BaseURL)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfigFile(t, "server: ["))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	_, err := Load(writeConfigFile(t, `
server:
  read_timeout: soon
model:
  base_url: https://api.example.com/v1
  model: gpt-test
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soon")
}

func TestLoad_ValidationFailures(t *testing.T) {
	t.Run("missing model base url", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, `
model:
  model: gpt-test
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})

	t.Run("missing model name", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, `
model:
  base_url: https://api.example.com/v1
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model.model")
	})

	t.Run("bad port", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, `
server:
  port: 70000
model:
  base_url: https://api.example.com/v1
  model: gpt-test
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
	})
}
