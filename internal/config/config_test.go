package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "test")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadSize)
	assert.Equal(t, 25*time.Second, cfg.Stream.Heartbeat)
	assert.Equal(t, 10000, cfg.Stream.MaxConnections)
	assert.Equal(t, "chat.audit", cfg.AMQP.Exchange)
	assert.Equal(t, 20, cfg.DBMaxConnections())
	assert.Empty(t, cfg.PushServiceURL)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("APP_ENV", "test")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yml := "server_addr: \":9000\"\nstream_heartbeat_seconds: 10\nmax_upload_size_mb: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "api.yaml"), []byte(yml), 0o644))

	t.Setenv("STREAM_HEARTBEAT_SECONDS", "7")
	t.Setenv("RATE_LIMIT_RPS", "1.5")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, 7*time.Second, cfg.Stream.Heartbeat)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadSize)
	assert.InDelta(t, 1.5, cfg.RateLimit.RPS, 0.0001)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("APP_ENV", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_ADDR=:7000\nUPLOAD_DIR=/tmp/x\n"), 0o644))
	t.Setenv("SERVER_ADDR", ":7100")

	cfg := Load()
	assert.Equal(t, ":7100", cfg.ServerAddr)
	assert.Equal(t, "/tmp/x", cfg.UploadDir)
	os.Unsetenv("UPLOAD_DIR")
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("STREAM_BUFFER_SIZE", "abc")
	assert.Equal(t, 64, envInt("STREAM_BUFFER_SIZE", 64))
	t.Setenv("RATE_LIMIT_RPS", "x")
	assert.InDelta(t, 3.0, envFloat("RATE_LIMIT_RPS", 3), 0.0001)
}
