package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.NotNil(t, cfg)
	assert.NotEmpty(t, cfg.ListenAddr)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.Equal(t, "local", cfg.PhotoBackend)
	assert.Empty(t, cfg.AdminKey)
}

func TestLoadCustomValues(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("DATA_DIR", "/srv/board/data")
	t.Setenv("ADMIN_KEY", "hunter2")
	t.Setenv("MAX_FILES", "3")
	t.Setenv("S3_USE_SSL", "true")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "/srv/board/data", cfg.DataDir)
	assert.Equal(t, "hunter2", cfg.AdminKey)
	assert.Equal(t, 3, cfg.MaxFiles)
	assert.True(t, cfg.S3UseSSL)
}

func TestCSVPath(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/board/data")

	cfg := Load()

	assert.Equal(t, "/srv/board/data/submissions.csv", cfg.CSVPath())
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("MAX_FILES", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5, cfg.MaxFiles)
}
