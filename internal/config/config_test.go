package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/damoang/angple-cms/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLAndDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
server:
  port: 9000
database:
  host: db.internal
  user: cms
  password: secret
  dbname: cms
workflow:
  preview_ttl: 2h
cache:
  partitions:
    blog:
      ttl: 1m
    course:
      enabled: false
    media:
      max_size: 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 2*time.Hour, cfg.Workflow.PreviewTTL)
	assert.Equal(t, "/preview/", cfg.Workflow.PreviewPath)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, time.Hour, cfg.Jobs.PreviewPurgeInterval)
	assert.Equal(t, "cms:secret@tcp(db.internal:3306)/cms?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.GetDSN())

	overrides := cfg.Cache.Overrides()
	assert.Equal(t, time.Minute, overrides[cache.PartitionBlog].TTL)
	assert.Equal(t, 500, overrides[cache.PartitionBlog].MaxSize)
	assert.True(t, overrides[cache.PartitionBlog].Enabled)
	assert.False(t, overrides[cache.PartitionCourse].Enabled)
	assert.Equal(t, cache.TTLCourse, overrides[cache.PartitionCourse].TTL)
	assert.Equal(t, 50, overrides[cache.PartitionMedia].MaxSize)
	assert.NotContains(t, overrides, cache.PartitionLesson)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "database:\n  host: from-yaml\n")
	t.Setenv("DB_HOST", "from-env")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Workflow.PreviewTTL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(empty)", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "se**et", mask("secret"))
}

func TestLoadDotEnv_Priority(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("APP_ENV", "staging")
	t.Setenv("CMS_DOTENV_A", "")
	t.Setenv("CMS_DOTENV_B", "")
	require.NoError(t, os.Unsetenv("CMS_DOTENV_A"))
	require.NoError(t, os.Unsetenv("CMS_DOTENV_B"))

	require.NoError(t, os.WriteFile(".env", []byte("CMS_DOTENV_A=base\nCMS_DOTENV_B=base\n"), 0o600))
	require.NoError(t, os.WriteFile(".env.staging", []byte("CMS_DOTENV_A=staging\n"), 0o600))

	loaded := LoadDotEnv()
	assert.Equal(t, []string{".env.staging", ".env"}, loaded)
	assert.Equal(t, "staging", os.Getenv("CMS_DOTENV_A"))
	assert.Equal(t, "base", os.Getenv("CMS_DOTENV_B"))
	assert.Equal(t, "configs/config.staging.yaml", Path())
}
