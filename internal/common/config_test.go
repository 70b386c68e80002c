package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"prompt_template.txt", "document_types.txt", "categories.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644))
	}
	return &Config{
		ConfigDir: ConfigDirConfig{Dir: dir},
		LLM:       LLMConfig{APIKey: "k"},
	}
}

func TestValidateOK(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, cfg.Validate())
}

func TestValidateCorrectionsFileMayBeAbsent(t *testing.T) {
	cfg := validConfig(t)
	_, err := os.Stat(cfg.ConfigDir.CorrectionsPath())
	require.True(t, os.IsNotExist(err))
	assert.NoError(t, cfg.Validate(), "correction log is created on first append")
}

func TestValidateMissingAPIKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfigurationMissing, CodeOf(err))
	assert.True(t, errors.Is(err, ErrConfigurationMissing))
}

func TestValidateMissingConfigDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.ConfigDir.Dir = filepath.Join(cfg.ConfigDir.Dir, "absent")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfigurationMissing, CodeOf(err))
}

func TestValidateMissingTaxonomyFile(t *testing.T) {
	cfg := validConfig(t)
	require.NoError(t, os.Remove(cfg.ConfigDir.CategoriesPath()))
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, CodeConfigurationMissing, CodeOf(err))
	assert.Contains(t, err.Error(), "categories.txt")
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DOCSIFT_CONFIG_DIR", "PDF_RENDER_DPI", "GEMINI_MODEL"} {
		t.Setenv(k, "") // registers restore on cleanup
		require.NoError(t, os.Unsetenv(k))
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "./config", cfg.ConfigDir.Dir)
	assert.Equal(t, 72, cfg.Normalize.DPI)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Model)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DOCSIFT_CONFIG_DIR", "/etc/docsift")
	t.Setenv("JPEG_QUALITY", "65")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/etc/docsift", cfg.ConfigDir.Dir)
	assert.Equal(t, 65, cfg.Normalize.JPEGQuality)
	assert.Equal(t, filepath.Join("/etc/docsift", "docsift.db"), cfg.ConfigDir.DatabasePath())
}
