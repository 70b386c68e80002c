package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	ConfigDir ConfigDirConfig
	LLM       LLMConfig
	Normalize NormalizeConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" env-default:":8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// ConfigDirConfig locates the configuration directory and the files inside it.
// The files are owned by the external configuration subsystem; the service
// requires them to exist at startup.
type ConfigDirConfig struct {
	Dir string `env:"DOCSIFT_CONFIG_DIR" env-default:"./config"`
}

// LLMConfig holds the multimodal generation endpoint settings.
type LLMConfig struct {
	APIKey  string        `env:"GEMINI_API_KEY"`
	BaseURL string        `env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com"`
	Model   string        `env:"GEMINI_MODEL" env-default:"gemini-1.5-flash"`
	Timeout time.Duration `env:"GEMINI_TIMEOUT" env-default:"60s"`
}

// NormalizeConfig holds document normalization settings.
type NormalizeConfig struct {
	Pdftoppm    string `env:"PDFTOPPM_BIN" env-default:"pdftoppm"`
	DPI         int    `env:"PDF_RENDER_DPI" env-default:"72"`
	JPEGQuality int    `env:"JPEG_QUALITY" env-default:"80"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, WrapError(err, "read env")
	}
	return &cfg, nil
}

// Paths into the configuration directory.
func (c *ConfigDirConfig) PromptTemplatePath() string { return filepath.Join(c.Dir, "prompt_template.txt") }
func (c *ConfigDirConfig) DocumentTypesPath() string  { return filepath.Join(c.Dir, "document_types.txt") }
func (c *ConfigDirConfig) CategoriesPath() string     { return filepath.Join(c.Dir, "categories.txt") }
func (c *ConfigDirConfig) CorrectionsPath() string    { return filepath.Join(c.Dir, "corrections.jsonl") }
func (c *ConfigDirConfig) DatabasePath() string       { return filepath.Join(c.Dir, "docsift.db") }

// Validate checks that everything a session needs is present. Any failure here
// is fatal to the whole session and must prevent extraction attempts.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfigurationMissing, "GEMINI_API_KEY is required", ErrConfigurationMissing)
	}
	if st, err := os.Stat(c.ConfigDir.Dir); err != nil || !st.IsDir() {
		return NewAppError(CodeConfigurationMissing,
			fmt.Sprintf("config directory %q not found", c.ConfigDir.Dir), ErrConfigurationMissing)
	}
	for _, p := range []string{
		c.ConfigDir.PromptTemplatePath(),
		c.ConfigDir.DocumentTypesPath(),
		c.ConfigDir.CategoriesPath(),
	} {
		if _, err := os.Stat(p); err != nil {
			return NewAppError(CodeConfigurationMissing,
				fmt.Sprintf("required configuration file %q not found", p), ErrConfigurationMissing)
		}
	}
	return nil
}
