package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`
	TextModel    string `env:"ADVENTURE_TEXT_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel   string `env:"ADVENTURE_IMAGE_MODEL" envDefault:"imagen-3.0-generate-002"`
	ImageDir     string `env:"ADVENTURE_IMAGE_DIR"`
	LogFile      string `env:"ADVENTURE_LOG_FILE"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // a missing .env file is fine

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.ImageDir == "" {
		cfg.ImageDir = filepath.Join(os.TempDir(), "gemini-adventure")
	}
	return cfg, nil
}
