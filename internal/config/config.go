package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gsneval/internal/explore"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type StorageConfig struct {
	DBPath string `yaml:"db_path" env:"GSNEVAL_DB_PATH" validate:"required"`
}

type GSNConfig struct {
	// Dir holds the perspective documents (01_..._GSN.yaml to 10_..._GSN.yaml).
	Dir string `yaml:"dir" env:"GSNEVAL_GSN_DIR"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"GSNEVAL_LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"GSNEVAL_LOG_FORMAT" validate:"oneof=text json"`
}

type ExploreConfig struct {
	ResetRule  string `yaml:"reset_rule" env:"GSNEVAL_RESET_RULE" validate:"oneof=pattern depth none"`
	ResetDepth int    `yaml:"reset_depth" env:"GSNEVAL_RESET_DEPTH" validate:"gte=1"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	GSN     GSNConfig     `yaml:"gsn"`
	Log     LogConfig     `yaml:"log"`
	Explore ExploreConfig `yaml:"explore"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{DBPath: "gsneval.db"},
		GSN:     GSNConfig{Dir: "gsn"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Explore: ExploreConfig{ResetRule: explore.RulePattern, ResetDepth: 1},
	}
}

var validate = validator.New()

// LoadConfig builds the configuration from defaults, the YAML file at path
// and GSNEVAL_* environment variables, in increasing precedence. A missing
// file leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(file, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with environment variables
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ExploreConfig returns the explorer settings selected by the configuration.
func (c *Config) ExploreConfig() (explore.Config, error) {
	rule, err := explore.ParseResetRule(c.Explore.ResetRule, c.Explore.ResetDepth)
	if err != nil {
		return explore.Config{}, err
	}
	cfg := explore.DefaultConfig()
	cfg.Reset = rule
	return cfg, nil
}
