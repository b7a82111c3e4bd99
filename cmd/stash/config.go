package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const configFileName = "stash.yaml"

// Config holds configuration for every stash command. It is loaded from
// stash.yaml if present, then overridden by STASH_* environment variables
// and finally by flags.
type Config struct {
	// Backend is one of badger, sqlite, dynamodb or memory.
	Backend string `yaml:"backend" env:"BACKEND"`

	// DataDir is where the badger and sqlite backends keep their files.
	DataDir string `yaml:"dataDir" env:"DATA_DIR"`

	// Namespace prefixes every key, isolating tools sharing one store.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`

	// Port is the HTTP port for stash serve.
	Port int `yaml:"port" env:"PORT"`

	DynamoDB DynamoDBConfig `yaml:"dynamodb" envPrefix:"DYNAMODB_"`
	Fetch    FetchConfig    `yaml:"fetch" envPrefix:"FETCH_"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table" env:"TABLE"`
	Region   string `yaml:"region" env:"REGION"`
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

type FetchConfig struct {
	MaxAge  time.Duration `yaml:"maxAge" env:"MAX_AGE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Token   string        `yaml:"token" env:"TOKEN"`
}

func defaultConfig() Config {
	dataDir := ".stash"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".stash")
	}
	return Config{
		Backend: "badger",
		DataDir: dataDir,
		Port:    8080,
		Fetch: FetchConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// LoadConfig searches for stash.yaml starting from dir and walking up to the
// filesystem root, then applies environment overrides. It returns the path
// of the file used, or "" if none was found.
func LoadConfig(dir string) (Config, string, error) {
	cfg := defaultConfig()

	path := findConfigFile(dir)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, path, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, path, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "STASH_"}); err != nil {
		return cfg, path, fmt.Errorf("parse env: %w", err)
	}
	return cfg, path, nil
}

// findConfigFile searches for stash.yaml walking up from dir.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

func (c Config) validate() error {
	switch c.Backend {
	case "badger", "sqlite":
		if c.DataDir == "" {
			return fmt.Errorf("backend %s needs a data dir", c.Backend)
		}
	case "memory":
	case "dynamodb":
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("backend dynamodb needs dynamodb.table")
		}
	default:
		return fmt.Errorf("unknown backend %q (want badger, sqlite, dynamodb or memory)", c.Backend)
	}
	return nil
}
