package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

// Provider holds the process configuration. Stages are invoked cold, so a
// configuration is built once per process and shared by every request.
type Provider struct {
	mu     sync.RWMutex
	config *Config

	// EnvDir is where .env files are looked up. Empty means the working
	// directory.
	EnvDir string
}

var (
	instance *Provider
	once     sync.Once
)

// GetProvider returns the process-wide provider.
func GetProvider() *Provider {
	once.Do(func() {
		instance = &Provider{EnvDir: os.Getenv("CONFIG_ENV_DIR")}
	})
	return instance
}

// Load builds the configuration from the process-wide provider.
func Load() (*Config, error) {
	p := GetProvider()
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p.Get()
}

// Load reads the .env files and the environment the first time it is
// called. Later calls keep the first result.
func (p *Provider) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.config != nil {
		return nil
	}

	// On Lambda the function configuration is the only source.
	if !IsLambda() {
		if err := loadEnvFiles(p.EnvDir); err != nil {
			return fmt.Errorf("failed to load env files: %w", err)
		}
	}

	cfg, err := build()
	if err != nil {
		return err
	}
	p.config = cfg
	return nil
}

// Get returns the loaded configuration.
func (p *Provider) Get() (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.config == nil {
		return nil, errors.New("configuration not loaded; call Load() first")
	}
	return p.config, nil
}

// Reload rebuilds from the environment without reading .env files again.
func (p *Provider) Reload() error {
	cfg, err := build()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.config = cfg
	p.mu.Unlock()
	return nil
}

// Reset forgets the loaded configuration.
func (p *Provider) Reset() {
	p.mu.Lock()
	p.config = nil
	p.mu.Unlock()
}

func build() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadEnvFiles applies .env, then .env.<ENVIRONMENT>, then .env.local. The
// first never overrides the real environment, the other two do. Missing
// files are skipped.
func loadEnvFiles(dir string) error {
	files := []struct {
		name     string
		override bool
	}{
		{".env", false},
		{"", true},
		{".env.local", true},
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		files[1].name = ".env." + env
	}

	for _, f := range files {
		if f.name == "" {
			continue
		}
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		load := godotenv.Load
		if f.override {
			load = godotenv.Overload
		}
		if err := load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
