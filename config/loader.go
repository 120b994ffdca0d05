package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var searchPaths = []string{"config.yml", "config.yaml", "/etc/gtfs-timetables/config.yml"}

// LoadAppConfig reads and validates the configuration. With an empty
// path the usual locations are searched and a missing file is not an
// error; an explicit path must exist. A .env file, when present, fills
// the environment first so ${VAR} references in connection strings
// resolve.
func LoadAppConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	data, found, err := readFirst(path)
	if err != nil {
		return nil, err
	}
	if found {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	cfg.applyDefaults()

	v := validator.New()
	if err := v.Struct(cfg.Server); err != nil {
		return nil, fmt.Errorf("config server: %w", err)
	}
	if err := v.Struct(cfg.Extract); err != nil {
		return nil, fmt.Errorf("config extract: %w", err)
	}
	cfg.Notify.NATSURL = os.ExpandEnv(cfg.Notify.NATSURL)
	for i := range cfg.Feeds {
		cfg.Feeds[i].PostgresDSN = os.ExpandEnv(cfg.Feeds[i].PostgresDSN)
		if err := v.Struct(cfg.Feeds[i]); err != nil {
			return nil, fmt.Errorf("config feed %q: %w", cfg.Feeds[i].Name, err)
		}
	}
	return cfg, nil
}

func readFirst(path string) ([]byte, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, err
		}
		return data, true, nil
	}
	for _, p := range searchPaths {
		if data, err := os.ReadFile(p); err == nil {
			return data, true, nil
		}
	}
	return nil, false, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Extract.AreaPolicy == "" {
		c.Extract.AreaPolicy = "any"
	}
	if c.Extract.Format == "" {
		c.Extract.Format = "text"
	}
	if c.Notify.SubjectPrefix == "" {
		c.Notify.SubjectPrefix = "timetables"
	}
}

// SelectFeed chooses a feed by name, falling back to the first
// configured one when name is empty.
func (c *AppConfig) SelectFeed(name string) (FeedConfig, error) {
	if name != "" {
		for _, f := range c.Feeds {
			if f.Name == name {
				return f, nil
			}
		}
		return FeedConfig{}, fmt.Errorf("config: no feed named %q", name)
	}
	if len(c.Feeds) > 0 {
		return c.Feeds[0], nil
	}
	return FeedConfig{}, fmt.Errorf("config: no feeds configured")
}
