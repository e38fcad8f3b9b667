package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadConfig читает .env (если есть), YAML и накладывает переменные окружения
func LoadConfig(filePath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close config file: %v", closeErr)
		}
	}()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

// applyEnv переменные окружения важнее файла. MONGO_URI задаёт DSN только для mongo.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("STORAGE_DRIVER", &c.Storage.Driver)
	set("STORAGE_DSN", &c.Storage.DSN)
	if c.Storage.Driver == "mongo" {
		set("MONGO_URI", &c.Storage.DSN)
		set("MONGO_DB_NAME", &c.Storage.Database)
	}
	if v, ok := lookup("RABBITMQ_URL"); ok && v != "" {
		c.Events.URL = v
		c.Events.Enabled = true
	}
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("CHROME_PATH", &c.Browser.ChromePath)
	set("LOG_LEVEL", &c.Observability.LogLevel)
	set("ENVIRONMENT", &c.Environment)
}
