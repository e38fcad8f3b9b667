package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/scraper"
)

const minimalYAML = `
environment: development
browser:
  driver: rod
  launch_retries: 2
backoff:
  min_ms: 100
  max_ms: 1000
  jitter_pct: 10
pagination:
  max_pages: 0
  element_timeout_ms: 500
  next_page_delay_ms: 5000
extract:
  settle_delay_ms: 5000
  element_timeout_ms: 500
  modal_pause_ms: 1000
  click_attempts: 3
regions:
  - country: Canada
    names: []
  - country: USA
    names: [Texas, "", Utah]
storage:
  driver: mongo
  dsn: mongodb://localhost:27017
  database: airbnb
  collection: listings
  command_timeout_ms: 1000
http:
  addr: ":5000"
observability:
  log_level: info
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"STORAGE_DRIVER", "STORAGE_DSN", "MONGO_URI", "MONGO_DB_NAME", "RABBITMQ_URL", "HTTP_ADDR", "CHROME_PATH", "LOG_LEVEL", "ENVIRONMENT"} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(writeFile(t, "config.yaml", minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if !cfg.IsDevelopment() {
		t.Errorf("IsDevelopment() = false")
	}
	if got := cfg.GetSettleDelay(); got != 5*time.Second {
		t.Errorf("GetSettleDelay() = %v, want 5s", got)
	}
	if got := cfg.GetNextPageDelay(); got != 5*time.Second {
		t.Errorf("GetNextPageDelay() = %v, want 5s", got)
	}

	want := []scraper.RegionTask{
		{Region: "Texas", Country: "USA"},
		{Region: "Utah", Country: "USA"},
	}
	if got := cfg.RegionTasks(); !reflect.DeepEqual(got, want) {
		t.Errorf("RegionTasks() = %v, want %v", got, want)
	}
	if got := cfg.Countries(); !reflect.DeepEqual(got, []string{"Canada", "USA"}) {
		t.Errorf("Countries() = %v", got)
	}

	policy := cfg.RetryPolicy()
	if policy.Attempts != 3 || policy.BackoffMin != 100*time.Millisecond {
		t.Errorf("RetryPolicy() = %+v", policy)
	}

	// не заданные в файле параметры поиска берутся по умолчанию
	if got, want := cfg.SearchParams(), scraper.DefaultSearchParams(); !reflect.DeepEqual(got, want) {
		t.Errorf("SearchParams() = %+v, want %+v", got, want)
	}
	if got := cfg.PaginationSettings().MaxPages; got != 0 {
		t.Errorf("PaginationSettings().MaxPages = %d, want 0", got)
	}
	// выдача ждёт ту же паузу, что и страница объявления
	if got := cfg.PaginationSettings().SettleDelay; got != 5*time.Second {
		t.Errorf("PaginationSettings().SettleDelay = %v, want 5s", got)
	}
	if got := cfg.Storage.GetCommandTimeout(); got != time.Second {
		t.Errorf("Storage.GetCommandTimeout() = %v, want 1s", got)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeFile(t, "config.yaml", minimalYAML+"\nrate_limit:\n  rpm: 10\n"))
	if err == nil {
		t.Fatal("LoadConfig() accepted unknown section")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backoff:       BackoffConfig{MinMS: 100, MaxMS: 200, JitterPct: 10},
			Pagination:    PaginationConfig{ElementTimeoutMS: 100},
			Extract:       ExtractConfig{ElementTimeoutMS: 100},
			Storage:       StorageConfig{Driver: "postgres", DSN: "postgres://x", CommandTimeoutMS: 100},
			HTTP:          HTTPConfig{Addr: ":5000"},
			Observability: ObservabilityConfig{LogLevel: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown browser", func(c *Config) { c.Browser.Driver = "selenium" }, "browser.driver"},
		{"negative max pages", func(c *Config) { c.Pagination.MaxPages = -1 }, "pagination.max_pages"},
		{"backoff order", func(c *Config) { c.Backoff.MinMS = 500 }, "backoff.min_ms"},
		{"bad storage", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"bad date", func(c *Config) { c.Search.MonthlyStartDate = "12/01/2024" }, "monthly_start_date"},
		{"region without country", func(c *Config) { c.Regions = []RegionGroup{{Names: []string{"Ohio"}}} }, "regions[0].country"},
		{"events without url", func(c *Config) { c.Events.Enabled = true }, "events.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MONGO_URI":     "mongodb://db:27017",
		"MONGO_DB_NAME": "listings_test",
		"RABBITMQ_URL":  "amqp://rabbit:5672/",
		"HTTP_ADDR":     ":8080",
		"CHROME_PATH":   "/usr/bin/chromium",
		"LOG_LEVEL":     "debug",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	c := &Config{Storage: StorageConfig{Driver: "mongo", DSN: "mongodb://localhost"}}
	c.applyEnv(lookup)

	if c.Storage.DSN != "mongodb://db:27017" || c.Storage.Database != "listings_test" {
		t.Errorf("storage = %+v", c.Storage)
	}
	if !c.Events.Enabled || c.Events.URL != "amqp://rabbit:5672/" {
		t.Errorf("events = %+v", c.Events)
	}
	if c.HTTP.Addr != ":8080" || c.Browser.ChromePath != "/usr/bin/chromium" || c.Observability.LogLevel != "debug" {
		t.Errorf("overrides not applied: %+v", c)
	}

	// MONGO_URI не трогает SQL хранилища
	sql := &Config{Storage: StorageConfig{Driver: "postgres", DSN: "postgres://x"}}
	sql.applyEnv(lookup)
	if sql.Storage.DSN != "postgres://x" {
		t.Errorf("MONGO_URI overrode postgres dsn: %q", sql.Storage.DSN)
	}
}

func TestLoadSelectors(t *testing.T) {
	t.Run("empty path uses defaults", func(t *testing.T) {
		s, err := LoadSelectors("")
		if err != nil {
			t.Fatalf("LoadSelectors() error = %v", err)
		}
		if !reflect.DeepEqual(s, scraper.DefaultSelectors()) {
			t.Errorf("LoadSelectors(\"\") differs from defaults")
		}
	})

	t.Run("shipped file", func(t *testing.T) {
		s, err := LoadSelectors(filepath.Join("..", "..", "configs", "selectors.yaml"))
		if err != nil {
			t.Fatalf("LoadSelectors() error = %v", err)
		}
		if !reflect.DeepEqual(s, scraper.DefaultSelectors()) {
			t.Errorf("shipped selectors.yaml drifted from DefaultSelectors():\n%+v", s)
		}
	})

	t.Run("partial override", func(t *testing.T) {
		path := writeFile(t, "selectors.yaml", "title:\n  - \"xpath://h1[1]\"\n")
		s, err := LoadSelectors(path)
		if err != nil {
			t.Fatalf("LoadSelectors() error = %v", err)
		}
		if want := []browser.Selector{browser.ByXPath("//h1[1]")}; !reflect.DeepEqual(s.Title, want) {
			t.Errorf("Title = %v, want %v", s.Title, want)
		}
		if len(s.ListingCards) != 2 {
			t.Errorf("ListingCards lost defaults: %v", s.ListingCards)
		}
	})

	t.Run("empty selector rejected", func(t *testing.T) {
		path := writeFile(t, "selectors.yaml", "title:\n  - \"css:\"\n")
		if _, err := LoadSelectors(path); err == nil {
			t.Error("LoadSelectors() accepted an empty selector")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("LoadSelectors() accepted a missing file")
		}
	})
}

func TestShippedConfigIsValid(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if got := len(cfg.RegionTasks()); got != 41 {
		t.Errorf("RegionTasks() = %d, want 41 US states", got)
	}
	if cfg.Pagination.MaxPages != 100 {
		t.Errorf("max_pages = %d, want 100", cfg.Pagination.MaxPages)
	}
}
