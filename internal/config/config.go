package config

import (
	"fmt"
	"time"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
)

type Config struct {
	Environment   string              `yaml:"environment"`
	Browser       BrowserConfig       `yaml:"browser"`
	Backoff       BackoffConfig       `yaml:"backoff"`
	Search        SearchConfig        `yaml:"search"`
	Pagination    PaginationConfig    `yaml:"pagination"`
	Extract       ExtractConfig       `yaml:"extract"`
	SelectorsFile string              `yaml:"selectors_file"`
	Normalize     NormalizeConfig     `yaml:"normalize"`
	Regions       []RegionGroup       `yaml:"regions"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Storage       StorageConfig       `yaml:"storage"`
	Events        EventsConfig        `yaml:"events"`
	HTTP          HTTPConfig          `yaml:"http"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type BrowserConfig struct {
	Driver         string `yaml:"driver"`
	ChromePath     string `yaml:"chrome_path"`
	Headless       bool   `yaml:"headless"`
	UserAgent      string `yaml:"user_agent"`
	LaunchRetries  int    `yaml:"launch_retries"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	WindowWidth    int    `yaml:"window_width"`
	WindowHeight   int    `yaml:"window_height"`
}

type BackoffConfig struct {
	MinMS     int `yaml:"min_ms"`
	MaxMS     int `yaml:"max_ms"`
	JitterPct int `yaml:"jitter_pct"`
}

type SearchConfig struct {
	BaseURL             string `yaml:"base_url"`
	Adults              int    `yaml:"adults"`
	TripLength          string `yaml:"trip_length"`
	MonthlyStartDate    string `yaml:"monthly_start_date"`
	MonthlyEndDate      string `yaml:"monthly_end_date"`
	MonthlyLengthMonths int    `yaml:"monthly_length_months"`
}

type PaginationConfig struct {
	MaxPages         int `yaml:"max_pages"`
	ElementTimeoutMS int `yaml:"element_timeout_ms"`
	NextTimeoutMS    int `yaml:"next_timeout_ms"`
	NextPageDelayMS  int `yaml:"next_page_delay_ms"`
}

type ExtractConfig struct {
	SettleDelayMS        int `yaml:"settle_delay_ms"`
	ElementTimeoutMS     int `yaml:"element_timeout_ms"`
	ModalCloseTimeoutMS  int `yaml:"modal_close_timeout_ms"`
	ModalButtonTimeoutMS int `yaml:"modal_button_timeout_ms"`
	ModalWaitTimeoutMS   int `yaml:"modal_wait_timeout_ms"`
	ModalPauseMS         int `yaml:"modal_pause_ms"`
	ClickAttempts        int `yaml:"click_attempts"`
}

type NormalizeConfig struct {
	TrimNBSP       bool `yaml:"trim_nbsp"`
	CollapseSpaces bool `yaml:"collapse_spaces"`
}

// RegionGroup регионы одной страны в порядке обхода
type RegionGroup struct {
	Country string   `yaml:"country"`
	Names   []string `yaml:"names"`
}

type OrchestratorConfig struct {
	Workers int `yaml:"workers"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Database         string `yaml:"database"`
	Collection       string `yaml:"collection"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms"`
}

type EventsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	URL          string `yaml:"url"`
	Exchange     string `yaml:"exchange"`
	ExchangeType string `yaml:"exchange_type"`
	RoutingKey   string `yaml:"routing_key"`
}

type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeoutS    int      `yaml:"read_timeout_s"`
	WriteTimeoutS   int      `yaml:"write_timeout_s"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_s"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`
}

// Validation
func (c *Config) Validate() error {
	switch c.Browser.Driver {
	case "", "rod", "chromedp":
	default:
		return fmt.Errorf("browser.driver must be 'rod' or 'chromedp'")
	}
	if c.Browser.LaunchRetries < 0 {
		return fmt.Errorf("browser.launch_retries must be >= 0")
	}
	if c.Browser.PollIntervalMS < 0 {
		return fmt.Errorf("browser.poll_interval_ms must be >= 0")
	}
	if c.Backoff.MinMS <= 0 {
		return fmt.Errorf("backoff.min_ms must be > 0")
	}
	if c.Backoff.MaxMS <= 0 {
		return fmt.Errorf("backoff.max_ms must be > 0")
	}
	if c.Backoff.MinMS > c.Backoff.MaxMS {
		return fmt.Errorf("backoff.min_ms must be <= backoff.max_ms")
	}
	if c.Backoff.JitterPct < 0 || c.Backoff.JitterPct > 100 {
		return fmt.Errorf("backoff.jitter_pct must be between 0 and 100")
	}
	if c.Search.MonthlyStartDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Search.MonthlyStartDate); err != nil {
			return fmt.Errorf("search.monthly_start_date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Search.MonthlyEndDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Search.MonthlyEndDate); err != nil {
			return fmt.Errorf("search.monthly_end_date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Search.Adults < 0 {
		return fmt.Errorf("search.adults must be >= 0")
	}
	if c.Pagination.MaxPages < 0 {
		return fmt.Errorf("pagination.max_pages must be >= 0 (0 means unlimited)")
	}
	if c.Pagination.ElementTimeoutMS <= 0 {
		return fmt.Errorf("pagination.element_timeout_ms must be > 0")
	}
	if c.Pagination.NextPageDelayMS < 0 {
		return fmt.Errorf("pagination.next_page_delay_ms must be >= 0")
	}
	if c.Extract.ElementTimeoutMS <= 0 {
		return fmt.Errorf("extract.element_timeout_ms must be > 0")
	}
	if c.Extract.SettleDelayMS < 0 || c.Extract.ModalPauseMS < 0 {
		return fmt.Errorf("extract delays must be >= 0")
	}
	if c.Extract.ClickAttempts < 0 {
		return fmt.Errorf("extract.click_attempts must be >= 0")
	}
	for i, group := range c.Regions {
		if group.Country == "" {
			return fmt.Errorf("regions[%d].country is required", i)
		}
	}
	if c.Orchestrator.Workers < 0 {
		return fmt.Errorf("orchestrator.workers must be >= 0")
	}
	switch c.Storage.Driver {
	case "mongo", "mssql", "postgres":
	default:
		return fmt.Errorf("storage.driver must be 'mongo', 'mssql' or 'postgres'")
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	if c.Events.Enabled {
		if c.Events.URL == "" {
			return fmt.Errorf("events.url is required when events.enabled is true")
		}
		if c.Events.Exchange == "" {
			return fmt.Errorf("events.exchange is required when events.enabled is true")
		}
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	return nil
}

// IsDevelopment включает подробный /info
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Getters
func (c *Config) GetBackoffMin() time.Duration {
	return time.Duration(c.Backoff.MinMS) * time.Millisecond
}

func (c *Config) GetBackoffMax() time.Duration {
	return time.Duration(c.Backoff.MaxMS) * time.Millisecond
}

func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Browser.PollIntervalMS) * time.Millisecond
}

func (c *Config) GetSettleDelay() time.Duration {
	return time.Duration(c.Extract.SettleDelayMS) * time.Millisecond
}

func (c *Config) GetNextPageDelay() time.Duration {
	return time.Duration(c.Pagination.NextPageDelayMS) * time.Millisecond
}

func (s StorageConfig) GetCommandTimeout() time.Duration {
	return time.Duration(s.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.HTTP.ReadTimeoutS) * time.Second
}

func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.HTTP.WriteTimeoutS) * time.Second
}

func (c *Config) GetShutdownTimeout() time.Duration {
	if c.HTTP.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HTTP.ShutdownTimeout) * time.Second
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Переходники в настройки пакетов

func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		ChromePath:   c.Browser.ChromePath,
		Headless:     c.Browser.Headless,
		UserAgent:    c.Browser.UserAgent,
		WindowWidth:  c.Browser.WindowWidth,
		WindowHeight: c.Browser.WindowHeight,
	}
}

func (c *Config) RetryPolicy() browser.RetryPolicy {
	return browser.RetryPolicy{
		Attempts:   c.Browser.LaunchRetries + 1,
		BackoffMin: c.GetBackoffMin(),
		BackoffMax: c.GetBackoffMax(),
		JitterPct:  c.Backoff.JitterPct,
	}
}

func (c *Config) SearchParams() scraper.SearchParams {
	p := scraper.DefaultSearchParams()
	if c.Search.BaseURL != "" {
		p.BaseURL = c.Search.BaseURL
	}
	if c.Search.Adults > 0 {
		p.Adults = c.Search.Adults
	}
	if c.Search.TripLength != "" {
		p.TripLength = c.Search.TripLength
	}
	if c.Search.MonthlyStartDate != "" {
		p.MonthlyStartDate = c.Search.MonthlyStartDate
		p.MonthlyEndDate = c.Search.MonthlyEndDate
	}
	if c.Search.MonthlyLengthMonths > 0 {
		p.MonthlyLengthMonths = c.Search.MonthlyLengthMonths
	}
	return p
}

func (c *Config) PaginationSettings() scraper.PaginationSettings {
	return scraper.PaginationSettings{
		SettleDelay:    c.GetSettleDelay(),
		ElementTimeout: ms(c.Pagination.ElementTimeoutMS),
		NextTimeout:    ms(c.Pagination.NextTimeoutMS),
		NextPageDelay:  c.GetNextPageDelay(),
		MaxPages:       c.Pagination.MaxPages,
	}
}

func (c *Config) ExtractSettings() scraper.ExtractSettings {
	return scraper.ExtractSettings{
		SettleDelay:        c.GetSettleDelay(),
		ElementTimeout:     ms(c.Extract.ElementTimeoutMS),
		ModalCloseTimeout:  ms(c.Extract.ModalCloseTimeoutMS),
		ModalButtonTimeout: ms(c.Extract.ModalButtonTimeoutMS),
		ModalWaitTimeout:   ms(c.Extract.ModalWaitTimeoutMS),
		ModalPause:         ms(c.Extract.ModalPauseMS),
		ClickAttempts:      c.Extract.ClickAttempts,
	}
}

func (c *Config) NormalizeOptions() normalize.Options {
	return normalize.Options{
		TrimNBSP:       c.Normalize.TrimNBSP,
		CollapseSpaces: c.Normalize.CollapseSpaces,
	}
}

func (c *Config) LogOptions() observability.LogOptions {
	return observability.LogOptions{
		Path:       c.Observability.LogPath,
		Level:      c.Observability.LogLevel,
		MaxSizeMB:  c.Observability.LogMaxSizeMB,
		MaxBackups: c.Observability.LogMaxBackups,
		MaxAgeDays: c.Observability.LogMaxAgeDays,
		Compress:   c.Observability.LogCompress,
	}
}

// RegionTasks разворачивает группы в плоский список в порядке конфига
func (c *Config) RegionTasks() []scraper.RegionTask {
	var tasks []scraper.RegionTask
	for _, group := range c.Regions {
		for _, name := range group.Names {
			if name == "" {
				continue
			}
			tasks = append(tasks, scraper.RegionTask{Region: name, Country: group.Country})
		}
	}
	return tasks
}

// Countries все страны из конфига, включая пустые группы
func (c *Config) Countries() []string {
	out := make([]string, 0, len(c.Regions))
	for _, group := range c.Regions {
		out = append(out, group.Country)
	}
	return out
}
