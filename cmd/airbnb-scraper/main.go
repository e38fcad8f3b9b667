package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"airbnb-scraper/internal/app"
	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/config"
	"airbnb-scraper/internal/events"
	"airbnb-scraper/internal/httpapi"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

const defaultConfigPath = "configs/config.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: airbnb-scraper <command> [flags]

commands:
  serve                 HTTP API
  run                   scrape all configured regions once
  city -name NAME       scrape a single city
  parse -file PAGE.html extract a saved listing page offline
                        (-search: treat it as a search results page)

all commands accept -config (default %s)
`, defaultConfigPath)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "serve":
		err = serve(args)
	case "run":
		err = runOnce(args)
	case "city":
		err = runCity(args)
	case "parse":
		err = parse(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

// env собранные зависимости одного процесса
type env struct {
	cfg       *config.Config
	logger    *observability.Logger
	repo      storage.Repository
	publisher *events.Publisher
	orch      *app.Orchestrator
}

func loadConfig(name string, args []string, extra func(*flag.FlagSet)) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config.yaml")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*env, error) {
	selectors, err := cfg.LoadConfiguredSelectors()
	if err != nil {
		return nil, fmt.Errorf("load selectors: %w", err)
	}

	launcher, err := browser.NewLauncher(cfg.Browser.Driver, cfg.BrowserOptions())
	if err != nil {
		return nil, err
	}

	repo, err := app.OpenRepository(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	norm := normalize.NewNormalizer(cfg.NormalizeOptions())
	e := &env{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		orch:   app.NewOrchestrator(launcher, repo, selectors, norm, app.SettingsFrom(cfg), logger),
	}

	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(events.PublisherConfig{
			URL:          cfg.Events.URL,
			ExchangeName: cfg.Events.Exchange,
			ExchangeType: cfg.Events.ExchangeType,
			RoutingKey:   cfg.Events.RoutingKey,
		}, logger)
		if err != nil {
			// итоги просто не публикуются
			logger.Warn("Events disabled, publisher unavailable", "error", err.Error())
		} else {
			e.publisher = pub
			e.orch.WithPublisher(pub)
		}
	}

	logger.Info("Application started",
		"environment", cfg.Environment,
		"browser", cfg.Browser.Driver,
		"storage", cfg.Storage.Driver,
		"regions", len(cfg.RegionTasks()),
	)
	return e, nil
}

func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.GetShutdownTimeout())
	defer cancel()

	if e.publisher != nil {
		if err := e.publisher.Close(); err != nil {
			e.logger.Warn("Failed to close publisher", "error", err.Error())
		}
	}
	if err := e.repo.Close(ctx); err != nil {
		e.logger.Warn("Failed to close storage", "error", err.Error())
	}
	e.logger.Info("Application stopped")
	_ = e.logger.Close()
}

func serve(args []string) error {
	cfg, err := loadConfig("serve", args, nil)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogOptions())
	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	e, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer e.close()

	api := httpapi.NewServer(e.orch, cfg.RegionTasks(), e.repo, httpapi.Info{
		Environment: cfg.Environment,
		Addr:        cfg.HTTP.Addr,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	}, e.logger)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		// сигнал отменяет и идущие запросы скрапинга
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("Shutting down HTTP server", "timeout", cfg.GetShutdownTimeout().String())
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func runOnce(args []string) error {
	cfg, err := loadConfig("run", args, nil)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogOptions())
	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	e, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer e.close()

	summary, err := e.orch.Run(ctx, cfg.RegionTasks())
	if summary != nil {
		if printErr := printJSON(summary); printErr != nil {
			return printErr
		}
	}
	if errors.Is(err, context.Canceled) {
		e.logger.Warn("Run interrupted, partial summary printed")
		return nil
	}
	return err
}

func runCity(args []string) error {
	var name string
	cfg, err := loadConfig("city", args, func(fs *flag.FlagSet) {
		fs.StringVar(&name, "name", "", "city to scrape")
	})
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("-name is required")
	}

	logger := observability.NewLogger(cfg.LogOptions())
	ctx, cancel := app.GracefulShutdown(context.Background(), logger)
	defer cancel()

	e, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return err
	}
	defer e.close()

	result, err := e.orch.RunCity(ctx, name)
	if err != nil {
		return err
	}
	return printJSON(result)
}

// parse офлайн-разбор сохранённой страницы объявления или выдачи без браузера и хранилища
func parse(args []string) error {
	var (
		file, sourceURL string
		search          bool
	)
	cfg, err := loadConfig("parse", args, func(fs *flag.FlagSet) {
		fs.StringVar(&file, "file", "", "saved listing page")
		fs.StringVar(&sourceURL, "url", "", "source url recorded in the output")
		fs.BoolVar(&search, "search", false, "file is a search results page")
	})
	if err != nil {
		return err
	}
	if file == "" {
		return errors.New("-file is required")
	}

	selectors, err := cfg.LoadConfiguredSelectors()
	if err != nil {
		return fmt.Errorf("load selectors: %w", err)
	}

	html, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	if search {
		page, err := parseSearchFile(string(html), cfg.SearchParams().BaseURL, selectors)
		if err != nil {
			return err
		}
		return printJSON(page)
	}

	if sourceURL == "" {
		sourceURL = "file://" + file
	}
	record, err := scraper.ParseDetailDocument(string(html), sourceURL, selectors, normalize.NewNormalizer(cfg.NormalizeOptions()))
	if err != nil {
		return err
	}
	return printJSON(record)
}

type searchPage struct {
	URLs    []string `json:"urls"`
	HasNext bool     `json:"has_next"`
}

func parseSearchFile(html, baseURL string, selectors *scraper.Selectors) (*searchPage, error) {
	if baseURL == "" {
		baseURL = scraper.DefaultBaseURL
	}
	urls, hasNext, err := scraper.ParseSearchPage(html, baseURL, selectors)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}
	if urls == nil {
		urls = []string{}
	}
	return &searchPage{URLs: urls, HasNext: hasNext}, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
