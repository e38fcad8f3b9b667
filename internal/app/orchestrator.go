package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/config"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

// SummaryPublisher получатель итогов прогона (rabbitmq); ошибка не роняет прогон
type SummaryPublisher interface {
	PublishSummary(ctx context.Context, summary *scraper.RunSummary) error
}

type Settings struct {
	// Workers число параллельных сессий браузера; 0 и 1 означают последовательный прогон
	Workers      int
	PollInterval time.Duration
	Retry        browser.RetryPolicy
	Search       scraper.SearchParams
	Pagination   scraper.PaginationSettings
	Extract      scraper.ExtractSettings
}

func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Workers:      cfg.Orchestrator.Workers,
		PollInterval: cfg.GetPollInterval(),
		Retry:        cfg.RetryPolicy(),
		Search:       cfg.SearchParams(),
		Pagination:   cfg.PaginationSettings(),
		Extract:      cfg.ExtractSettings(),
	}
}

type Orchestrator struct {
	launcher  browser.Launcher
	repo      storage.Repository
	publisher SummaryPublisher
	selectors *scraper.Selectors
	norm      *normalize.Normalizer
	settings  Settings
	logger    *observability.Logger
	now       func() time.Time
}

func NewOrchestrator(
	launcher browser.Launcher,
	repo storage.Repository,
	selectors *scraper.Selectors,
	norm *normalize.Normalizer,
	settings Settings,
	logger *observability.Logger,
) *Orchestrator {
	return &Orchestrator{
		launcher:  launcher,
		repo:      repo,
		selectors: selectors,
		norm:      norm,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) WithPublisher(p SummaryPublisher) *Orchestrator {
	o.publisher = p
	return o
}

// Run обходит регионы по порядку. Итоги возвращаются всегда, если браузер стартовал;
// при отмене ctx это частичные итоги вместе с ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, tasks []scraper.RegionTask) (*scraper.RunSummary, error) {
	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID)

	summary := &scraper.RunSummary{
		RunID:      runID,
		StartedAt:  o.now().UTC(),
		PerCountry: map[string]int{},
		Regions:    []scraper.RegionResult{},
	}
	for _, t := range tasks {
		if _, ok := summary.PerCountry[t.Country]; !ok {
			summary.PerCountry[t.Country] = 0
		}
	}
	if len(tasks) == 0 {
		summary.FinishedAt = summary.StartedAt
		logger.Warn("No regions configured, nothing to scrape")
		return summary, nil
	}

	logger.Info("Starting run", "regions", len(tasks), "workers", o.workers(len(tasks)))

	results := make([]*scraper.RegionResult, len(tasks))
	var err error
	if o.workers(len(tasks)) <= 1 {
		err = o.runSequential(ctx, tasks, results, logger)
	} else {
		err = o.runParallel(ctx, tasks, results, logger)
	}
	if errors.Is(err, browser.ErrSessionStart) {
		logger.Error("Run aborted, browser did not start", "error", err.Error())
		return nil, err
	}

	for _, r := range results {
		if r != nil {
			summary.Add(*r)
		}
	}
	summary.FinishedAt = o.now().UTC()

	logger.Info("Run completed",
		"total_listings", summary.TotalListings,
		"per_country", fmt.Sprint(summary.PerCountry),
		"regions_done", len(summary.Regions),
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)

	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		o.publish(ctx, summary, logger)
	}
	return summary, err
}

func (o *Orchestrator) workers(tasks int) int {
	w := o.settings.Workers
	if w > tasks {
		w = tasks
	}
	return w
}

func (o *Orchestrator) runSequential(ctx context.Context, tasks []scraper.RegionTask, results []*scraper.RegionResult, logger *observability.Logger) error {
	return browser.WithSession(ctx, o.launcher, o.settings.Retry, logger, func(s *browser.Session) error {
		for i, task := range tasks {
			if ctx.Err() != nil {
				return nil
			}
			result := o.scrapeRegion(ctx, s.Driver(), task, logger)
			results[i] = &result
		}
		return nil
	})
}

// runParallel у каждого воркера своя сессия; сессии не разделяются.
// Результаты пишутся по индексу задачи, поэтому порядок в итогах совпадает с конфигом.
func (o *Orchestrator) runParallel(ctx context.Context, tasks []scraper.RegionTask, results []*scraper.RegionResult, logger *observability.Logger) error {
	queue := make(chan int)
	workers := o.workers(len(tasks))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		started  int
		startErr error
	)

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			wlog := logger.With("worker", worker)

			err := browser.WithSession(ctx, o.launcher, o.settings.Retry, wlog, func(s *browser.Session) error {
				mu.Lock()
				started++
				mu.Unlock()

				for i := range queue {
					result := o.scrapeRegion(ctx, s.Driver(), tasks[i], wlog)
					results[i] = &result
				}
				return nil
			})
			if err != nil {
				wlog.Error("Worker stopped", "error", err.Error())
				mu.Lock()
				if startErr == nil {
					startErr = err
				}
				mu.Unlock()
			}
		}(w)
	}

	// Отдаём задачи, пока жив хотя бы один воркер
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

feed:
	for i := range tasks {
		select {
		case queue <- i:
		case <-ctx.Done():
			break feed
		case <-done:
			break feed
		}
	}
	close(queue)
	<-done

	if started == 0 && startErr != nil {
		return startErr
	}
	return nil
}

// scrapeRegion Paginating -> ExtractingDetails -> Persisting для одного региона
func (o *Orchestrator) scrapeRegion(ctx context.Context, driver browser.Driver, task scraper.RegionTask, parent *observability.Logger) scraper.RegionResult {
	logger := parent.With("region", task.Region, "country", task.Country)
	records, result, _ := o.collect(ctx, driver, task, logger)

	if len(records) > 0 {
		ids := o.persist(ctx, records, logger)
		result.Inserted = len(ids)
	}

	logger.Info("Region completed",
		"urls", result.URLsFound,
		"extracted", result.Extracted,
		"failed", result.Failed,
		"inserted", result.Inserted,
	)
	return result
}

// collect обход выдачи и извлечение деталей; записи уже помечены регионом и страной
// Ошибка возвращается только для сбоя самой выдачи, она же лежит в result.Error.
func (o *Orchestrator) collect(ctx context.Context, driver browser.Driver, task scraper.RegionTask, logger *observability.Logger) ([]*scraper.ListingRecord, scraper.RegionResult, error) {
	result := scraper.RegionResult{Region: task.Region, Country: task.Country}

	loc := browser.NewLocator(driver, o.settings.PollInterval, logger)
	walker := scraper.NewPaginationWalker(loc, o.selectors, o.settings.Search, o.settings.Pagination, logger)
	extractor := scraper.NewDetailExtractor(loc, o.selectors, o.settings.Extract, o.norm, logger)

	urls, stats, err := walker.Walk(ctx, task)
	if stats != nil {
		result.PagesVisited = stats.PagesVisited
		result.StoppedReason = stats.StoppedReason
	}
	result.URLsFound = len(urls)
	if err != nil {
		logger.Error("Pagination failed", "error", err.Error())
		result.Error = err.Error()
		return nil, result, err
	}

	records := make([]*scraper.ListingRecord, 0, len(urls))
	for _, url := range urls {
		if ctx.Err() != nil {
			result.Error = ctx.Err().Error()
			break
		}

		record, err := extractor.Extract(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				result.Error = ctx.Err().Error()
				break
			}
			result.Failed++
			logger.Warn("Skipping listing", "url", url, "error", err.Error())
			continue
		}
		record.Region = task.Region
		record.Country = task.Country
		records = append(records, record)
	}
	result.Extracted = len(records)

	return records, result, nil
}

// persist одна вставка на регион, без повторов. Ошибка даёт 0 (или частичный список) и только логируется.
func (o *Orchestrator) persist(ctx context.Context, records []*scraper.ListingRecord, logger *observability.Logger) []string {
	// уже извлечённое сохраняем и после отмены прогона
	ids, err := o.repo.InsertMany(context.WithoutCancel(ctx), records)
	if err != nil {
		logger.Error("Failed to persist listings",
			"records", len(records),
			"inserted", len(ids),
			"error", err.Error(),
		)
	}
	return ids
}

func (o *Orchestrator) publish(ctx context.Context, summary *scraper.RunSummary, logger *observability.Logger) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSummary(ctx, summary); err != nil {
		logger.Warn("Failed to publish run summary", "error", err.Error())
	}
}

// RunCity путь "один город": записи отдаются вызывающему вместе с id вставки
func (o *Orchestrator) RunCity(ctx context.Context, city string) (*scraper.CityResult, error) {
	if city == "" {
		return nil, fmt.Errorf("city is required")
	}

	logger := o.logger.With("run_id", uuid.NewString(), "city", city)
	task := scraper.RegionTask{Region: city}

	out := &scraper.CityResult{City: city, Places: []*scraper.ListingRecord{}, InsertedIDs: []string{}}
	err := browser.WithSession(ctx, o.launcher, o.settings.Retry, logger, func(s *browser.Session) error {
		records, result, err := o.collect(ctx, s.Driver(), task, logger)
		out.Places = records
		if len(records) > 0 {
			out.InsertedIDs = o.persist(ctx, records, logger)
		}
		result.Inserted = len(out.InsertedIDs)
		out.Stats = result

		if err != nil {
			return fmt.Errorf("scrape %s: %w", city, err)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	if out.Places == nil {
		out.Places = []*scraper.ListingRecord{}
	}
	if out.InsertedIDs == nil {
		out.InsertedIDs = []string{}
	}
	logger.Info("City scrape completed", "places", len(out.Places), "inserted", len(out.InsertedIDs))
	return out, nil
}
