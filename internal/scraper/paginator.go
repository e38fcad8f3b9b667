package scraper

import (
	"context"
	"fmt"
	"time"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/observability"
)

type PaginationSettings struct {
	// SettleDelay пауза после открытия страницы выдачи, пока догружаются карточки
	SettleDelay    time.Duration
	ElementTimeout time.Duration
	NextTimeout    time.Duration
	NextPageDelay  time.Duration
	// MaxPages потолок страниц на регион, 0 без ограничения
	MaxPages int
}

// PaginationWalker собирает уникальные URL объявлений по всем страницам выдачи региона
type PaginationWalker struct {
	loc      *browser.Locator
	sel      *Selectors
	search   SearchParams
	settings PaginationSettings
	logger   *observability.Logger
}

func NewPaginationWalker(loc *browser.Locator, sel *Selectors, search SearchParams, settings PaginationSettings, logger *observability.Logger) *PaginationWalker {
	if search.BaseURL == "" {
		search.BaseURL = DefaultBaseURL
	}
	return &PaginationWalker{loc: loc, sel: sel, search: search, settings: settings, logger: logger}
}

// Walk возвращает URL в порядке обнаружения. Множество приватно для одного вызова.
func (w *PaginationWalker) Walk(ctx context.Context, task RegionTask) ([]string, *PaginationStats, error) {
	stats := &PaginationStats{}
	searchURL := BuildSearchURL(w.search, task.Query())

	w.logger.Info("Starting pagination",
		"query", task.Query(),
		"url", searchURL,
		"max_pages", w.settings.MaxPages,
	)

	if err := w.loc.Navigate(ctx, searchURL); err != nil {
		stats.StoppedReason = "search page navigation failed"
		return nil, stats, &NavigationError{URL: searchURL, Err: err}
	}
	if !w.loc.Settle(ctx, w.settings.SettleDelay) {
		stats.StoppedReason = "context cancelled"
		return nil, stats, ctx.Err()
	}

	seen := make(map[string]struct{})
	var urls []string

	for {
		if err := ctx.Err(); err != nil {
			stats.StoppedReason = "context cancelled"
			stats.URLsFound = len(urls)
			return urls, stats, err
		}

		stats.PagesVisited++
		added := w.collectPage(ctx, seen, &urls)

		w.logger.Info("Page collected",
			"query", task.Query(),
			"page", stats.PagesVisited,
			"new_urls", added,
			"total_urls", len(urls),
		)

		if w.settings.MaxPages > 0 && stats.PagesVisited >= w.settings.MaxPages {
			stats.StoppedReason = fmt.Sprintf("reached max pages (%d)", w.settings.MaxPages)
			break
		}

		next, ok := w.nextControl(ctx)
		if !ok {
			stats.StoppedReason = fmt.Sprintf("no next control on page %d", stats.PagesVisited)
			break
		}

		if err := w.loc.Click(ctx, next); err != nil {
			w.logger.Warn("Next page click failed",
				"query", task.Query(),
				"page", stats.PagesVisited,
				"error", err.Error(),
			)
			stats.StoppedReason = fmt.Sprintf("next click failed on page %d", stats.PagesVisited)
			break
		}
		stats.NextClicks++

		if !w.loc.Settle(ctx, w.settings.NextPageDelay) {
			stats.StoppedReason = "context cancelled"
			stats.URLsFound = len(urls)
			return urls, stats, ctx.Err()
		}
	}

	stats.URLsFound = len(urls)
	w.logger.Info("Pagination completed",
		"query", task.Query(),
		"pages", stats.PagesVisited,
		"next_clicks", stats.NextClicks,
		"urls", stats.URLsFound,
		"reason", stats.StoppedReason,
	)

	return urls, stats, nil
}

// collectPage: первый уровень селекторов карточек, давший элементы, остальные не трогаем
func (w *PaginationWalker) collectPage(ctx context.Context, seen map[string]struct{}, urls *[]string) int {
	added := 0
	for i, sel := range w.sel.ListingCards {
		nodes := w.loc.LocateAll(ctx, sel, w.settings.ElementTimeout)
		if len(nodes) == 0 {
			continue
		}
		if i > 0 {
			w.logger.Debug("Primary card selector empty, used fallback", "selector", sel.String())
		}

		for _, node := range nodes {
			href := normalize.AbsoluteURL(w.search.BaseURL, browser.AttributeOf(ctx, node, "href"))
			if href == "" {
				continue
			}
			if _, dup := seen[href]; dup {
				continue
			}
			seen[href] = struct{}{}
			*urls = append(*urls, href)
			added++
		}
		break
	}
	return added
}

// nextControl ищет "Next" по aria-label; задизейбленная кнопка считается отсутствующей
func (w *PaginationWalker) nextControl(ctx context.Context) (browser.Node, bool) {
	for _, sel := range w.sel.NextPage {
		node, ok := w.loc.LocateOne(ctx, sel, w.settings.NextTimeout)
		if !ok {
			continue
		}
		if browser.AttributeOf(ctx, node, "aria-disabled") == "true" {
			continue
		}
		return node, true
	}
	return nil, false
}
