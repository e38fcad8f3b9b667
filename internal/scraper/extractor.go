package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/observability"
)

var (
	errAmenitiesButtonMissing = errors.New("amenities button not found")
	errAmenitiesModalEmpty    = errors.New("amenities modal did not render")
)

type ExtractSettings struct {
	SettleDelay        time.Duration
	ElementTimeout     time.Duration
	ModalCloseTimeout  time.Duration
	ModalButtonTimeout time.Duration
	ModalWaitTimeout   time.Duration
	ModalPause         time.Duration
	ClickAttempts      int
}

// DetailExtractor одна страница объявления -> один ListingRecord
type DetailExtractor struct {
	loc      *browser.Locator
	sel      *Selectors
	settings ExtractSettings
	norm     *normalize.Normalizer
	logger   *observability.Logger
}

func NewDetailExtractor(loc *browser.Locator, sel *Selectors, settings ExtractSettings, norm *normalize.Normalizer, logger *observability.Logger) *DetailExtractor {
	return &DetailExtractor{loc: loc, sel: sel, settings: settings, norm: norm, logger: logger}
}

// Extract возвращает ошибку, если страница не открылась целиком или ctx отменён.
// Отсутствие отдельных полей поглощается: поле остаётся пустым.
func (e *DetailExtractor) Extract(ctx context.Context, url string) (*ListingRecord, error) {
	if err := e.loc.Navigate(ctx, url); err != nil {
		return nil, &NavigationError{URL: url, Err: err}
	}
	if !e.loc.Settle(ctx, e.settings.SettleDelay) {
		return nil, fmt.Errorf("settle after %s: %w", url, ctx.Err())
	}

	timeout := e.settings.ElementTimeout
	record := NewListingRecord(url)

	record.Title = e.text(ctx, "title", textStrategies(e.loc, e.sel.Title, timeout))
	record.PictureURL = e.text(ctx, "picture_url", attributeStrategies(e.loc, e.sel.Picture, e.pictureAttr(), timeout))
	record.Description = e.text(ctx, "description", textStrategies(e.loc, e.sel.Description, timeout))
	record.Price = e.text(ctx, "price", priceStrategies(e.loc, e.sel.Price, e.sel.CurrencyMarkers, timeout))
	record.Rating = e.text(ctx, "rating", textStrategies(e.loc, e.sel.Rating, timeout))
	record.Location = e.text(ctx, "location", textStrategies(e.loc, e.sel.Location, timeout))

	record.Features = e.features(ctx)

	houseDetails, _ := firstNonEmpty(ctx, e.logger, "house_details", listStrategies(e.loc, e.sel.HouseDetails, timeout)...)
	record.HouseDetails = e.norm.Lines(houseDetails)

	// после отмены пустые поля означают "не успели", а не "нет на странице"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	e.logger.Info("Scraped details",
		"url", url,
		"title", record.Title,
		"features", len(record.Features),
	)

	return record, nil
}

func (e *DetailExtractor) text(ctx context.Context, field string, strategies []strategy[string]) string {
	value, _ := firstNonEmpty(ctx, e.logger, field, strategies...)
	return e.norm.Text(value)
}

func (e *DetailExtractor) pictureAttr() string {
	if e.sel.PictureAttr == "" {
		return "src"
	}
	return e.sel.PictureAttr
}

// features: модалка -> скан живого DOM -> скан HTML снимка. Никогда не паникует и не возвращает ошибку.
func (e *DetailExtractor) features(ctx context.Context) []string {
	strategies := []strategy[[]string]{
		{name: "modal", run: e.amenitiesFromModal},
	}
	strategies = append(strategies, listStrategies(e.loc, e.sel.AmenitiesPage, e.settings.ElementTimeout)...)
	strategies = append(strategies, strategy[[]string]{name: "document-scan", run: e.amenitiesFromDocument})

	features, via := firstNonEmpty(ctx, e.logger, "features", strategies...)
	if via != "" && via != "modal" {
		e.logger.Debug("Features taken from fallback", "strategy", via, "count", len(features))
	}
	return e.norm.Lines(features)
}

func (e *DetailExtractor) amenitiesFromModal(ctx context.Context) ([]string, error) {
	e.closeModal(ctx)

	button, ok := e.locateFirst(ctx, e.sel.AmenitiesButton, e.settings.ModalButtonTimeout)
	if !ok {
		return nil, errAmenitiesButtonMissing
	}

	if err := e.loc.ScrollIntoView(ctx, button); err != nil {
		e.logger.Debug("Scroll to amenities button failed", "error", err.Error())
	}
	e.loc.Settle(ctx, e.settings.ModalPause)

	// Кнопку часто перекрывают другие слои, поэтому только скриптовый клик
	if err := e.loc.ForceClick(ctx, button, e.settings.ClickAttempts); err != nil {
		return nil, err
	}

	for _, sel := range e.sel.AmenitiesModal {
		if items := e.loc.TextsOf(ctx, sel, e.settings.ModalWaitTimeout); len(items) > 0 {
			return items, nil
		}
	}
	return nil, errAmenitiesModalEmpty
}

// closeModal закрывает случайно открытую модалку, которая перехватит клики
func (e *DetailExtractor) closeModal(ctx context.Context) {
	button, ok := e.locateFirst(ctx, e.sel.CloseModal, e.settings.ModalCloseTimeout)
	if !ok {
		return
	}
	if err := e.loc.Click(ctx, button); err != nil {
		e.logger.Debug("Close modal click failed", "error", err.Error())
		return
	}
	e.loc.Settle(ctx, e.settings.ModalPause)
}

func (e *DetailExtractor) amenitiesFromDocument(ctx context.Context) ([]string, error) {
	if len(e.sel.AmenitiesDocument) == 0 {
		return nil, nil
	}
	html, err := e.loc.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("page snapshot: %w", err)
	}
	return ParseAmenities(html, e.sel.AmenitiesDocument)
}

func (e *DetailExtractor) locateFirst(ctx context.Context, selectors []browser.Selector, timeout time.Duration) (browser.Node, bool) {
	for _, sel := range selectors {
		if node, ok := e.loc.LocateOne(ctx, sel, timeout); ok {
			return node, true
		}
	}
	return nil, false
}
