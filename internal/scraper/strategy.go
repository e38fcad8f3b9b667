package scraper

import (
	"context"
	"time"

	"airbnb-scraper/internal/browser"
	"airbnb-scraper/internal/observability"
)

// strategy один независимый способ получить значение группы полей.
// Новые уровни фолбэка добавляются в список, а не вложенными if.
type strategy[T string | []string] struct {
	name string
	run  func(ctx context.Context) (T, error)
}

// firstNonEmpty пробует стратегии по порядку; побеждает первый непустой результат.
// Ошибки стратегий не выходят наружу.
func firstNonEmpty[T string | []string](ctx context.Context, logger *observability.Logger, field string, strategies ...strategy[T]) (T, string) {
	var zero T
	for _, s := range strategies {
		if ctx.Err() != nil {
			break
		}

		value, err := s.run(ctx)
		if err != nil {
			logger.Debug("Strategy failed, trying next",
				"field", field,
				"strategy", s.name,
				"error", err.Error(),
			)
			continue
		}
		if len(value) > 0 {
			return value, s.name
		}
	}
	return zero, ""
}

func textStrategies(loc *browser.Locator, selectors []browser.Selector, timeout time.Duration) []strategy[string] {
	out := make([]strategy[string], 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, strategy[string]{
			name: sel.String(),
			run: func(ctx context.Context) (string, error) {
				return loc.TextOrEmpty(ctx, sel, timeout), nil
			},
		})
	}
	return out
}

func attributeStrategies(loc *browser.Locator, selectors []browser.Selector, attr string, timeout time.Duration) []strategy[string] {
	out := make([]strategy[string], 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, strategy[string]{
			name: sel.String(),
			run: func(ctx context.Context) (string, error) {
				return loc.AttributeOrEmpty(ctx, sel, attr, timeout), nil
			},
		})
	}
	return out
}

func priceStrategies(loc *browser.Locator, selectors []browser.Selector, markers []string, timeout time.Duration) []strategy[string] {
	out := make([]strategy[string], 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, strategy[string]{
			name: sel.String(),
			run: func(ctx context.Context) (string, error) {
				return loc.PriceOrEmpty(ctx, sel, markers, timeout), nil
			},
		})
	}
	return out
}

func listStrategies(loc *browser.Locator, selectors []browser.Selector, timeout time.Duration) []strategy[[]string] {
	out := make([]strategy[[]string], 0, len(selectors))
	for _, sel := range selectors {
		out = append(out, strategy[[]string]{
			name: sel.String(),
			run: func(ctx context.Context) ([]string, error) {
				return loc.TextsOf(ctx, sel, timeout), nil
			},
		})
	}
	return out
}
