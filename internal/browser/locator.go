package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"airbnb-scraper/internal/observability"
)

const defaultPollInterval = 250 * time.Millisecond

// Locator единственное место, где живут ожидания DOM.
// Таймаут никогда не становится ошибкой: вызывающий получает пустое значение
// и сам решает, что делать с отсутствием элемента.
type Locator struct {
	driver Driver
	poll   time.Duration
	logger *observability.Logger
}

func NewLocator(driver Driver, poll time.Duration, logger *observability.Logger) *Locator {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Locator{driver: driver, poll: poll, logger: logger}
}

// LocateAll ждёт до timeout появления хотя бы одного элемента
func (l *Locator) LocateAll(ctx context.Context, sel Selector, timeout time.Duration) []Node {
	deadline := time.Now().Add(timeout)

	for {
		nodes, err := l.driver.FindAll(ctx, sel)
		if err == nil && len(nodes) > 0 {
			return nodes
		}
		if err != nil {
			l.logger.Debug("Query failed, will retry", "selector", sel.String(), "error", err.Error())
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		wait := l.poll
		if remaining < wait {
			wait = remaining
		}
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

func (l *Locator) LocateOne(ctx context.Context, sel Selector, timeout time.Duration) (Node, bool) {
	nodes := l.LocateAll(ctx, sel, timeout)
	if len(nodes) == 0 {
		return nil, false
	}
	return nodes[0], true
}

// TextOrEmpty текст первого совпадения или ""
func (l *Locator) TextOrEmpty(ctx context.Context, sel Selector, timeout time.Duration) string {
	node, ok := l.LocateOne(ctx, sel, timeout)
	if !ok {
		return ""
	}
	text, err := node.Text(ctx)
	if err != nil {
		l.logger.Debug("Failed to read text", "selector", sel.String(), "error", err.Error())
		return ""
	}
	return strings.TrimSpace(text)
}

// TextsOf непустые тексты всех совпадений в порядке DOM
func (l *Locator) TextsOf(ctx context.Context, sel Selector, timeout time.Duration) []string {
	nodes := l.LocateAll(ctx, sel, timeout)
	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		text, err := node.Text(ctx)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			texts = append(texts, text)
		}
	}
	return texts
}

func (l *Locator) AttributeOrEmpty(ctx context.Context, sel Selector, attr string, timeout time.Duration) string {
	node, ok := l.LocateOne(ctx, sel, timeout)
	if !ok {
		return ""
	}
	return AttributeOf(ctx, node, attr)
}

// PriceOrEmpty: цена дублируется в нескольких узлах, валютная строка только в одном
func (l *Locator) PriceOrEmpty(ctx context.Context, sel Selector, markers []string, timeout time.Duration) string {
	if len(markers) == 0 {
		markers = []string{"$"}
	}

	for _, node := range l.LocateAll(ctx, sel, timeout) {
		text, err := node.Text(ctx)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		for _, marker := range markers {
			if strings.Contains(text, marker) {
				return text
			}
		}
	}
	return ""
}

func (l *Locator) Navigate(ctx context.Context, url string) error {
	return l.driver.Navigate(ctx, url)
}

func (l *Locator) Click(ctx context.Context, node Node) error {
	return l.driver.Click(ctx, node)
}

// ForceClick скриптовый клик с повторами. После исчерпания попыток возвращает ErrClickIntercepted.
func (l *Locator) ForceClick(ctx context.Context, node Node, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = l.driver.ForceClick(ctx, node); lastErr == nil {
			return nil
		}
		l.logger.Debug("Forced click failed", "attempt", attempt, "error", lastErr.Error())
		if attempt < attempts && !sleep(ctx, l.poll) {
			break
		}
	}
	return fmt.Errorf("%w: %w", ErrClickIntercepted, lastErr)
}

func (l *Locator) ScrollIntoView(ctx context.Context, node Node) error {
	return l.driver.ScrollIntoView(ctx, node)
}

// Snapshot HTML текущей страницы
func (l *Locator) Snapshot(ctx context.Context) (string, error) {
	return l.driver.HTML(ctx)
}

// Settle фиксированная пауза после навигации или клика. false если ctx отменён.
func (l *Locator) Settle(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	return sleep(ctx, d)
}

func AttributeOf(ctx context.Context, node Node, name string) string {
	value, ok, err := node.Attribute(ctx, name)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
