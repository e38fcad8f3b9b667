package browser

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"airbnb-scraper/internal/observability"
)

// RetryPolicy повторные попытки старта браузера
type RetryPolicy struct {
	Attempts   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	JitterPct  int
}

// Acquire запускает браузер с экспоненциальным backoff между попытками.
// Все ошибки оборачиваются в ErrSessionStart.
func Acquire(ctx context.Context, launcher Launcher, policy RetryPolicy, logger *observability.Logger) (Driver, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := policy.backoff(attempt - 1)
			logger.Warn("Retrying browser launch",
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", lastErr.Error(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrSessionStart, ctx.Err())
			}
		}

		driver, err := launcher.Launch(ctx)
		if err == nil {
			logger.Info("Browser started", "attempt", attempt)
			return driver, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrSessionStart, attempts, lastErr)
}

func (p RetryPolicy) backoff(retry int) time.Duration {
	minMS := float64(p.BackoffMin.Milliseconds())
	maxMS := float64(p.BackoffMax.Milliseconds())
	if minMS <= 0 {
		return 0
	}
	if maxMS < minMS {
		maxMS = minMS
	}

	// min * 2^(retry-1), не больше max
	exponential := math.Min(minMS*math.Pow(2, float64(retry-1)), maxMS)

	// ±jitterPct%
	jitterRange := exponential * float64(p.JitterPct) / 100
	finalMS := exponential + (rand.Float64()-0.5)*2*jitterRange
	if finalMS < minMS {
		finalMS = minMS
	}

	return time.Duration(finalMS) * time.Millisecond
}

// NewLauncher выбирает драйвер по имени из конфига
func NewLauncher(driver string, opts Options) (Launcher, error) {
	switch driver {
	case "", "rod":
		return NewRodLauncher(opts), nil
	case "chromedp":
		return NewChromedpLauncher(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}
