package browser

import (
	"context"
	"errors"
	"sync"

	"airbnb-scraper/internal/observability"
)

var (
	ErrSessionStart      = errors.New("browser session could not start")
	ErrClickIntercepted  = errors.New("click intercepted")
	ErrUnsupportedDriver = errors.New("unsupported browser driver")
)

// Node найденный элемент DOM. Значение действительно только для текущей страницы.
type Node interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, bool, error)
}

// Driver низкоуровневые операции над одной вкладкой браузера.
// FindAll не ждёт: пустой результат означает "сейчас элементов нет",
// ожидание и таймауты живут в Locator.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindAll(ctx context.Context, sel Selector) ([]Node, error)
	Click(ctx context.Context, node Node) error
	// ForceClick кликает через element.click() в скрипте, минуя проверки перекрытия
	ForceClick(ctx context.Context, node Node) error
	ScrollIntoView(ctx context.Context, node Node) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher запускает новый браузер и отдаёт вкладку во владение вызывающему
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}

// Session владеет драйвером на время прогона. Close идемпотентен.
type Session struct {
	driver Driver
	logger *observability.Logger
	once   sync.Once
	err    error
}

func NewSession(driver Driver, logger *observability.Logger) *Session {
	return &Session{driver: driver, logger: logger}
}

func (s *Session) Driver() Driver {
	return s.driver
}

func (s *Session) Close() error {
	s.once.Do(func() {
		s.err = s.driver.Close()
		if s.err != nil {
			s.logger.Error("Failed to close browser", "error", s.err.Error())
			return
		}
		s.logger.Info("Browser closed")
	})
	return s.err
}

// WithSession: старт браузера, fn, гарантированное закрытие на любом пути выхода.
// Ошибка закрытия только логируется (в Session.Close): результат fn она не отменяет.
func WithSession(ctx context.Context, launcher Launcher, policy RetryPolicy, logger *observability.Logger, fn func(*Session) error) error {
	driver, err := Acquire(ctx, launcher, policy, logger)
	if err != nil {
		return err
	}

	session := NewSession(driver, logger)
	defer func() {
		if r := recover(); r != nil {
			_ = session.Close()
			panic(r)
		}
		_ = session.Close()
	}()

	return fn(session)
}
