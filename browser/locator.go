package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/glimte/syncprobe/correlation"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxRetries   = 3
	DefaultWaitTimeout  = 6 * time.Second
	DefaultPollInterval = correlation.DefaultPollingInterval
)

// ElementLocator looks up elements with a bounded number of attempts.
//
// Each attempt asks the driver for a fresh handle and then waits up to the
// wait timeout for the element to reach the required state. Handles from a
// failed attempt are never reused.
type ElementLocator struct {
	driver       Driver
	maxRetries   int
	waitTimeout  time.Duration
	pollInterval time.Duration
	screenshots  ScreenshotSink
	clock        clockwork.Clock
	logger       *slog.Logger
}

// LocatorOption configures the ElementLocator
type LocatorOption func(*ElementLocator)

// WithMaxRetries sets the number of lookup attempts
func WithMaxRetries(retries int) LocatorOption {
	return func(l *ElementLocator) {
		l.maxRetries = retries
	}
}

// WithWaitTimeout bounds how long one attempt waits for the element state
func WithWaitTimeout(timeout time.Duration) LocatorOption {
	return func(l *ElementLocator) {
		l.waitTimeout = timeout
	}
}

// WithPollInterval sets how often the element state is checked within an attempt
func WithPollInterval(interval time.Duration) LocatorOption {
	return func(l *ElementLocator) {
		l.pollInterval = interval
	}
}

// WithScreenshots persists failure screenshots to sink
func WithScreenshots(sink ScreenshotSink) LocatorOption {
	return func(l *ElementLocator) {
		l.screenshots = sink
	}
}

// WithClock sets the clock used for state polling
func WithClock(clock clockwork.Clock) LocatorOption {
	return func(l *ElementLocator) {
		l.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) LocatorOption {
	return func(l *ElementLocator) {
		l.logger = logger
	}
}

// NewElementLocator creates a locator over driver
func NewElementLocator(driver Driver, options ...LocatorOption) *ElementLocator {
	l := &ElementLocator{
		driver:       driver,
		maxRetries:   DefaultMaxRetries,
		waitTimeout:  DefaultWaitTimeout,
		pollInterval: DefaultPollInterval,
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
	}
	for _, opt := range options {
		opt(l)
	}
	if l.maxRetries < 1 {
		l.maxRetries = 1
	}
	if l.waitTimeout < 0 {
		l.waitTimeout = 0
	}
	return l
}

type condition func(Element) (bool, error)

func clickable(el Element) (bool, error) {
	displayed, err := el.IsDisplayed()
	if err != nil || !displayed {
		return false, err
	}
	return el.IsEnabled()
}

func displayed(el Element) (bool, error) {
	return el.IsDisplayed()
}

// FindElement returns the element once it is displayed and enabled
func (l *ElementLocator) FindElement(ctx context.Context, by Locator) (Element, error) {
	return l.find(ctx, by, clickable)
}

// FindVisibleElement returns the element once it is displayed
func (l *ElementLocator) FindVisibleElement(ctx context.Context, by Locator) (Element, error) {
	return l.find(ctx, by, displayed)
}

// GetElement makes a single lookup without waiting. A missing element
// yields a nil element and a nil error.
func (l *ElementLocator) GetElement(ctx context.Context, by Locator) (Element, error) {
	el, err := l.driver.FindElement(ctx, by)
	if errors.Is(err, ErrNoSuchElement) {
		return nil, nil
	}
	return el, err
}

func (l *ElementLocator) find(ctx context.Context, by Locator, cond condition) (Element, error) {
	var lastErr error

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		el, err := l.attempt(ctx, by, cond)
		if err == nil {
			return el, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !isTransient(err) {
			return nil, l.fatal(ctx, by, err)
		}

		lastErr = err
		l.logger.Debug("element lookup failed",
			"locator", by.String(),
			"attempt", attempt,
			"retriesLeft", l.maxRetries-attempt,
			"error", err)
	}

	return nil, l.notFound(ctx, by, lastErr)
}

// attempt looks the element up once and polls cond over the wait budget
func (l *ElementLocator) attempt(ctx context.Context, by Locator, cond condition) (Element, error) {
	el, err := l.driver.FindElement(ctx, by)
	if err != nil {
		return nil, err
	}

	poll := correlation.NewRetryBudget(l.waitTimeout, l.pollInterval).Start()
	for {
		poll.Attempt()
		ok, err := cond(el)
		if err != nil {
			return nil, err
		}
		if ok {
			return el, nil
		}

		wait, more := poll.Next()
		if !more {
			return nil, fmt.Errorf("%w: %s not ready after %s (%d checks)",
				ErrWaitTimeout, by, poll.Budget().Timeout, poll.Attempts())
		}
		select {
		case <-l.clock.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *ElementLocator) fatal(ctx context.Context, by Locator, err error) error {
	stateErr := &ElementStateError{Locator: by, Err: err}

	if errors.Is(err, ErrElementNotInteractable) {
		l.logger.Error("element is not interactable", "locator", by.String())
		return stateErr
	}

	l.logger.Error("could not find element", "locator", by.String(), "error", err)
	stateErr.Screenshot, stateErr.ScreenshotPath = l.capture(ctx, "exception")
	return stateErr
}

func (l *ElementLocator) notFound(ctx context.Context, by Locator, lastErr error) error {
	nf := &ElementNotFoundError{
		Locator:  by,
		Attempts: l.maxRetries,
		Err:      lastErr,
	}

	if url, err := l.driver.CurrentURL(ctx); err == nil {
		nf.URL = url
	}
	if title, err := l.driver.Title(ctx); err == nil {
		nf.Title = title
	}
	nf.Screenshot, nf.ScreenshotPath = l.capture(ctx, strconv.FormatInt(l.clock.Now().UnixMilli(), 10))

	l.logger.Error("element not found",
		"locator", by.String(),
		"attempts", nf.Attempts,
		"url", nf.URL,
		"screenshot", nf.ScreenshotPath)
	return nf
}

// capture takes a screenshot on a best-effort basis
func (l *ElementLocator) capture(ctx context.Context, step string) ([]byte, string) {
	png, err := l.driver.Screenshot(ctx)
	if err != nil {
		l.logger.Warn("failed to take screenshot", "error", err)
		return nil, ""
	}
	if l.screenshots == nil {
		return png, ""
	}

	path, err := l.screenshots.Save(step, png)
	if err != nil {
		l.logger.Warn("failed to save screenshot", "step", step, "error", err)
	}
	return png, path
}
