package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glimte/syncprobe/contracts"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookup struct {
	el  Element
	err error
}

// fakeDriver answers FindElement from a script; the last entry repeats
type fakeDriver struct {
	mu          sync.Mutex
	script      []lookup
	finds       int
	screenshots int
	shotErr     error
}

func (d *fakeDriver) FindElement(ctx context.Context, by Locator) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.finds
	if i >= len(d.script) {
		i = len(d.script) - 1
	}
	d.finds++
	return d.script[i].el, d.script[i].err
}

func (d *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	return "https://shop.example/checkout", nil
}

func (d *fakeDriver) Title(ctx context.Context) (string, error) {
	return "Checkout", nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenshots++
	if d.shotErr != nil {
		return nil, d.shotErr
	}
	return []byte("png"), nil
}

func (d *fakeDriver) Finds() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finds
}

// fakeElement becomes displayed after hiddenFor checks
type fakeElement struct {
	hiddenFor int
	checks    int
	disabled  bool
	err       error
}

func (e *fakeElement) IsDisplayed() (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	e.checks++
	return e.checks > e.hiddenFor, nil
}

func (e *fakeElement) IsEnabled() (bool, error) {
	return !e.disabled, nil
}

type stepClock struct {
	clockwork.Clock
	mu    sync.Mutex
	waits []time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{Clock: clockwork.NewFakeClock()}
}

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (c *stepClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type recordingSink struct {
	steps []string
	err   error
}

func (s *recordingSink) Save(step string, png []byte) (string, error) {
	s.steps = append(s.steps, step)
	if s.err != nil {
		return "", s.err
	}
	return "/shots/" + step + ".png", nil
}

func TestElementLocatorFindElement(t *testing.T) {
	submit := ID("submit")

	t.Run("returns element found on first attempt", func(t *testing.T) {
		el := &fakeElement{}
		driver := &fakeDriver{script: []lookup{{el: el}}}

		got, err := NewElementLocator(driver).FindElement(context.Background(), submit)

		require.NoError(t, err)
		assert.Same(t, el, got)
		assert.Equal(t, 1, driver.Finds())
	})

	t.Run("retries transient failures", func(t *testing.T) {
		el := &fakeElement{}
		driver := &fakeDriver{script: []lookup{
			{err: ErrNoSuchElement},
			{err: ErrStaleElement},
			{el: el},
		}}

		got, err := NewElementLocator(driver).FindElement(context.Background(), submit)

		require.NoError(t, err)
		assert.Same(t, el, got)
		assert.Equal(t, 3, driver.Finds())
	})

	t.Run("escalates after exhausting retries", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrNoSuchElement}}}
		sink := &recordingSink{}
		clock := newStepClock()

		_, err := NewElementLocator(driver, WithScreenshots(sink), WithClock(clock)).
			FindElement(context.Background(), submit)

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, 3, nf.Attempts)
		assert.Equal(t, "https://shop.example/checkout", nf.URL)
		assert.Equal(t, "Checkout", nf.Title)
		assert.Equal(t, []byte("png"), nf.Screenshot)
		assert.NotEmpty(t, nf.ScreenshotPath)
		assert.Len(t, sink.steps, 1)
		assert.ErrorIs(t, err, ErrNoSuchElement)
		assert.ErrorIs(t, err, contracts.ErrTimeout)
		assert.False(t, errors.Is(err, contracts.ErrFatal))
		assert.Contains(t, err.Error(), "Cannot find element 'id=submit' on page 'https://shop.example/checkout' with title 'Checkout'")
		assert.Equal(t, 3, driver.Finds())
	})

	t.Run("honors max retries", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrStaleElement}}}

		_, err := NewElementLocator(driver, WithMaxRetries(5)).FindElement(context.Background(), submit)

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, 5, nf.Attempts)
		assert.Equal(t, 5, driver.Finds())
	})

	t.Run("not interactable aborts without using retries", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrElementNotInteractable}}}

		_, err := NewElementLocator(driver).FindElement(context.Background(), submit)

		var stateErr *ElementStateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, submit, stateErr.Locator)
		assert.Nil(t, stateErr.Screenshot)
		assert.ErrorIs(t, err, contracts.ErrFatal)
		assert.ErrorIs(t, err, ErrElementNotInteractable)
		assert.Equal(t, 1, driver.Finds())
		assert.Equal(t, 0, driver.screenshots)
	})

	t.Run("unknown driver error aborts with screenshot", func(t *testing.T) {
		sessionLost := errors.New("invalid session id")
		driver := &fakeDriver{script: []lookup{{err: sessionLost}}}
		sink := &recordingSink{}

		_, err := NewElementLocator(driver, WithScreenshots(sink)).FindElement(context.Background(), submit)

		var stateErr *ElementStateError
		require.ErrorAs(t, err, &stateErr)
		assert.ErrorIs(t, err, sessionLost)
		assert.ErrorIs(t, err, contracts.ErrFatal)
		assert.Equal(t, []byte("png"), stateErr.Screenshot)
		assert.Equal(t, "/shots/exception.png", stateErr.ScreenshotPath)
		assert.Equal(t, []string{"exception"}, sink.steps)
		assert.Equal(t, 1, driver.Finds())
	})

	t.Run("disabled element is retried until exhausted", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{el: &fakeElement{disabled: true}}}}

		_, err := NewElementLocator(driver, WithWaitTimeout(0)).FindElement(context.Background(), submit)

		assert.ErrorIs(t, err, ErrWaitTimeout)
		assert.ErrorIs(t, err, contracts.ErrTimeout)
		assert.Equal(t, 3, driver.Finds())
	})

	t.Run("stale handle is replaced by a fresh lookup", func(t *testing.T) {
		stale := &fakeElement{err: ErrStaleElement}
		fresh := &fakeElement{}
		driver := &fakeDriver{script: []lookup{{el: stale}, {el: fresh}}}

		got, err := NewElementLocator(driver).FindElement(context.Background(), submit)

		require.NoError(t, err)
		assert.Same(t, fresh, got)
		assert.Equal(t, 2, driver.Finds())
	})

	t.Run("waits for element state within an attempt", func(t *testing.T) {
		el := &fakeElement{hiddenFor: 2}
		driver := &fakeDriver{script: []lookup{{el: el}}}
		clock := newStepClock()

		got, err := NewElementLocator(driver,
			WithClock(clock),
			WithWaitTimeout(800*time.Millisecond),
			WithPollInterval(300*time.Millisecond),
		).FindElement(context.Background(), submit)

		require.NoError(t, err)
		assert.Same(t, el, got)
		assert.Equal(t, 1, driver.Finds())
		assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, clock.Waits())
	})

	t.Run("state wait is bounded by the wait timeout", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{el: &fakeElement{hiddenFor: 100}}}}
		clock := newStepClock()

		_, err := NewElementLocator(driver,
			WithClock(clock),
			WithMaxRetries(1),
			WithWaitTimeout(800*time.Millisecond),
			WithPollInterval(300*time.Millisecond),
		).FindElement(context.Background(), submit)

		assert.ErrorIs(t, err, ErrWaitTimeout)

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Contains(t, nf.Err.Error(), "not ready after 800ms (4 checks)")
		assert.Equal(t, []time.Duration{
			300 * time.Millisecond,
			300 * time.Millisecond,
			200 * time.Millisecond,
		}, clock.Waits())
	})

	t.Run("cancelled context stops the lookup", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrNoSuchElement}}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewElementLocator(driver).FindElement(ctx, submit)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, driver.Finds())
	})

	t.Run("screenshot failures do not mask the lookup error", func(t *testing.T) {
		driver := &fakeDriver{
			script:  []lookup{{err: ErrNoSuchElement}},
			shotErr: errors.New("no display"),
		}

		_, err := NewElementLocator(driver).FindElement(context.Background(), submit)

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Nil(t, nf.Screenshot)
		assert.Empty(t, nf.ScreenshotPath)
	})

	t.Run("sink failures keep the screenshot bytes", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrNoSuchElement}}}
		sink := &recordingSink{err: errors.New("disk full")}

		_, err := NewElementLocator(driver, WithScreenshots(sink)).FindElement(context.Background(), submit)

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []byte("png"), nf.Screenshot)
		assert.Empty(t, nf.ScreenshotPath)
	})
}

func TestElementLocatorFindVisibleElement(t *testing.T) {
	t.Run("accepts disabled element", func(t *testing.T) {
		el := &fakeElement{disabled: true}
		driver := &fakeDriver{script: []lookup{{el: el}}}

		got, err := NewElementLocator(driver).FindVisibleElement(context.Background(), CSS(".price"))

		require.NoError(t, err)
		assert.Same(t, el, got)
	})

	t.Run("hidden element is not found", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{el: &fakeElement{hiddenFor: 100}}}}

		_, err := NewElementLocator(driver, WithWaitTimeout(0)).FindVisibleElement(context.Background(), CSS(".price"))

		var nf *ElementNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, CSS(".price"), nf.Locator)
	})
}

func TestElementLocatorGetElement(t *testing.T) {
	t.Run("missing element is nil without error", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrNoSuchElement}}}

		el, err := NewElementLocator(driver).GetElement(context.Background(), Name("q"))

		assert.NoError(t, err)
		assert.Nil(t, el)
		assert.Equal(t, 1, driver.Finds())
	})

	t.Run("returns element without state checks", func(t *testing.T) {
		hidden := &fakeElement{hiddenFor: 100}
		driver := &fakeDriver{script: []lookup{{el: hidden}}}

		el, err := NewElementLocator(driver).GetElement(context.Background(), Name("q"))

		require.NoError(t, err)
		assert.Same(t, hidden, el)
		assert.Equal(t, 0, hidden.checks)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		driver := &fakeDriver{script: []lookup{{err: ErrStaleElement}}}

		_, err := NewElementLocator(driver).GetElement(context.Background(), Name("q"))

		assert.ErrorIs(t, err, ErrStaleElement)
		assert.Equal(t, 1, driver.Finds())
	})
}

func TestNewElementLocator(t *testing.T) {
	driver := &fakeDriver{script: []lookup{{err: ErrNoSuchElement}}}

	l := NewElementLocator(driver)
	assert.Equal(t, DefaultMaxRetries, l.maxRetries)
	assert.Equal(t, DefaultWaitTimeout, l.waitTimeout)
	assert.Equal(t, DefaultPollInterval, l.pollInterval)

	l = NewElementLocator(driver, WithMaxRetries(0), WithWaitTimeout(-time.Second))
	assert.Equal(t, 1, l.maxRetries)
	assert.Equal(t, time.Duration(0), l.waitTimeout)
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "id=submit", ID("submit").String())
	assert.Equal(t, "css selector=.price", CSS(".price").String())
	assert.Equal(t, "xpath=//a[@href]", XPath("//a[@href]").String())
	assert.Equal(t, "link text=Next", LinkText("Next").String())
	assert.Equal(t, "tag name=h1", TagName("h1").String())
}
