package browser

import (
	"errors"
	"fmt"

	"github.com/glimte/syncprobe/contracts"
)

var (
	// Transient lookup failures, retried by the locator
	ErrNoSuchElement = errors.New("browser: no such element")
	ErrStaleElement  = errors.New("browser: stale element reference")
	ErrWaitTimeout   = errors.New("browser: element wait timed out")

	// ErrElementNotInteractable means the element exists but cannot be used
	ErrElementNotInteractable = errors.New("browser: element not interactable")
)

// ElementNotFoundError is returned when every lookup attempt failed transiently
type ElementNotFoundError struct {
	Locator        Locator
	Attempts       int
	URL            string
	Title          string
	Screenshot     []byte
	ScreenshotPath string
	Err            error // last transient failure
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("Cannot find element '%s' on page '%s' with title '%s' after %d attempts",
		e.Locator, e.URL, e.Title, e.Attempts)
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.Err
}

// Is matches contracts.ErrTimeout since the retry budget ran out
func (e *ElementNotFoundError) Is(target error) bool {
	return target == contracts.ErrTimeout
}

// ElementStateError aborts a lookup without using the remaining retries
type ElementStateError struct {
	Locator        Locator
	Err            error
	Screenshot     []byte
	ScreenshotPath string
}

func (e *ElementStateError) Error() string {
	return fmt.Sprintf("Could not find element '%s': %v", e.Locator, e.Err)
}

func (e *ElementStateError) Unwrap() error {
	return e.Err
}

// Is matches contracts.ErrFatal
func (e *ElementStateError) Is(target error) bool {
	return target == contracts.ErrFatal
}

func isTransient(err error) bool {
	return errors.Is(err, ErrNoSuchElement) ||
		errors.Is(err, ErrStaleElement) ||
		errors.Is(err, ErrWaitTimeout)
}
