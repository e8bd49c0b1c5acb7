// Package browser implements the bounded element lookup used by UI test steps.
//
// An ElementLocator retries a lookup a fixed number of times. Missing and
// stale elements, and elements that do not reach the required state within
// the wait timeout, consume a retry. An element that is present but not
// interactable, or any other driver failure, aborts at once with an
// ElementStateError. When every attempt failed the locator returns an
// ElementNotFoundError with the page URL, title and a screenshot.
//
//	locator := browser.NewElementLocator(driver,
//	    browser.WithScreenshots(browser.NewFileScreenshots("screenshots", "checkout", "chrome", nil)),
//	)
//	button, err := locator.FindElement(ctx, browser.ID("submit"))
package browser
