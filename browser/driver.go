package browser

import (
	"context"
	"fmt"
)

// Strategy names a WebDriver element location strategy
type Strategy string

const (
	ByID       Strategy = "id"
	ByName     Strategy = "name"
	ByCSS      Strategy = "css selector"
	ByXPath    Strategy = "xpath"
	ByLinkText Strategy = "link text"
	ByTagName  Strategy = "tag name"
)

// Locator identifies an element on the current page
type Locator struct {
	Strategy Strategy
	Value    string
}

// ID locates by element id
func ID(id string) Locator { return Locator{Strategy: ByID, Value: id} }

// Name locates by the name attribute
func Name(name string) Locator { return Locator{Strategy: ByName, Value: name} }

// CSS locates by CSS selector
func CSS(selector string) Locator { return Locator{Strategy: ByCSS, Value: selector} }

// XPath locates by XPath expression
func XPath(expr string) Locator { return Locator{Strategy: ByXPath, Value: expr} }

// LinkText locates an anchor by its visible text
func LinkText(text string) Locator { return Locator{Strategy: ByLinkText, Value: text} }

// TagName locates by tag name
func TagName(tag string) Locator { return Locator{Strategy: ByTagName, Value: tag} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// Element is a handle to a located element. A handle may go stale at any
// time, in which case its methods return ErrStaleElement.
type Element interface {
	IsDisplayed() (bool, error)
	IsEnabled() (bool, error)
}

// Driver is the part of a WebDriver session the element lookup needs.
// FindElement reports a missing element with ErrNoSuchElement.
type Driver interface {
	FindElement(ctx context.Context, by Locator) (Element, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}
