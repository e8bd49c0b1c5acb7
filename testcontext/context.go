// Package testcontext holds the variables of one test execution.
//
// Each running test case owns its own Context. Values are resolved in strings
// through ${name} placeholders, e.g. destination names like "orders.${env}".
package testcontext

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	variablePrefix = "${"
	variableSuffix = "}"
)

// ErrUnknownVariable is returned when a variable is not set in the context
var ErrUnknownVariable = errors.New("unknown variable")

// Context is the variable scope of a single test execution
type Context struct {
	id        string
	variables map[string]string
	mu        sync.RWMutex
}

// New creates an empty test context
func New() *Context {
	return &Context{
		id:        uuid.New().String(),
		variables: make(map[string]string),
	}
}

// ID returns the unique context identifier
func (c *Context) ID() string {
	return c.id
}

// SetVariable sets a variable, overwriting any previous value
func (c *Context) SetVariable(name, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// GetVariable returns a variable value
func (c *Context) GetVariable(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.variables[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return v, nil
}

// HasVariable reports whether name is set
func (c *Context) HasVariable(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.variables[name]
	return ok
}

// ReplaceDynamicContent substitutes every ${name} placeholder in s.
// Unknown variables and unterminated placeholders are errors.
func (c *Context) ReplaceDynamicContent(s string) (string, error) {
	if !strings.Contains(s, variablePrefix) {
		return s, nil
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, variablePrefix)
		if start < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.Index(rest[start:], variableSuffix)
		if end < 0 {
			return "", fmt.Errorf("unterminated variable expression in %q", s)
		}
		end += start

		name := rest[start+len(variablePrefix) : end]
		value, err := c.GetVariable(name)
		if err != nil {
			return "", err
		}

		b.WriteString(rest[:start])
		b.WriteString(value)
		rest = rest[end+len(variableSuffix):]
	}
}
