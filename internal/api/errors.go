// Package api provides error types for flowsheet backend responses.
package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigNotFound indicates the backend has no saved config with the requested name.
var ErrConfigNotFound = errors.New("config not found")

// StatusError is returned for any non-2xx backend response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s failed: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsNotFound reports whether err is a missing-config error or any 404 from the backend.
//
// Usage:
//
//	data, err := client.LoadConfig(ctx, id, name)
//	if api.IsNotFound(err) {
//	    // offer the remaining names instead
//	}
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfigNotFound) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}
